package directory

import (
	"fmt"
	"sort"

	"github.com/abdoulgee/skylinee/pkg/auth"
	"github.com/abdoulgee/skylinee/pkg/logger"
	"github.com/abdoulgee/skylinee/pkg/models"
	"github.com/abdoulgee/skylinee/pkg/store"
	"github.com/abdoulgee/skylinee/pkg/transactions"
)

// Builder computes the set of threads visible to an actor. It owns no
// state: every call is a fresh join of transaction records against the
// message log, so the result can never drift from either.
type Builder struct {
	txns transactions.Provider
}

func New(p transactions.Provider) *Builder {
	return &Builder{txns: p}
}

// List returns the actor's thread directory, ordered by latest message
// time descending; threads with no message yet follow, ordered by
// transaction creation time descending. Threads are enumerated from
// transaction records, so a thread whose transaction was deleted simply
// never appears.
func (b *Builder) List(actor auth.Identity) ([]models.ThreadSummary, error) {
	var bookings, campaigns []transactions.Record
	var err error
	if actor.Role == models.RoleAgent {
		if bookings, err = b.txns.AllBookings(); err != nil {
			return nil, fmt.Errorf("list bookings: %w", err)
		}
		if campaigns, err = b.txns.AllCampaigns(); err != nil {
			return nil, fmt.Errorf("list campaigns: %w", err)
		}
	} else {
		if bookings, err = b.txns.BookingsOf(actor.ActorID); err != nil {
			return nil, fmt.Errorf("list bookings: %w", err)
		}
		if campaigns, err = b.txns.CampaignsOf(actor.ActorID); err != nil {
			return nil, fmt.Errorf("list campaigns: %w", err)
		}
	}

	out := make([]models.ThreadSummary, 0, len(bookings)+len(campaigns))
	for _, rec := range bookings {
		s, err := b.summarize(actor, models.KindBooking, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	for _, rec := range campaigns {
		s, err := b.summarize(actor, models.KindCampaign, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	logger.Debug("directory_built", "actor", actor.ActorID, "role", string(actor.Role), "threads", len(out))
	return out, nil
}

func (b *Builder) summarize(actor auth.Identity, kind models.Kind, rec transactions.Record) (models.ThreadSummary, error) {
	tid := models.Resolve(kind, rec.ID)
	last, err := store.LastMessage(tid)
	if err != nil {
		return models.ThreadSummary{}, fmt.Errorf("last message of %s: %w", tid, err)
	}
	wm, err := store.LastRead(tid, actor.ActorID)
	if err != nil {
		return models.ThreadSummary{}, fmt.Errorf("watermark of %s: %w", tid, err)
	}
	unread, err := store.UnreadCount(tid, actor.Role.Opponent(), wm)
	if err != nil {
		return models.ThreadSummary{}, fmt.Errorf("unread of %s: %w", tid, err)
	}
	s := models.ThreadSummary{
		ThreadID:    tid,
		Kind:        kind,
		ReferenceID: rec.ID,
		LastMessage: last,
		Counterpart: models.Counterpart{Name: rec.CounterpartName, ImageURL: rec.CounterpartImageURL},
		Unread:      unread,
		CreatedAt:   rec.CreatedAt,
	}
	if actor.Role == models.RoleAgent {
		s.CustomerName = rec.CustomerName
	}
	return s, nil
}

// less orders summaries: message-bearing threads by message recency, then
// message-less threads by transaction recency.
func less(a, b models.ThreadSummary) bool {
	switch {
	case a.LastMessage != nil && b.LastMessage == nil:
		return true
	case a.LastMessage == nil && b.LastMessage != nil:
		return false
	case a.LastMessage != nil && b.LastMessage != nil:
		if a.LastMessage.CreatedAt != b.LastMessage.CreatedAt {
			return a.LastMessage.CreatedAt > b.LastMessage.CreatedAt
		}
		return a.ThreadID < b.ThreadID
	default:
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ThreadID < b.ThreadID
	}
}

// Authorize checks whether the actor may read or write the given thread.
// Customers may touch only threads anchored to their own transactions;
// agents may touch any thread whose transaction still exists. The caller
// is expected to mask the returned ErrThreadAccessDenied as a generic
// not-found so existence of other users' threads is never leaked.
func (b *Builder) Authorize(actor auth.Identity, ref models.ThreadRef) error {
	rec, ok, err := b.txns.Get(ref)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrThreadAccessDenied
	}
	if actor.Role == models.RoleCustomer && rec.UserID != actor.ActorID {
		return models.ErrThreadAccessDenied
	}
	return nil
}
