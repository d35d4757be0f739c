package transactions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/abdoulgee/skylinee/pkg/logger"
	"github.com/abdoulgee/skylinee/pkg/models"
	"github.com/abdoulgee/skylinee/pkg/store"
)

// Record is the slice of a booking or campaign the messaging core needs:
// ownership, the counterpart snapshot to join into directory entries, and
// the creation time for ordering message-less threads. The transaction
// lifecycle itself (pending/confirmed/approved) is owned elsewhere.
type Record struct {
	ID                  int64  `json:"id"`
	UserID              string `json:"userId"`
	CounterpartName     string `json:"counterpartName"`
	CounterpartImageURL string `json:"counterpartImageUrl,omitempty"`
	CustomerName        string `json:"customerName,omitempty"`
	CreatedAt           int64  `json:"createdAt"`
}

// Provider enumerates transactions for directory building and resolves a
// single thread ref for authorization checks. Implementations must treat a
// missing record as (zero, false, nil), not an error; the directory omits
// dangling threads silently.
type Provider interface {
	BookingsOf(userID string) ([]Record, error)
	CampaignsOf(userID string) ([]Record, error)
	AllBookings() ([]Record, error)
	AllCampaigns() ([]Record, error)
	Get(ref models.ThreadRef) (Record, bool, error)
}

// Manager extends Provider with the write side used by the record
// management endpoints.
type Manager interface {
	Provider
	Put(kind models.Kind, rec Record) (Record, error)
	Delete(kind models.Kind, id int64) error
}

// PebbleProvider keeps transaction records in the shared pebble store under
// the "booking:" and "campaign:" namespaces.
type PebbleProvider struct {
	mu sync.Mutex // id allocation
}

func NewPebbleProvider() *PebbleProvider { return &PebbleProvider{} }

func recordKey(kind models.Kind, id int64) string {
	return fmt.Sprintf("%s:%012d", kind, id)
}

func seqKey(kind models.Kind) string {
	return string(kind) + ":seq"
}

// Put stores a transaction record. A zero ID allocates the next id in the
// kind's namespace. Storing the record is the "transaction event" that
// makes the thread resolvable.
func (p *PebbleProvider) Put(kind models.Kind, rec Record) (Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	last := int64(0)
	if v, err := store.GetKey(seqKey(kind)); err == nil {
		if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			last = n
		}
	} else if !store.IsNotFound(err) {
		return Record{}, err
	}
	if rec.ID == 0 {
		rec.ID = last + 1
	}
	// The seq counter must never fall behind an explicit id, otherwise a
	// later allocation would reuse it and hand the thread's history to a
	// new owner.
	if rec.ID > last {
		if err := store.SaveKey(seqKey(kind), []byte(strconv.FormatInt(rec.ID, 10))); err != nil {
			return Record{}, err
		}
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UTC().UnixNano()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return Record{}, err
	}
	if err := store.SaveKey(recordKey(kind, rec.ID), b); err != nil {
		return Record{}, err
	}
	logger.Info("transaction_saved", "kind", string(kind), "id", rec.ID, "user", rec.UserID)
	return rec, nil
}

// Delete removes a transaction record. The thread it anchored becomes
// dangling and is left to the sweeper.
func (p *PebbleProvider) Delete(kind models.Kind, id int64) error {
	return store.DeleteKey(recordKey(kind, id))
}

// Get resolves a single transaction by thread ref.
func (p *PebbleProvider) Get(ref models.ThreadRef) (Record, bool, error) {
	v, err := store.GetKey(recordKey(ref.Kind, ref.ReferenceID))
	if err != nil {
		if store.IsNotFound(err) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(v), &rec); err != nil {
		return Record{}, false, fmt.Errorf("corrupt %s record %d: %w", ref.Kind, ref.ReferenceID, err)
	}
	return rec, true, nil
}

func (p *PebbleProvider) list(kind models.Kind, userID string) ([]Record, error) {
	vals, err := store.ListValues(string(kind) + ":")
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, v := range vals {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			// seq counter lives under the same prefix
			continue
		}
		if rec.ID == 0 {
			continue
		}
		if userID != "" && rec.UserID != userID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (p *PebbleProvider) BookingsOf(userID string) ([]Record, error) {
	return p.list(models.KindBooking, userID)
}

func (p *PebbleProvider) CampaignsOf(userID string) ([]Record, error) {
	return p.list(models.KindCampaign, userID)
}

func (p *PebbleProvider) AllBookings() ([]Record, error) {
	return p.list(models.KindBooking, "")
}

func (p *PebbleProvider) AllCampaigns() ([]Record, error) {
	return p.list(models.KindCampaign, "")
}
