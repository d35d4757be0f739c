package poll

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abdoulgee/skylinee/pkg/logger"
	"github.com/abdoulgee/skylinee/pkg/models"
)

// Source is what the syncer polls. Both calls return the complete
// current state; the syncer replaces its snapshot wholesale rather than
// merging deltas.
type Source interface {
	Directory(ctx context.Context) ([]models.ThreadSummary, error)
	Messages(ctx context.Context, threadID string) ([]models.Message, error)
}

// Options tunes the polling cadence. Zero fields take the defaults used
// by the interactive clients.
type Options struct {
	DirectoryEvery time.Duration // default 10s
	ThreadEvery    time.Duration // default 3s
	StaleAfter     int           // consecutive failures before Stale, default 3
}

func (o *Options) fill() {
	if o.DirectoryEvery <= 0 {
		o.DirectoryEvery = 10 * time.Second
	}
	if o.ThreadEvery <= 0 {
		o.ThreadEvery = 3 * time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 3
	}
}

// Syncer keeps a local replica of the thread directory and of one
// selected thread's messages by interval polling. Selecting a thread
// bumps a generation counter; a fetch started before the switch installs
// nothing when it completes, so a slow response for the previous thread
// can never overwrite the new one.
type Syncer struct {
	src  Source
	opts Options

	gen      atomic.Uint64
	failures atomic.Int64

	mu     sync.Mutex
	dir    []models.ThreadSummary
	msgs   []models.Message
	active string

	kick chan struct{}
}

func NewSyncer(src Source, opts Options) *Syncer {
	opts.fill()
	return &Syncer{src: src, opts: opts, kick: make(chan struct{}, 1)}
}

// Run polls until ctx is cancelled. It fetches the directory once up
// front so callers see state promptly after startup.
func (s *Syncer) Run(ctx context.Context) {
	dirTicker := time.NewTicker(s.opts.DirectoryEvery)
	defer dirTicker.Stop()
	threadTimer := time.NewTimer(s.opts.ThreadEvery)
	defer threadTimer.Stop()

	s.fetchDirectory(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-dirTicker.C:
			s.fetchDirectory(ctx)
		case <-threadTimer.C:
			s.fetchActive(ctx)
			threadTimer.Reset(s.opts.ThreadEvery)
		case <-s.kick:
			// Out-of-band fetch; restarting the timer debounces the
			// tick that would otherwise land right after it.
			s.fetchActive(ctx)
			if !threadTimer.Stop() {
				select {
				case <-threadTimer.C:
				default:
				}
			}
			threadTimer.Reset(s.opts.ThreadEvery)
		}
	}
}

// Select switches the active thread. The previous thread's messages are
// dropped immediately and a fetch for the new thread is kicked off out
// of band. Selecting "" detaches from any thread.
func (s *Syncer) Select(threadID string) {
	s.mu.Lock()
	if s.active == threadID {
		s.mu.Unlock()
		return
	}
	s.active = threadID
	s.msgs = nil
	s.mu.Unlock()
	s.gen.Add(1)
	if threadID != "" {
		s.poke()
	}
}

// Refresh requests an immediate fetch of the active thread, typically
// right after a send so the authoritative copy of the new message
// arrives without waiting out the interval.
func (s *Syncer) Refresh() { s.poke() }

func (s *Syncer) poke() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Directory returns the latest directory snapshot.
func (s *Syncer) Directory() []models.ThreadSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ThreadSummary, len(s.dir))
	copy(out, s.dir)
	return out
}

// Messages returns the latest snapshot of the active thread.
func (s *Syncer) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Stale reports whether enough consecutive fetches have failed that the
// displayed state should be flagged as possibly out of date. One
// successful fetch clears it.
func (s *Syncer) Stale() bool {
	return s.failures.Load() >= int64(s.opts.StaleAfter)
}

func (s *Syncer) fetchDirectory(ctx context.Context) {
	dir, err := s.src.Directory(ctx)
	if err != nil {
		if ctx.Err() == nil {
			n := s.failures.Add(1)
			logger.Warn("directory_poll_failed", "consecutive", n, "error", err)
		}
		return
	}
	s.failures.Store(0)
	s.mu.Lock()
	s.dir = dir
	s.mu.Unlock()
}

func (s *Syncer) fetchActive(ctx context.Context) {
	s.mu.Lock()
	tid := s.active
	s.mu.Unlock()
	if tid == "" {
		return
	}
	g := s.gen.Load()
	msgs, err := s.src.Messages(ctx, tid)
	if err != nil {
		if ctx.Err() == nil {
			n := s.failures.Add(1)
			logger.Warn("thread_poll_failed", "thread", tid, "consecutive", n, "error", err)
		}
		return
	}
	if s.gen.Load() != g {
		return
	}
	// Display order is the id order regardless of how the transport
	// happened to deliver the batch.
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	s.failures.Store(0)
	s.mu.Lock()
	if s.active == tid {
		s.msgs = msgs
	}
	s.mu.Unlock()
}
