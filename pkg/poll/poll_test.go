package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abdoulgee/skylinee/pkg/models"
)

type fakeSource struct {
	mu   sync.Mutex
	dir  []models.ThreadSummary
	msgs map[string][]models.Message
	fail bool

	// gate, when set, blocks Messages until released once.
	gate chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{msgs: map[string][]models.Message{}}
}

func (f *fakeSource) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeSource) setMessages(tid string, msgs []models.Message) {
	f.mu.Lock()
	f.msgs[tid] = msgs
	f.mu.Unlock()
}

func (f *fakeSource) Directory(context.Context) ([]models.ThreadSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("backend down")
	}
	return f.dir, nil
}

func (f *fakeSource) Messages(_ context.Context, tid string) ([]models.Message, error) {
	f.mu.Lock()
	gate := f.gate
	f.gate = nil
	fail := f.fail
	msgs := f.msgs[tid]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if fail {
		return nil, errors.New("backend down")
	}
	return msgs, nil
}

func startSyncer(t *testing.T, src Source, opts Options) *Syncer {
	t.Helper()
	s := NewSyncer(src, opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func fast() Options {
	return Options{DirectoryEvery: 10 * time.Millisecond, ThreadEvery: 5 * time.Millisecond, StaleAfter: 3}
}

func TestSyncerReplacesSnapshots(t *testing.T) {
	src := newFakeSource()
	src.dir = []models.ThreadSummary{{ThreadID: "booking-1"}}
	src.setMessages("booking-1", []models.Message{{ID: 1, Text: "hi"}})

	s := startSyncer(t, src, fast())
	require.Eventually(t, func() bool { return len(s.Directory()) == 1 }, time.Second, time.Millisecond)

	s.Select("booking-1")
	require.Eventually(t, func() bool { return len(s.Messages()) == 1 }, time.Second, time.Millisecond)

	src.setMessages("booking-1", []models.Message{{ID: 1, Text: "hi"}, {ID: 2, Text: "there"}})
	require.Eventually(t, func() bool { return len(s.Messages()) == 2 }, time.Second, time.Millisecond)
}

func TestMessagesSortedByID(t *testing.T) {
	src := newFakeSource()
	src.setMessages("booking-1", []models.Message{
		{ID: 3, Text: "third"},
		{ID: 1, Text: "first"},
		{ID: 2, Text: "second"},
	})

	s := startSyncer(t, src, fast())
	s.Select("booking-1")
	require.Eventually(t, func() bool { return len(s.Messages()) == 3 }, time.Second, time.Millisecond)

	m := s.Messages()
	require.Equal(t, []int64{1, 2, 3}, []int64{m[0].ID, m[1].ID, m[2].ID})
}

func TestSelectDiscardsStaleResponse(t *testing.T) {
	src := newFakeSource()
	src.setMessages("booking-1", []models.Message{{ID: 1, Text: "old thread"}})
	src.setMessages("booking-2", []models.Message{{ID: 1, Text: "new thread"}})

	gate := make(chan struct{})
	src.mu.Lock()
	src.gate = gate
	src.mu.Unlock()

	s := startSyncer(t, src, Options{DirectoryEvery: time.Hour, ThreadEvery: 20 * time.Millisecond, StaleAfter: 3})
	s.Select("booking-1") // fetch blocks on the gate
	time.Sleep(10 * time.Millisecond)
	s.Select("booking-2")
	close(gate)

	require.Eventually(t, func() bool {
		m := s.Messages()
		return len(m) == 1 && m[0].Text == "new thread"
	}, time.Second, time.Millisecond)

	// The released booking-1 response must never surface afterwards.
	time.Sleep(50 * time.Millisecond)
	m := s.Messages()
	require.Len(t, m, 1)
	require.Equal(t, "new thread", m[0].Text)
}

func TestStaleAfterConsecutiveFailures(t *testing.T) {
	src := newFakeSource()
	src.dir = []models.ThreadSummary{{ThreadID: "booking-1"}}
	s := startSyncer(t, src, fast())
	require.Eventually(t, func() bool { return len(s.Directory()) == 1 }, time.Second, time.Millisecond)
	require.False(t, s.Stale())

	src.setFail(true)
	require.Eventually(t, s.Stale, time.Second, time.Millisecond)

	// Last good snapshot stays visible while stale.
	require.Len(t, s.Directory(), 1)

	src.setFail(false)
	require.Eventually(t, func() bool { return !s.Stale() }, time.Second, time.Millisecond)
}

func TestRefreshFetchesOutOfBand(t *testing.T) {
	src := newFakeSource()
	src.setMessages("booking-1", []models.Message{{ID: 1}})

	// Interval long enough that only explicit kicks can fetch.
	s := startSyncer(t, src, Options{DirectoryEvery: time.Hour, ThreadEvery: time.Hour, StaleAfter: 3})
	s.Select("booking-1")
	require.Eventually(t, func() bool { return len(s.Messages()) == 1 }, time.Second, time.Millisecond)

	src.setMessages("booking-1", []models.Message{{ID: 1}, {ID: 2}})
	s.Refresh()
	require.Eventually(t, func() bool { return len(s.Messages()) == 2 }, time.Second, time.Millisecond)
}
