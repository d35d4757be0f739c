package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/abdoulgee/skylinee/pkg/logger"
	"github.com/abdoulgee/skylinee/pkg/models"
)

var db *pebble.DB

// seqMu serializes message id allocation. Pebble has no atomic increment;
// concurrent sends to the same thread must both persist with distinct,
// increasing ids.
var seqMu sync.Mutex

// Key layout:
//
//	thread:<threadID>:msg:<012d id>  -> message JSON (append-only)
//	thread:<threadID>:seq            -> last allocated message id
//	read:<threadID>:<actorID>        -> last-read watermark (unix nanos)
//
// Transaction records live under their own namespaces via the raw key
// helpers (see pkg/transactions).

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func msgPrefix(threadID string) []byte {
	return []byte("thread:" + threadID + ":msg:")
}

func msgKey(threadID string, id int64) []byte {
	return []byte(fmt.Sprintf("thread:%s:msg:%012d", threadID, id))
}

func seqKey(threadID string) []byte {
	return []byte("thread:" + threadID + ":seq")
}

func readKey(threadID, actorID string) []byte {
	return []byte("read:" + threadID + ":" + actorID)
}

// AppendMessage appends a message to a thread's log, assigning the next
// monotonic id and the server-side creation time. A message with neither
// text nor an image fails with ErrEmptyMessage and writes nothing.
func AppendMessage(threadID string, role models.Role, text, imageURL string) (models.Message, error) {
	if db == nil {
		return models.Message{}, fmt.Errorf("pebble not opened; call store.Open first")
	}
	if text == "" && imageURL == "" {
		return models.Message{}, models.ErrEmptyMessage
	}

	seqMu.Lock()
	defer seqMu.Unlock()

	last, err := readSeq(threadID)
	if err != nil {
		return models.Message{}, err
	}
	m := models.Message{
		ID:         last + 1,
		ThreadID:   threadID,
		SenderRole: role,
		Text:       text,
		ImageURL:   imageURL,
		CreatedAt:  time.Now().UTC().UnixNano(),
	}
	data, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	// Persist the counter before the message. A crash in between leaves a
	// gap in the id sequence, never a reused id.
	if err := db.Set(seqKey(threadID), []byte(strconv.FormatInt(m.ID, 10)), pebble.Sync); err != nil {
		logger.Error("save_seq_failed", "thread", threadID, "error", err)
		return models.Message{}, err
	}
	if err := db.Set(msgKey(threadID, m.ID), data, pebble.Sync); err != nil {
		logger.Error("save_message_failed", "thread", threadID, "id", m.ID, "error", err)
		return models.Message{}, err
	}
	messagesAppended.WithLabelValues(string(role)).Inc()
	logger.Info("message_saved", "thread", threadID, "id", m.ID, "role", string(role))
	return m, nil
}

func readSeq(threadID string) (int64, error) {
	v, closer, err := db.Get(seqKey(threadID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	defer closer.Close()
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt seq for thread %s: %w", threadID, err)
	}
	return n, nil
}

// ListMessages returns all messages for a thread in id order. An optional
// limit keeps only the most recent n messages.
func ListMessages(threadID string, limit ...int) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	lower := msgPrefix(threadID)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upperBound(lower)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []models.Message
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Error("corrupt_message_skipped", "thread", threadID, "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if len(limit) > 0 && limit[0] >= 0 && limit[0] < len(out) {
		out = out[len(out)-limit[0]:]
	}
	return out, nil
}

// LastMessage returns the newest message of a thread, or nil when the
// thread has no message yet.
func LastMessage(threadID string) (*models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	lower := msgPrefix(threadID)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upperBound(lower)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	if !iter.Last() {
		return nil, iter.Error()
	}
	var m models.Message
	if err := json.Unmarshal(iter.Value(), &m); err != nil {
		return nil, fmt.Errorf("corrupt message at %s: %w", string(iter.Key()), err)
	}
	return &m, nil
}

// CountMessages returns the number of messages in a thread.
func CountMessages(threadID string) (int, error) {
	msgs, err := ListMessages(threadID)
	if err != nil {
		return 0, err
	}
	return len(msgs), nil
}

// UnreadCount counts messages authored by the given role with CreatedAt
// strictly after the supplied watermark.
func UnreadCount(threadID string, authoredBy models.Role, after int64) (int, error) {
	msgs, err := ListMessages(threadID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range msgs {
		if m.SenderRole == authoredBy && m.CreatedAt > after {
			n++
		}
	}
	return n, nil
}

// MarkRead sets the actor's last-read watermark for a thread to now.
// Deliberately coarse: opening a thread acknowledges everything in it.
func MarkRead(threadID, actorID string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	now := time.Now().UTC().UnixNano()
	if err := db.Set(readKey(threadID, actorID), []byte(strconv.FormatInt(now, 10)), pebble.Sync); err != nil {
		logger.Error("mark_read_failed", "thread", threadID, "actor", actorID, "error", err)
		return err
	}
	threadsMarkedRead.Inc()
	logger.Info("thread_marked_read", "thread", threadID, "actor", actorID)
	return nil
}

// LastRead returns the actor's last-read watermark for a thread, or zero
// when the actor has never opened it.
func LastRead(threadID, actorID string) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(readKey(threadID, actorID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	defer closer.Close()
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt watermark for thread %s actor %s: %w", threadID, actorID, err)
	}
	return n, nil
}

// ThreadIDsWithMessages scans the message namespace and returns the set of
// thread ids that have at least one message. Used by the repair sweeper.
func ThreadIDsWithMessages() ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	lower := []byte("thread:")
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upperBound(lower)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []string
	seen := map[string]struct{}{}
	for iter.First(); iter.Valid(); iter.Next() {
		k := string(iter.Key())
		// thread:<id>:msg:... ; skip seq keys
		rest := k[len("thread:"):]
		i := lastIndexSegment(rest, ":msg:")
		if i < 0 {
			continue
		}
		tid := rest[:i]
		if _, ok := seen[tid]; ok {
			continue
		}
		seen[tid] = struct{}{}
		out = append(out, tid)
	}
	return out, iter.Error()
}

// PurgeThread removes a thread's messages, its id counter and all read
// watermarks. Only the consistency sweeper calls this, for threads whose
// transaction record is gone.
func PurgeThread(threadID string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	lower := msgPrefix(threadID)
	if err := db.DeleteRange(lower, upperBound(lower), pebble.Sync); err != nil {
		return err
	}
	if err := db.Delete(seqKey(threadID), pebble.Sync); err != nil {
		return err
	}
	rl := []byte("read:" + threadID + ":")
	if err := db.DeleteRange(rl, upperBound(rl), pebble.Sync); err != nil {
		return err
	}
	threadsPurged.Inc()
	logger.Info("thread_purged", "thread", threadID)
	return nil
}

// GetKey returns the raw value for the given key.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return "", err
	}
	defer closer.Close()
	return string(v), nil
}

// SaveKey stores an arbitrary key/value pair. Callers should choose a safe
// namespace (e.g. "booking:").
func SaveKey(key string, value []byte) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Set([]byte(key), value, pebble.Sync)
}

// DeleteKey removes a raw key.
func DeleteKey(key string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Delete([]byte(key), pebble.Sync)
}

// ListValues returns all values whose keys start with the given prefix.
func ListValues(prefix string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	lower := []byte(prefix)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upperBound(lower)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.First(); iter.Valid(); iter.Next() {
		v := append([]byte(nil), iter.Value()...)
		out = append(out, string(v))
	}
	return out, iter.Error()
}

// IsNotFound reports whether err is the store's not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, pebble.ErrNotFound)
}

// upperBound returns the smallest key greater than every key with the
// given prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func lastIndexSegment(s, sep string) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		if s[i:i+len(sep)] == sep {
			return i
		}
	}
	return -1
}
