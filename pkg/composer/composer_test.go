package composer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abdoulgee/skylinee/pkg/models"
)

const (
	testTimeout = time.Second
	tick        = time.Millisecond
)

type fakeSender struct {
	mu         sync.Mutex
	uploadErr  error
	createErr  error
	uploads    int
	created    []models.Message
	nextID     int64
	createGate chan struct{}
}

func (f *fakeSender) Upload(_ context.Context, name string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "/uploads/" + name, nil
}

func (f *fakeSender) CreateMessage(_ context.Context, threadID, text, imageURL string) (models.Message, error) {
	f.mu.Lock()
	gate := f.createGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return models.Message{}, f.createErr
	}
	f.nextID++
	m := models.Message{ID: f.nextID, ThreadID: threadID, Text: text, ImageURL: imageURL}
	f.created = append(f.created, m)
	return m, nil
}

func TestSendTextOnly(t *testing.T) {
	fs := &fakeSender{}
	c := New(fs)
	c.SetText("Hello")

	var notified models.Message
	c.OnSent(func(m models.Message) { notified = m })

	msg, err := c.Send(context.Background(), "booking-1")
	require.NoError(t, err)
	require.Equal(t, "Hello", msg.Text)
	require.Equal(t, msg, notified)
	require.Equal(t, StateIdle, c.State())
	require.Empty(t, c.Text())
	require.Zero(t, fs.uploads)
}

func TestSendEmptyDraft(t *testing.T) {
	fs := &fakeSender{}
	c := New(fs)
	c.SetText("   ")
	_, err := c.Send(context.Background(), "booking-1")
	require.ErrorIs(t, err, models.ErrEmptyMessage)
	require.Empty(t, fs.created)
}

func TestUploadFailureKeepsDraft(t *testing.T) {
	fs := &fakeSender{uploadErr: errors.New("disk full")}
	c := New(fs)
	c.SetText("see attached")
	c.Attach("receipt.png", []byte("png"))

	_, err := c.Send(context.Background(), "booking-1")
	require.ErrorIs(t, err, models.ErrUploadFailed)
	require.Equal(t, StateIdle, c.State())
	require.Equal(t, "see attached", c.Text())
	require.True(t, c.HasAttachment())
	// No message may be created when the upload failed.
	require.Empty(t, fs.created)

	// Retry after the backend recovers produces exactly one message.
	fs.mu.Lock()
	fs.uploadErr = nil
	fs.mu.Unlock()
	msg, err := c.Send(context.Background(), "booking-1")
	require.NoError(t, err)
	require.Equal(t, "/uploads/receipt.png", msg.ImageURL)
	require.Len(t, fs.created, 1)
	require.False(t, c.HasAttachment())
}

func TestCreateFailureKeepsDraft(t *testing.T) {
	fs := &fakeSender{createErr: errors.New("503")}
	c := New(fs)
	c.SetText("try me")
	_, err := c.Send(context.Background(), "booking-1")
	require.Error(t, err)
	require.Equal(t, "try me", c.Text())
	require.Equal(t, StateIdle, c.State())
}

func TestSecondSendWhileBusy(t *testing.T) {
	gate := make(chan struct{})
	fs := &fakeSender{createGate: gate}
	c := New(fs)
	c.SetText("first")

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "booking-1")
		done <- err
	}()
	require.Eventually(t, func() bool { return c.State() == StateCreating }, testTimeout, tick)

	_, err := c.Send(context.Background(), "booking-1")
	require.ErrorIs(t, err, models.ErrSendInFlight)

	close(gate)
	require.NoError(t, <-done)
	require.Len(t, fs.created, 1)
}

func TestEditsDuringSendBecomeNextDraft(t *testing.T) {
	gate := make(chan struct{})
	fs := &fakeSender{createGate: gate}
	c := New(fs)
	c.SetText("first")

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "booking-1")
		done <- err
	}()
	require.Eventually(t, func() bool { return c.State() == StateCreating }, testTimeout, tick)

	c.SetText("second, already typing")
	c.Attach("followup.png", []byte("png"))

	close(gate)
	require.NoError(t, <-done)
	require.Equal(t, "second, already typing", c.Text())
	require.True(t, c.HasAttachment())
	require.Len(t, fs.created, 1)
	require.Equal(t, "first", fs.created[0].Text)
}

func TestStateProgressionWithAttachment(t *testing.T) {
	fs := &fakeSender{}
	c := New(fs)
	c.Attach("a.png", []byte("png"))
	msg, err := c.Send(context.Background(), "campaign-2")
	require.NoError(t, err)
	require.Equal(t, "/uploads/a.png", msg.ImageURL)
	require.Empty(t, msg.Text)
	require.Equal(t, 1, fs.uploads)
}
