package composer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/abdoulgee/skylinee/pkg/logger"
	"github.com/abdoulgee/skylinee/pkg/models"
)

// Sender is the outbound half of a messaging client: upload an
// attachment for a claim-check URL, then create the message that
// references it.
type Sender interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
	CreateMessage(ctx context.Context, threadID, text, imageURL string) (models.Message, error)
}

type State int

const (
	StateIdle State = iota
	StateUploading
	StateCreating
)

func (s State) String() string {
	switch s {
	case StateUploading:
		return "uploading"
	case StateCreating:
		return "creating"
	default:
		return "idle"
	}
}

// Composer holds one in-progress draft for a thread and drives the
// two-phase send: attachment upload strictly before message creation,
// never concurrently. At most one send is in flight; a second Send while
// busy returns ErrSendInFlight instead of queueing. On any failure the
// draft is kept so the user can retry without retyping.
type Composer struct {
	sender Sender

	mu         sync.Mutex
	state      State
	text       string
	attachName string
	attachData []byte

	// onSent, when set, fires after a successful send; clients hook
	// their poll refresh here.
	onSent func(models.Message)
}

func New(s Sender) *Composer { return &Composer{sender: s} }

// OnSent registers a callback invoked after each successful send.
func (c *Composer) OnSent(fn func(models.Message)) {
	c.mu.Lock()
	c.onSent = fn
	c.mu.Unlock()
}

func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetText replaces the draft text. Allowed mid-send; the in-flight send
// uses the text it captured at start.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Attach stages one attachment for the next send, replacing any
// previously staged one.
func (c *Composer) Attach(name string, data []byte) {
	c.mu.Lock()
	c.attachName = name
	c.attachData = bytes.Clone(data)
	c.mu.Unlock()
}

func (c *Composer) ClearAttachment() {
	c.mu.Lock()
	c.attachName = ""
	c.attachData = nil
	c.mu.Unlock()
}

// HasAttachment reports whether an attachment is staged.
func (c *Composer) HasAttachment() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachData != nil
}

// Send performs the two-phase send for threadID. An empty draft is
// rejected without any network traffic. On success the delivered draft
// and attachment are cleared; on failure, and for anything retyped while
// the send was in flight, both survive untouched.
func (c *Composer) Send(ctx context.Context, threadID string) (models.Message, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return models.Message{}, models.ErrSendInFlight
	}
	text := c.text
	name, data := c.attachName, c.attachData
	if strings.TrimSpace(text) == "" && data == nil {
		c.mu.Unlock()
		return models.Message{}, models.ErrEmptyMessage
	}
	if data != nil {
		c.state = StateUploading
	} else {
		c.state = StateCreating
	}
	c.mu.Unlock()

	var imageURL string
	if data != nil {
		url, err := c.sender.Upload(ctx, name, data)
		if err != nil {
			c.toIdle()
			logger.Warn("composer_upload_failed", "thread", threadID, "error", err)
			return models.Message{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
		}
		imageURL = url
		c.setState(StateCreating)
	}

	msg, err := c.sender.CreateMessage(ctx, threadID, text, imageURL)
	if err != nil {
		c.toIdle()
		logger.Warn("composer_create_failed", "thread", threadID, "error", err)
		return models.Message{}, err
	}

	c.mu.Lock()
	c.state = StateIdle
	// Clear only what this send actually delivered; edits made while it
	// was in flight become the next draft.
	if c.text == text {
		c.text = ""
	}
	if c.attachName == name && bytes.Equal(c.attachData, data) {
		c.attachName = ""
		c.attachData = nil
	}
	fn := c.onSent
	c.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
	return msg, nil
}

func (c *Composer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Composer) toIdle() { c.setState(StateIdle) }
