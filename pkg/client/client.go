package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/abdoulgee/skylinee/pkg/auth"
	"github.com/abdoulgee/skylinee/pkg/models"
	"github.com/abdoulgee/skylinee/pkg/transactions"
	"github.com/abdoulgee/skylinee/pkg/utils"
)

// Client is a typed HTTP client for the messaging API. It satisfies
// both the poll source and the composer sender, so one instance backs a
// whole interactive session.
type Client struct {
	baseURL string
	apiKey  string
	actorID string
	// signingKey is set for customer sessions; agent keys carry enough
	// trust that the actor header is sent unsigned.
	signingKey string
	http       *http.Client
}

type Option func(*Client)

// WithHTTPClient overrides the underlying transport, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithSigningKey enables customer-mode request signing.
func WithSigningKey(key string) Option {
	return func(c *Client) { c.signingKey = key }
}

func New(baseURL, apiKey, actorID string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		actorID: actorID,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Actor-ID", c.actorID)
	if c.signingKey != "" {
		req.Header.Set("X-Actor-Signature", auth.SignActor(c.signingKey, c.actorID))
	}
	return req, nil
}

func (c *Client) do(req *http.Request, wantStatus int, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		var apiErr utils.ErrorBody
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", req.Method, req.URL.Path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Directory fetches the actor's thread directory.
func (c *Client) Directory(ctx context.Context) ([]models.ThreadSummary, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/directory", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Threads []models.ThreadSummary `json:"threads"`
	}
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Threads, nil
}

// Messages fetches the full message list of one thread.
func (c *Client) Messages(ctx context.Context, threadID string) ([]models.Message, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/threads/"+threadID+"/messages", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// CreateMessage appends a message to a thread and returns the stored
// copy with its server-assigned id and timestamp.
func (c *Client) CreateMessage(ctx context.Context, threadID, text, imageURL string) (models.Message, error) {
	b, err := json.Marshal(map[string]string{"text": text, "imageUrl": imageURL})
	if err != nil {
		return models.Message{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/threads/"+threadID+"/messages", bytes.NewReader(b))
	if err != nil {
		return models.Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var msg models.Message
	if err := c.do(req, http.StatusCreated, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// MarkRead moves the actor's read watermark for the thread to now.
func (c *Client) MarkRead(ctx context.Context, threadID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/threads/"+threadID+"/read", nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusNoContent, nil)
}

// Upload stores an attachment and returns its serving URL.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/uploads", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// CreateRecord registers a booking or campaign record. Agent sessions
// only; the server rejects customer keys.
func (c *Client) CreateRecord(ctx context.Context, kind models.Kind, rec transactions.Record) (transactions.Record, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return transactions.Record{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/"+string(kind)+"s", bytes.NewReader(b))
	if err != nil {
		return transactions.Record{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var saved transactions.Record
	if err := c.do(req, http.StatusCreated, &saved); err != nil {
		return transactions.Record{}, err
	}
	return saved, nil
}
