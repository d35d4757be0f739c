package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abdoulgee/skylinee/pkg/api"
	"github.com/abdoulgee/skylinee/pkg/auth"
	"github.com/abdoulgee/skylinee/pkg/directory"
	"github.com/abdoulgee/skylinee/pkg/models"
	"github.com/abdoulgee/skylinee/pkg/store"
	"github.com/abdoulgee/skylinee/pkg/transactions"
	"github.com/abdoulgee/skylinee/pkg/uploads"
)

const (
	customerKey   = "ck-test"
	agentKey      = "ak-test"
	signingSecret = "sig-secret"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	up, err := uploads.NewLocalStore(t.TempDir(), "/uploads", "1MB")
	if err != nil {
		t.Fatalf("uploads: %v", err)
	}
	p := transactions.NewPebbleProvider()
	router := api.NewRouter(api.Deps{Directory: directory.New(p), Txns: p, Uploads: up})

	cfg := auth.SecConfig{
		CustomerKeys: map[string]struct{}{customerKey: {}},
		AgentKeys:    map[string]struct{}{agentKey: {}},
		SigningKeys:  map[string]struct{}{signingSecret: {}},
	}
	srv := httptest.NewServer(auth.Middleware(cfg)(router))
	t.Cleanup(srv.Close)
	return srv
}

func asCustomer(r *http.Request, actorID string) {
	r.Header.Set("X-API-Key", customerKey)
	r.Header.Set("X-Actor-ID", actorID)
	r.Header.Set("X-Actor-Signature", auth.SignActor(signingSecret, actorID))
}

func asAgent(r *http.Request, actorID string) {
	r.Header.Set("X-API-Key", agentKey)
	r.Header.Set("X-Actor-ID", actorID)
}

func do(t *testing.T, req *http.Request, wantStatus int, out interface{}) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s = %d, want %d (body %s)", req.Method, req.URL.Path, resp.StatusCode, wantStatus, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
	}
}

func jsonReq(t *testing.T, method, url string, v interface{}) *http.Request {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func createBooking(t *testing.T, srv *httptest.Server, userID, counterpart string) transactions.Record {
	t.Helper()
	req := jsonReq(t, http.MethodPost, srv.URL+"/v1/bookings", map[string]string{
		"userId":          userID,
		"counterpartName": counterpart,
	})
	asAgent(req, "agent-1")
	var rec transactions.Record
	do(t, req, http.StatusCreated, &rec)
	return rec
}

type directoryResp struct {
	Threads []models.ThreadSummary `json:"threads"`
}

type messagesResp struct {
	ThreadID string           `json:"threadId"`
	Messages []models.Message `json:"messages"`
}

func TestConversationFlow(t *testing.T) {
	srv := newTestServer(t)
	rec := createBooking(t, srv, "cust-1", "Ava")
	tid := fmt.Sprintf("booking-%d", rec.ID)

	// Directory before any message: thread listed with no last message.
	req := jsonReq(t, http.MethodGet, srv.URL+"/v1/directory", nil)
	asCustomer(req, "cust-1")
	var dir directoryResp
	do(t, req, http.StatusOK, &dir)
	if len(dir.Threads) != 1 || dir.Threads[0].ThreadID != tid {
		t.Fatalf("directory = %+v, want single %s", dir.Threads, tid)
	}
	if dir.Threads[0].LastMessage != nil {
		t.Fatalf("fresh thread has lastMessage %+v", dir.Threads[0].LastMessage)
	}

	// Customer then agent send; ids must come back 1 and 2.
	req = jsonReq(t, http.MethodPost, srv.URL+"/v1/threads/"+tid+"/messages", map[string]string{"text": "Hello"})
	asCustomer(req, "cust-1")
	var m1 models.Message
	do(t, req, http.StatusCreated, &m1)
	if m1.ID != 1 || m1.SenderRole != models.RoleCustomer || m1.Text != "Hello" {
		t.Fatalf("first message %+v", m1)
	}

	req = jsonReq(t, http.MethodPost, srv.URL+"/v1/threads/"+tid+"/messages", map[string]string{"text": "Hi, confirming details"})
	asAgent(req, "agent-1")
	var m2 models.Message
	do(t, req, http.StatusCreated, &m2)
	if m2.ID != 2 || m2.SenderRole != models.RoleAgent {
		t.Fatalf("second message %+v", m2)
	}

	req = jsonReq(t, http.MethodGet, srv.URL+"/v1/threads/"+tid+"/messages", nil)
	asCustomer(req, "cust-1")
	var msgs messagesResp
	do(t, req, http.StatusOK, &msgs)
	if len(msgs.Messages) != 2 || msgs.Messages[0].ID != 1 || msgs.Messages[1].ID != 2 {
		t.Fatalf("message order %+v", msgs.Messages)
	}

	// One unread agent message for the customer, cleared by mark-read.
	req = jsonReq(t, http.MethodGet, srv.URL+"/v1/directory", nil)
	asCustomer(req, "cust-1")
	do(t, req, http.StatusOK, &dir)
	if dir.Threads[0].Unread != 1 {
		t.Fatalf("unread = %d, want 1", dir.Threads[0].Unread)
	}

	req = jsonReq(t, http.MethodPost, srv.URL+"/v1/threads/"+tid+"/read", nil)
	asCustomer(req, "cust-1")
	do(t, req, http.StatusNoContent, nil)

	req = jsonReq(t, http.MethodGet, srv.URL+"/v1/directory", nil)
	asCustomer(req, "cust-1")
	do(t, req, http.StatusOK, &dir)
	if dir.Threads[0].Unread != 0 {
		t.Fatalf("unread after mark = %d, want 0", dir.Threads[0].Unread)
	}
}

func TestThreadAccessMasking(t *testing.T) {
	srv := newTestServer(t)
	rec := createBooking(t, srv, "cust-1", "Ava")
	tid := fmt.Sprintf("booking-%d", rec.ID)

	// Another customer probing the thread sees a plain 404.
	req := jsonReq(t, http.MethodGet, srv.URL+"/v1/threads/"+tid+"/messages", nil)
	asCustomer(req, "cust-2")
	do(t, req, http.StatusNotFound, nil)

	req = jsonReq(t, http.MethodPost, srv.URL+"/v1/threads/"+tid+"/messages", map[string]string{"text": "let me in"})
	asCustomer(req, "cust-2")
	do(t, req, http.StatusNotFound, nil)

	// A thread whose transaction never existed looks the same.
	req = jsonReq(t, http.MethodGet, srv.URL+"/v1/threads/booking-999/messages", nil)
	asCustomer(req, "cust-2")
	do(t, req, http.StatusNotFound, nil)

	// Malformed ids are a client error, not a masked miss.
	req = jsonReq(t, http.MethodGet, srv.URL+"/v1/threads/concert-5/messages", nil)
	asCustomer(req, "cust-1")
	do(t, req, http.StatusBadRequest, nil)
}

func TestEmptyMessageLeavesThreadUntouched(t *testing.T) {
	srv := newTestServer(t)
	rec := createBooking(t, srv, "cust-1", "Ava")
	tid := fmt.Sprintf("booking-%d", rec.ID)

	req := jsonReq(t, http.MethodPost, srv.URL+"/v1/threads/"+tid+"/messages", map[string]string{"text": "  \n "})
	asCustomer(req, "cust-1")
	do(t, req, http.StatusBadRequest, nil)

	req = jsonReq(t, http.MethodGet, srv.URL+"/v1/threads/"+tid+"/messages", nil)
	asCustomer(req, "cust-1")
	var msgs messagesResp
	do(t, req, http.StatusOK, &msgs)
	if len(msgs.Messages) != 0 {
		t.Fatalf("empty send appended %d messages", len(msgs.Messages))
	}
}

func TestUploadThenSendImage(t *testing.T) {
	srv := newTestServer(t)
	rec := createBooking(t, srv, "cust-1", "Ava")
	tid := fmt.Sprintf("booking-%d", rec.ID)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "receipt.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte("png bytes"))
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/uploads", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	asCustomer(req, "cust-1")
	var up struct {
		URL string `json:"url"`
	}
	do(t, req, http.StatusCreated, &up)
	if !strings.HasPrefix(up.URL, "/uploads/") {
		t.Fatalf("upload url %q", up.URL)
	}

	req = jsonReq(t, http.MethodPost, srv.URL+"/v1/threads/"+tid+"/messages", map[string]string{"imageUrl": up.URL})
	asCustomer(req, "cust-1")
	var msg models.Message
	do(t, req, http.StatusCreated, &msg)
	if msg.ImageURL != up.URL || msg.Text != "" {
		t.Fatalf("image message %+v", msg)
	}
	if msg.CreatedAt == 0 || time.Now().UnixNano()-msg.CreatedAt > int64(time.Minute) {
		t.Fatalf("createdAt %d not server-assigned", msg.CreatedAt)
	}
}

func TestRecordRoutesRequireAgent(t *testing.T) {
	srv := newTestServer(t)
	req := jsonReq(t, http.MethodPost, srv.URL+"/v1/bookings", map[string]string{"userId": "cust-1", "counterpartName": "Ava"})
	asCustomer(req, "cust-1")
	do(t, req, http.StatusForbidden, nil)

	req = jsonReq(t, http.MethodDelete, srv.URL+"/v1/bookings/1", nil)
	asCustomer(req, "cust-1")
	do(t, req, http.StatusForbidden, nil)
}

func TestAgentDirectorySeesAllCustomers(t *testing.T) {
	srv := newTestServer(t)
	createBooking(t, srv, "cust-1", "Ava")
	createBooking(t, srv, "cust-2", "Ben")

	req := jsonReq(t, http.MethodGet, srv.URL+"/v1/directory", nil)
	asAgent(req, "agent-1")
	var dir directoryResp
	do(t, req, http.StatusOK, &dir)
	if len(dir.Threads) != 2 {
		t.Fatalf("agent directory has %d threads, want 2", len(dir.Threads))
	}
}
