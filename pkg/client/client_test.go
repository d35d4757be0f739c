package client_test

import (
	"context"
	"testing"

	"github.com/abdoulgee/skylinee/pkg/api"
	"github.com/abdoulgee/skylinee/pkg/auth"
	"github.com/abdoulgee/skylinee/pkg/client"
	"github.com/abdoulgee/skylinee/pkg/directory"
	"github.com/abdoulgee/skylinee/pkg/models"
	"github.com/abdoulgee/skylinee/pkg/store"
	"github.com/abdoulgee/skylinee/pkg/transactions"
	"github.com/abdoulgee/skylinee/pkg/uploads"

	"net/http/httptest"
)

func newStack(t *testing.T) *httptest.Server {
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
		CustomerKeys: map[string]struct{}{"ck": {}},
		AgentKeys:    map[string]struct{}{"ak": {}},
		SigningKeys:  map[string]struct{}{"sig": {}},
	}
	srv := httptest.NewServer(auth.Middleware(cfg)(router))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := newStack(t)
	ctx := context.Background()

	agent := client.New(srv.URL, "ak", "agent-1")
	rec, err := agent.CreateRecord(ctx, models.KindBooking, transactions.Record{UserID: "cust-1", CounterpartName: "Ava"})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	tid := models.Resolve(models.KindBooking, rec.ID)

	cust := client.New(srv.URL, "ck", "cust-1", client.WithSigningKey("sig"))
	threads, err := cust.Directory(ctx)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	if len(threads) != 1 || threads[0].ThreadID != tid {
		t.Fatalf("directory %+v", threads)
	}

	url, err := cust.Upload(ctx, "pic.png", []byte("png"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := cust.CreateMessage(ctx, tid, "see photo", url); err != nil {
		t.Fatalf("create message: %v", err)
	}
	msgs, err := cust.Messages(ctx, tid)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ImageURL != url || msgs[0].SenderRole != models.RoleCustomer {
		t.Fatalf("messages %+v", msgs)
	}
	if err := cust.MarkRead(ctx, tid); err != nil {
		t.Fatalf("mark read: %v", err)
	}
}

func TestClientUnsignedCustomerRejected(t *testing.T) {
	srv := newStack(t)
	cust := client.New(srv.URL, "ck", "cust-1") // no signing key
	if _, err := cust.Directory(context.Background()); err == nil {
		t.Fatal("unsigned customer request succeeded")
	}
}
