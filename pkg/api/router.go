package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/abdoulgee/skylinee/pkg/api/handlers"
	"github.com/abdoulgee/skylinee/pkg/directory"
	"github.com/abdoulgee/skylinee/pkg/transactions"
	"github.com/abdoulgee/skylinee/pkg/uploads"
)

// Deps carries the collaborators the HTTP layer routes requests into.
type Deps struct {
	Directory *directory.Builder
	Txns      transactions.Manager
	Uploads   *uploads.LocalStore
}

// NewRouter builds the versioned API router. Authentication and rate
// limiting are applied by the caller as outer middleware; the handlers
// assume a verified Identity is already on the request context.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterThreads(v1, d.Directory)
	handlers.RegisterUploads(v1, d.Uploads)
	handlers.RegisterTransactions(v1, d.Txns)
	return r
}
