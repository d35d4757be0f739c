package app

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/abdoulgee/skylinee/pkg/api"
	"github.com/abdoulgee/skylinee/pkg/auth"
	"github.com/abdoulgee/skylinee/pkg/config"
	"github.com/abdoulgee/skylinee/pkg/directory"
	"github.com/abdoulgee/skylinee/pkg/store"
)

// setupHTTPHandlers mounts operational endpoints next to the versioned
// API. The auth middleware wrapping the whole mux lets these paths
// through unauthenticated.
func (a *App) setupHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))

	upDir := a.cfg.Uploads.Dir
	if upDir == "" {
		upDir = filepath.Join(a.cfg.Storage.DBPath, "uploads")
	}
	mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(upDir))))

	mux.Handle("/", api.NewRouter(api.Deps{
		Directory: directory.New(a.txns),
		Txns:      a.txns,
		Uploads:   a.uploads,
	}))
}

func (a *App) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + ver + `"}`))
}

// startHTTP builds the handler stack, starts the listener in a goroutine
// and returns a channel carrying any fatal server error.
func (a *App) startHTTP() <-chan error {
	mux := http.NewServeMux()
	a.setupHTTPHandlers(mux)

	secCfg := auth.SecConfig{
		AllowedOrigins: append([]string{}, a.cfg.Security.CORS.AllowedOrigins...),
		RPS:            a.cfg.Security.RateLimit.RPS,
		Burst:          a.cfg.Security.RateLimit.Burst,
		CustomerKeys:   config.KeySet(a.cfg.Security.APIKeys.Customer),
		AgentKeys:      config.KeySet(a.cfg.Security.APIKeys.Agent),
		SigningKeys:    config.KeySet(a.cfg.Security.SigningKeys),
	}
	wrapped := auth.Middleware(secCfg)(mux)

	a.srv = &http.Server{Addr: a.cfg.Addr(), Handler: wrapped}

	errCh := make(chan error, 1)
	go func() {
		cert := a.cfg.Server.TLS.CertFile
		key := a.cfg.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- a.srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- a.srv.ListenAndServe()
		}
	}()
	return errCh
}

func (a *App) shutdownHTTP(ctx context.Context) error {
	if a.srv == nil {
		return nil
	}
	return a.srv.Shutdown(ctx)
}
