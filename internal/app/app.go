package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/abdoulgee/skylinee/pkg/banner"
	"github.com/abdoulgee/skylinee/pkg/config"
	"github.com/abdoulgee/skylinee/pkg/logger"
	"github.com/abdoulgee/skylinee/pkg/store"
	"github.com/abdoulgee/skylinee/pkg/sweeper"
	"github.com/abdoulgee/skylinee/pkg/transactions"
	"github.com/abdoulgee/skylinee/pkg/uploads"
	"github.com/abdoulgee/skylinee/pkg/validation"
)

// App wires the store, upload storage, transaction provider, sweeper and
// HTTP server together and owns their lifecycle.
type App struct {
	cfg       *config.Config
	source    string
	version   string
	commit    string
	buildDate string

	txns    *transactions.PebbleProvider
	uploads *uploads.LocalStore

	srv         *http.Server
	sweepCancel context.CancelFunc
}

// New initializes everything that does not need a running context: the
// config is validated, logging and validation rules installed, the store
// opened and the upload directory prepared. Call Run to start serving.
func New(cfg *config.Config, source, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger.InitWithLevel(cfg.Logging.Level)
	validation.SetRules(validation.Rules{
		MaxTextRunes: cfg.Limits.MaxTextRunes,
		MaxURLLen:    cfg.Limits.MaxURLLen,
	})

	if err := store.Open(cfg.Storage.DBPath); err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", cfg.Storage.DBPath, err)
	}

	upDir := cfg.Uploads.Dir
	if upDir == "" {
		upDir = filepath.Join(cfg.Storage.DBPath, "uploads")
	}
	up, err := uploads.NewLocalStore(upDir, "/uploads", cfg.Uploads.MaxSize)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		cfg:       cfg,
		source:    source,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		txns:      transactions.NewPebbleProvider(),
		uploads:   up,
	}, nil
}

// Run starts the sweeper and HTTP server and blocks until ctx is
// cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	cancel, err := sweeper.Start(ctx, a.txns, sweeper.Options{
		Enabled: a.cfg.Sweeper.Enabled,
		Cron:    a.cfg.Sweeper.Cron,
	})
	if err != nil {
		return err
	}
	a.sweepCancel = cancel

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the server and background jobs and closes the store.
func (a *App) Shutdown() {
	if a.sweepCancel != nil {
		a.sweepCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.shutdownHTTP(ctx); err != nil {
		logger.Warn("http_shutdown_failed", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Warn("store_close_failed", "error", err)
	}
	logger.Info("shutdown_complete")
}

func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.Print(a.cfg.Addr(), a.cfg.Storage.DBPath, a.source, verStr)
}
