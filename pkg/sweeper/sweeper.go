package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/abdoulgee/skylinee/pkg/logger"
	"github.com/abdoulgee/skylinee/pkg/models"
	"github.com/abdoulgee/skylinee/pkg/store"
	"github.com/abdoulgee/skylinee/pkg/transactions"
)

// Options configures the orphan sweeper.
type Options struct {
	Enabled bool
	// Cron schedules sweep runs; empty means daily at 03:00.
	Cron string
}

// Start launches the sweep scheduler. Threads are materialized lazily
// from transaction records, so deleting a record already hides its
// thread; the sweeper's job is only to reclaim the messages and read
// watermarks such orphaned threads leave behind in the store.
func Start(ctx context.Context, txns transactions.Provider, opts Options) (context.CancelFunc, error) {
	if !opts.Enabled {
		logger.Info("sweeper_disabled")
		return func() {}, nil
	}
	cronExpr := opts.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid sweeper cron expression: %s", opts.Cron)
	}
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, txns, cronExpr)
	logger.Info("sweeper_started", "cron", cronExpr)
	return cancel, nil
}

func runScheduler(ctx context.Context, txns transactions.Provider, cronExpr string) {
	for {
		next, err := gronx.NextTickAfter(cronExpr, time.Now().UTC(), false)
		if err != nil {
			logger.Error("sweeper_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case <-time.After(time.Until(next)):
			if n, err := RunOnce(txns); err != nil {
				logger.Error("sweeper_run_failed", "error", err)
			} else if n > 0 {
				logger.Info("sweeper_run_done", "purged", n)
			}
		case <-ctx.Done():
			logger.Info("sweeper_stopping")
			return
		}
	}
}

// RunOnce scans every thread that has messages and purges the ones whose
// transaction record no longer exists. It returns the number of threads
// purged.
func RunOnce(txns transactions.Provider) (int, error) {
	tids, err := store.ThreadIDsWithMessages()
	if err != nil {
		return 0, fmt.Errorf("scan threads: %w", err)
	}
	purged := 0
	for _, tid := range tids {
		ref, err := models.ParseThreadID(tid)
		if err != nil {
			// A key outside the id scheme never joins a transaction;
			// leave it for operator inspection rather than destroying it.
			logger.Warn("sweeper_unparseable_thread", "thread", tid)
			continue
		}
		_, ok, err := txns.Get(ref)
		if err != nil {
			return purged, fmt.Errorf("resolve %s: %w", tid, err)
		}
		if ok {
			continue
		}
		if err := store.PurgeThread(tid); err != nil {
			return purged, fmt.Errorf("purge %s: %w", tid, err)
		}
		logger.Info("thread_purged", "thread", tid)
		purged++
	}
	return purged, nil
}
