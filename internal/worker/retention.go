package worker

import (
	"context"
	"log"
	"time"

	"github.com/reachify/beacon/internal/config"
	"github.com/reachify/beacon/internal/pkg/distlock"
	"github.com/reachify/beacon/internal/store"
)

// =============================================================================
// RETENTION WORKER — Removes Old Tracking Records
// =============================================================================
// Tracking rows accumulate one per outbound email and are never deleted by
// the request path. Without a periodic sweep the table grows unbounded and
// the tracking-status listing slows down for everyone.
//
// Deletes run in bounded batches to avoid long-running transactions that
// could lock the table and block pixel and click writes.

const (
	// retentionBatchSize limits each delete pass to keep transactions short.
	retentionBatchSize = 10000

	// RetentionLockKey guards the sweep so only one instance runs it.
	RetentionLockKey = "retention-sweep"

	// RetentionLockTTL bounds how long a crashed instance can block the
	// sweep. RunOnce renews it between batches.
	RetentionLockTTL = 10 * time.Minute
)

// RetentionWorker periodically deletes tracking records older than the
// configured maximum age.
type RetentionWorker struct {
	store    store.TrackingStore
	lock     distlock.DistLock
	maxAge   time.Duration
	interval time.Duration
}

// NewRetentionWorker creates a sweep worker. lock may be nil when the
// deployment runs a single instance.
func NewRetentionWorker(ts store.TrackingStore, lock distlock.DistLock, cfg config.RetentionConfig) *RetentionWorker {
	return &RetentionWorker{
		store:    ts,
		lock:     lock,
		maxAge:   cfg.MaxAge(),
		interval: cfg.Interval(),
	}
}

// Start begins the sweep loop. It blocks until ctx is cancelled.
func (rw *RetentionWorker) Start(ctx context.Context) {
	log.Printf("[Retention] Starting (max_age=%s, interval=%s, batch_size=%d)", rw.maxAge, rw.interval, retentionBatchSize)

	// Run once immediately on start
	rw.RunOnce(ctx)

	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Retention] Stopping")
			return
		case <-ticker.C:
			rw.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Exposed so operators can trigger an
// out-of-cycle sweep from the command line.
func (rw *RetentionWorker) RunOnce(ctx context.Context) {
	if rw.lock != nil {
		acquired, err := rw.lock.Acquire(ctx)
		if err != nil {
			log.Printf("[Retention] Lock error: %v", err)
			return
		}
		if !acquired {
			log.Println("[Retention] Another instance holds the sweep lock, skipping")
			return
		}
		defer func() {
			if err := rw.lock.Release(context.Background()); err != nil {
				log.Printf("[Retention] Lock release error: %v", err)
			}
		}()
	}

	start := time.Now()
	cutoff := time.Now().UTC().Add(-rw.maxAge)

	var total int64
	for {
		if ctx.Err() != nil {
			return
		}

		deleteCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		n, err := rw.store.DeleteOlderThan(deleteCtx, cutoff, retentionBatchSize)
		cancel()

		if err != nil {
			log.Printf("[Retention] Delete error: %v", err)
			break
		}
		if n == 0 {
			break
		}
		total += n

		// Renew the lock so a sweep that outlives the TTL is not taken
		// over by another instance mid-run.
		if rw.lock != nil {
			if err := rw.lock.Extend(ctx, RetentionLockTTL); err != nil {
				log.Printf("[Retention] Lost sweep lock after %d deletes, stopping: %v", total, err)
				return
			}
		}

		// Small pause between batches to reduce load
		time.Sleep(100 * time.Millisecond)
	}

	if total > 0 {
		log.Printf("[Retention] Removed %d tracking records older than %s in %s", total, rw.maxAge, time.Since(start).Round(time.Millisecond))
	}
}
