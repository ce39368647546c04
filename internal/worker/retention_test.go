package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/reachify/beacon/internal/config"
	"github.com/reachify/beacon/internal/domain"
	"github.com/reachify/beacon/internal/pkg/distlock"
	"github.com/reachify/beacon/internal/store"
)

// =============================================================================
// RETENTION WORKER TESTS
// =============================================================================

func seedTrackingRecords(t *testing.T, ts store.TrackingStore, old, fresh int) {
	t.Helper()
	now := time.Now().UTC()
	for i := 0; i < old; i++ {
		rec := &domain.TrackingRecord{
			TrackingID: "old-" + string(rune('a'+i)),
			To:         "candidate@example.com",
			Status:     domain.StatusSent,
			SentAt:     now.Add(-48 * time.Hour),
		}
		if err := ts.Create(context.Background(), rec); err != nil {
			t.Fatalf("Create(old) error: %v", err)
		}
	}
	for i := 0; i < fresh; i++ {
		rec := &domain.TrackingRecord{
			TrackingID: "fresh-" + string(rune('a'+i)),
			To:         "candidate@example.com",
			Status:     domain.StatusSent,
			SentAt:     now.Add(-time.Hour),
		}
		if err := ts.Create(context.Background(), rec); err != nil {
			t.Fatalf("Create(fresh) error: %v", err)
		}
	}
}

func TestRetentionWorker_New(t *testing.T) {
	ts := store.NewMemoryStore()
	cfg := config.RetentionConfig{Enabled: true, MaxAgeDays: 90, IntervalHours: 12}

	rw := NewRetentionWorker(ts, nil, cfg)

	if rw.maxAge != 90*24*time.Hour {
		t.Errorf("maxAge = %v, want %v", rw.maxAge, 90*24*time.Hour)
	}
	if rw.interval != 12*time.Hour {
		t.Errorf("interval = %v, want %v", rw.interval, 12*time.Hour)
	}
}

func TestRetentionWorker_RunOnce(t *testing.T) {
	ts := store.NewMemoryStore()
	seedTrackingRecords(t, ts, 3, 2)

	cfg := config.RetentionConfig{Enabled: true, MaxAgeDays: 1, IntervalHours: 24}
	rw := NewRetentionWorker(ts, nil, cfg)

	rw.RunOnce(context.Background())

	records, err := ts.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records after sweep, want 2", len(records))
	}
	for _, rec := range records {
		if time.Since(rec.SentAt) > 24*time.Hour {
			t.Errorf("record %s older than the retention window survived the sweep", rec.TrackingID)
		}
	}
}

func TestRetentionWorker_RunOnce_SkipsWhenLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ts := store.NewMemoryStore()
	seedTrackingRecords(t, ts, 2, 1)

	// Another instance already holds the sweep lock.
	holder := distlock.NewRedisLock(client, RetentionLockKey, time.Minute)
	acquired, err := holder.Acquire(context.Background())
	if err != nil || !acquired {
		t.Fatalf("holder.Acquire() = %v, %v; want true, nil", acquired, err)
	}

	cfg := config.RetentionConfig{Enabled: true, MaxAgeDays: 1, IntervalHours: 24}
	rw := NewRetentionWorker(ts, distlock.NewRedisLock(client, RetentionLockKey, time.Minute), cfg)

	rw.RunOnce(context.Background())

	records, err := ts.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3: sweep must not run while the lock is held elsewhere", len(records))
	}

	// Once the holder releases, the sweep proceeds.
	if err := holder.Release(context.Background()); err != nil {
		t.Fatalf("holder.Release() error: %v", err)
	}
	rw.RunOnce(context.Background())

	records, err = ts.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records after sweep, want 1", len(records))
	}
}

func TestRetentionWorker_StartStop(t *testing.T) {
	ts := store.NewMemoryStore()
	seedTrackingRecords(t, ts, 2, 1)

	cfg := config.RetentionConfig{Enabled: true, MaxAgeDays: 1, IntervalHours: 24}
	rw := NewRetentionWorker(ts, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rw.Start(ctx)
		close(done)
	}()

	// The initial sweep runs on start; wait for it to land.
	deadline := time.After(5 * time.Second)
	for {
		records, err := ts.List(context.Background())
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(records) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("initial sweep did not complete, %d records remain", len(records))
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}
