// Package store persists tracking records. Three backends are provided:
// PostgreSQL (primary), DynamoDB, and an in-memory store for tests and
// local development.
//
// All backends guarantee that concurrent engagement events against the same
// record lose no open counts and that the first event to engage a record
// wins the method and opened-at slots. PostgreSQL and DynamoDB do this with
// a single conditional write; the memory store serializes mutations behind
// a mutex.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/reachify/beacon/internal/config"
	"github.com/reachify/beacon/internal/domain"
)

// ErrDuplicateTracking is returned by Create when a record with the same
// tracking ID already exists.
var ErrDuplicateTracking = errors.New("store: tracking ID already exists")

// TrackingStore is the persistence interface for tracking records.
type TrackingStore interface {
	// Create inserts a new record. Returns ErrDuplicateTracking if the
	// tracking ID is already present.
	Create(ctx context.Context, rec *domain.TrackingRecord) error

	// Get returns the record for the given tracking ID, or (nil, nil)
	// when no such record exists.
	Get(ctx context.Context, trackingID string) (*domain.TrackingRecord, error)

	// ApplyEngagement applies an engagement event to the record it names.
	// Returns found=false (and no error) when the record does not exist.
	// The write is atomic: the open count increments exactly once per call
	// and the method/opened-at slots keep their first value under any
	// interleaving of concurrent callers.
	ApplyEngagement(ctx context.Context, evt domain.EngagementEvent) (found bool, err error)

	// List returns all records ordered by send time, newest first.
	List(ctx context.Context) ([]*domain.TrackingRecord, error)

	// DeleteOlderThan removes up to limit records sent before cutoff and
	// reports how many were deleted. Used by the retention sweeper.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// New builds the tracking store selected by cfg.Store.Backend. The db handle
// is required for the postgres backend and ignored otherwise.
func New(ctx context.Context, cfg *config.Config, db *sql.DB) (TrackingStore, error) {
	switch cfg.Store.Backend {
	case "postgres":
		if db == nil {
			return nil, errors.New("store: postgres backend requires a database connection")
		}
		return NewPostgresStore(db), nil
	case "dynamodb":
		return NewDynamoStore(ctx, cfg.Store)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Store.Backend)
	}
}
