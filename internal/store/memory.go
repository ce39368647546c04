package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reachify/beacon/internal/domain"
)

// MemoryStore is an in-memory TrackingStore for tests and local development.
// A single mutex serializes every mutation, so the read-modify-write in
// ApplyEngagement is safe without conditional writes.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*domain.TrackingRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*domain.TrackingRecord),
	}
}

// Create inserts a new tracking record.
func (s *MemoryStore) Create(ctx context.Context, rec *domain.TrackingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.TrackingID]; exists {
		return ErrDuplicateTracking
	}
	cp := *rec
	s.records[rec.TrackingID] = &cp
	return nil
}

// Get retrieves a tracking record by ID. Returns (nil, nil) if not found.
func (s *MemoryStore) Get(ctx context.Context, trackingID string) (*domain.TrackingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[trackingID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// ApplyEngagement applies an engagement event under the store mutex.
func (s *MemoryStore) ApplyEngagement(ctx context.Context, evt domain.EngagementEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[evt.TrackingID]
	if !ok {
		return false, nil
	}
	rec.ApplyEngagement(evt)
	return true, nil
}

// List returns all tracking records, newest sent first.
func (s *MemoryStore) List(ctx context.Context) ([]*domain.TrackingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*domain.TrackingRecord, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SentAt.After(records[j].SentAt)
	})
	return records, nil
}

// DeleteOlderThan removes up to limit records sent before cutoff.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, rec := range s.records {
		if deleted >= int64(limit) {
			break
		}
		if rec.SentAt.Before(cutoff) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}
