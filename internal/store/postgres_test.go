package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/reachify/beacon/internal/domain"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

var recordColumns = []string{
	"tracking_id", "recipient", "subject", "body", "role", "company", "status", "method",
	"sent_at", "opened_at", "ip_address", "user_agent", "open_count",
}

func TestPostgresCreate(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPostgresStore(db)

	rec := &domain.TrackingRecord{
		TrackingID: "abc123",
		To:         "candidate@example.com",
		Subject:    "Hello",
		Body:       "<p>hi</p>",
		Status:     domain.StatusSent,
		SentAt:     time.Now(),
	}

	mock.ExpectExec("INSERT INTO tracking_records").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresCreateDuplicate(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPostgresStore(db)

	mock.ExpectExec("INSERT INTO tracking_records").
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Create(context.Background(), &domain.TrackingRecord{TrackingID: "abc123"})
	if !errors.Is(err, ErrDuplicateTracking) {
		t.Errorf("Create() error = %v, want ErrDuplicateTracking", err)
	}
}

func TestPostgresGetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT tracking_id, recipient").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	rec, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec != nil {
		t.Errorf("Get() = %+v, want nil for missing record", rec)
	}
}

func TestPostgresGetUnopened(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPostgresStore(db)

	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(recordColumns).
		AddRow("abc123", "candidate@example.com", "Hello", "<p>hi</p>", "SWE", "Acme",
			"SENT", nil, sentAt, nil, "", "", 0)

	mock.ExpectQuery("SELECT tracking_id, recipient").
		WithArgs("abc123").
		WillReturnRows(rows)

	rec, err := store.Get(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Status != domain.StatusSent {
		t.Errorf("Status = %q, want SENT", rec.Status)
	}
	if rec.Method != domain.MethodNone {
		t.Errorf("Method = %q, want none", rec.Method)
	}
	if rec.OpenedAt != nil {
		t.Errorf("OpenedAt = %v, want nil", rec.OpenedAt)
	}
}

func TestPostgresGetOpened(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPostgresStore(db)

	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	openedAt := sentAt.Add(2 * time.Hour)
	rows := sqlmock.NewRows(recordColumns).
		AddRow("abc123", "candidate@example.com", "Hello", "<p>hi</p>", "SWE", "Acme",
			"OPENED", "PIXEL", sentAt, openedAt, "203.0.113.9", "Mozilla/5.0", 3)

	mock.ExpectQuery("SELECT tracking_id, recipient").
		WithArgs("abc123").
		WillReturnRows(rows)

	rec, err := store.Get(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Status != domain.StatusOpened {
		t.Errorf("Status = %q, want OPENED", rec.Status)
	}
	if rec.Method != domain.MethodPixel {
		t.Errorf("Method = %q, want PIXEL", rec.Method)
	}
	if rec.OpenedAt == nil || !rec.OpenedAt.Equal(openedAt) {
		t.Errorf("OpenedAt = %v, want %v", rec.OpenedAt, openedAt)
	}
	if rec.OpenCount != 3 {
		t.Errorf("OpenCount = %d, want 3", rec.OpenCount)
	}
}

func TestPostgresApplyEngagement(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPostgresStore(db)

	evt := domain.EngagementEvent{
		TrackingID: "abc123",
		Method:     domain.MethodPixel,
		IPAddress:  "203.0.113.9",
		UserAgent:  "Mozilla/5.0",
		OccurredAt: time.Now(),
	}

	mock.ExpectExec("UPDATE tracking_records SET").
		WithArgs(evt.TrackingID, evt.IPAddress, evt.UserAgent,
			domain.StatusOpened, evt.OccurredAt, "PIXEL").
		WillReturnResult(sqlmock.NewResult(0, 1))

	found, err := store.ApplyEngagement(context.Background(), evt)
	if err != nil {
		t.Fatalf("ApplyEngagement() error = %v", err)
	}
	if !found {
		t.Error("ApplyEngagement() found = false, want true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresApplyEngagementUnknownID(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPostgresStore(db)

	mock.ExpectExec("UPDATE tracking_records SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	found, err := store.ApplyEngagement(context.Background(), domain.EngagementEvent{
		TrackingID: "ghost",
		Method:     domain.MethodClick,
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("ApplyEngagement() error = %v", err)
	}
	if found {
		t.Error("ApplyEngagement() found = true for unknown ID, want false")
	}
}

func TestPostgresList(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPostgresStore(db)

	newer := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	older := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(recordColumns).
		AddRow("b", "b@example.com", "s", "b", "", "", "SENT", nil, newer, nil, "", "", 0).
		AddRow("a", "a@example.com", "s", "b", "", "", "OPENED", "CLICK", older, older, "198.51.100.7", "curl/8.0", 2)

	mock.ExpectQuery("SELECT tracking_id, recipient.+ORDER BY sent_at DESC").
		WillReturnRows(rows)

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List() returned %d records, want 2", len(records))
	}
	if records[0].TrackingID != "b" {
		t.Errorf("first record = %q, want newest first", records[0].TrackingID)
	}
}

func TestPostgresDeleteOlderThan(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	store := NewPostgresStore(db)

	cutoff := time.Now().Add(-180 * 24 * time.Hour)
	mock.ExpectExec("DELETE FROM tracking_records WHERE tracking_id IN").
		WithArgs(cutoff, 10000).
		WillReturnResult(sqlmock.NewResult(0, 42))

	deleted, err := store.DeleteOlderThan(context.Background(), cutoff, 10000)
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 42 {
		t.Errorf("deleted = %d, want 42", deleted)
	}
}
