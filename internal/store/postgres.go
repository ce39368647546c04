package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/reachify/beacon/internal/domain"
)

// PostgresStore persists tracking records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new tracking record in the SENT state.
func (s *PostgresStore) Create(ctx context.Context, rec *domain.TrackingRecord) error {
	query := `INSERT INTO tracking_records (tracking_id, recipient, subject, body, role, company,
		status, sent_at, ip_address, user_agent, open_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.db.ExecContext(ctx, query, rec.TrackingID, rec.To, rec.Subject, rec.Body,
		rec.Role, rec.Company, rec.Status, rec.SentAt, rec.IPAddress, rec.UserAgent, rec.OpenCount)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateTracking
		}
		return fmt.Errorf("insert tracking record: %w", err)
	}
	return nil
}

// Get retrieves a tracking record by ID. Returns (nil, nil) if not found.
func (s *PostgresStore) Get(ctx context.Context, trackingID string) (*domain.TrackingRecord, error) {
	query := `SELECT tracking_id, recipient, subject, body, role, company, status, method,
		sent_at, opened_at, ip_address, user_agent, open_count
		FROM tracking_records WHERE tracking_id = $1`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, trackingID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ApplyEngagement applies an engagement event in a single atomic statement.
// COALESCE keeps the first opened_at and method regardless of how concurrent
// events interleave; the counter increment never loses an update because the
// arithmetic happens inside the row lock.
func (s *PostgresStore) ApplyEngagement(ctx context.Context, evt domain.EngagementEvent) (bool, error) {
	query := `UPDATE tracking_records SET
		open_count = open_count + 1,
		ip_address = $2,
		user_agent = $3,
		status = $4,
		opened_at = COALESCE(opened_at, $5),
		method = COALESCE(method, $6)
		WHERE tracking_id = $1`

	res, err := s.db.ExecContext(ctx, query, evt.TrackingID, evt.IPAddress, evt.UserAgent,
		domain.StatusOpened, evt.OccurredAt, string(evt.Method))
	if err != nil {
		return false, fmt.Errorf("apply engagement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// List returns all tracking records, newest sent first.
func (s *PostgresStore) List(ctx context.Context) ([]*domain.TrackingRecord, error) {
	query := `SELECT tracking_id, recipient, subject, body, role, company, status, method,
		sent_at, opened_at, ip_address, user_agent, open_count
		FROM tracking_records ORDER BY sent_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.TrackingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteOlderThan removes up to limit records sent before cutoff.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `DELETE FROM tracking_records WHERE tracking_id IN (
		SELECT tracking_id FROM tracking_records WHERE sent_at < $1 LIMIT $2
	)`

	res, err := s.db.ExecContext(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("delete old tracking records: %w", err)
	}
	return res.RowsAffected()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.TrackingRecord, error) {
	rec := &domain.TrackingRecord{}
	var method sql.NullString
	var openedAt sql.NullTime

	err := row.Scan(&rec.TrackingID, &rec.To, &rec.Subject, &rec.Body, &rec.Role, &rec.Company,
		&rec.Status, &method, &rec.SentAt, &openedAt, &rec.IPAddress, &rec.UserAgent, &rec.OpenCount)
	if err != nil {
		return nil, err
	}

	if method.Valid {
		rec.Method = domain.Method(method.String)
	}
	if openedAt.Valid {
		t := openedAt.Time
		rec.OpenedAt = &t
	}
	return rec, nil
}
