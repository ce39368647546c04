package tracking

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reachify/beacon/internal/domain"
	"github.com/reachify/beacon/internal/store"
)

// failingStore simulates a broken backend.
type failingStore struct {
	store.TrackingStore
}

func (failingStore) ApplyEngagement(ctx context.Context, evt domain.EngagementEvent) (bool, error) {
	return false, errors.New("connection refused")
}

func seedRecord(t *testing.T, st store.TrackingStore, id string) {
	t.Helper()
	err := st.Create(context.Background(), &domain.TrackingRecord{
		TrackingID: id,
		To:         "jane@example.com",
		Status:     domain.StatusSent,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func TestRecordOpenFirstEngagement(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()
	seedRecord(t, st, "abc123")

	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.RecordOpen(ctx, domain.EngagementEvent{
		TrackingID: "abc123",
		Method:     domain.MethodPixel,
		IPAddress:  "203.0.113.9",
		UserAgent:  "Mozilla/5.0",
		OccurredAt: t1,
	})

	rec, _ := st.Get(ctx, "abc123")
	if rec.Status != domain.StatusOpened {
		t.Errorf("Status = %q, want OPENED", rec.Status)
	}
	if rec.Method != domain.MethodPixel {
		t.Errorf("Method = %q, want PIXEL", rec.Method)
	}
	if rec.OpenCount != 1 {
		t.Errorf("OpenCount = %d, want 1", rec.OpenCount)
	}
	if rec.OpenedAt == nil || !rec.OpenedAt.Equal(t1) {
		t.Errorf("OpenedAt = %v, want %v", rec.OpenedAt, t1)
	}
	if rec.IPAddress != "203.0.113.9" || rec.UserAgent != "Mozilla/5.0" {
		t.Errorf("client info not captured: ip=%q ua=%q", rec.IPAddress, rec.UserAgent)
	}
}

// A click after a pixel open keeps the pixel attribution and the original
// open time, but still counts and still refreshes client info.
func TestRecordClickAfterOpen(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()
	seedRecord(t, st, "abc123")

	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)

	svc.RecordOpen(ctx, domain.EngagementEvent{
		TrackingID: "abc123", Method: domain.MethodPixel,
		IPAddress: "203.0.113.9", UserAgent: "Mozilla/5.0", OccurredAt: t1,
	})
	svc.RecordClick(ctx, domain.EngagementEvent{
		TrackingID: "abc123", Method: domain.MethodClick, TargetURL: "https://x.com",
		IPAddress: "198.51.100.7", UserAgent: "curl/8.0", OccurredAt: t2,
	})

	rec, _ := st.Get(ctx, "abc123")
	if rec.OpenCount != 2 {
		t.Errorf("OpenCount = %d, want 2", rec.OpenCount)
	}
	if rec.Method != domain.MethodPixel {
		t.Errorf("Method = %q, want PIXEL preserved", rec.Method)
	}
	if !rec.OpenedAt.Equal(t1) {
		t.Errorf("OpenedAt = %v, want first engagement time %v", rec.OpenedAt, t1)
	}
	if rec.IPAddress != "198.51.100.7" || rec.UserAgent != "curl/8.0" {
		t.Errorf("client info should track the latest event: ip=%q ua=%q", rec.IPAddress, rec.UserAgent)
	}
}

func TestRecordClickFirstSetsClickMethod(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()
	seedRecord(t, st, "abc123")

	svc.RecordClick(ctx, domain.EngagementEvent{
		TrackingID: "abc123", Method: domain.MethodClick, TargetURL: "https://x.com",
		OccurredAt: time.Now().UTC(),
	})

	rec, _ := st.Get(ctx, "abc123")
	if rec.Method != domain.MethodClick {
		t.Errorf("Method = %q, want CLICK", rec.Method)
	}
	if rec.Status != domain.StatusOpened {
		t.Errorf("Status = %q, want OPENED", rec.Status)
	}
}

func TestRecordOpenUnknownIDIsNoop(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	svc.RecordOpen(ctx, domain.EngagementEvent{
		TrackingID: "ghost", Method: domain.MethodPixel, OccurredAt: time.Now().UTC(),
	})

	records, _ := st.List(ctx)
	if len(records) != 0 {
		t.Errorf("unknown ID created a record: %+v", records)
	}
}

// Storage failures must not escape the record path.
func TestRecordSwallowsStorageFailure(t *testing.T) {
	svc := NewService(failingStore{})
	ctx := context.Background()

	svc.RecordOpen(ctx, domain.EngagementEvent{
		TrackingID: "abc123", Method: domain.MethodPixel, OccurredAt: time.Now().UTC(),
	})
	svc.RecordClick(ctx, domain.EngagementEvent{
		TrackingID: "abc123", Method: domain.MethodClick, OccurredAt: time.Now().UTC(),
	})
	// Reaching here without a panic or returned error is the assertion.
}

func TestApplyPropagatesStorageFailure(t *testing.T) {
	svc := NewService(failingStore{})

	err := svc.Apply(context.Background(), domain.EngagementEvent{
		TrackingID: "abc123", Method: domain.MethodPixel, OccurredAt: time.Now().UTC(),
	})
	if err == nil {
		t.Fatal("Apply() should surface storage errors for queue redelivery")
	}
}

func TestApplyUnknownIDIsNotError(t *testing.T) {
	svc := NewService(store.NewMemoryStore())

	err := svc.Apply(context.Background(), domain.EngagementEvent{
		TrackingID: "ghost", Method: domain.MethodClick, OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		t.Errorf("Apply() error = %v, want nil for unknown ID", err)
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:    "x-forwarded-for single",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9"},
			remote:  "10.0.0.1:1234",
			want:    "203.0.113.9",
		},
		{
			name:    "x-forwarded-for chain takes first",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2, 10.0.0.3"},
			remote:  "10.0.0.1:1234",
			want:    "203.0.113.9",
		},
		{
			name:    "x-real-ip fallback",
			headers: map[string]string{"X-Real-Ip": "198.51.100.7"},
			remote:  "10.0.0.1:1234",
			want:    "198.51.100.7",
		},
		{
			name:   "remote addr last resort",
			remote: "192.0.2.4:5678",
			want:   "192.0.2.4:5678",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/pixel/abc123", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := RealIP(r); got != tt.want {
				t.Errorf("RealIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
