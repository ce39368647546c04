// Package tracking turns pixel fetches and click-throughs into engagement
// state on tracking records.
//
// Recording is advisory: delivery of the pixel or the redirect always comes
// first, so the Record methods have no error return. A storage failure is
// logged and dropped rather than surfaced to the mail client.
package tracking

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/reachify/beacon/internal/domain"
	"github.com/reachify/beacon/internal/pkg/logger"
	"github.com/reachify/beacon/internal/store"
)

// Service applies engagement events to the tracking store.
type Service struct {
	store store.TrackingStore
}

// NewService creates a tracking service.
func NewService(st store.TrackingStore) *Service {
	return &Service{store: st}
}

// NewEvent builds an engagement event from an inbound tracking request.
// Client address and user agent are captured on every event.
func NewEvent(method domain.Method, trackingID, targetURL string, r *http.Request) domain.EngagementEvent {
	return domain.EngagementEvent{
		TrackingID: trackingID,
		Method:     method,
		TargetURL:  targetURL,
		IPAddress:  RealIP(r),
		UserAgent:  r.UserAgent(),
		OccurredAt: time.Now().UTC(),
	}
}

// RecordOpen applies a pixel engagement event. Failures are swallowed.
func (s *Service) RecordOpen(ctx context.Context, evt domain.EngagementEvent) {
	s.record(ctx, "open", evt)
}

// RecordClick applies a click engagement event. Failures are swallowed.
func (s *Service) RecordClick(ctx context.Context, evt domain.EngagementEvent) {
	s.record(ctx, "click", evt)
}

func (s *Service) record(ctx context.Context, kind string, evt domain.EngagementEvent) {
	found, err := s.store.ApplyEngagement(ctx, evt)
	if err != nil {
		logger.Error("tracking write failed", "kind", kind, "tracking_id", evt.TrackingID, "error", err.Error())
		return
	}
	if !found {
		logger.Info("engagement for unknown tracking ID", "kind", kind, "tracking_id", evt.TrackingID)
		return
	}
	logger.Debug("engagement recorded", "kind", kind, "tracking_id", evt.TrackingID, "method", string(evt.Method), "ip", evt.IPAddress)
}

// Apply applies an engagement event and reports storage failures to the
// caller. The queue consumer uses this so a failed write stays on the queue
// for redelivery; an unknown tracking ID is not an error.
func (s *Service) Apply(ctx context.Context, evt domain.EngagementEvent) error {
	found, err := s.store.ApplyEngagement(ctx, evt)
	if err != nil {
		return err
	}
	if !found {
		logger.Info("engagement for unknown tracking ID", "tracking_id", evt.TrackingID)
	}
	return nil
}

// RealIP extracts the client address, preferring proxy headers over the
// socket peer.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
