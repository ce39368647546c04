package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reachify/beacon/internal/domain"
	"github.com/reachify/beacon/internal/mailing"
	"github.com/reachify/beacon/internal/pkg/httputil"
	"github.com/reachify/beacon/internal/pkg/logger"
	"github.com/reachify/beacon/internal/storage"
	"github.com/reachify/beacon/internal/store"
	"github.com/reachify/beacon/internal/tracking"
)

// Handlers holds the wired dependencies for every API endpoint.
type Handlers struct {
	store       store.TrackingStore
	composer    *mailing.Composer
	mailer      mailing.Mailer
	attachments storage.AttachmentSource
	tracker     *tracking.Service
}

// NewHandlers wires the endpoint dependencies. attachments may be nil when
// no attachment source is configured.
func NewHandlers(ts store.TrackingStore, composer *mailing.Composer, mailer mailing.Mailer, attachments storage.AttachmentSource, tracker *tracking.Service) *Handlers {
	return &Handlers{
		store:       ts,
		composer:    composer,
		mailer:      mailer,
		attachments: attachments,
		tracker:     tracker,
	}
}

type sendEmailRequest struct {
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	TrackingID string `json:"trackingId"`
	Role       string `json:"role"`
	Company    string `json:"company"`
}

type sendEmailResponse struct {
	Success    bool   `json:"success"`
	MessageID  string `json:"messageId"`
	TrackingID string `json:"trackingId"`
}

// SendEmail validates the request, persists the tracking record, then
// composes and dispatches the message. The record is written before dispatch
// so an open beacon firing mid-send still has a row to land on; a dispatch
// failure therefore leaves a SENT record behind with no message in flight.
func (h *Handlers) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendEmailRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	if msg := validateSendRequest(&req); msg != "" {
		httputil.BadRequest(w, msg)
		return
	}

	rec := &domain.TrackingRecord{
		TrackingID: req.TrackingID,
		To:         req.To,
		Subject:    req.Subject,
		Body:       req.Body,
		Role:       req.Role,
		Company:    req.Company,
		Status:     domain.StatusSent,
		SentAt:     time.Now().UTC(),
	}

	if err := h.store.Create(r.Context(), rec); err != nil {
		if errors.Is(err, store.ErrDuplicateTracking) {
			httputil.Conflict(w, "tracking ID already in use")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	env := h.composer.Compose(mailing.ComposeInput{
		TrackingID: req.TrackingID,
		To:         req.To,
		Subject:    req.Subject,
		Body:       req.Body,
		Role:       req.Role,
		Company:    req.Company,
	})

	if h.attachments != nil {
		file, ferr := h.attachments.Fetch(r.Context())
		if ferr != nil {
			logger.Warn("attachment fetch failed, sending without", "error", ferr.Error())
		} else if file != nil {
			env.Attachments = append(env.Attachments, mailing.Attachment{
				Filename:    file.Name,
				ContentType: file.ContentType,
				Data:        file.Data,
			})
		}
	}

	result, err := h.mailer.Send(r.Context(), env)
	if err != nil {
		logger.Error("dispatch failed", "tracking_id", req.TrackingID, "error", err.Error())
		httputil.ErrorWithDetails(w, http.StatusInternalServerError, "failed to send email", err.Error())
		return
	}

	httputil.OK(w, sendEmailResponse{
		Success:    true,
		MessageID:  result.MessageID,
		TrackingID: req.TrackingID,
	})
}

// validateSendRequest returns an error message for the first failed check,
// or "" when the request is acceptable. Nothing is persisted until every
// check passes.
func validateSendRequest(req *sendEmailRequest) string {
	if strings.TrimSpace(req.To) == "" {
		return "to is required"
	}
	if strings.TrimSpace(req.Body) == "" {
		return "body is required"
	}
	if strings.TrimSpace(req.TrackingID) == "" {
		return "trackingId is required"
	}
	if !domain.ValidateEmail(req.To) {
		return "invalid recipient email address"
	}
	return ""
}

// HandleClick records the engagement and redirects. The redirect happens no
// matter what the store says; a broken tracking row never strands the reader.
func (h *Handlers) HandleClick(w http.ResponseWriter, r *http.Request) {
	trackingID := r.URL.Query().Get("id")
	target := r.URL.Query().Get("url")
	if trackingID == "" || target == "" {
		httputil.BadRequest(w, "id and url query parameters are required")
		return
	}

	evt := tracking.NewEvent(domain.MethodClick, trackingID, target, r)
	h.tracker.RecordClick(r.Context(), evt)

	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// HandlePixel records the open and serves the beacon. The pixel is served
// for unknown IDs too so the response shape never leaks whether a tracking
// record exists.
func (h *Handlers) HandlePixel(w http.ResponseWriter, r *http.Request) {
	trackingID := chi.URLParam(r, "id")
	if trackingID != "" {
		evt := tracking.NewEvent(domain.MethodPixel, trackingID, "", r)
		h.tracker.RecordOpen(r.Context(), evt)
	}

	tracking.ServePixel(w)
}

// TrackingStatus returns every tracking record, newest send first.
func (h *Handlers) TrackingStatus(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if records == nil {
		records = []*domain.TrackingRecord{}
	}
	httputil.OK(w, records)
}

// TrackingByID returns a single record, or 404 when the ID is unknown.
func (h *Handlers) TrackingByID(w http.ResponseWriter, r *http.Request) {
	trackingID := chi.URLParam(r, "id")

	rec, err := h.store.Get(r.Context(), trackingID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if rec == nil {
		httputil.NotFound(w, "tracking record not found")
		return
	}
	httputil.OK(w, rec)
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
