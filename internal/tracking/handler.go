package tracking

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reachify/beacon/internal/domain"
)

// Handler is the beacon-only HTTP surface used by the standalone edge
// process. It publishes engagement events to SQS instead of writing to the
// store; the main service's consumer applies them. Pixel and redirect
// delivery never depend on the queue.
type Handler struct {
	pub *Publisher
}

// NewHandler creates an edge beacon handler.
func NewHandler(pub *Publisher) *Handler {
	return &Handler{pub: pub}
}

// Routes returns the beacon routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/api/pixel/{id}", h.HandlePixel)
	r.Get("/api/click", h.HandleClick)
	r.Get("/health", h.HandleHealth)
	return r
}

// HandlePixel publishes an open event and serves the pixel.
func (h *Handler) HandlePixel(w http.ResponseWriter, r *http.Request) {
	trackingID := chi.URLParam(r, "id")
	if trackingID != "" {
		evt := NewEvent(domain.MethodPixel, trackingID, "", r)
		h.pub.Publish(r.Context(), evt)
		log.Printf("OPEN tracking=%s", trackingID)
	}
	ServePixel(w)
}

// HandleClick publishes a click event and redirects to the original URL.
// The redirect happens regardless of what the queue does.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	trackingID := r.URL.Query().Get("id")
	targetURL := r.URL.Query().Get("url")
	if trackingID == "" || targetURL == "" {
		http.Error(w, "missing id or url", http.StatusBadRequest)
		return
	}

	evt := NewEvent(domain.MethodClick, trackingID, targetURL, r)
	h.pub.Publish(r.Context(), evt)

	log.Printf("CLICK tracking=%s url=%s", trackingID, targetURL)
	http.Redirect(w, r, targetURL, http.StatusTemporaryRedirect)
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
