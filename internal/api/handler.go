package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lms-platform/lms-backend/internal/config"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const healthPingTimeout = 2 * time.Second

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the service's own endpoints. Business routes belong to the
// application modules and are mounted elsewhere.
type Handler struct {
	db    Pinger
	debug bool
	attrs []config.Attribute

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithDatabase enables the database check in the health endpoint.
func WithDatabase(db Pinger) HandlerOption {
	return func(h *Handler) {
		h.db = db
	}
}

// NewHandler constructs a Handler for the given settings snapshot.
func NewHandler(cfg config.Config, opts ...HandlerOption) *Handler {
	h := &Handler{
		debug: cfg.Debug,
		attrs: cfg.Attributes(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Database:  "not configured",
		Timestamp: h.clock(),
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	writeJSON(w, status, resp)
}

// handleSettings exposes the resolved settings in debug mode only.
func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !h.debug {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Attributes: h.attrs})
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

type settingsResponse struct {
	Attributes []config.Attribute `json:"attributes"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}
