package server

import (
	"encoding/json"
	"net/http"

	"github.com/desertthunder/vkpl/internal/credentials"
	"github.com/desertthunder/vkpl/internal/models"
)

// StatsSource reports credential counts. [credentials.Store] implements it.
type StatsSource interface {
	Stats() credentials.Stats
}

// SessionCounter reports the number of known conversations. [session.Controller] implements it.
type SessionCounter interface {
	Sessions() int
}

// Health is the body served by [HealthHandler].
type Health struct {
	Status     string            `json:"status"`
	Mode       string            `json:"mode"`
	Credential credentials.Stats `json:"credential"`
	Sessions   int               `json:"sessions"`
}

// HealthHandler serves the liveness report.
//
// Status is "degraded" when the shared credential has been rejected, since every search would fail.
type HealthHandler struct {
	store    StatsSource
	sessions SessionCounter
}

var _ Handler = (*HealthHandler)(nil)

// NewHealthHandler creates a handler. sessions may be nil.
func NewHealthHandler(store StatsSource, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{store: store, sessions: sessions}
}

func (h *HealthHandler) Routes() []string {
	return []string{"/health"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats := h.store.Stats()
	body := Health{
		Status:     "ok",
		Mode:       stats.Scope.String(),
		Credential: stats,
	}
	if h.sessions != nil {
		body.Sessions = h.sessions.Sessions()
	}

	code := http.StatusOK
	if stats.Scope == models.ScopeService && stats.Valid == 0 {
		body.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
