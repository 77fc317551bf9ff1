package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/familyhundred/showsync/go/internal/display"
)

// SnapshotProvider supplies the current view model for a session so a
// freshly connected display can render without waiting for the next commit.
type SnapshotProvider interface {
	CurrentView(sessionID uuid.UUID) (*display.ViewModel, error)
}

// Handler serves the display WebSocket endpoint.
type Handler struct {
	manager   *Manager
	snapshots SnapshotProvider
}

// NewHandler creates the display endpoint handler.
func NewHandler(manager *Manager, snapshots SnapshotProvider) *Handler {
	return &Handler{manager: manager, snapshots: snapshots}
}

// HandleDisplay handles GET /ws/display?session_id=...
func (h *Handler) HandleDisplay(w http.ResponseWriter, r *http.Request) {
	sessionIDStr := r.URL.Query().Get("session_id")
	if sessionIDStr == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	sessionID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		http.Error(w, "invalid session_id format", http.StatusBadRequest)
		return
	}

	var initial *Frame
	vm, err := h.snapshots.CurrentView(sessionID)
	if err != nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if vm != nil {
		if data, err := json.Marshal(vm); err == nil {
			initial = &Frame{Type: FrameState, SessionID: sessionID.String(), Data: data}
		}
	}

	if err := h.manager.Upgrade(w, r, sessionID, initial); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("failed to upgrade display connection")
		return
	}
}

// HandleStats handles GET /ws/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.manager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to encode gateway stats")
	}
}

// RegisterRoutes registers the display routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/display", h.HandleDisplay)
	mux.HandleFunc("GET /ws/stats", h.HandleStats)
}
