// Package admin is the operator-facing control surface: one HTTP JSON route
// per controller operation. Validation failures come back as 400s with a
// notice message; transport failures never fail a request, because the
// in-memory state already moved and the fan-out is best-effort.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/familyhundred/showsync/go/internal/controller"
	"github.com/familyhundred/showsync/go/internal/game"
	"github.com/familyhundred/showsync/go/internal/session"
	"github.com/familyhundred/showsync/go/internal/sound"
)

// Handler serves the admin control API.
type Handler struct {
	sessions *session.Manager
}

// NewHandler creates the control API handler.
func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes registers every control route.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}/state", h.handleGetState)
	mux.HandleFunc("POST /api/sessions/{id}/question", h.handleSetQuestion)
	mux.HandleFunc("POST /api/sessions/{id}/question/visibility", h.handleQuestionVisibility)
	mux.HandleFunc("POST /api/sessions/{id}/answers", h.handleAddAnswer)
	mux.HandleFunc("POST /api/sessions/{id}/answers/update", h.handleUpdateAnswer)
	mux.HandleFunc("POST /api/sessions/{id}/answers/delete", h.handleDeleteAnswer)
	mux.HandleFunc("POST /api/sessions/{id}/answers/reveal", h.handleRevealAnswer)
	mux.HandleFunc("POST /api/sessions/{id}/team", h.handleUpdateTeam)
	mux.HandleFunc("POST /api/sessions/{id}/playing", h.handleSetPlayingTeam)
	mux.HandleFunc("POST /api/sessions/{id}/strikes", h.handleStrikes)
	mux.HandleFunc("POST /api/sessions/{id}/award", h.handleAward)
	mux.HandleFunc("POST /api/sessions/{id}/round", h.handleChangeRound)
	mux.HandleFunc("POST /api/sessions/{id}/reset", h.handleReset)
	mux.HandleFunc("POST /api/sessions/{id}/sound", h.handleSound)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	// Body is optional: an empty body creates a fresh session, a body with
	// a session id resumes that session from its stored snapshot.
	_ = json.NewDecoder(r.Body).Decode(&req)

	var (
		s   *session.Session
		err error
	)
	if req.SessionID != "" {
		id, parseErr := uuid.Parse(req.SessionID)
		if parseErr != nil {
			writeNotice(w, http.StatusBadRequest, "invalid session_id format")
			return
		}
		s, err = h.sessions.Open(r.Context(), id)
	} else {
		s, err = h.sessions.Create(r.Context())
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to start session")
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"session_id": s.ID.String()})
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Controller.State())
}

func (h *Handler) handleSetQuestion(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Question int    `json:"question"`
		Text     string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.finish(w, r, s, s.Controller.SetQuestion(r.Context(), req.Question, req.Text))
}

func (h *Handler) handleQuestionVisibility(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Question int   `json:"question"`
		Show     *bool `json:"show"` // omitted = toggle
	}
	if !decode(w, r, &req) {
		return
	}
	var err error
	if req.Show == nil {
		err = s.Controller.ToggleShowQuestion(r.Context(), req.Question)
	} else {
		err = s.Controller.SetShowQuestion(r.Context(), req.Question, *req.Show)
	}
	h.finish(w, r, s, err)
}

func (h *Handler) handleAddAnswer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Round  int    `json:"round"`
		Text   string `json:"text"`
		Points int    `json:"points"`
		Index  *int   `json:"index"` // omitted = first empty slot
	}
	if !decode(w, r, &req) {
		return
	}
	target := -1
	if req.Index != nil {
		target = *req.Index
	}
	h.finish(w, r, s, s.Controller.AddAnswer(r.Context(), req.Round, req.Text, req.Points, target))
}

func (h *Handler) handleUpdateAnswer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Round  int     `json:"round"`
		Index  int     `json:"index"`
		Text   *string `json:"text"`
		Points *int    `json:"points"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Text != nil {
		if err := s.Controller.UpdateAnswerText(r.Context(), req.Round, req.Index, *req.Text); err != nil {
			h.finish(w, r, s, err)
			return
		}
	}
	var err error
	if req.Points != nil {
		err = s.Controller.UpdateAnswerPoints(r.Context(), req.Round, req.Index, *req.Points)
	}
	h.finish(w, r, s, err)
}

func (h *Handler) handleDeleteAnswer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Round int `json:"round"`
		Index int `json:"index"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.finish(w, r, s, s.Controller.DeleteAnswer(r.Context(), req.Round, req.Index))
}

func (h *Handler) handleRevealAnswer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Round  int  `json:"round"`
		Index  int  `json:"index"`
		Reveal bool `json:"reveal"`
	}
	if !decode(w, r, &req) {
		return
	}
	var err error
	if req.Reveal {
		err = s.Controller.RevealAnswer(r.Context(), req.Round, req.Index)
	} else {
		err = s.Controller.HideAnswer(r.Context(), req.Round, req.Index)
	}
	h.finish(w, r, s, err)
}

func (h *Handler) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Side  game.TeamSide `json:"side"`
		Name  *string       `json:"name"`
		Score *int          `json:"score"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Name != nil {
		if err := s.Controller.SetTeamName(r.Context(), req.Side, *req.Name); err != nil {
			h.finish(w, r, s, err)
			return
		}
	}
	var err error
	if req.Score != nil {
		err = s.Controller.SetTeamScore(r.Context(), req.Side, *req.Score)
	}
	h.finish(w, r, s, err)
}

func (h *Handler) handleSetPlayingTeam(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Side game.TeamSide `json:"side"` // "left", "right", or null to clear
	}
	if !decode(w, r, &req) {
		return
	}
	h.finish(w, r, s, s.Controller.SetPlayingTeam(r.Context(), req.Side))
}

func (h *Handler) handleStrikes(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Side   game.TeamSide `json:"side"`
		Action string        `json:"action"` // "add" or "reset"
	}
	if !decode(w, r, &req) {
		return
	}
	var err error
	switch req.Action {
	case "add":
		err = s.Controller.AddStrike(r.Context(), req.Side)
	case "reset":
		err = s.Controller.ResetStrikes(r.Context(), req.Side)
	default:
		writeNotice(w, http.StatusBadRequest, "action must be add or reset")
		return
	}
	h.finish(w, r, s, err)
}

func (h *Handler) handleAward(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Side game.TeamSide `json:"side"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.finish(w, r, s, s.Controller.GiveRoundPointsToTeam(r.Context(), req.Side))
}

func (h *Handler) handleChangeRound(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Round int `json:"round"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.finish(w, r, s, s.Controller.ChangeRound(r.Context(), req.Round))
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.finish(w, r, s, s.Controller.ResetGame(r.Context()))
}

func (h *Handler) handleSound(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Cue sound.Cue `json:"cue"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Cue == "" {
		writeNotice(w, http.StatusBadRequest, "cue is required")
		return
	}
	if err := h.sessions.PlaySound(s.ID, req.Cue); err != nil {
		// The show goes on: cue delivery is best-effort.
		log.Error().Err(err).Str("session_id", s.ID.String()).Msg("sound cue failed")
	}
	w.WriteHeader(http.StatusAccepted)
}

// session resolves the {id} path value to a running session.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeNotice(w, http.StatusBadRequest, "invalid session id format")
		return nil, false
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		writeNotice(w, http.StatusNotFound, "unknown session")
		return nil, false
	}
	return s, true
}

// finish maps a controller result onto the response: validation errors are
// operator notices, success returns the committed document so the admin UI
// can render without a second round trip.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, s *session.Session, err error) {
	if err != nil {
		if isValidationError(err) {
			writeNotice(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("session_id", s.ID.String()).Msg("operation failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.Controller.State())
}

func isValidationError(err error) bool {
	return errors.Is(err, controller.ErrMissingAnswerText) ||
		errors.Is(err, controller.ErrInvalidRound) ||
		errors.Is(err, controller.ErrInvalidQuestion) ||
		errors.Is(err, controller.ErrInvalidSide) ||
		errors.Is(err, controller.ErrRoundFull) ||
		errors.Is(err, controller.ErrSlotOutOfRange)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeNotice(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeNotice(w http.ResponseWriter, status int, notice string) {
	writeJSON(w, status, map[string]string{"notice": notice})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
