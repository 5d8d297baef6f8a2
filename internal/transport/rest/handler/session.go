package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/futbolpi/harmonic-realm-sub000/internal/cache"
	"github.com/futbolpi/harmonic-realm-sub000/internal/game"
	"github.com/futbolpi/harmonic-realm-sub000/internal/geo"
	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
	"github.com/futbolpi/harmonic-realm-sub000/internal/service"
	"github.com/futbolpi/harmonic-realm-sub000/internal/transport/rest/middleware"
)

// SessionHandler handles mining session endpoints
type SessionHandler struct {
	sessionSvc  *service.SessionService
	leaderboard cache.LeaderboardCache
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionSvc *service.SessionService, leaderboard cache.LeaderboardCache) *SessionHandler {
	return &SessionHandler{
		sessionSvc:  sessionSvc,
		leaderboard: leaderboard,
	}
}

// StartRequest is the request body for starting a session
type StartRequest struct {
	Location model.GeofenceSample `json:"location"`
}

// Start handles POST /v1/nodes/{id}/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r.Context())

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	parseSample(&req.Location)

	session, err := h.sessionSvc.Start(r.Context(), userID, nodeID, req.Location)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// Get handles GET /v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r.Context())

	session, err := h.sessionSvc.Get(r.Context(), sessionID, userID)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// CompleteRequest is the request body for the manual finalize path
type CompleteRequest struct {
	Location model.GeofenceSample `json:"location"`
}

// Complete handles POST /v1/sessions/{id}/complete. Manual completion runs
// the same pipeline as the timer-driven path; the conditional update in the
// repository makes overlapping attempts resolve to one reward.
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r.Context())

	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	parseSample(&req.Location)

	loc := req.Location.LatLng()
	result, err := h.sessionSvc.Finalize(r.Context(), sessionID, userID, &loc)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Cancel handles POST /v1/sessions/{id}/cancel
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r.Context())

	session, err := h.sessionSvc.Cancel(r.Context(), sessionID, userID)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Leaderboard handles GET /v1/leaderboard
func (h *SessionHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	topStr := r.URL.Query().Get("top")
	top := 20
	if topStr != "" {
		if n, err := strconv.Atoi(topStr); err == nil && n > 0 {
			top = n
		}
	}

	entries, err := h.leaderboard.GetTop(r.Context(), top)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": entries})
}

// writeSessionError maps engine and service errors onto HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	var notEligible *service.NotEligibleError
	switch {
	case errors.As(err, &notEligible):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":   notEligible.Error(),
			"state":   notEligible.State,
			"message": notEligible.State.Message(),
		})
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrNodeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotSessionOwner), errors.Is(err, game.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNoActiveSession), errors.Is(err, service.ErrSessionExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrOutOfRange), errors.Is(err, service.ErrLockInNotElapsed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, geo.ErrInvalidCoordinate), errors.Is(err, service.ErrStaleLocation), errors.Is(err, game.ErrMissingLocation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
