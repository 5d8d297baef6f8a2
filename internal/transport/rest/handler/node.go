package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
	"github.com/futbolpi/harmonic-realm-sub000/internal/service"
	"github.com/futbolpi/harmonic-realm-sub000/internal/transport/rest/middleware"
)

// NodeHandler handles node catalog endpoints
type NodeHandler struct {
	nodeSvc    *service.NodeService
	sessionSvc *service.SessionService
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(nodeSvc *service.NodeService, sessionSvc *service.SessionService) *NodeHandler {
	return &NodeHandler{
		nodeSvc:    nodeSvc,
		sessionSvc: sessionSvc,
	}
}

// List handles GET /v1/nodes
func (h *NodeHandler) List(w http.ResponseWriter, r *http.Request) {
	openOnly := r.URL.Query().Get("all") == ""

	nodes, err := h.nodeSvc.ListNodes(r.Context(), openOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": nodes})
}

// Get handles GET /v1/nodes/{id}
func (h *NodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	node, err := h.nodeSvc.GetNode(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNodeNotFound) {
			writeError(w, http.StatusNotFound, "node not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"node":           node,
		"estimatedYield": h.nodeSvc.EstimateYield(node),
	})
}

// State handles GET /v1/nodes/{id}/state?lat=&lng=
// The derived MiningState gates the UI action; the start endpoint re-derives
// it server-side regardless.
func (h *NodeHandler) State(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	userID := middleware.GetUserID(r.Context())

	location := parseLocation(r)

	state, _, err := h.sessionSvc.StateFor(r.Context(), userID, id, location)
	if err != nil {
		if errors.Is(err, service.ErrNodeNotFound) {
			writeError(w, http.StatusNotFound, "node not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":    state,
		"message":  state.Message(),
		"canStart": state.CanStart(),
	})
}

// SetOpenRequest is the request body for opening/closing a node
type SetOpenRequest struct {
	OpenForMining bool `json:"openForMining"`
}

// SetOpen handles PATCH /v1/nodes/{id} (admin)
func (h *NodeHandler) SetOpen(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req SetOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.nodeSvc.SetOpen(r.Context(), id, req.OpenForMining); err != nil {
		if errors.Is(err, service.ErrNodeNotFound) {
			writeError(w, http.StatusNotFound, "node not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"openForMining": req.OpenForMining})
}

// Create handles POST /v1/nodes (admin)
func (h *NodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var node model.Node
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.nodeSvc.CreateNode(r.Context(), &node)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// parseLocation reads optional lat/lng query params; nil when absent or
// malformed, which derives NoLocation downstream.
func parseLocation(r *http.Request) *model.LatLng {
	latStr := r.URL.Query().Get("lat")
	lngStr := r.URL.Query().Get("lng")
	if latStr == "" || lngStr == "" {
		return nil
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil
	}
	return &model.LatLng{Lat: lat, Lng: lng}
}

// parseSample decodes a geofence sample from a request body, defaulting the
// timestamp to now when the client omits it.
func parseSample(body *model.GeofenceSample) {
	if body.Timestamp.IsZero() {
		body.Timestamp = time.Now()
	}
}
