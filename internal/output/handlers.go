package output

import (
	"encoding/json"
	"fmt"
	"net/http"

	"costsim/internal/simulator"
)

// Handler exposes the Simulator's control surface over HTTP, in the
// same request/response shape as the teacher's SettingsHandler
// (GET returns the current struct, PATCH accepts a partial update).
type Handler struct {
	sim *simulator.Simulator
}

// NewHandler builds a Handler bound to sim.
func NewHandler(sim *simulator.Simulator) *Handler {
	return &Handler{sim: sim}
}

// GetParameters returns the currently active Parameters.
//
// GET /api/v1/parameters
func (h *Handler) GetParameters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sim.Parameters())
}

// patchParametersRequest accepts one {name: value} pair per
// spec.md §9's closed ParameterChange set.
type patchParametersRequest map[string]interface{}

// PatchParameters validates a single named parameter change, hands it
// to the simulator and responds 202 Accepted with the Parameters
// active at that moment. The change is applied asynchronously, so the
// response does not necessarily include it yet.
//
// PATCH /api/v1/parameters
// Body: {"quantity": 5000} or {"exchange": "okx"}, etc.
func (h *Handler) PatchParameters(w http.ResponseWriter, r *http.Request) {
	var req patchParametersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req) != 1 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("expected exactly one parameter in the request body, got %d", len(req)))
		return
	}

	for name, value := range req {
		change, err := simulator.ParseParameterChange(name, value)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.sim.SetParameter(change)
	}

	writeJSON(w, http.StatusAccepted, h.sim.Parameters())
}

// GetResult returns the latest published simulation Result.
//
// GET /api/v1/result
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	result, ok := h.sim.Results()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("no simulation has completed yet"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetPerformance returns the Benchmarker and Book performance counters.
//
// GET /api/v1/performance
func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sim.Performance())
}
