// Package output is the simulator's push/pull surface: a WebSocket
// hub that broadcasts the latest Result at roughly 1Hz, and HTTP
// handlers serving Result/Parameters/Performance over the control
// surface described in spec.md §6. Grounded on the teacher's
// internal/api (routes.go, middleware, handlers/common.go) adapted
// for this domain's single Simulator dependency instead of a
// database-backed service layer.
package output

import (
	"encoding/json"
	"net/http"
)

// errorResponse mirrors the teacher's handlers.ErrorResponse shape.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
