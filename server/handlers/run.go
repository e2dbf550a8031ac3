package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrRunInProgress is returned by a GroupRunner when a requested test group
// is already running.
var ErrRunInProgress = errors.New("test group run already in progress")

// RunRequest defines the request body for POST /run.
type RunRequest struct {
	Groups []string `json:"groups"`
}

// RunResponse is returned when runs were started.
type RunResponse struct {
	Groups []string `json:"groups"`
}

// RunHandler handles requests to run test groups. Groups are named by
// repeated "group" query parameters or by a JSON body.
type RunHandler struct {
	runner GroupRunner
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(r GroupRunner) *RunHandler {
	return &RunHandler{
		runner: r,
	}
}

// ServeHTTP implements http.Handler.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := RunRequest{Groups: r.URL.Query()["group"]}
	if len(req.Groups) == 0 && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: fmt.Sprintf("invalid JSON: %v", err),
			})
			return
		}
	}

	if len(req.Groups) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "no test group given",
		})
		return
	}

	if err := h.runner.Start(req.Groups); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			writeJSON(w, http.StatusConflict, ErrorResponse{
				Error: err.Error(),
			})
			return
		}
		// Unknown or duplicate test group
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusAccepted, RunResponse{Groups: req.Groups})
}
