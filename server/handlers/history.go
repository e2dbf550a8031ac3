package handlers

import (
	"fmt"
	"net/http"

	"github.com/nomis52/phasetest/history"
)

// HistoryHandler handles requests for the run history.
type HistoryHandler struct {
	provider HistoryProvider
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(provider HistoryProvider) *HistoryHandler {
	return &HistoryHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler. An optional "group" query parameter
// keeps the runs of one test group.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entries := h.provider.History()
	if group := r.URL.Query().Get("group"); group != "" {
		kept := make([]history.Entry, 0, len(entries))
		for _, e := range entries {
			if e.Group == group {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	writeJSON(w, http.StatusOK, entries)
}

// RunDetailsHandler handles requests for one run, addressed by the {id}
// path value.
type RunDetailsHandler struct {
	provider HistoryProvider
}

// NewRunDetailsHandler creates a new RunDetailsHandler.
func NewRunDetailsHandler(provider HistoryProvider) *RunDetailsHandler {
	return &RunDetailsHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *RunDetailsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing run id"})
		return
	}

	entry, ok := h.provider.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("run %q not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
