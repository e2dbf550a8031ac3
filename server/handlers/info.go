package handlers

import (
	"net/http"
	"time"

	"github.com/nomis52/phasetest/buildinfo"
)

// ServerProperties holds metadata about the running server instance.
type ServerProperties struct {
	Build     buildinfo.Properties `json:"build"`
	StartedAt time.Time            `json:"started_at"`
	Hostname  string               `json:"hostname"`
}

// InfoHandler serves the server properties.
type InfoHandler struct {
	props ServerProperties
}

// NewInfoHandler creates a new InfoHandler.
func NewInfoHandler(props ServerProperties) *InfoHandler {
	return &InfoHandler{props: props}
}

// ServeHTTP implements http.Handler.
func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.props)
}
