package handlers

import (
	"net/http"

	"github.com/nomis52/phasetest/schedule"
	"github.com/nomis52/phasetest/status"
)

// StatusResponse is the consolidated response for /status.
type StatusResponse struct {
	Running   []string             `json:"running"`
	Groups    []status.GroupStatus `json:"groups"`
	Cases     []status.CaseStatus  `json:"cases"`
	Schedules []schedule.Scheduled `json:"schedules"`
}

// StatusHandler handles requests for the live status.
type StatusHandler struct {
	running   RunningProvider
	statuses  StatusProvider
	schedules ScheduleProvider
}

// NewStatusHandler creates a new StatusHandler. schedules may be nil when
// nothing is scheduled.
func NewStatusHandler(running RunningProvider, statuses StatusProvider, schedules ScheduleProvider) *StatusHandler {
	return &StatusHandler{
		running:   running,
		statuses:  statuses,
		schedules: schedules,
	}
}

// ServeHTTP implements http.Handler.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Running:   h.running.Running(),
		Groups:    h.statuses.Groups(),
		Cases:     h.statuses.All(),
		Schedules: []schedule.Scheduled{},
	}
	if resp.Running == nil {
		resp.Running = []string{}
	}
	if h.schedules != nil {
		resp.Schedules = h.schedules.Schedules()
	}
	writeJSON(w, http.StatusOK, resp)
}
