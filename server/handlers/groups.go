package handlers

import (
	"maps"
	"net/http"
	"slices"
)

// GroupsResponse is the JSON response for /groups.
type GroupsResponse struct {
	Groups []string `json:"groups"`
}

// GroupsHandler lists the test groups that can be run.
type GroupsHandler struct {
	provider GroupProvider
}

// NewGroupsHandler creates a new GroupsHandler.
func NewGroupsHandler(provider GroupProvider) *GroupsHandler {
	return &GroupsHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *GroupsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GroupsResponse{
		Groups: slices.Sorted(maps.Keys(h.provider.Available())),
	})
}
