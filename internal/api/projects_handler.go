package api

import (
	"fmt"
	"net/http"

	"github.com/alecgard/portico/internal/auth"
	"github.com/alecgard/portico/internal/project"
)

// projectsHandler handles GET /api/projects. The caller comes from the
// bearer token; a userId query parameter is ignored.
type projectsHandler struct {
	projects ProjectLister
}

func newProjectsHandler(projects ProjectLister) *projectsHandler {
	return &projectsHandler{projects: projects}
}

func (h *projectsHandler) Handle(r *http.Request) (*Response, error) {
	userID := auth.UserIDFromContext(r.Context())

	projects, err := h.projects.ListVisible(r.Context(), userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects for %s: %w", userID, err)
	}
	if projects == nil {
		projects = []project.Project{}
	}
	return &Response{Status: http.StatusOK, Body: projects}, nil
}
