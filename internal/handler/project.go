package handler

import (
	"github.com/gin-gonic/gin"

	"budget-tracker-backend/internal/logging"
)

func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.repo.ListProjects(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "project")
		return
	}
	success(c, gin.H{"projects": projects})
}

func (h *Handler) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.repo.CreateProject(c.Request.Context(), req.Name)
	if err != nil {
		h.respondError(c, err, "project")
		return
	}
	h.logger.InfoContext(c.Request.Context(), "project created", logging.FieldProjectID, id)
	success(c, gin.H{"project_id": id})
}

func (h *Handler) GetProject(c *gin.Context) {
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	project, err := h.repo.GetProject(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "project")
		return
	}
	success(c, gin.H{"project": project})
}

// DeleteProject removes the project together with its categories and
// transactions.
func (h *Handler) DeleteProject(c *gin.Context) {
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	if err := h.repo.DeleteProject(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "project")
		return
	}
	message(c, "Project deleted successfully")
}
