package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/model"
	"freelancehub/internal/project"
)

type ProjectHandler struct {
	projects *project.Service
	logger   *zap.Logger
}

func NewProjectHandler(projects *project.Service, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

type createProjectRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type createInvitationRequest struct {
	Email string `json:"email" binding:"required"`
}

func projectList(ps []model.Project) []model.Project {
	if ps == nil {
		return []model.Project{}
	}
	return ps
}

// Create handles POST /projects.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	p, err := h.projects.Create(c.Request.Context(), ActorFrom(c), req.Title, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": p})
}

// ListOwned handles GET /projects.
func (h *ProjectHandler) ListOwned(c *gin.Context) {
	ps, err := h.projects.ListOwned(c.Request.Context(), ActorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projectList(ps)})
}

// ListPortal handles GET /portal/projects.
func (h *ProjectHandler) ListPortal(c *gin.Context) {
	ps, err := h.projects.ListForClient(c.Request.Context(), ActorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projectList(ps)})
}

// Get handles GET /projects/:id and GET /portal/projects/:id.
func (h *ProjectHandler) Get(c *gin.Context) {
	d, err := h.projects.Get(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Delete handles DELETE /projects/:id.
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projects.Delete(c.Request.Context(), ActorFrom(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Hold handles POST /projects/:id/hold.
func (h *ProjectHandler) Hold(c *gin.Context) {
	p, err := h.projects.Hold(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

// Resume handles POST /projects/:id/resume.
func (h *ProjectHandler) Resume(c *gin.Context) {
	p, err := h.projects.Resume(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

// CreateInvitation handles POST /projects/:id/invitations.
func (h *ProjectHandler) CreateInvitation(c *gin.Context) {
	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	inv, err := h.projects.CreateInvitation(c.Request.Context(), ActorFrom(c), c.Param("id"), req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invitation": inv})
}

// LookupInvitation handles GET /invitations/:token.
func (h *ProjectHandler) LookupInvitation(c *gin.Context) {
	preview, err := h.projects.LookupInvitation(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitation": preview})
}

// AcceptInvitation handles POST /invitations/:token/accept.
func (h *ProjectHandler) AcceptInvitation(c *gin.Context) {
	p, err := h.projects.AcceptInvitation(c.Request.Context(), ActorFrom(c), c.Param("token"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}
