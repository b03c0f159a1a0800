package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/generator"
	"freelancehub/internal/model"
	"freelancehub/internal/roadmap"
)

type MilestoneHandler struct {
	engine    *roadmap.Engine
	generator *generator.Generator
	logger    *zap.Logger
}

func NewMilestoneHandler(engine *roadmap.Engine, gen *generator.Generator, logger *zap.Logger) *MilestoneHandler {
	return &MilestoneHandler{
		engine:    engine,
		generator: gen,
		logger:    logger,
	}
}

type replaceMilestonesRequest struct {
	Milestones []roadmap.MilestoneInput `json:"milestones"`
}

type addMilestoneRequest struct {
	AfterOrder *int `json:"after_order"`
}

type reorderRequest struct {
	MilestoneIDs []string `json:"milestone_ids" binding:"required"`
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type generateRequest struct {
	Text  string `json:"text"`
	Apply bool   `json:"apply"`
}

func milestoneList(ms []model.Milestone) []model.Milestone {
	if ms == nil {
		return []model.Milestone{}
	}
	return ms
}

// List handles GET /projects/:id/milestones.
func (h *MilestoneHandler) List(c *gin.Context) {
	ms, err := h.engine.List(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestones": milestoneList(ms)})
}

// ReplaceAll handles PUT /projects/:id/milestones.
func (h *MilestoneHandler) ReplaceAll(c *gin.Context) {
	var req replaceMilestonesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	ms, err := h.engine.ReplaceAll(c.Request.Context(), ActorFrom(c), c.Param("id"), req.Milestones)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestones": milestoneList(ms)})
}

// Add handles POST /projects/:id/milestones. An empty body appends.
func (h *MilestoneHandler) Add(c *gin.Context) {
	var req addMilestoneRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}
	}
	m, err := h.engine.Add(c.Request.Context(), ActorFrom(c), c.Param("id"), req.AfterOrder)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"milestone": m})
}

// Reorder handles PUT /projects/:id/milestones/order.
func (h *MilestoneHandler) Reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	ms, err := h.engine.Reorder(c.Request.Context(), ActorFrom(c), c.Param("id"), req.MilestoneIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestones": milestoneList(ms)})
}

// Update handles PATCH /milestones/:id.
func (h *MilestoneHandler) Update(c *gin.Context) {
	var patch roadmap.MilestonePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c)
		return
	}
	m, err := h.engine.Update(c.Request.Context(), ActorFrom(c), c.Param("id"), patch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestone": m})
}

// Delete handles DELETE /milestones/:id.
func (h *MilestoneHandler) Delete(c *gin.Context) {
	if err := h.engine.Delete(c.Request.Context(), ActorFrom(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetStatus handles PUT /milestones/:id/status.
func (h *MilestoneHandler) SetStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	status, err := model.ParseMilestoneStatus(req.Status)
	if err != nil {
		respondError(c, h.logger, apperr.Validation("unknown status %q", req.Status))
		return
	}
	h.respondMilestone(c, func() (*model.Milestone, error) {
		return h.engine.SetStatus(c.Request.Context(), ActorFrom(c), c.Param("id"), status)
	})
}

// Start handles POST /milestones/:id/start.
func (h *MilestoneHandler) Start(c *gin.Context) {
	h.respondMilestone(c, func() (*model.Milestone, error) {
		return h.engine.Start(c.Request.Context(), ActorFrom(c), c.Param("id"))
	})
}

// Submit handles POST /milestones/:id/submit.
func (h *MilestoneHandler) Submit(c *gin.Context) {
	h.respondMilestone(c, func() (*model.Milestone, error) {
		return h.engine.SubmitForApproval(c.Request.Context(), ActorFrom(c), c.Param("id"))
	})
}

// Complete handles POST /milestones/:id/complete.
func (h *MilestoneHandler) Complete(c *gin.Context) {
	h.respondMilestone(c, func() (*model.Milestone, error) {
		return h.engine.Complete(c.Request.Context(), ActorFrom(c), c.Param("id"))
	})
}

func (h *MilestoneHandler) respondMilestone(c *gin.Context, op func() (*model.Milestone, error)) {
	m, err := op()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestone": m})
}

// Validate handles POST /projects/:id/roadmap/validate.
func (h *MilestoneHandler) Validate(c *gin.Context) {
	p, err := h.engine.ValidateRoadmap(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

// Next handles GET /projects/:id/roadmap/next. The milestone is null when
// the roadmap is finished or empty.
func (h *MilestoneHandler) Next(c *gin.Context) {
	m, err := h.engine.NextMilestone(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestone": m})
}

// Stats handles GET /projects/:id/roadmap/stats.
func (h *MilestoneHandler) Stats(c *gin.Context) {
	s, err := h.engine.Stats(c.Request.Context(), ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Generate handles POST /projects/:id/roadmap/generate.
func (h *MilestoneHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := h.generator.Generate(c.Request.Context(), ActorFrom(c), c.Param("id"), req.Text, req.Apply)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
