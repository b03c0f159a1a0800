package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/identity"
	"freelancehub/internal/model"
	"freelancehub/internal/project"
	"freelancehub/pkg/logger"
)

type AuthHandler struct {
	identity *identity.Service
	projects *project.Service
	logger   *zap.Logger
}

func NewAuthHandler(identitySvc *identity.Service, projects *project.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		identity: identitySvc,
		projects: projects,
		logger:   logger,
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role"`
}

type registerClientRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Name        string `json:"name" binding:"required"`
	InviteToken string `json:"invite_token" binding:"required"`
}

type loginRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	InviteToken string `json:"invite_token"`
}

// Register handles POST /auth/register. The role defaults to FREELANCER.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	role := model.Role(req.Role)
	if role == "" {
		role = model.RoleFreelancer
	}

	u, err := h.identity.SignUp(c.Request.Context(), identity.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     role,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// RegisterClient handles POST /auth/register/client: sign up as CLIENT, sign
// in and accept the invitation in one call.
func (h *AuthHandler) RegisterClient(c *gin.Context) {
	var req registerClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	ctx := c.Request.Context()

	if _, err := h.projects.LookupInvitation(ctx, req.InviteToken); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if _, err := h.identity.SignUp(ctx, identity.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     model.RoleClient,
	}); err != nil {
		respondError(c, h.logger, err)
		return
	}

	sess, err := h.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	actor := model.Actor{UserID: sess.User.ID, Role: sess.User.Role}
	p, err := h.projects.AcceptInvitation(ctx, actor, req.InviteToken)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sess, "project": p})
}

// Login handles POST /auth/login. An invite token is accepted on a best
// effort basis; failing to accept it does not fail the login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	ctx := c.Request.Context()

	sess, err := h.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := gin.H{"session": sess}
	if req.InviteToken != "" && sess.User.Role == model.RoleClient {
		actor := model.Actor{UserID: sess.User.ID, Role: sess.User.Role}
		p, err := h.projects.AcceptInvitation(ctx, actor, req.InviteToken)
		if err != nil {
			logger.WithTrace(ctx, h.logger).Warn("Invitation not accepted at login",
				zap.String("user_id", sess.User.ID),
				zap.Error(err),
			)
		} else {
			resp["project"] = p
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := identity.ExtractBearer(c.GetHeader("Authorization"))
	if err := h.identity.SignOut(c.Request.Context(), token); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.identity.User(c.Request.Context(), ActorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
