// Package httpserver wires the gin engine: middleware, health endpoints and
// every API route.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"freelancehub/internal/handler"
	"freelancehub/pkg/otel"
	"freelancehub/pkg/rbac"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Auth       *handler.AuthHandler
	Projects   *handler.ProjectHandler
	Milestones *handler.MilestoneHandler
	Resolver   TokenResolver
	Ready      Pinger
	Logger     *zap.Logger
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(d Deps) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), RequestLogger(d.Logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.Ready.Ping(ctx); err != nil {
			d.Logger.Warn("Readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/auth/register", d.Auth.Register)
	r.POST("/auth/register/client", d.Auth.RegisterClient)
	r.POST("/auth/login", d.Auth.Login)
	r.GET("/invitations/:token", d.Projects.LookupInvitation)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(d.Resolver, d.Logger))
	{
		auth.POST("/auth/logout", d.Auth.Logout)
		auth.GET("/auth/me", d.Auth.Me)

		// readable by the owner and the assigned client
		auth.GET("/projects/:id", d.Projects.Get)
		auth.GET("/projects/:id/milestones", d.Milestones.List)
		auth.GET("/projects/:id/roadmap/next", d.Milestones.Next)
		auth.GET("/projects/:id/roadmap/stats", d.Milestones.Stats)

		write := auth.Group("/", RequirePermission(rbac.PermissionWriteProject))
		write.GET("/projects", d.Projects.ListOwned)
		write.POST("/projects", RequirePermission(rbac.PermissionCreateProject), d.Projects.Create)
		write.DELETE("/projects/:id", d.Projects.Delete)
		write.POST("/projects/:id/hold", d.Projects.Hold)
		write.POST("/projects/:id/resume", d.Projects.Resume)
		write.POST("/projects/:id/invitations", RequirePermission(rbac.PermissionCreateInvitation), d.Projects.CreateInvitation)

		roadmap := auth.Group("/", RequirePermission(rbac.PermissionWriteMilestone))
		roadmap.PUT("/projects/:id/milestones", d.Milestones.ReplaceAll)
		roadmap.POST("/projects/:id/milestones", d.Milestones.Add)
		roadmap.PUT("/projects/:id/milestones/order", d.Milestones.Reorder)
		roadmap.POST("/projects/:id/roadmap/validate", d.Milestones.Validate)
		roadmap.POST("/projects/:id/roadmap/generate", RequirePermission(rbac.PermissionGenerateRoadmap), d.Milestones.Generate)
		roadmap.PATCH("/milestones/:id", d.Milestones.Update)
		roadmap.DELETE("/milestones/:id", d.Milestones.Delete)
		roadmap.PUT("/milestones/:id/status", d.Milestones.SetStatus)
		roadmap.POST("/milestones/:id/start", d.Milestones.Start)
		roadmap.POST("/milestones/:id/submit", d.Milestones.Submit)
		roadmap.POST("/milestones/:id/complete", d.Milestones.Complete)

		portal := auth.Group("/portal", RequirePermission(rbac.PermissionReadPortal))
		portal.GET("/projects", d.Projects.ListPortal)
		portal.GET("/projects/:id", d.Projects.Get)

		auth.POST("/invitations/:token/accept", RequirePermission(rbac.PermissionAcceptInvitation), d.Projects.AcceptInvitation)
	}

	return &Router{Engine: r}
}

// Handler returns the engine as a plain http.Handler so it can be wrapped
// (CORS) before serving.
func (r *Router) Handler() http.Handler {
	return r.Engine
}
