// Package handler holds the gin handlers of the HTTP API. Handlers bind the
// request, call one service operation and map its error kind to a status.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/pkg/logger"
)

// ActorKey is the gin context key under which the auth middleware stores the
// resolved model.Actor.
const ActorKey = "actor"

// ActorFrom returns the caller attached by the auth middleware, or the zero
// Actor.
func ActorFrom(c *gin.Context) model.Actor {
	v, ok := c.Get(ActorKey)
	if !ok {
		return model.Actor{}
	}
	actor, _ := v.(model.Actor)
	return actor
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindAccessDenied:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": msg}. Errors without a kind never
// reach the client verbatim.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	if !apperr.IsApp(err) {
		logger.WithTrace(c.Request.Context(), log).Error("Unclassified handler error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(StatusOf(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}
