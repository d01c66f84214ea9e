package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/community"
	"go.uber.org/zap"
)

// statusFor maps a failure kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, community.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, community.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, community.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, community.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, community.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusServiceUnavailable
}

// respondError writes err as {"error", "kind"}. Backend failures are logged
// here and their detail is kept out of the response body.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusServiceUnavailable {
		logger.Error(op+" failed", zap.Error(err))
		msg = op + " failed, try again"
	} else {
		logger.Debug(op+" refused", zap.String("kind", community.Kind(err)), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg, "kind": community.Kind(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": "invalid_input"})
}

// pathID parses the :id path parameter. On failure it has already
// written the 400.
func pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}
