package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/middleware"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository"
	"go.uber.org/zap"
)

// UserHandler handles user-related operations.
type UserHandler struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, logger: logger}
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	who := middleware.GetIdentity(c)
	if who.IsAnonymous() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "kind": "auth_required"})
		return
	}

	user, err := h.repo.GetByID(c.Request.Context(), who.ID)
	if err != nil {
		h.logger.Error("failed to get user", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to get user"})
		return
	}

	// A valid token for a user that no longer exists.
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found", "kind": "not_found"})
		return
	}

	c.JSON(http.StatusOK, user)
}
