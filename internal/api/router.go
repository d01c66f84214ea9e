package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/community"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/middleware"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository"
	"go.uber.org/zap"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Service    *community.Service
	Users      repository.UserRepository
	Identities identity.Provider
	JWTSecret  string
	TokenTTL   time.Duration
	// Health reports whether the backing store is reachable. Nil means
	// always healthy.
	Health func(ctx context.Context) error
	Logger *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/v1/health", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				d.Logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authH := NewAuthHandler(d.Users, d.Identities, d.JWTSecret, d.TokenTTL, d.Logger)
	r.POST("/v1/auth/signup", authH.Signup)
	r.POST("/v1/auth/login", authH.Login)
	r.POST("/v1/auth/ephemeral", authH.Ephemeral)

	// Everything else resolves the caller first. A missing token means
	// anonymous, not rejected; the core decides what anonymous may do.
	v1 := r.Group("/v1")
	v1.Use(middleware.Identify(d.JWTSecret))

	users := NewUserHandler(d.Users, d.Logger)
	v1.GET("/users/me", users.GetMe)

	communities := NewCommunityHandler(d.Service, d.Logger)
	v1.GET("/communities", communities.List)
	v1.POST("/communities", communities.Create)
	v1.GET("/slugs/:slug", communities.BySlug)
	v1.DELETE("/communities/:id", communities.Dissolve)
	v1.GET("/communities/:id/owner", communities.IsOwner)
	v1.GET("/communities/:id/member-count", communities.MemberCount)
	v1.GET("/communities/:id/maps", communities.Maps)

	memberships := NewMembershipHandler(d.Service, d.JWTSecret, d.TokenTTL, d.Logger)
	v1.POST("/communities/:id/requests", memberships.Request)
	v1.GET("/communities/:id/requests", memberships.Pending)
	v1.POST("/communities/:id/join", memberships.Join)
	v1.GET("/communities/:id/membership", memberships.Get)
	v1.POST("/communities/:id/leave", memberships.Leave)
	v1.PATCH("/memberships/:id", memberships.SetStatus)

	return r
}
