package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/community"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/middleware"
	"go.uber.org/zap"
)

// CommunityHandler exposes the registry, the cascade controller, the
// counter and the provisioner.
type CommunityHandler struct {
	svc    *community.Service
	logger *zap.Logger
}

func NewCommunityHandler(svc *community.Service, logger *zap.Logger) *CommunityHandler {
	return &CommunityHandler{svc: svc, logger: logger}
}

// createCommunityRequest is the JSON body for POST /v1/communities. The
// slug and owner are derived server side. An omitted is_public means public.
type createCommunityRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPublic    *bool  `json:"is_public"`
}

func (r createCommunityRequest) public() bool {
	return r.IsPublic == nil || *r.IsPublic
}

// List handles GET /v1/communities. It always answers 200; a failed or
// slow store yields [].
func (h *CommunityHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListCommunities(c.Request.Context()))
}

// Create handles POST /v1/communities
func (h *CommunityHandler) Create(c *gin.Context) {
	var req createCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	created, err := h.svc.CreateCommunity(c.Request.Context(), middleware.GetIdentity(c), community.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.public(),
	})
	if err != nil {
		respondError(c, h.logger, "create community", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// BySlug handles GET /v1/slugs/:slug
func (h *CommunityHandler) BySlug(c *gin.Context) {
	found, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.logger, "get community", err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// Dissolve handles DELETE /v1/communities/:id
func (h *CommunityHandler) Dissolve(c *gin.Context) {
	id, ok := pathID(c, "community")
	if !ok {
		return
	}
	if err := h.svc.Dissolve(c.Request.Context(), middleware.GetIdentity(c), id); err != nil {
		respondError(c, h.logger, "dissolve community", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// IsOwner handles GET /v1/communities/:id/owner
func (h *CommunityHandler) IsOwner(c *gin.Context) {
	id, ok := pathID(c, "community")
	if !ok {
		return
	}
	owner, err := h.svc.IsOwner(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, h.logger, "check owner", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_owner": owner})
}

// MemberCount handles GET /v1/communities/:id/member-count
func (h *CommunityHandler) MemberCount(c *gin.Context) {
	id, ok := pathID(c, "community")
	if !ok {
		return
	}
	n, err := h.svc.GetMemberCount(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, h.logger, "count members", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// Maps handles GET /v1/communities/:id/maps
func (h *CommunityHandler) Maps(c *gin.Context) {
	id, ok := pathID(c, "community")
	if !ok {
		return
	}
	maps, err := h.svc.ListMaps(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, h.logger, "list maps", err)
		return
	}
	c.JSON(http.StatusOK, maps)
}
