package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/auth"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/community"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/middleware"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
	"go.uber.org/zap"
)

// MembershipHandler handles community membership operations.
type MembershipHandler struct {
	svc    *community.Service
	logger *zap.Logger
	// sign issues the token for an identity minted by an anonymous join.
	sign func(identity.Identity) (string, error)
}

func NewMembershipHandler(svc *community.Service, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *MembershipHandler {
	return &MembershipHandler{
		svc:    svc,
		logger: logger,
		sign: func(who identity.Identity) (string, error) {
			return auth.GenerateToken(who, jwtSecret, tokenTTL)
		},
	}
}

// joinRequest is the optional JSON body for POST /v1/communities/:id/join
type joinRequest struct {
	Nickname string `json:"nickname"`
}

// joinResponse carries a token only when the join minted a new identity;
// the caller must keep it to act as that member later.
type joinResponse struct {
	Membership *models.Membership `json:"membership"`
	Token      string             `json:"token,omitempty"`
}

type setStatusRequest struct {
	Status models.MembershipStatus `json:"status" binding:"required"`
}

// Request handles POST /v1/communities/:id/requests
func (h *MembershipHandler) Request(c *gin.Context) {
	id, ok := pathID(c, "community")
	if !ok {
		return
	}
	m, err := h.svc.RequestMembership(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, h.logger, "request membership", err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// Join handles POST /v1/communities/:id/join. Anonymous callers are allowed.
func (h *MembershipHandler) Join(c *gin.Context) {
	id, ok := pathID(c, "community")
	if !ok {
		return
	}

	// The body is optional; an empty or malformed one means no nickname.
	var req joinRequest
	_ = c.ShouldBindJSON(&req)

	res, err := h.svc.JoinPublic(c.Request.Context(), middleware.GetIdentity(c), id, req.Nickname)
	if err != nil {
		respondError(c, h.logger, "join community", err)
		return
	}

	resp := joinResponse{Membership: res.Membership}
	if res.Minted {
		// A minted member is unreachable without its token.
		token, err := h.sign(res.Identity)
		if err != nil {
			h.logger.Error("failed to generate token for minted identity",
				zap.Stringer("user_id", res.Identity.ID),
				zap.Stringer("community_id", id),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue a token for the new identity"})
			return
		}
		resp.Token = token
	}
	c.JSON(http.StatusCreated, resp)
}

// Get handles GET /v1/communities/:id/membership[?user_id=]. It answers
// null when there is no visible row.
func (h *MembershipHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "community")
	if !ok {
		return
	}

	var subject *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		uid, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid user_id")
			return
		}
		subject = &uid
	}

	m, err := h.svc.GetMembership(c.Request.Context(), middleware.GetIdentity(c), id, subject)
	if err != nil {
		respondError(c, h.logger, "get membership", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Pending handles GET /v1/communities/:id/requests
func (h *MembershipHandler) Pending(c *gin.Context) {
	id, ok := pathID(c, "community")
	if !ok {
		return
	}
	list, err := h.svc.ListPendingRequests(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, h.logger, "list requests", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// SetStatus handles PATCH /v1/memberships/:id
func (h *MembershipHandler) SetStatus(c *gin.Context) {
	id, ok := pathID(c, "membership")
	if !ok {
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	m, err := h.svc.SetMembershipStatus(c.Request.Context(), middleware.GetIdentity(c), id, req.Status)
	if err != nil {
		respondError(c, h.logger, "set membership status", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Leave handles POST /v1/communities/:id/leave
func (h *MembershipHandler) Leave(c *gin.Context) {
	id, ok := pathID(c, "community")
	if !ok {
		return
	}
	if err := h.svc.Leave(c.Request.Context(), middleware.GetIdentity(c), id); err != nil {
		respondError(c, h.logger, "leave community", err)
		return
	}
	c.Status(http.StatusNoContent)
}
