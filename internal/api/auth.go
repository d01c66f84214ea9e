package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/auth"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository"
	"go.uber.org/zap"
)

// AuthHandler issues tokens: for registered users on signup and login, and
// for throwaway identities on request.
//
// These routes sit under the same Identify middleware as everything else,
// but none of them reads the caller's identity. A client without a token
// is exactly who calls them.
type AuthHandler struct {
	users      repository.UserRepository
	identities identity.Provider
	jwtSecret  string
	tokenTTL   time.Duration
	logger     *zap.Logger
}

func NewAuthHandler(
	users repository.UserRepository,
	identities identity.Provider,
	jwtSecret string,
	tokenTTL time.Duration,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:      users,
		identities: identities,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// authResponse is returned by every endpoint that hands out a token. The
// client sends the token back as "Authorization: Bearer <token>".
type authResponse struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	Ephemeral bool      `json:"ephemeral"`
}

// issue signs a token for who and writes the auth response. A signing
// failure is a server problem, never the client's, so it answers 500 with
// the operation name and nothing else.
func (h *AuthHandler) issue(c *gin.Context, status int, who identity.Identity, op string) {
	token, err := auth.GenerateToken(who, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
		return
	}
	c.JSON(status, authResponse{Token: token, UserID: who.ID, Ephemeral: who.Ephemeral})
}

// Signup handles POST /v1/auth/signup
//
// Flow:
//  1. Validate input (gin binding tags: email format, 8+ char password)
//  2. Normalise the email to lower case
//  3. Hash the password with bcrypt
//  4. Insert the user; a duplicate email is a 409
//  5. Sign a JWT and return it with the new user's ID
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	// bcrypt at DefaultCost (2^10 rounds) takes tens of milliseconds,
	// cheap for one signup and slow for an attacker guessing offline. It
	// salts every hash, so equal passwords store differently.
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	// No GetByEmail pre-check: two concurrent signups would both pass it.
	// The unique index on email decides, and the store reports the loser
	// as ErrDuplicate.
	user, err := h.users.Create(c.Request.Context(), email, strings.TrimSpace(req.DisplayName), hash)
	if errors.Is(err, repository.ErrDuplicate) {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered", "kind": "conflict"})
		return
	}
	if err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signup failed"})
		return
	}

	h.issue(c, http.StatusCreated, identity.Identity{ID: user.ID}, "signup")
}

// Login handles POST /v1/auth/login
//
// Flow:
//  1. Validate input
//  2. Look up the user by normalised email
//  3. Compare the bcrypt hash (constant time)
//  4. Sign a JWT and return it
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.logger.Error("failed to find user", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "login failed"})
		return
	}

	// Same answer for unknown email and wrong password, otherwise the
	// endpoint tells anyone which emails are registered. Users minted by
	// an anonymous join have no password and can never log in.
	if user == nil || user.PasswordHash == nil || !auth.CheckPassword(*user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password", "kind": "auth_required"})
		return
	}

	h.issue(c, http.StatusOK, identity.Identity{ID: user.ID}, "login")
}

// Ephemeral handles POST /v1/auth/ephemeral: a fresh identity with no
// credentials, for clients that want one before joining anything.
func (h *AuthHandler) Ephemeral(c *gin.Context) {
	who, err := h.identities.MintEphemeral(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to mint ephemeral identity", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not create identity", "kind": "auth_required"})
		return
	}
	h.issue(c, http.StatusCreated, who, "ephemeral identity")
}
