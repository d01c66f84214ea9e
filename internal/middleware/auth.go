package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/auth"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
)

// ContextKeyIdentity is the gin.Context key holding the caller's identity.
const ContextKeyIdentity = "identity"

// Identify returns a Gin middleware that resolves the caller's identity.
//
// Unlike a hard auth gate, a missing Authorization header is allowed: the
// request continues as the anonymous identity and the core decides whether
// the operation needs one (public joins mint an ephemeral identity, reads
// are visibility scoped). A header that is present but malformed, expired
// or badly signed aborts with 401, since the client clearly meant to
// authenticate.
func Identify(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(ContextKeyIdentity, identity.Anonymous())
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
				"kind":  "auth_required",
			})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
				"kind":  "auth_required",
			})
			return
		}

		c.Set(ContextKeyIdentity, claims.Identity())
		c.Next()
	}
}

// GetIdentity returns the identity stored by Identify, or the anonymous
// identity if the middleware did not run.
func GetIdentity(c *gin.Context) identity.Identity {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return identity.Anonymous()
	}
	who, ok := val.(identity.Identity)
	if !ok {
		return identity.Anonymous()
	}
	return who
}
