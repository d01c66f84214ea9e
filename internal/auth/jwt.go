package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
)

const issuer = "community-service"

// Claims is the payload inside every token. It carries nothing beyond the
// subject id and whether the identity is ephemeral.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Ephemeral bool      `json:"ephemeral,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the value passed to the core.
func (c *Claims) Identity() identity.Identity {
	return identity.Identity{ID: c.UserID, Ephemeral: c.Ephemeral}
}

// GenerateToken creates an HS256-signed token for who, valid for ttl.
func GenerateToken(who identity.Identity, secret string, ttl time.Duration) (string, error) {
	if who.IsAnonymous() {
		return "", fmt.Errorf("sign token: anonymous identity")
	}
	now := time.Now()

	claims := Claims{
		UserID:    who.ID,
		Ephemeral: who.Ephemeral,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates the signature, expiry and signing method of
// tokenString and returns its claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			// Reject "none" and asymmetric algorithms before verifying.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("token has no subject")
	}

	return claims, nil
}
