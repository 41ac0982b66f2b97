// Package jwtx issues and verifies the gateway's signed session tokens.
// Tokens are stateless bearer credentials: everything downstream services
// need (subject, email, role) rides in the claims, and expiry is the only
// termination mechanism.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default validity window for session tokens.
const DefaultSessionTTL = 24 * time.Hour

// Claims are the session-token claims shared across the gateway and the
// backend services that verify forwarded tokens via JWKS.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user.
	Email string `json:"email,omitempty"`

	// Role is the coarse authorization level: "user" or "admin".
	Role string `json:"role,omitempty"`

	// Name is the display name, included for UI convenience only.
	Name string `json:"name,omitempty"`
}

// NewSessionClaims builds minimally-correct session claims.
func NewSessionClaims(
	subject, email, role, name string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email: email,
		Role:  role,
		Name:  name,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
