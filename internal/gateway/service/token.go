package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/internal/gateway/store"
	"github.com/chatterhq/gateway/pkg/jwtx"
)

var (
	ErrInvalidToken = errors.New("invalid_token")
	ErrExpiredToken = errors.New("expired_token")
)

// Session is an issued session token plus the metadata clients render.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

// TokenService mints and checks session tokens. Expired tokens are
// reported distinctly from tampered ones so the surface can tell
// clients whether re-login or a bug report is in order.
type TokenService struct {
	KeyManager *jwtx.KeyManager
	Store      store.Store
	Issuer     string
	SessionTTL time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TokenService) ttl() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return jwtx.DefaultSessionTTL
}

// Issue signs a fresh session token for the user.
func (s *TokenService) Issue(user domain.User) (Session, error) {
	claims := jwtx.NewSessionClaims(
		user.ID, user.Email, string(user.Role), user.Name,
		s.ttl(), s.Issuer, s.now(),
	)

	token, err := s.KeyManager.GetSigner().Sign(claims)
	if err != nil {
		return Session{}, fmt.Errorf("sign session token: %w", err)
	}

	return Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user,
	}, nil
}

// Verify parses and validates a session token.
func (s *TokenService) Verify(token string) (jwtx.Claims, error) {
	claims, err := s.KeyManager.Verifier.Verify(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return jwtx.Claims{}, ErrExpiredToken
		}
		return jwtx.Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// Refresh exchanges a still-valid token for a fresh one. The user record
// is reloaded so role or profile changes land in the new token; an
// expired or tampered token is rejected, as is a deleted account.
func (s *TokenService) Refresh(ctx context.Context, token string) (Session, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, err
	}

	return s.Issue(user)
}
