package http

import (
	"encoding/json"
	"time"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/internal/gateway/service"
)

// UserResponse is the public shape of an account.
type UserResponse struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	Role          string          `json:"role"`
	Picture       string          `json:"picture,omitempty"`
	EmailVerified bool            `json:"email_verified"`
	OAuthProvider string          `json:"oauth_provider,omitempty"`
	HasPassword   bool            `json:"has_password"`
	Preferences   json.RawMessage `json:"preferences"`
	CreatedAt     time.Time       `json:"created_at"`
	LastLogin     *time.Time      `json:"last_login,omitempty"`
}

func toUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          string(u.Role),
		Picture:       u.Picture,
		EmailVerified: u.EmailVerified,
		OAuthProvider: string(u.OAuthProvider),
		HasPassword:   u.HasPassword(),
		Preferences:   u.Preferences,
		CreatedAt:     u.CreatedAt,
		LastLogin:     u.LastLogin,
	}
}

// SessionResponse is returned by login, register, and refresh.
type SessionResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

func toSessionResponse(s service.Session) SessionResponse {
	return SessionResponse{
		Token:     s.Token,
		TokenType: "Bearer",
		ExpiresAt: s.ExpiresAt,
		User:      toUserResponse(s.User),
	}
}
