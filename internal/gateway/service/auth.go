package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/internal/gateway/store"
	"github.com/chatterhq/gateway/pkg/cryptox"
	"github.com/chatterhq/gateway/pkg/idx"
	"github.com/chatterhq/gateway/pkg/slogx"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrOAuthOnlyAccount: password login attempted against an account
	// that only has a provider linkage. Reported distinctly so the UI
	// can point the user at the right button.
	ErrOAuthOnlyAccount = errors.New("oauth_only_account")

	ErrEmailTaken   = errors.New("email_taken")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrWeakPassword = errors.New("weak_password")
)

// AuthService handles password registration and login.
type AuthService struct {
	Store  store.Store
	Tokens *TokenService
}

// NormalizeEmail is applied to every inbound email before storage or
// lookup, so case and whitespace never split one address into two
// accounts.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a password account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (Session, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return Session{}, ErrWeakPassword
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return Session{}, err
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         domain.RoleUser,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, err
	}

	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", user.ID))

	user, err = s.Store.Users().GetUserByID(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	return s.Tokens.Issue(user)
}

// Login verifies a password and issues a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	l := slogx.FromContext(ctx)
	email = NormalizeEmail(email)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a hash check so unknown emails cost the same as
			// wrong passwords.
			_ = cryptox.VerifyPassword(password, dummyHash())
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}

	if !user.HasPassword() {
		return Session{}, ErrOAuthOnlyAccount
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		l.Info("login rejected", slog.String("user_id", user.ID))
		return Session{}, ErrInvalidCredentials
	}

	if err := s.Store.Users().TouchLastLogin(ctx, user.ID); err != nil {
		return Session{}, err
	}

	l.Info("login succeeded", slog.String("user_id", user.ID))
	return s.Tokens.Issue(user)
}

var dummyHash = sync.OnceValue(func() string {
	h, err := cryptox.HashPassword("timing-equalizer")
	if err != nil {
		return ""
	}
	return h
})
