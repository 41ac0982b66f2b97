package service

import (
	"context"
	"log/slog"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/internal/gateway/provider"
	"github.com/chatterhq/gateway/pkg/cryptox"
	"github.com/chatterhq/gateway/pkg/slogx"
)

// OAuthService drives the authorization-code flow end to end: start
// hands out the provider redirect, callback turns the returning code
// into a local session.
type OAuthService struct {
	Providers *provider.Registry
	PKCE      *PKCEService
	Identity  *IdentityService
	Tokens    *TokenService
}

// Start begins an authorization attempt and returns the provider
// redirect URL.
func (s *OAuthService) Start(ctx context.Context, id domain.Provider) (string, error) {
	p, err := s.Providers.Lookup(id)
	if err != nil {
		return "", err
	}

	state, challenge, err := s.PKCE.Begin(id)
	if err != nil {
		return "", err
	}

	slogx.FromContext(ctx).Info("oauth flow started",
		slog.String("provider", string(id)),
		slog.String("state", cryptox.FingerprintToken(state)))
	return p.AuthorizeURL(state, challenge), nil
}

// StartLink begins a linking attempt for a signed-in user.
func (s *OAuthService) StartLink(ctx context.Context, id domain.Provider, userID string) (string, error) {
	p, err := s.Providers.Lookup(id)
	if err != nil {
		return "", err
	}

	state, challenge, err := s.PKCE.BeginLink(id, userID)
	if err != nil {
		return "", err
	}

	slogx.FromContext(ctx).Info("oauth link started",
		slog.String("provider", string(id)),
		slog.String("user_id", userID),
		slog.String("state", cryptox.FingerprintToken(state)))
	return p.AuthorizeURL(state, challenge), nil
}

// CallbackResult is the outcome of a completed callback. Login flows
// carry a fresh session; link flows just report which account gained
// the identity.
type CallbackResult struct {
	Session Session
	Linked  bool
	UserID  string
}

// Callback consumes the state, redeems the code, and completes the
// attempt the state was minted for: signing in for login states,
// attaching the identity for link states.
func (s *OAuthService) Callback(ctx context.Context, id domain.Provider, state, code string) (CallbackResult, error) {
	l := slogx.FromContext(ctx)

	p, err := s.Providers.Lookup(id)
	if err != nil {
		return CallbackResult{}, err
	}

	attempt, err := s.PKCE.Take(state, id)
	if err != nil {
		l.Info("oauth state rejected",
			slog.String("provider", string(id)),
			slog.String("state", cryptox.FingerprintToken(state)))
		return CallbackResult{}, err
	}

	profile, err := p.Exchange(ctx, code, attempt.Verifier)
	if err != nil {
		l.Info("oauth exchange failed", slog.String("provider", string(id)), slogx.Err(err))
		return CallbackResult{}, err
	}

	if attempt.LinkUserID != "" {
		if err := s.Identity.LinkAccount(ctx, attempt.LinkUserID, profile); err != nil {
			return CallbackResult{}, err
		}
		l.Info("oauth link succeeded",
			slog.String("provider", string(id)),
			slog.String("user_id", attempt.LinkUserID))
		return CallbackResult{Linked: true, UserID: attempt.LinkUserID}, nil
	}

	user, created, err := s.Identity.Resolve(ctx, profile)
	if err != nil {
		return CallbackResult{}, err
	}

	if err := s.Identity.Store.Users().TouchLastLogin(ctx, user.ID); err != nil {
		return CallbackResult{}, err
	}

	l.Info("oauth login succeeded",
		slog.String("provider", string(id)),
		slog.String("user_id", user.ID),
		slog.Bool("created", created))

	session, err := s.Tokens.Issue(user)
	if err != nil {
		return CallbackResult{}, err
	}
	return CallbackResult{Session: session, UserID: user.ID}, nil
}
