package service

import (
	"context"
	"net/url"
	"testing"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/internal/gateway/provider"
	"github.com/chatterhq/gateway/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

// stubProvider stands in for a real adapter; it accepts a single code
// and checks that the verifier it receives hashes to the challenge it
// was shown at authorize time.
type stubProvider struct {
	id            domain.Provider
	profile       domain.VerifiedProfile
	seenChallenge string
	exchangeErr   error
}

func (s *stubProvider) ID() domain.Provider { return s.id }

func (s *stubProvider) AuthorizeURL(state, challenge string) string {
	s.seenChallenge = challenge
	return "https://idp.example.com/authorize?state=" + state
}

func (s *stubProvider) Exchange(ctx context.Context, code, verifier string) (domain.VerifiedProfile, error) {
	if s.exchangeErr != nil {
		return domain.VerifiedProfile{}, s.exchangeErr
	}
	if code != "good-code" {
		return domain.VerifiedProfile{}, provider.ErrExchangeFailed
	}
	if cryptox.S256Challenge(verifier) != s.seenChallenge {
		return domain.VerifiedProfile{}, provider.ErrExchangeFailed
	}
	return s.profile, nil
}

func newOAuthEnv(t *testing.T, stub *stubProvider) (*testEnv, *OAuthService) {
	t.Helper()
	env := newTestEnv(t)
	svc := &OAuthService{
		Providers: provider.NewRegistry(stub),
		PKCE:      env.PKCE,
		Identity:  env.Identity,
		Tokens:    env.Tokens,
	}
	return env, svc
}

func stateFromAuthorizeURL(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestOAuthFlow(t *testing.T) {
	stub := &stubProvider{
		id: domain.ProviderGoogle,
		profile: domain.VerifiedProfile{
			Provider:   domain.ProviderGoogle,
			ExternalID: "g-1",
			Email:      "flow@example.com",
			Name:       "Flow",
		},
	}
	_, svc := newOAuthEnv(t, stub)
	ctx := t.Context()

	redirect, err := svc.Start(ctx, domain.ProviderGoogle)
	require.NoError(t, err)
	state := stateFromAuthorizeURL(t, redirect)

	result, err := svc.Callback(ctx, domain.ProviderGoogle, state, "good-code")
	require.NoError(t, err)
	require.False(t, result.Linked)
	require.Equal(t, "flow@example.com", result.Session.User.Email)
	require.True(t, result.Session.User.EmailVerified)
	require.NotNil(t, result.Session.User.LastLogin)

	t.Run("state cannot be replayed", func(t *testing.T) {
		_, err := svc.Callback(ctx, domain.ProviderGoogle, state, "good-code")
		require.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestOAuthLinkFlow(t *testing.T) {
	stub := &stubProvider{
		id: domain.ProviderGitHub,
		profile: domain.VerifiedProfile{
			Provider:   domain.ProviderGitHub,
			ExternalID: "gh-link",
			Email:      "linked@example.com",
			Name:       "Linked",
		},
	}
	env, svc := newOAuthEnv(t, stub)
	ctx := t.Context()

	session, err := env.Auth.Register(ctx, "linker@example.com", "longenoughpass", "Linker")
	require.NoError(t, err)

	redirect, err := svc.StartLink(ctx, domain.ProviderGitHub, session.User.ID)
	require.NoError(t, err)
	state := stateFromAuthorizeURL(t, redirect)

	result, err := svc.Callback(ctx, domain.ProviderGitHub, state, "good-code")
	require.NoError(t, err)
	require.True(t, result.Linked)
	require.Equal(t, session.User.ID, result.UserID)
	require.Empty(t, result.Session.Token, "link flow issues no new session")

	got, err := env.Store.Users().GetUserByID(ctx, session.User.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ProviderGitHub, got.OAuthProvider)
	require.Equal(t, "gh-link", got.OAuthID)
}

func TestOAuthCallbackBadCode(t *testing.T) {
	stub := &stubProvider{id: domain.ProviderGoogle}
	_, svc := newOAuthEnv(t, stub)
	ctx := t.Context()

	redirect, err := svc.Start(ctx, domain.ProviderGoogle)
	require.NoError(t, err)
	state := stateFromAuthorizeURL(t, redirect)

	_, err = svc.Callback(ctx, domain.ProviderGoogle, state, "stolen-code")
	require.ErrorIs(t, err, provider.ErrExchangeFailed)

	// The failed exchange consumed the state; no second chance.
	_, err = svc.Callback(ctx, domain.ProviderGoogle, state, "good-code")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestOAuthStartUnknownProvider(t *testing.T) {
	stub := &stubProvider{id: domain.ProviderGoogle}
	_, svc := newOAuthEnv(t, stub)

	_, err := svc.Start(t.Context(), domain.ProviderFacebook)
	require.ErrorIs(t, err, provider.ErrUnknownProvider)
}

func TestOAuthCallbackForgedState(t *testing.T) {
	stub := &stubProvider{id: domain.ProviderGoogle}
	_, svc := newOAuthEnv(t, stub)

	_, err := svc.Callback(t.Context(), domain.ProviderGoogle, "forged-state", "good-code")
	require.ErrorIs(t, err, ErrInvalidState)
}
