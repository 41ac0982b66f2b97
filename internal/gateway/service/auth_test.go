package service

import (
	"testing"
	"time"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	session, err := env.Auth.Register(ctx, "  Alice@Example.COM ", "hunter2hunter2", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, "alice@example.com", session.User.Email, "email is normalized")
	require.Equal(t, domain.RoleUser, session.User.Role)
	require.False(t, session.User.EmailVerified, "password signups start unverified")

	t.Run("token carries identity", func(t *testing.T) {
		claims, err := env.Tokens.Verify(session.Token)
		require.NoError(t, err)
		require.Equal(t, session.User.ID, claims.Subject)
		require.Equal(t, "alice@example.com", claims.Email)
		require.Equal(t, "user", claims.Role)
	})

	t.Run("login with normalized variants", func(t *testing.T) {
		got, err := env.Auth.Login(ctx, "ALICE@example.com", "hunter2hunter2")
		require.NoError(t, err)
		require.Equal(t, session.User.ID, got.User.ID)
		require.NotNil(t, got.User.LastLogin)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := env.Auth.Login(ctx, "alice@example.com", "wrong-password")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := env.Auth.Login(ctx, "nobody@example.com", "hunter2hunter2")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := env.Auth.Register(ctx, "alice@example.com", "another-pass-123", "Imposter")
		require.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	_, err := env.Auth.Register(ctx, "not-an-email", "longenoughpass", "X")
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = env.Auth.Register(ctx, "short@example.com", "tiny", "X")
	require.ErrorIs(t, err, ErrWeakPassword)

	t.Run("blank name falls back to local part", func(t *testing.T) {
		session, err := env.Auth.Register(ctx, "carol@example.com", "longenoughpass", "  ")
		require.NoError(t, err)
		require.Equal(t, "carol", session.User.Name)
	})
}

func TestLoginOAuthOnlyAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	user, created, err := env.Identity.Resolve(ctx, domain.VerifiedProfile{
		Provider:   domain.ProviderGitHub,
		ExternalID: "gh-1",
		Email:      "dev@example.com",
		Name:       "Dev",
	})
	require.NoError(t, err)
	require.True(t, created)
	require.False(t, user.HasPassword())

	_, err = env.Auth.Login(ctx, "dev@example.com", "whatever-pass")
	require.ErrorIs(t, err, ErrOAuthOnlyAccount,
		"password login on an oauth-only account must not report invalid_credentials")
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	session, err := env.Auth.Register(ctx, "erin@example.com", "longenoughpass", "Erin")
	require.NoError(t, err)

	t.Run("reloads current role", func(t *testing.T) {
		require.NoError(t, env.Store.Users().UpdateRole(ctx, session.User.ID, domain.RoleAdmin))

		fresh, err := env.Tokens.Refresh(ctx, session.Token)
		require.NoError(t, err)

		claims, err := env.Tokens.Verify(fresh.Token)
		require.NoError(t, err)
		require.Equal(t, "admin", claims.Role)
	})

	t.Run("expired token is refused distinctly", func(t *testing.T) {
		env.clock.Advance(25 * time.Hour) // past the 24h session TTL
		_, err := env.Tokens.Refresh(ctx, session.Token)
		require.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := env.Tokens.Refresh(ctx, "not.a.jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("deleted account", func(t *testing.T) {
		env2 := newTestEnv(t)
		s, err := env2.Auth.Register(ctx, "gone@example.com", "longenoughpass", "Gone")
		require.NoError(t, err)
		require.NoError(t, env2.Store.Users().DeleteUser(ctx, s.User.ID))

		_, err = env2.Tokens.Refresh(ctx, s.Token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}
