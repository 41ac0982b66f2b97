package service

import (
	"testing"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/stretchr/testify/require"
)

func githubProfile(id, email, name string) domain.VerifiedProfile {
	return domain.VerifiedProfile{
		Provider:   domain.ProviderGitHub,
		ExternalID: id,
		Email:      email,
		Name:       name,
		Picture:    "https://cdn/" + id + ".png",
	}
}

func TestResolveCreatesOAuthOnlyAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	user, created, err := env.Identity.Resolve(ctx, githubProfile("gh-100", "new@example.com", "New Dev"))
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "new@example.com", user.Email)
	require.Equal(t, domain.ProviderGitHub, user.OAuthProvider)
	require.Equal(t, "gh-100", user.OAuthID)
	require.True(t, user.EmailVerified, "provider-vouched emails are trusted")
	require.False(t, user.HasPassword())
	require.Equal(t, domain.RoleUser, user.Role)
}

func TestResolveIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	p := githubProfile("gh-200", "same@example.com", "Same")

	first, created, err := env.Identity.Resolve(ctx, p)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := env.Identity.Resolve(ctx, p)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
}

func TestResolveLinksByEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	// Alice registered with a password first.
	session, err := env.Auth.Register(ctx, "alice@example.com", "longenoughpass", "Alice")
	require.NoError(t, err)
	require.False(t, session.User.EmailVerified)

	user, created, err := env.Identity.Resolve(ctx, domain.VerifiedProfile{
		Provider:   domain.ProviderGoogle,
		ExternalID: "g-alice",
		Email:      "alice@example.com",
		Name:       "Alice G",
	})
	require.NoError(t, err)
	require.False(t, created, "existing account is reused, not duplicated")
	require.Equal(t, session.User.ID, user.ID)
	require.Equal(t, domain.ProviderGoogle, user.OAuthProvider)
	require.True(t, user.EmailVerified, "linking marks the email verified")
	require.True(t, user.HasPassword(), "password credential is preserved")
}

func TestResolveProviderConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	_, created, err := env.Identity.Resolve(ctx, domain.VerifiedProfile{
		Provider:   domain.ProviderGoogle,
		ExternalID: "g-bob",
		Email:      "bob@example.com",
	})
	require.NoError(t, err)
	require.True(t, created)

	// Same email arriving from a different provider must not hijack or
	// silently re-link the account.
	_, _, err = env.Identity.Resolve(ctx, domain.VerifiedProfile{
		Provider:   domain.ProviderFacebook,
		ExternalID: "fb-bob",
		Email:      "bob@example.com",
	})
	require.ErrorIs(t, err, ErrProviderConflict)
}

func TestLinkAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	session, err := env.Auth.Register(ctx, "carol@example.com", "longenoughpass", "Carol")
	require.NoError(t, err)
	userID := session.User.ID

	p := githubProfile("gh-carol", "carol-gh@example.com", "Carol")

	require.NoError(t, env.Identity.LinkAccount(ctx, userID, p))

	t.Run("relinking same identity is a no-op", func(t *testing.T) {
		require.NoError(t, env.Identity.LinkAccount(ctx, userID, p))
	})

	t.Run("second identity is refused", func(t *testing.T) {
		err := env.Identity.LinkAccount(ctx, userID, domain.VerifiedProfile{
			Provider:   domain.ProviderGoogle,
			ExternalID: "g-carol",
			Email:      "carol@example.com",
		})
		require.ErrorIs(t, err, ErrAlreadyLinked)
	})

	t.Run("identity held elsewhere is refused", func(t *testing.T) {
		other, err := env.Auth.Register(ctx, "dan@example.com", "longenoughpass", "Dan")
		require.NoError(t, err)

		err = env.Identity.LinkAccount(ctx, other.User.ID, p)
		require.ErrorIs(t, err, ErrIdentityInUse)

		// The loser's account is untouched.
		got, err := env.Store.Users().GetUserByID(ctx, other.User.ID)
		require.NoError(t, err)
		require.False(t, got.OAuthLinked())
	})
}

func TestUnlinkAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	t.Run("unlink with password remaining", func(t *testing.T) {
		session, err := env.Auth.Register(ctx, "erin@example.com", "longenoughpass", "Erin")
		require.NoError(t, err)
		require.NoError(t, env.Identity.LinkAccount(ctx, session.User.ID, githubProfile("gh-erin", "erin@example.com", "Erin")))

		require.NoError(t, env.Identity.UnlinkAccount(ctx, session.User.ID))

		got, err := env.Store.Users().GetUserByID(ctx, session.User.ID)
		require.NoError(t, err)
		require.False(t, got.OAuthLinked())
		require.True(t, got.HasPassword())
	})

	t.Run("unlink with nothing linked is a no-op", func(t *testing.T) {
		session, err := env.Auth.Register(ctx, "frank@example.com", "longenoughpass", "Frank")
		require.NoError(t, err)
		require.NoError(t, env.Identity.UnlinkAccount(ctx, session.User.ID))
	})

	t.Run("unlink refuses to strand oauth-only accounts", func(t *testing.T) {
		user, _, err := env.Identity.Resolve(ctx, githubProfile("gh-solo", "solo@example.com", "Solo"))
		require.NoError(t, err)

		err = env.Identity.UnlinkAccount(ctx, user.ID)
		require.ErrorIs(t, err, ErrLastCredential)

		got, err := env.Store.Users().GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.True(t, got.OAuthLinked(), "linkage must survive the refusal")
	})
}

func TestResolveCaseVariantEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	session, err := env.Auth.Register(ctx, "casey@example.com", "longenoughpass", "Casey")
	require.NoError(t, err)

	p := githubProfile("gh-casey", "Casey@Example.COM", "Casey")
	user, created, err := env.Identity.Resolve(ctx, p)
	require.NoError(t, err)
	require.False(t, created, "a case-variant address must land on the existing account")
	require.Equal(t, session.User.ID, user.ID)
	require.True(t, user.OAuthLinked())

	got, err := env.Store.Users().GetUserByEmail(ctx, "casey@example.com")
	require.NoError(t, err)
	require.Equal(t, session.User.ID, got.ID)
}

func TestLinkAccountConcurrentSameIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	a, err := env.Auth.Register(ctx, "racer-a@example.com", "longenoughpass", "A")
	require.NoError(t, err)
	b, err := env.Auth.Register(ctx, "racer-b@example.com", "longenoughpass", "B")
	require.NoError(t, err)

	p := githubProfile("gh-contested", "contested@example.com", "Contested")

	start := make(chan struct{})
	errs := make(chan error, 2)
	for _, userID := range []string{a.User.ID, b.User.ID} {
		go func() {
			<-start
			errs <- env.Identity.LinkAccount(ctx, userID, p)
		}()
	}
	close(start)

	var failed []error
	for range 2 {
		if err := <-errs; err != nil {
			failed = append(failed, err)
		}
	}
	require.Len(t, failed, 1, "exactly one link must win")
	require.ErrorIs(t, failed[0], ErrIdentityInUse)

	winner, err := env.Store.Users().GetUserByOAuth(ctx, domain.ProviderGitHub, "gh-contested")
	require.NoError(t, err)
	require.Contains(t, []string{a.User.ID, b.User.ID}, winner.ID)
}

func TestLinkAccountConcurrentSameUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	session, err := env.Auth.Register(ctx, "greedy@example.com", "longenoughpass", "Greedy")
	require.NoError(t, err)

	profiles := []domain.VerifiedProfile{
		githubProfile("gh-first", "greedy@example.com", "Greedy"),
		{
			Provider:   domain.ProviderGoogle,
			ExternalID: "g-second",
			Email:      "greedy@example.com",
			Name:       "Greedy",
		},
	}

	start := make(chan struct{})
	errs := make(chan error, 2)
	for _, p := range profiles {
		go func() {
			<-start
			errs <- env.Identity.LinkAccount(ctx, session.User.ID, p)
		}()
	}
	close(start)

	var failed []error
	for range 2 {
		if err := <-errs; err != nil {
			failed = append(failed, err)
		}
	}
	require.Len(t, failed, 1, "the first linked provider must win")
	require.ErrorIs(t, failed[0], ErrAlreadyLinked)

	got, err := env.Store.Users().GetUserByID(ctx, session.User.ID)
	require.NoError(t, err)
	require.True(t, got.OAuthLinked())
}
