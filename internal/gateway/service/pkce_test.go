package service

import (
	"testing"
	"time"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestPKCERoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := NewPKCEService(DefaultChallengeTTL, clock.Now)

	state, challenge, err := svc.Begin(domain.ProviderGoogle)
	require.NoError(t, err)
	require.NotEmpty(t, state)
	require.NotEmpty(t, challenge)

	attempt, err := svc.Take(state, domain.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, challenge, cryptox.S256Challenge(attempt.Verifier),
		"stored verifier must hash to the issued challenge")
	require.Empty(t, attempt.LinkUserID)

	t.Run("second take is refused", func(t *testing.T) {
		_, err := svc.Take(state, domain.ProviderGoogle)
		require.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestPKCEBeginLinkCarriesUser(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := NewPKCEService(DefaultChallengeTTL, clock.Now)

	state, _, err := svc.BeginLink(domain.ProviderGitHub, "user-42")
	require.NoError(t, err)

	attempt, err := svc.Take(state, domain.ProviderGitHub)
	require.NoError(t, err)
	require.Equal(t, "user-42", attempt.LinkUserID)
}

func TestPKCEProviderMismatch(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := NewPKCEService(DefaultChallengeTTL, clock.Now)

	state, _, err := svc.Begin(domain.ProviderGitHub)
	require.NoError(t, err)

	_, err = svc.Take(state, domain.ProviderGoogle)
	require.ErrorIs(t, err, ErrInvalidState, "state is bound to the provider that started it")
}

func TestPKCEExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := NewPKCEService(DefaultChallengeTTL, clock.Now)

	state, _, err := svc.Begin(domain.ProviderGoogle)
	require.NoError(t, err)

	clock.Advance(DefaultChallengeTTL + time.Second)

	_, err = svc.Take(state, domain.ProviderGoogle)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestPKCESweep(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := NewPKCEService(DefaultChallengeTTL, clock.Now)

	for range 3 {
		_, _, err := svc.Begin(domain.ProviderGoogle)
		require.NoError(t, err)
	}
	require.Equal(t, 3, svc.Pending())

	clock.Advance(DefaultChallengeTTL + time.Second)
	require.Equal(t, 3, svc.Sweep())
	require.Equal(t, 0, svc.Pending())
}

func TestPKCEStatesAreUnique(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := NewPKCEService(DefaultChallengeTTL, clock.Now)

	seen := make(map[string]bool)
	for range 50 {
		state, _, err := svc.Begin(domain.ProviderGoogle)
		require.NoError(t, err)
		require.False(t, seen[state])
		seen[state] = true
	}
}

func TestPKCETamperedEntryRefused(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := NewPKCEService(DefaultChallengeTTL, clock.Now)

	state, _, err := svc.Begin(domain.ProviderGoogle)
	require.NoError(t, err)

	// A verifier that no longer hashes to the issued challenge must
	// never reach the code exchange.
	svc.cache.Put(state, domain.PKCEChallenge{
		Provider:  domain.ProviderGoogle,
		Challenge: cryptox.S256Challenge("something-else"),
		Verifier:  "tampered-verifier",
	})

	_, err = svc.Take(state, domain.ProviderGoogle)
	require.ErrorIs(t, err, ErrInvalidState)
}
