package service

import (
	"testing"
	"time"

	"github.com/chatterhq/gateway/internal/gateway/store"
	"github.com/chatterhq/gateway/internal/gateway/store/drivers/sqlite"
	"github.com/chatterhq/gateway/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	Store    store.Store
	Tokens   *TokenService
	Auth     *AuthService
	Identity *IdentityService
	PKCE     *PKCEService

	clock *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	clock := &fakeClock{now: time.Now()}

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer: "chatterhq-gateway",
		Now:    clock.Now,
	})
	require.NoError(t, err)

	tokens := &TokenService{
		KeyManager: km,
		Store:      s,
		Issuer:     "chatterhq-gateway",
		SessionTTL: jwtx.DefaultSessionTTL,
		Now:        clock.Now,
	}

	return &testEnv{
		Store:    s,
		Tokens:   tokens,
		Auth:     &AuthService{Store: s, Tokens: tokens},
		Identity: &IdentityService{Store: s},
		PKCE:     NewPKCEService(DefaultChallengeTTL, clock.Now),
		clock:    clock,
	}
}
