package jwtx_test

import (
	"testing"
	"time"

	"github.com/chatterhq/gateway/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "gateway-test"

func newManager(t *testing.T, now func() time.Time) *jwtx.KeyManager {
	t.Helper()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  testIssuer,
		NumKeys: 2,
		Now:     now,
	})
	require.NoError(t, err)
	return km
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	km := newManager(t, nil)
	now := time.Now()

	claims := jwtx.NewSessionClaims(
		"user-1", "alice@example.com", "user", "Alice",
		jwtx.DefaultSessionTTL, testIssuer, now,
	)
	token, err := km.GetSigner().Sign(claims)
	require.NoError(t, err)

	got, err := km.Verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "alice@example.com", got.Email)
	require.Equal(t, "user", got.Role)
	require.Equal(t, "Alice", got.Name)
}

func TestVerifyDistinguishesExpiredFromInvalid(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	km := newManager(t, func() time.Time { return clock })

	claims := jwtx.NewSessionClaims(
		"user-1", "alice@example.com", "user", "Alice",
		time.Hour, testIssuer, issued,
	)
	token, err := km.GetSigner().Sign(claims)
	require.NoError(t, err)

	// Valid within the window.
	_, err = km.Verifier.Verify(token)
	require.NoError(t, err)

	// Advance past expiry: must be exactly ErrExpired.
	clock = issued.Add(2 * time.Hour)
	_, err = km.Verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)

	// A tampered token must not look expired.
	clock = issued
	_, err = km.Verifier.Verify(token + "x")
	require.Error(t, err)
	require.NotErrorIs(t, err, jwtx.ErrExpired)
}

func TestVerifyRejectsForeignKeys(t *testing.T) {
	t.Parallel()

	km := newManager(t, nil)
	other := newManager(t, nil)

	claims := jwtx.NewSessionClaims(
		"user-1", "a@b.c", "user", "",
		time.Hour, testIssuer, time.Now(),
	)
	token, err := other.GetSigner().Sign(claims)
	require.NoError(t, err)

	_, err = km.Verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
}

func TestVerifyRejectsIssuerMismatch(t *testing.T) {
	t.Parallel()

	km := newManager(t, nil)

	claims := jwtx.NewSessionClaims(
		"user-1", "a@b.c", "user", "",
		time.Hour, "someone-else", time.Now(),
	)
	token, err := km.GetSigner().Sign(claims)
	require.NoError(t, err)

	_, err = km.Verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	km := newManager(t, nil)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := km.Verifier.Verify(tok)
		require.Error(t, err)
	}
}

func TestKeySetPublishesAllSigners(t *testing.T) {
	t.Parallel()

	km := newManager(t, nil)
	jwks := km.KeySet.PublicJWKS()

	require.Len(t, jwks.Keys, 2)
	for _, k := range jwks.Keys {
		require.Equal(t, "OKP", k.Kty)
		require.Equal(t, "EdDSA", k.Alg)
		require.Equal(t, "Ed25519", k.Crv)
		require.NotEmpty(t, k.Kid)
		require.NotEmpty(t, k.X)
	}
	require.True(t, km.KeySet.IsReady())
}
