package jwtx

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// KeyManager owns the signing keys for a gateway instance and the verifier
// that checks tokens against them. Multiple keys spread signing load and
// make future rotation cheap; signing picks a key at random.
type KeyManager struct {
	Verifier *Verifier
	KeySet   *KeySet

	signers []*Signer
}

// KeyManagerOptions configures an ephemeral KeyManager.
type KeyManagerOptions struct {
	// Issuer is the issuer claim (iss) validated in tokens. Required.
	Issuer string

	// NumKeys is how many signing keys to generate (default 3, max 10).
	NumKeys int

	// Now overrides the verification clock. Nil means time.Now.
	Now func() time.Time
}

// NewEphemeralKeyManager generates in-memory Ed25519 signing keys and wires
// them to a KeySet and Verifier. Nothing is persisted: restarting the
// gateway invalidates all outstanding sessions.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	numKeys := opts.NumKeys
	if numKeys <= 0 {
		numKeys = 3
	}
	if numKeys > 10 {
		numKeys = 10
	}

	keyset := NewKeySet()
	signers := make([]*Signer, 0, numKeys)
	for i := 0; i < numKeys; i++ {
		signer, err := NewEphemeralSigner()
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate signer %d: %w", i+1, err)
		}
		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: register signer %d: %w", i+1, err)
		}
		signers = append(signers, signer)
	}

	return &KeyManager{
		Verifier: NewVerifier(keyset, opts.Issuer, opts.Now),
		KeySet:   keyset,
		signers:  signers,
	}, nil
}

// GetSigner returns a randomly selected signing key.
func (m *KeyManager) GetSigner() *Signer {
	return m.signers[rand.IntN(len(m.signers))]
}
