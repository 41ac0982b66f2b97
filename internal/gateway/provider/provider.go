// Package provider holds the OAuth adapters for the supported identity
// providers. Each adapter hides provider quirks (endpoints, profile
// shapes, email lookup) behind the same two operations so the auth
// service never branches on which provider it is talking to.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/chatterhq/gateway/internal/gateway/domain"
)

var (
	// ErrExchangeFailed covers rejected or replayed authorization codes.
	ErrExchangeFailed = errors.New("provider: code exchange failed")

	// ErrMissingEmail means the provider account has no usable email
	// address. The flow cannot proceed without one.
	ErrMissingEmail = errors.New("provider: no email on account")

	// ErrUnknownProvider means the requested provider is not configured.
	ErrUnknownProvider = errors.New("provider: not configured")
)

// Provider is one configured OAuth identity provider.
type Provider interface {
	// ID returns the stable provider identifier used in routes and storage.
	ID() domain.Provider

	// AuthorizeURL builds the provider authorization redirect carrying
	// the opaque state and the S256 code challenge.
	AuthorizeURL(state, challenge string) string

	// Exchange redeems the authorization code (presenting the PKCE
	// verifier) and fetches a normalized profile. The returned profile
	// always has a non-empty Email and ExternalID.
	Exchange(ctx context.Context, code, verifier string) (domain.VerifiedProfile, error)
}

// Registry resolves provider adapters by id.
type Registry struct {
	byID map[domain.Provider]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	byID := make(map[domain.Provider]Provider, len(providers))
	for _, p := range providers {
		byID[p.ID()] = p
	}
	return &Registry{byID: byID}
}

// Lookup returns the adapter for id, or ErrUnknownProvider.
func (r *Registry) Lookup(id domain.Provider) (Provider, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return p, nil
}

// IDs lists the configured providers, for diagnostics.
func (r *Registry) IDs() []domain.Provider {
	out := make([]domain.Provider, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	return out
}
