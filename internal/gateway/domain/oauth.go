package domain

import "fmt"

// Provider identifies one of the supported OAuth identity providers.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderGitHub   Provider = "github"
	ProviderFacebook Provider = "facebook"
)

// ParseProvider validates an inbound provider path segment.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderGoogle, ProviderGitHub, ProviderFacebook:
		return p, nil
	default:
		return "", fmt.Errorf("unknown oauth provider %q", s)
	}
}

// VerifiedProfile is the normalized identity a provider adapter returns
// after a successful code exchange. Email is always non-empty; adapters
// fail the exchange rather than hand back a profile without one.
type VerifiedProfile struct {
	Provider   Provider
	ExternalID string
	Email      string
	Name       string
	Picture    string
}

// PKCEChallenge is the server-side half of an in-flight authorization
// attempt, cached until the callback consumes it or the TTL fires.
type PKCEChallenge struct {
	Provider   Provider
	Challenge  string // S256(verifier), what we computed at start
	Verifier   string // forwarded to the provider on exchange
	LinkUserID string // set when a signed-in user is linking, empty for login
}
