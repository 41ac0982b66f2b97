package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chatterhq/gateway/internal/gateway/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleConfig holds the Google OAuth client credentials.
type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_OAUTH_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_OAUTH_REDIRECT_URL"`
}

type googleProvider struct {
	conf       *oauth2.Config
	httpClient *http.Client
	userURL    string // overridden in tests
}

func NewGoogle(cfg GoogleConfig) Provider {
	return &googleProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userURL:    "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

func (p *googleProvider) ID() domain.Provider { return domain.ProviderGoogle }

func (p *googleProvider) AuthorizeURL(state, challenge string) string {
	return p.conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *googleProvider) Exchange(ctx context.Context, code, verifier string) (domain.VerifiedProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return domain.VerifiedProfile{}, ErrExchangeFailed
	}

	u, err := p.fetchUser(ctx, tok.AccessToken)
	if err != nil {
		return domain.VerifiedProfile{}, fmt.Errorf("fetch google user: %w", err)
	}
	if u.Email == "" {
		return domain.VerifiedProfile{}, ErrMissingEmail
	}

	return domain.VerifiedProfile{
		Provider:   domain.ProviderGoogle,
		ExternalID: u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Picture:    u.Picture,
	}, nil
}

func (p *googleProvider) fetchUser(ctx context.Context, accessToken string) (*googleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google api returned status %d", resp.StatusCode)
	}

	var user googleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

type googleUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

var _ Provider = (*googleProvider)(nil)
