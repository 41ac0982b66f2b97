package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/chatterhq/gateway/internal/gateway/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

// FacebookConfig holds the Facebook OAuth client credentials.
type FacebookConfig struct {
	ClientID     string `env:"FACEBOOK_OAUTH_CLIENT_ID"`
	ClientSecret string `env:"FACEBOOK_OAUTH_CLIENT_SECRET"`
	RedirectURL  string `env:"FACEBOOK_OAUTH_REDIRECT_URL"`
}

type facebookProvider struct {
	conf       *oauth2.Config
	httpClient *http.Client
	userURL    string // overridden in tests
}

func NewFacebook(cfg FacebookConfig) Provider {
	return &facebookProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"email", "public_profile"},
			Endpoint:     facebook.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userURL:    "https://graph.facebook.com/v19.0/me",
	}
}

func (p *facebookProvider) ID() domain.Provider { return domain.ProviderFacebook }

func (p *facebookProvider) AuthorizeURL(state, challenge string) string {
	return p.conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *facebookProvider) Exchange(ctx context.Context, code, verifier string) (domain.VerifiedProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return domain.VerifiedProfile{}, ErrExchangeFailed
	}

	u, err := p.fetchUser(ctx, tok.AccessToken)
	if err != nil {
		return domain.VerifiedProfile{}, fmt.Errorf("fetch facebook user: %w", err)
	}
	// Facebook accounts registered by phone number carry no email.
	if u.Email == "" {
		return domain.VerifiedProfile{}, ErrMissingEmail
	}

	return domain.VerifiedProfile{
		Provider:   domain.ProviderFacebook,
		ExternalID: u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Picture:    u.Picture.Data.URL,
	}, nil
}

func (p *facebookProvider) fetchUser(ctx context.Context, accessToken string) (*facebookUser, error) {
	q := url.Values{}
	q.Set("fields", "id,name,email,picture")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL+"?"+q.Encode(), nil)
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
		return nil, fmt.Errorf("facebook api returned status %d", resp.StatusCode)
	}

	var user facebookUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

type facebookUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

var _ Provider = (*facebookProvider)(nil)
