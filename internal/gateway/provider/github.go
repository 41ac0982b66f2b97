package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/chatterhq/gateway/internal/gateway/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubConfig holds the GitHub OAuth client credentials.
type GitHubConfig struct {
	ClientID     string `env:"GITHUB_OAUTH_CLIENT_ID"`
	ClientSecret string `env:"GITHUB_OAUTH_CLIENT_SECRET"`
	RedirectURL  string `env:"GITHUB_OAUTH_REDIRECT_URL"`
}

type githubProvider struct {
	conf       *oauth2.Config
	httpClient *http.Client
	userURL    string // overridden in tests
	emailsURL  string
}

func NewGitHub(cfg GitHubConfig) Provider {
	return &githubProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userURL:    "https://api.github.com/user",
		emailsURL:  "https://api.github.com/user/emails",
	}
}

func (p *githubProvider) ID() domain.Provider { return domain.ProviderGitHub }

func (p *githubProvider) AuthorizeURL(state, challenge string) string {
	return p.conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *githubProvider) Exchange(ctx context.Context, code, verifier string) (domain.VerifiedProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return domain.VerifiedProfile{}, ErrExchangeFailed
	}

	u, err := p.fetchUser(ctx, tok.AccessToken)
	if err != nil {
		return domain.VerifiedProfile{}, fmt.Errorf("fetch github user: %w", err)
	}

	email := u.Email
	if email == "" {
		// Profile email is often hidden; the emails endpoint has the
		// verified addresses.
		email, err = p.fetchPrimaryEmail(ctx, tok.AccessToken)
		if err != nil {
			return domain.VerifiedProfile{}, err
		}
	}

	return domain.VerifiedProfile{
		Provider:   domain.ProviderGitHub,
		ExternalID: strconv.FormatInt(u.ID, 10),
		Email:      email,
		Name:       u.Name,
		Picture:    u.AvatarURL,
	}, nil
}

func (p *githubProvider) fetchUser(ctx context.Context, accessToken string) (*githubUser, error) {
	var user githubUser
	if err := p.getJSON(ctx, p.userURL, accessToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *githubProvider) fetchPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []githubEmail
	if err := p.getJSON(ctx, p.emailsURL, accessToken, &emails); err != nil {
		return "", fmt.Errorf("fetch github emails: %w", err)
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}
	return "", ErrMissingEmail
}

func (p *githubProvider) getJSON(ctx context.Context, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

var _ Provider = (*githubProvider)(nil)
