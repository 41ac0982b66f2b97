package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/internal/gateway/metrics"
	"github.com/chatterhq/gateway/internal/gateway/provider"
	"github.com/chatterhq/gateway/internal/gateway/service"
	"github.com/chatterhq/gateway/pkg/httpx"
)

// OAuthStartHandler serves GET /api/auth/oauth/{provider} by redirecting
// the browser to the provider's authorization page.
type OAuthStartHandler struct {
	OAuth *service.OAuthService
}

func (h *OAuthStartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProvider(r.PathValue("provider"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "unknown_provider", "unsupported identity provider")
		return
	}

	redirect, err := h.OAuth.Start(r.Context(), id)
	if err != nil {
		if errors.Is(err, provider.ErrUnknownProvider) {
			httpx.WriteError(w, http.StatusNotFound, "unknown_provider", "provider is not configured")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not start oauth flow")
		return
	}

	http.Redirect(w, r, redirect, http.StatusFound)
}

// OAuthCallbackHandler serves GET /api/auth/oauth/{provider}/callback.
// Outcomes go back to the frontend as redirects: a token fragment on
// success, a coarse error code otherwise. Callback details (state
// validity, exchange failures) stay in the logs where they can't guide
// an attacker.
type OAuthCallbackHandler struct {
	OAuth       *service.OAuthService
	FrontendURL string
	Collector   *metrics.Collector
}

func (h *OAuthCallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProvider(r.PathValue("provider"))
	if err != nil {
		h.redirectError(w, r, "oauth_failed")
		return
	}

	q := r.URL.Query()
	state, code := q.Get("state"), q.Get("code")

	// The user clicked "deny" at the provider.
	if errCode := q.Get("error"); errCode != "" || code == "" {
		h.record(string(id), "denied")
		h.redirectError(w, r, "oauth_denied")
		return
	}

	result, err := h.OAuth.Callback(r.Context(), id, state, code)
	if err != nil {
		h.record(string(id), callbackOutcome(err))
		switch {
		case errors.Is(err, service.ErrProviderConflict),
			errors.Is(err, service.ErrAlreadyLinked),
			errors.Is(err, service.ErrIdentityInUse):
			h.redirectError(w, r, "account_conflict")
		default:
			h.redirectError(w, r, "oauth_failed")
		}
		return
	}

	h.record(string(id), "success")

	if result.Linked {
		http.Redirect(w, r, h.FrontendURL+"/settings?linked="+string(id), http.StatusFound)
		return
	}

	// Token travels in the fragment so it never hits server logs or
	// Referer headers.
	http.Redirect(w, r, h.FrontendURL+"/auth/callback#token="+url.QueryEscape(result.Session.Token), http.StatusFound)
}

func (h *OAuthCallbackHandler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.FrontendURL+"/auth/callback?error="+code, http.StatusFound)
}

func (h *OAuthCallbackHandler) record(provider, outcome string) {
	if h.Collector != nil {
		h.Collector.RecordOAuth(provider, outcome)
	}
}

func callbackOutcome(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, provider.ErrExchangeFailed):
		return "exchange_failed"
	case errors.Is(err, provider.ErrMissingEmail):
		return "missing_email"
	case errors.Is(err, service.ErrProviderConflict):
		return "provider_conflict"
	case errors.Is(err, service.ErrAlreadyLinked), errors.Is(err, service.ErrIdentityInUse):
		return "link_conflict"
	default:
		return "error"
	}
}

// LinkStartHandler serves POST /api/auth/link/{provider} for a signed-in
// user. It returns the authorization URL rather than redirecting, since
// the caller is an XHR, not a browser navigation.
type LinkStartHandler struct {
	OAuth *service.OAuthService
}

func (h *LinkStartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProvider(r.PathValue("provider"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "unknown_provider", "unsupported identity provider")
		return
	}

	userID := httpx.UserIDFromContext(r.Context())
	redirect, err := h.OAuth.StartLink(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, provider.ErrUnknownProvider) {
			httpx.WriteError(w, http.StatusNotFound, "unknown_provider", "provider is not configured")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not start link flow")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"url": redirect})
}

// UnlinkHandler serves DELETE /api/auth/link.
type UnlinkHandler struct {
	Identity *service.IdentityService
}

func (h *UnlinkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())

	if err := h.Identity.UnlinkAccount(r.Context(), userID); err != nil {
		if errors.Is(err, service.ErrLastCredential) {
			httpx.WriteError(w, http.StatusConflict, "last_credential",
				"set a password before unlinking your only sign-in method")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "unlink failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
