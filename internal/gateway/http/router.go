// Package http is the gateway's edge: the auth surface, the account
// and admin endpoints, system endpoints, and the proxies to the
// backing services.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/chatterhq/gateway/internal/gateway/metrics"
	"github.com/chatterhq/gateway/internal/gateway/proxy"
	"github.com/chatterhq/gateway/internal/gateway/service"
	"github.com/chatterhq/gateway/internal/gateway/store"
	"github.com/chatterhq/gateway/pkg/httpx"
	"github.com/chatterhq/gateway/pkg/jwtx"
	"github.com/chatterhq/gateway/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     *jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	collector    *metrics.Collector

	store store.Store

	AuthService    *service.AuthService
	TokenService   *service.TokenService
	OAuthService   *service.OAuthService
	IdentitySvc    *service.IdentityService
	ProfileService *service.ProfileService
	UserService    *service.UserService

	// FrontendURL is where OAuth callbacks send the browser back to.
	FrontendURL string

	Upstreams []proxy.Upstream
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier *jwtx.Verifier,
	buildVersion string,
	st store.Store,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		collector:    collector,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerOAuth()
	r.registerAccount()
	r.registerAdmin()
	r.registerSystem()
	r.registerProxies()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// measured wraps a handler so its outcomes land in the collector under
// a stable route label.
func (r *Router) measured(route string, h http.Handler) http.Handler {
	if r.collector == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(sw, req)
		r.collector.RecordRequest(route, req.Method, sw.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{Auth: r.AuthService, Collector: r.collector}
	register := &RegisterHandler{Auth: r.AuthService}
	refresh := &RefreshHandler{Tokens: r.TokenService}

	r.Mux.Handle("POST /api/auth/login", r.measured("/api/auth/login",
		httpx.Chain(login, httpx.RateLimitByIP(httpx.StrictLimit)),
	))
	r.Mux.Handle("POST /api/auth/register", r.measured("/api/auth/register",
		httpx.Chain(register, httpx.RateLimitByIP(httpx.StrictLimit)),
	))
	r.Mux.Handle("POST /api/auth/refresh", r.measured("/api/auth/refresh",
		httpx.Chain(refresh, httpx.RateLimitByIP(httpx.ModerateLimit)),
	))
}

func (r *Router) registerOAuth() {
	start := &OAuthStartHandler{OAuth: r.OAuthService}
	callback := &OAuthCallbackHandler{
		OAuth:       r.OAuthService,
		FrontendURL: r.FrontendURL,
		Collector:   r.collector,
	}

	r.Mux.Handle("GET /api/auth/oauth/{provider}", r.measured("/api/auth/oauth/start",
		httpx.Chain(start, httpx.RateLimitByIP(httpx.StrictLimit)),
	))
	r.Mux.Handle("GET /api/auth/oauth/{provider}/callback", r.measured("/api/auth/oauth/callback",
		httpx.Chain(callback, httpx.RateLimitByIP(httpx.StrictLimit)),
	))

	linkStart := &LinkStartHandler{OAuth: r.OAuthService}
	unlink := &UnlinkHandler{Identity: r.IdentitySvc}

	r.Mux.Handle("POST /api/auth/link/{provider}", r.measured("/api/auth/link",
		httpx.Chain(linkStart,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	))
	r.Mux.Handle("DELETE /api/auth/link", r.measured("/api/auth/unlink",
		httpx.Chain(unlink,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	))
}

func (r *Router) registerAccount() {
	h := &ProfileHandler{Profiles: r.ProfileService}

	r.Mux.Handle("GET /api/profile", r.measured("/api/profile",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	))
	r.Mux.Handle("PATCH /api/profile", r.measured("/api/profile",
		httpx.Chain(http.HandlerFunc(h.HandlePatch),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	))
}

func (r *Router) registerAdmin() {
	h := &AdminUsersHandler{Users: r.UserService}

	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(httpx.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /api/admin/users", r.measured("/api/admin/users", secured(h.HandleList)))
	r.Mux.Handle("PATCH /api/admin/users/{id}/role", r.measured("/api/admin/users/role", secured(h.HandleSetRole)))
	r.Mux.Handle("DELETE /api/admin/users/{id}", r.measured("/api/admin/users/delete", secured(h.HandleDelete)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", httpx.Chain(
		LivezHandler(r.startTime, r.buildVersion),
		httpx.RateLimitByIP(httpx.PublicLimit),
	))
	r.Mux.Handle("GET /readyz", httpx.Chain(
		ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
		httpx.RateLimitByIP(httpx.PublicLimit),
	))
	r.Mux.Handle("GET /.well-known/jwks.json", httpx.Chain(
		JWKSHandler(r.keys),
		httpx.RateLimitByIP(httpx.PublicLimit),
	))
	if r.collector != nil {
		r.Mux.Handle("GET /metrics", r.collector.Handler())
	}
}

func (r *Router) registerProxies() {
	for _, up := range r.Upstreams {
		mw := []httpx.Middleware{
			httpx.AuthnMiddleware(r.verifier),
		}
		// Export/backup/validation live behind the data service; those are
		// operator actions, not end-user ones.
		if up.Name == "data" {
			mw = append(mw, httpx.RequireRole(httpx.RoleAdmin))
		}
		mw = append(mw, httpx.RateLimitByUser(httpx.LenientLimit))
		proxy.Mount(r.Mux, up, r.collector, mw...)
	}
}
