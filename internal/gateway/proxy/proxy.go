// Package proxy forwards authenticated traffic to the backing services.
// The gateway terminates auth at the edge; upstreams receive the caller
// identity as headers and never see the session token.
package proxy

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/chatterhq/gateway/internal/gateway/metrics"
	"github.com/chatterhq/gateway/pkg/httpx"
	"github.com/chatterhq/gateway/pkg/slogx"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Role"
	HeaderUserEmail = "X-User-Email"
)

// Upstream is one backing service the gateway fronts.
type Upstream struct {
	Name   string // route segment and metrics label, e.g. "ai"
	Target *url.URL
}

// New builds the reverse proxy handler for one upstream. The caller
// mounts it behind authentication; identity is read from the request
// context and stamped onto the outbound request.
func New(up Upstream, collector *metrics.Collector) http.Handler {
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(up.Target)
			pr.SetXForwarded()

			out := pr.Out
			// The session token stays at the edge.
			out.Header.Del("Authorization")
			out.Header.Del(HeaderUserID)
			out.Header.Del(HeaderUserRole)
			out.Header.Del(HeaderUserEmail)

			ctx := pr.In.Context()
			if userID := httpx.UserIDFromContext(ctx); userID != "" {
				out.Header.Set(HeaderUserID, userID)
				out.Header.Set(HeaderUserRole, httpx.RoleFromContext(ctx))
				if email := httpx.EmailFromContext(ctx); email != "" {
					out.Header.Set(HeaderUserEmail, email)
				}
			}
		},
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
		ModifyResponse: func(resp *http.Response) error {
			if collector != nil {
				collector.RecordProxy(up.Name, resp.StatusCode)
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slogx.FromContext(r.Context()).Warn("upstream unreachable",
				slog.String("upstream", up.Name),
				slogx.Err(err))
			if collector != nil {
				collector.RecordProxy(up.Name, http.StatusBadGateway)
			}
			httpx.WriteError(w, http.StatusBadGateway,
				"service_unavailable", up.Name+" service is unavailable")
		},
	}

	return rp
}

// Mount wires an upstream under /api/<name>/ with the prefix stripped,
// so /api/ai/chat reaches the ai service as /chat.
func Mount(mux *http.ServeMux, up Upstream, collector *metrics.Collector, mw ...httpx.Middleware) {
	prefix := "/api/" + up.Name
	handler := http.StripPrefix(prefix, New(up, collector))
	mux.Handle(prefix+"/", httpx.Chain(handler, mw...))
}
