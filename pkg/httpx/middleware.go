// Package httpx holds the HTTP plumbing shared by all gateway handlers:
// middleware chaining, JSON responses, bearer-token authentication, role
// checks and per-key rate limiting.
package httpx

import "net/http"

// Middleware wraps an http.Handler with extra behaviour.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to h so the first listed runs outermost. This
// keeps route registration readable: authn before authz before the handler.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
