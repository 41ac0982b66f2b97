package httpx

import "net/http"

// RoleAdmin always satisfies RequireRole, whatever role a route demands.
const RoleAdmin = "admin"

// RequireRole allows the request through when the authenticated role
// matches one of the required roles, or is admin.
func RequireRole(required ...string) Middleware {
	want := make(map[string]struct{}, len(required))
	for _, r := range required {
		want[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := want[role]; ok {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
			WriteError(w, http.StatusForbidden, "forbidden", "insufficient role")
		})
	}
}
