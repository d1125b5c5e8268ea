package dikernel

import "net/http"

// ScopeMiddleware opens a scope for every request and disposes it once the
// handler returns. Handlers resolve scoped components with
// ResolveContext(r.Context(), ...).
func ScopeMiddleware(k *Kernel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, ctx := k.BeginScope(r.Context())
			defer func() {
				if err := scope.Dispose(); err != nil {
					k.logger.Error("Failed to dispose request scope", "path", r.URL.Path, "error", err)
				}
			}()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
