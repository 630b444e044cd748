package intercept

import (
	"net/http"
)

// Middleware pushes a fresh interceptor from newInterceptor into the context
// of every request it serves.
func Middleware(scope *Scope, newInterceptor Factory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := scope.Push(r.Context(), newInterceptor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
