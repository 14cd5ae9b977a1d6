package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is unexported so only this package can read or write caller
// identities in a request context.
type contextKey string

const callerKey contextKey = "caller"

// RequireCaller enforces a valid bearer token on mutating routes. The token
// may arrive in the Authorization header or the "token" cookie; the decoded
// caller identity is placed in the request context.
func RequireCaller(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := extractCaller(r, tokens)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"valid caller token required"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalCaller decodes the caller identity when a valid token is present
// but never blocks the request. Used on public read routes.
func OptionalCaller(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if caller, err := extractCaller(r, tokens); err == nil && caller != "" {
				r = r.WithContext(context.WithValue(r.Context(), callerKey, caller))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallerFromContext returns the caller identity set by the middleware.
func CallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(callerKey).(string)
	return caller, ok && caller != ""
}

// WithCaller returns a context carrying the caller identity. Test helper.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

func extractCaller(r *http.Request, tokens *TokenService) (string, error) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return tokens.Validate(strings.TrimPrefix(header, "Bearer "))
	}
	cookie, err := r.Cookie("token")
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
