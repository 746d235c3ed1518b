package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/rs/xid"
)

// CookieName is the cookie carrying the scope token.
const CookieName = "scope"

type contextKey string

const scopeKey contextKey = "scope"

// ScopeTokens signs and checks scope cookies. TokenService is the real one.
type ScopeTokens interface {
	Generate(scope string) (string, error)
	Validate(token string) (string, error)
}

var _ ScopeTokens = (*TokenService)(nil)

// internalErrorBody matches the handlers' ErrorResponse for a 500.
const internalErrorBody = `{"error":"internal_error","message":"An internal error occurred"}`

// ClientScope makes sure every request has a scope.
//
// A valid cookie is kept. A missing, expired or forged one is replaced by
// a brand new scope, which means that client starts logged out. Either way
// the cookie is re-issued so its lifetime slides forward.
func ClientScope(tokens ScopeTokens, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := ""
			if c, err := r.Cookie(CookieName); err == nil {
				if s, err := tokens.Validate(c.Value); err == nil {
					scope = s
				} else {
					logger.Debug("discarding scope cookie", slog.String("error", err.Error()))
				}
			}
			if scope == "" {
				scope = xid.New().String()
			}

			token, err := tokens.Generate(scope)
			if err != nil {
				logger.Error("issuing scope cookie", slog.String("error", err.Error()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				if _, err := io.WriteString(w, internalErrorBody); err != nil {
					logger.Debug("writing error response", slog.String("error", err.Error()))
				}
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   int(ScopeLifetime.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				// Secure: true, // enable behind HTTPS
			})

			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
		})
	}
}

// WithScope returns a context carrying scope. Handler tests use it to
// skip the cookie round trip.
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// ScopeFromContext returns the scope set by ClientScope.
func ScopeFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(scopeKey).(string)
	return s, ok && s != ""
}
