package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Identity is what a validated bearer token asserts about the caller.
type Identity struct {
	Email string
	Role  string
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (Identity, error)
}

type contextKeyIdentity struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity{}, id)
}

// GetIdentity retrieves the authenticated caller from the context.
func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKeyIdentity{}).(Identity)
	return id, ok
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's identity in the request context otherwise.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", chimw.GetReqID(ctx),
				)
				writeUnauthorized(w, "missing or invalid Authorization header")
				return
			}

			id, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", chimw.GetReqID(ctx),
				)
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized: ` + msg + `"}`))
}

func bearerToken(authHeader string) string {
	parts := strings.SplitN(strings.TrimSpace(authHeader), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
