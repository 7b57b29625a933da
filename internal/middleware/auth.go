package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"library-lending/internal/model"
	"library-lending/internal/service"
)

type accessVerifier interface {
	VerifyAccess(tokenString string) (service.Token, error)
}

type principalResolver interface {
	Resolve(ctx context.Context, subject string) (model.Principal, error)
}

type contextKey struct{ name string }

var principalContextKey = &contextKey{name: "principal"}

// AuthMiddleware attaches a principal to requests that carry a valid access token. It never
// rejects a request; Authorize decides what an anonymous request may reach.
type AuthMiddleware struct {
	tokens   accessVerifier
	resolver principalResolver
}

func NewAuthMiddleware(tokens accessVerifier, resolver principalResolver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, resolver: resolver}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		token, err := m.tokens.VerifyAccess(raw)
		if err != nil {
			slog.Debug("bearer token rejected", "path", r.URL.Path, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		principal, err := m.resolver.Resolve(r.Context(), token.Subject)
		if err != nil {
			if !errors.Is(err, model.ErrUserNotFound) {
				slog.Warn("principal lookup failed", "subject", token.Subject, "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		notePrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func WithPrincipal(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(model.Principal)
	return principal, ok
}

func writeUnauthorized(w http.ResponseWriter, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	if code == "FORBIDDEN" {
		w.WriteHeader(http.StatusForbidden)
	} else {
		w.Header().Set("WWW-Authenticate", `Bearer realm="library"`)
		w.WriteHeader(http.StatusUnauthorized)
	}

	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
