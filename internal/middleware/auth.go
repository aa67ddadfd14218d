package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/keurgui/access-gateway-go/internal/errors"
	"github.com/keurgui/access-gateway-go/internal/httputil"
	"github.com/keurgui/access-gateway-go/internal/model"
)

type contextKey string

const SessionContextKey contextKey = "session"

// GetSession returns the authenticated session, or nil outside the auth
// middleware.
func GetSession(ctx context.Context) *model.Session {
	if session, ok := ctx.Value(SessionContextKey).(*model.Session); ok {
		return session
	}
	return nil
}

// SessionResolver turns a bearer token into a live session.
type SessionResolver interface {
	Authenticate(ctx context.Context, token string) (*model.Session, error)
}

type AuthMiddleware struct {
	sessions SessionResolver
}

func NewAuthMiddleware(sessions SessionResolver) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		session, err := m.sessions.Authenticate(r.Context(), token)
		if err != nil {
			if apperrors.IsAuth(err) {
				log.Warn().Msg("auth middleware: invalid token attempt")
			} else {
				log.Error().Err(err).Msg("auth middleware: session lookup failed")
			}
			httputil.WriteError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken reads the bearer token, falling back to a query parameter
// for EventSource connections that cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return r.URL.Query().Get("token")
}
