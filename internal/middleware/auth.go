// internal/middleware/auth.go

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/auth"
)

// CookieName carries the session token.
const CookieName = "auth_token"

type ctxKey struct{}

// TokenParser verifies a session token.
type TokenParser interface {
	ParseToken(token string) (uuid.UUID, error)
}

// RequireUser rejects requests without a valid session token, read from the
// auth_token cookie or an Authorization: Bearer header.
func RequireUser(tokens TokenParser) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := requestToken(r)
			if token == "" {
				http.Error(w, "missing session token", http.StatusUnauthorized)
				return
			}
			userID, err := tokens.ParseToken(token)
			if err != nil {
				http.Error(w, "invalid session token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func requestToken(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// WithUserID stores the authenticated user on ctx.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated user, or uuid.Nil outside RequireUser.
func UserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxKey{}).(uuid.UUID)
	return id
}

var _ TokenParser = (*auth.Issuer)(nil)
