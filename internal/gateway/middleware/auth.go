package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/petcuddles/pet-cuddles/internal/shared/utils"
)

type contextKey string

const (
	ContextKeyUserId contextKey = "user_id"
	ContextKeyRole   contextKey = "role"
	ContextKeyToken  contextKey = "token"
)

type AuthMiddleWare struct {
	jwtSecret string
}

// NewAuthMiddleware creates an AuthMiddleWare verifying HS256 tokens signed
// with jwtSecret.
func NewAuthMiddleware(jwtSecret string) *AuthMiddleWare {
	return &AuthMiddleWare{jwtSecret: jwtSecret}
}

// RequireAuth rejects requests without a valid bearer token. The token is
// read from the Authorization header, or from the "token" query parameter
// for websocket upgrades where browsers cannot set headers. On success the
// user id, role and the raw token are stored in the request context.
func (m *AuthMiddleWare) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			tokenStr = r.URL.Query().Get("token")
		}

		if tokenStr == "" {
			http.Error(w, `{"error": "missing or invalid authorization"}`, http.StatusUnauthorized)
			return
		}

		claims, err := utils.ValidateToken(tokenStr, m.jwtSecret)
		if err != nil {
			http.Error(w, `{"error": "invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUserId, claims.UserID)
		ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)
		ctx = context.WithValue(ctx, ContextKeyToken, tokenStr)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole must run after RequireAuth.
func (m *AuthMiddleWare) RequireRole(next http.Handler, roles ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value(ContextKeyRole).(string)
		if !slices.Contains(roles, role) {
			http.Error(w, `{"error": "forbidden"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserID returns the authenticated user id stored by RequireAuth.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ContextKeyUserId).(uuid.UUID)
	return id, ok
}

// Token returns the raw bearer token stored by RequireAuth.
func Token(ctx context.Context) string {
	tok, _ := ctx.Value(ContextKeyToken).(string)
	return tok
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
