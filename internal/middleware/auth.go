package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
)

type contextKey string

const (
	OrgIDKey contextKey = "orgID"
	AuthKey  contextKey = "auth"
)

// AuthInfo contains authenticated user information
type AuthInfo struct {
	UserID string
	OrgID  string
	Email  string
}

// TokenVerifier verifies a Firebase ID token. *auth.Client satisfies this.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthMiddleware validates Firebase Auth tokens
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth rejects requests without a valid Bearer token. The caller's
// organization comes from the "org" custom claim; users without one get a
// personal org scoped to their UID.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing authorization header", http.StatusUnauthorized)
			return
		}

		// Expected format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		decodedToken, err := m.verifier.VerifyIDToken(r.Context(), parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		authInfo := AuthInfo{
			UserID: decodedToken.UID,
			OrgID:  decodedToken.UID,
		}
		if org, ok := decodedToken.Claims["org"].(string); ok && org != "" {
			authInfo.OrgID = org
		}
		if email, ok := decodedToken.Claims["email"].(string); ok {
			authInfo.Email = email
		}

		ctx := context.WithValue(r.Context(), AuthKey, authInfo)
		ctx = context.WithValue(ctx, OrgIDKey, authInfo.OrgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOrgID extracts the organization ID from context
func GetOrgID(ctx context.Context) (string, bool) {
	orgID, ok := ctx.Value(OrgIDKey).(string)
	return orgID, ok
}

// GetAuth retrieves auth info from the request context
func GetAuth(r *http.Request) (AuthInfo, bool) {
	if info, ok := r.Context().Value(AuthKey).(AuthInfo); ok {
		return info, true
	}
	return AuthInfo{}, false
}
