package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/service"
)

// Authenticator resolves bearer tokens to caller identities.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (service.Identity, error)
}

type contextKey string

const identityKey contextKey = "identity"

// identityFrom returns the authenticated identity stored on the request
// context by requireAuth.
func identityFrom(r *http.Request) (service.Identity, bool) {
	identity, ok := r.Context().Value(identityKey).(service.Identity)
	return identity, ok
}

type AuthMiddleware struct {
	auth   Authenticator
	logger *slog.Logger
}

// NewAuthMiddleware constructs the bearer-token middleware shared by the
// handler groups.
func NewAuthMiddleware(auth Authenticator, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, logger: logger}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireAuth resolves the bearer token and stores the identity on the
// request context.
func (m *AuthMiddleware) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.auth.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			writeDomainError(m.logger, w, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next(w, r.WithContext(ctx))
	}
}

// requireRole layers a role check on top of requireAuth.
func (m *AuthMiddleware) requireRole(role domain.Role, next http.HandlerFunc) http.HandlerFunc {
	return m.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityFrom(r)
		if !identity.HasRole(role) {
			writeDomainError(m.logger, w, domain.Ef(domain.KindForbidden, "%s role required", role))
			return
		}
		next(w, r)
	})
}
