package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/service"
)

type stubAuthenticator struct {
	identity service.Identity
	err      error

	gotToken string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (service.Identity, error) {
	s.gotToken = token
	if s.err != nil {
		return service.Identity{}, s.err
	}
	return s.identity, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequireAuthRejectsBadToken(t *testing.T) {
	auth := &stubAuthenticator{err: domain.E(domain.KindUnauthorized, "invalid session token")}
	mw := NewAuthMiddleware(auth, discardLogger())

	handler := mw.requireAuth(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if auth.gotToken != "bogus" {
		t.Fatalf("token not forwarded, got %q", auth.gotToken)
	}
}

func TestRequireAuthStripsBearerPrefix(t *testing.T) {
	auth := &stubAuthenticator{identity: service.Identity{PublicKey: "wallet", Roles: []domain.Role{domain.RoleUser}}}
	mw := NewAuthMiddleware(auth, discardLogger())

	var got service.Identity
	handler := mw.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		got, _ = identityFrom(r)
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("Authorization", "bearer token-123")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if auth.gotToken != "token-123" {
		t.Fatalf("expected the bare token, got %q", auth.gotToken)
	}
	if got.PublicKey != "wallet" {
		t.Fatalf("identity not stored on the context: %+v", got)
	}
}

func TestRequireRole(t *testing.T) {
	auth := &stubAuthenticator{identity: service.Identity{PublicKey: "wallet", Roles: []domain.Role{domain.RoleUser}}}
	mw := NewAuthMiddleware(auth, discardLogger())

	handler := mw.requireRole(domain.RoleRancher, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/animals/build", nil)
	req.Header.Set("Authorization", "Bearer token-123")
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without the role, got %d", rec.Code)
	}

	auth.identity.Roles = append(auth.identity.Roles, domain.RoleRancher)
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with the role, got %d", rec.Code)
	}
}

func TestStatusForKind(t *testing.T) {
	cases := []struct {
		kind domain.Kind
		want int
	}{
		{domain.KindBadRequest, http.StatusBadRequest},
		{domain.KindUnauthorized, http.StatusUnauthorized},
		{domain.KindForbidden, http.StatusForbidden},
		{domain.KindNotFound, http.StatusNotFound},
		{domain.KindConflict, http.StatusConflict},
		{domain.KindPreconditionFailed, http.StatusPreconditionFailed},
		{domain.KindExpired, http.StatusBadRequest},
		{domain.KindTransactionFailed, http.StatusBadRequest},
		{domain.KindNetwork, http.StatusBadGateway},
		{domain.KindReconciliationDrift, http.StatusInternalServerError},
		{domain.KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForKind(tc.kind); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.kind, tc.want, got)
		}
	}
}
