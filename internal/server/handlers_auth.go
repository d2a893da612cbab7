package server

import (
	"log/slog"
	"net/http"

	"github.com/solranch/backend/internal/service"
)

// AuthHandlers exposes the wallet challenge-response endpoints.
type AuthHandlers struct {
	logger *slog.Logger
	auth   *service.AuthService
	mw     *AuthMiddleware
}

// NewAuthHandlers constructs an AuthHandlers instance.
func NewAuthHandlers(logger *slog.Logger, auth *service.AuthService, mw *AuthMiddleware) *AuthHandlers {
	return &AuthHandlers{logger: logger, auth: auth, mw: mw}
}

type challengeRequest struct {
	PublicKey string `json:"publicKey"`
}

func (h *AuthHandlers) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload challengeRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.PublicKey == "" {
		writeError(w, http.StatusBadRequest, "publicKey is required")
		return
	}

	message, err := h.auth.Challenge(r.Context(), payload.PublicKey)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

type loginRequest struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

func (h *AuthHandlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload loginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.PublicKey == "" || payload.Signature == "" {
		writeError(w, http.StatusBadRequest, "publicKey and signature are required")
		return
	}

	session, err := h.auth.Login(r.Context(), payload.PublicKey, payload.Signature)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"token":     session.Token,
		"expiresAt": formatTime(session.ExpiresAt),
	})
}

func (h *AuthHandlers) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	h.mw.requireAuth(h.profile)(w, r)
}

func (h *AuthHandlers) profile(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r)
	user, err := h.auth.Profile(r.Context(), identity)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}

	roles := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, string(role))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"publicKey": user.PublicKey,
		"roles":     roles,
		"createdAt": formatTime(user.CreatedAt),
	})
}
