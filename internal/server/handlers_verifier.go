package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/service"
)

// VerifierHandlers exposes verifier management endpoints. Registration and
// status toggling are admin-only.
type VerifierHandlers struct {
	logger    *slog.Logger
	verifiers *service.VerifierService
	mw        *AuthMiddleware
}

// NewVerifierHandlers constructs a VerifierHandlers instance.
func NewVerifierHandlers(logger *slog.Logger, verifiers *service.VerifierService, mw *AuthMiddleware) *VerifierHandlers {
	return &VerifierHandlers{logger: logger, verifiers: verifiers, mw: mw}
}

func (h *VerifierHandlers) handleVerifiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.mw.requireRole(domain.RoleAdmin, h.register)(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleVerifierSubtree dispatches /verifiers/... paths: status and
// {pda}/status.
func (h *VerifierHandlers) handleVerifierSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/verifiers/"), "/")
	switch {
	case rest == "status":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.mw.requireAuth(h.status)(w, r)
	case strings.HasSuffix(rest, "/status"):
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, http.MethodPatch)
			return
		}
		pda := strings.TrimSuffix(rest, "/status")
		h.mw.requireRole(domain.RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
			h.toggle(w, r, pda)
		})(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type registerVerifierRequest struct {
	Authority string `json:"authority"`
	Name      string `json:"name"`
}

func (h *VerifierHandlers) register(w http.ResponseWriter, r *http.Request) {
	var payload registerVerifierRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.Authority == "" {
		writeError(w, http.StatusBadRequest, "authority is required")
		return
	}

	verifier, err := h.verifiers.Register(r.Context(), payload.Authority, payload.Name)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toVerifierResponse(verifier))
}

func (h *VerifierHandlers) toggle(w http.ResponseWriter, r *http.Request, pda string) {
	verifier, err := h.verifiers.ToggleStatus(r.Context(), pda)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toVerifierResponse(verifier))
}

func (h *VerifierHandlers) status(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r)
	verifier, err := h.verifiers.Status(r.Context(), identity.PublicKey)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toVerifierResponse(verifier))
}

func (h *VerifierHandlers) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.VerifierFilter{
		Active: parseBoolPtr(query.Get("active")),
		Page:   parseInt(query.Get("page"), 1),
		Limit:  parseInt(query.Get("limit"), 50),
	}

	page, err := h.verifiers.List(r.Context(), filter)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}

	items := make([]verifierResponse, 0, len(page.Items))
	for _, verifier := range page.Items {
		items = append(items, toVerifierResponse(verifier))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": toPaginationResponse(page.Pagination),
	})
}
