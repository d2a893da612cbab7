package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/service"
)

// RanchHandlers exposes ranch registration and listing endpoints.
type RanchHandlers struct {
	logger  *slog.Logger
	ranches *service.RanchService
	mw      *AuthMiddleware
}

// NewRanchHandlers constructs a RanchHandlers instance.
func NewRanchHandlers(logger *slog.Logger, ranches *service.RanchService, mw *AuthMiddleware) *RanchHandlers {
	return &RanchHandlers{logger: logger, ranches: ranches, mw: mw}
}

func (h *RanchHandlers) handleRanches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	h.list(w, r)
}

// handleRanchSubtree dispatches /ranches/... paths: build, confirm, mine and
// {pda}/verification.
func (h *RanchHandlers) handleRanchSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ranches/"), "/")
	switch {
	case rest == "build":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		h.mw.requireAuth(h.build)(w, r)
	case rest == "confirm":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		h.mw.requireAuth(h.confirm)(w, r)
	case rest == "mine":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.mw.requireAuth(h.mine)(w, r)
	case strings.HasSuffix(rest, "/verification"):
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, http.MethodPatch)
			return
		}
		pda := strings.TrimSuffix(rest, "/verification")
		h.mw.requireRole(domain.RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
			h.setVerification(w, r, pda)
		})(w, r)
	case rest != "" && !strings.Contains(rest, "/"):
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.get(w, r, rest)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type buildRanchRequest struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

func (h *RanchHandlers) build(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r)

	var payload buildRanchRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	res, err := h.ranches.BuildRegistration(r.Context(), identity.PublicKey, service.RegisterRanchInput{
		Name:    payload.Name,
		Country: domain.ParseCountry(payload.Country),
	})
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBuildResponse(res))
}

type confirmRequest struct {
	PendingID   string             `json:"pendingId,omitempty"`
	SubjectPDA  string             `json:"subjectPda,omitempty"`
	TxSignature string             `json:"txSignature"`
	Commitment  commitmentResponse `json:"commitment,omitempty"`
}

func (h *RanchHandlers) confirm(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r)

	var payload confirmRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.TxSignature == "" {
		writeError(w, http.StatusBadRequest, "txSignature is required")
		return
	}

	ranch, err := h.ranches.ConfirmRegistration(r.Context(), identity.PublicKey, service.ConfirmInput{
		TxSignature: payload.TxSignature,
		Commitment:  commitmentFromRequest(payload.Commitment),
	})
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRanchResponse(ranch))
}

func (h *RanchHandlers) mine(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r)
	ranch, err := h.ranches.Mine(r.Context(), identity.PublicKey)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRanchResponse(ranch))
}

func (h *RanchHandlers) get(w http.ResponseWriter, r *http.Request, pda string) {
	ranch, err := h.ranches.Get(r.Context(), pda)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRanchResponse(ranch))
}

func (h *RanchHandlers) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.RanchFilter{
		Name:     query.Get("name"),
		Verified: parseBoolPtr(query.Get("verified")),
		Page:     parseInt(query.Get("page"), 1),
		Limit:    parseInt(query.Get("limit"), 50),
	}
	if c := query.Get("country"); c != "" {
		country := domain.ParseCountry(c)
		filter.Country = &country
	}

	page, err := h.ranches.List(r.Context(), filter)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}

	items := make([]ranchResponse, 0, len(page.Items))
	for _, ranch := range page.Items {
		items = append(items, toRanchResponse(ranch))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": toPaginationResponse(page.Pagination),
	})
}

type verificationRequest struct {
	Verified bool `json:"verified"`
}

func (h *RanchHandlers) setVerification(w http.ResponseWriter, r *http.Request, pda string) {
	var payload verificationRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	ranch, err := h.ranches.SetVerification(r.Context(), pda, payload.Verified)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRanchResponse(ranch))
}
