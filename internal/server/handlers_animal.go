package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/service"
)

// AnimalHandlers exposes the animal registration, co-signing and sale
// endpoints.
type AnimalHandlers struct {
	logger  *slog.Logger
	animals *service.AnimalService
	mw      *AuthMiddleware
}

// NewAnimalHandlers constructs an AnimalHandlers instance.
func NewAnimalHandlers(logger *slog.Logger, animals *service.AnimalService, mw *AuthMiddleware) *AnimalHandlers {
	return &AnimalHandlers{logger: logger, animals: animals, mw: mw}
}

func (h *AnimalHandlers) handleAnimals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	h.list(w, r)
}

// handleAnimalSubtree dispatches /animals/... paths: the registration flow
// endpoints, per-animal operation subroutes and direct lookups.
func (h *AnimalHandlers) handleAnimalSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/animals/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case rest == "build":
		h.post(w, r, h.mw.requireRole(domain.RoleRancher, h.buildRegister))
	case rest == "sign":
		h.post(w, r, h.mw.requireRole(domain.RoleRancher, h.sign))
	case rest == "pending":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.mw.requireRole(domain.RoleVerifier, h.pending)(w, r)
	case len(parts) == 3 && parts[0] == "pending" && parts[2] == "tx":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		id := parts[1]
		h.mw.requireRole(domain.RoleVerifier, func(w http.ResponseWriter, r *http.Request) {
			h.pendingTx(w, r, id)
		})(w, r)
	case rest == "confirm":
		h.post(w, r, h.mw.requireAuth(h.confirmRegister))
	case len(parts) == 3:
		h.dispatchOperation(w, r, parts[0], parts[1], parts[2])
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.get(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *AnimalHandlers) post(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	next(w, r)
}

// dispatchOperation routes /animals/{pda}/{op}/{build|confirm}.
func (h *AnimalHandlers) dispatchOperation(w http.ResponseWriter, r *http.Request, pda, op, step string) {
	type opHandlers struct {
		build   func(http.ResponseWriter, *http.Request, string)
		confirm func(http.ResponseWriter, *http.Request, string)
	}

	ops := map[string]opHandlers{
		"approve":  {h.buildApprove, h.confirmApprove},
		"cancel":   {h.buildCancel, h.confirmCancel},
		"price":    {h.buildPrice, h.confirmPrice},
		"buyer":    {h.buildBuyer, h.confirmBuyer},
		"purchase": {h.buildPurchase, h.confirmPurchase},
	}

	handlers, ok := ops[op]
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var fn func(http.ResponseWriter, *http.Request, string)
	switch step {
	case "build":
		fn = handlers.build
	case "confirm":
		fn = handlers.confirm
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	h.post(w, r, h.mw.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, pda)
	}))
}

type buildAnimalRequest struct {
	VerifierPDA string `json:"verifierPda"`
	ChipID      string `json:"chipId"`
	Specie      string `json:"specie"`
	Breed       string `json:"breed"`
	BirthDate   int64  `json:"birthDate"`
}

func (h *AnimalHandlers) buildRegister(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r)

	var payload buildAnimalRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.VerifierPDA == "" {
		writeError(w, http.StatusBadRequest, "verifierPda is required")
		return
	}

	res, err := h.animals.BuildRegister(r.Context(), identity.PublicKey, service.RegisterAnimalInput{
		VerifierPDA: payload.VerifierPDA,
		ChipID:      payload.ChipID,
		Specie:      payload.Specie,
		Breed:       payload.Breed,
		BirthDate:   payload.BirthDate,
	})
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBuildResponse(res))
}

type signRequest struct {
	PendingID   string `json:"pendingId"`
	Transaction string `json:"transaction"`
}

func (h *AnimalHandlers) sign(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r)

	var payload signRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.PendingID == "" || payload.Transaction == "" {
		writeError(w, http.StatusBadRequest, "pendingId and transaction are required")
		return
	}

	pending, err := h.animals.AddRancherSignature(r.Context(), identity.PublicKey, payload.PendingID, payload.Transaction)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPendingResponse(pending))
}

func (h *AnimalHandlers) pending(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r)
	query := r.URL.Query()

	page, err := h.animals.PendingForVerifier(r.Context(), identity.PublicKey,
		parseInt(query.Get("page"), 1), parseInt(query.Get("limit"), 50))
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}

	items := make([]pendingResponse, 0, len(page.Items))
	for _, p := range page.Items {
		items = append(items, toPendingResponse(p))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": toPaginationResponse(page.Pagination),
	})
}

func (h *AnimalHandlers) pendingTx(w http.ResponseWriter, r *http.Request, id string) {
	identity, _ := identityFrom(r)

	envelope, err := h.animals.TransactionForVerifier(r.Context(), identity.PublicKey, id)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"pendingId":   envelope.PendingID,
		"animalPda":   envelope.AnimalPDA,
		"transaction": envelope.Transaction,
		"commitment":  toCommitmentResponse(envelope.Commitment),
	})
}

func (h *AnimalHandlers) confirmRegister(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r)

	payload, ok := h.decodeConfirm(w, r)
	if !ok {
		return
	}

	animal, err := h.animals.ConfirmRegister(r.Context(), identity.PublicKey, payload)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toAnimalResponse(animal))
}

func (h *AnimalHandlers) decodeConfirm(w http.ResponseWriter, r *http.Request) (service.ConfirmInput, bool) {
	var payload confirmRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return service.ConfirmInput{}, false
	}
	if payload.TxSignature == "" {
		writeError(w, http.StatusBadRequest, "txSignature is required")
		return service.ConfirmInput{}, false
	}
	return service.ConfirmInput{
		PendingID:   payload.PendingID,
		SubjectPDA:  payload.SubjectPDA,
		TxSignature: payload.TxSignature,
		Commitment:  commitmentFromRequest(payload.Commitment),
	}, true
}

func (h *AnimalHandlers) buildApprove(w http.ResponseWriter, r *http.Request, pda string) {
	identity, _ := identityFrom(r)
	res, err := h.animals.BuildApprove(r.Context(), identity.PublicKey, pda)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBuildResponse(res))
}

func (h *AnimalHandlers) confirmApprove(w http.ResponseWriter, r *http.Request, pda string) {
	identity, _ := identityFrom(r)
	payload, ok := h.decodeConfirm(w, r)
	if !ok {
		return
	}
	if payload.SubjectPDA == "" {
		payload.SubjectPDA = pda
	}

	animal, err := h.animals.ConfirmApprove(r.Context(), identity.PublicKey, payload)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toAnimalResponse(animal))
}

func (h *AnimalHandlers) buildCancel(w http.ResponseWriter, r *http.Request, pda string) {
	identity, _ := identityFrom(r)
	res, err := h.animals.BuildCancel(r.Context(), identity.PublicKey, pda)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBuildResponse(res))
}

func (h *AnimalHandlers) confirmCancel(w http.ResponseWriter, r *http.Request, pda string) {
	identity, _ := identityFrom(r)
	payload, ok := h.decodeConfirm(w, r)
	if !ok {
		return
	}
	if payload.SubjectPDA == "" {
		payload.SubjectPDA = pda
	}

	if err := h.animals.ConfirmCancel(r.Context(), identity.PublicKey, payload); err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "animalPda": pda})
}

type priceRequest struct {
	Price uint64 `json:"price"`
}

func (h *AnimalHandlers) buildPrice(w http.ResponseWriter, r *http.Request, pda string) {
	identity, _ := identityFrom(r)

	var payload priceRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	res, err := h.animals.BuildSetPrice(r.Context(), identity.PublicKey, pda, payload.Price)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBuildResponse(res))
}

type buyerRequest struct {
	Buyer string `json:"buyer"`
}

func (h *AnimalHandlers) buildBuyer(w http.ResponseWriter, r *http.Request, pda string) {
	identity, _ := identityFrom(r)

	var payload buyerRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.Buyer == "" {
		writeError(w, http.StatusBadRequest, "buyer is required")
		return
	}

	res, err := h.animals.BuildSetBuyer(r.Context(), identity.PublicKey, pda, payload.Buyer)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBuildResponse(res))
}

func (h *AnimalHandlers) buildPurchase(w http.ResponseWriter, r *http.Request, pda string) {
	identity, _ := identityFrom(r)
	res, err := h.animals.BuildPurchase(r.Context(), identity.PublicKey, pda)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toBuildResponse(res))
}

func (h *AnimalHandlers) confirmPrice(w http.ResponseWriter, r *http.Request, pda string) {
	h.confirmMutation(w, r, pda, domain.TxKindSetPrice)
}

func (h *AnimalHandlers) confirmBuyer(w http.ResponseWriter, r *http.Request, pda string) {
	h.confirmMutation(w, r, pda, domain.TxKindSetBuyer)
}

func (h *AnimalHandlers) confirmPurchase(w http.ResponseWriter, r *http.Request, pda string) {
	h.confirmMutation(w, r, pda, domain.TxKindPurchase)
}

func (h *AnimalHandlers) confirmMutation(w http.ResponseWriter, r *http.Request, pda string, kind domain.TxKind) {
	payload, ok := h.decodeConfirm(w, r)
	if !ok {
		return
	}
	payload.SubjectPDA = pda

	animal, err := h.animals.ConfirmMutation(r.Context(), kind, payload)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toAnimalResponse(animal))
}

func (h *AnimalHandlers) get(w http.ResponseWriter, r *http.Request, pda string) {
	animal, err := h.animals.Get(r.Context(), pda)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}
	respondJSON(w, http.StatusOK, toAnimalResponse(animal))
}

func (h *AnimalHandlers) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.AnimalFilter{
		Specie:   query.Get("specie"),
		Breed:    query.Get("breed"),
		RanchPDA: query.Get("ranch"),
		Owner:    query.Get("owner"),
		OnSale:   parseBoolPtr(query.Get("onSale")),
		MinPrice: parseUintPtr(query.Get("minPrice")),
		MaxPrice: parseUintPtr(query.Get("maxPrice")),
		Page:     parseInt(query.Get("page"), 1),
		Limit:    parseInt(query.Get("limit"), 50),
	}

	page, err := h.animals.List(r.Context(), filter)
	if err != nil {
		writeDomainError(h.logger, w, err)
		return
	}

	items := make([]animalResponse, 0, len(page.Items))
	for _, animal := range page.Items {
		items = append(items, toAnimalResponse(animal))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": toPaginationResponse(page.Pagination),
	})
}
