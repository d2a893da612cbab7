package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/service"
)

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

func parseBoolPtr(value string) *bool {
	if value == "" {
		return nil
	}
	if v, err := strconv.ParseBool(value); err == nil {
		return &v
	}
	return nil
}

func parseUintPtr(value string) *uint64 {
	if value == "" {
		return nil
	}
	if v, err := strconv.ParseUint(value, 10, 64); err == nil {
		return &v
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// --- shared response shapes ---

type commitmentResponse struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

func toCommitmentResponse(c domain.Commitment) commitmentResponse {
	return commitmentResponse{
		Blockhash:            c.Blockhash,
		LastValidBlockHeight: c.LastValidBlockHeight,
	}
}

func commitmentFromRequest(c commitmentResponse) domain.Commitment {
	return domain.Commitment{
		Blockhash:            c.Blockhash,
		LastValidBlockHeight: c.LastValidBlockHeight,
	}
}

type buildResponse struct {
	PendingID   string             `json:"pendingId,omitempty"`
	SubjectPDA  string             `json:"subjectPda"`
	Transaction string             `json:"transaction"`
	Commitment  commitmentResponse `json:"commitment"`
}

func toBuildResponse(res service.BuildResult) buildResponse {
	return buildResponse{
		PendingID:   res.PendingID,
		SubjectPDA:  res.SubjectPDA,
		Transaction: res.Transaction,
		Commitment:  toCommitmentResponse(res.Commitment),
	}
}

type paginationResponse struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

func toPaginationResponse(meta service.PaginationMeta) paginationResponse {
	return paginationResponse{
		Page:       meta.Page,
		PageSize:   meta.PageSize,
		TotalItems: meta.TotalItems,
		TotalPages: meta.TotalPages,
	}
}

type ranchResponse struct {
	PDA         string `json:"pda"`
	Authority   string `json:"authority"`
	Name        string `json:"name"`
	Country     string `json:"country"`
	IsVerified  bool   `json:"isVerified"`
	AnimalCount uint64 `json:"animalCount"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

func toRanchResponse(r domain.Ranch) ranchResponse {
	return ranchResponse{
		PDA:         r.PDA,
		Authority:   r.Authority,
		Name:        r.Name,
		Country:     r.Country.String(),
		IsVerified:  r.IsVerified,
		AnimalCount: r.AnimalCount,
		CreatedAt:   formatTime(r.CreatedAt),
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
}

type verifierResponse struct {
	PDA       string `json:"pda"`
	Authority string `json:"authority"`
	Name      string `json:"name"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func toVerifierResponse(v domain.Verifier) verifierResponse {
	return verifierResponse{
		PDA:       v.PDA,
		Authority: v.Authority,
		Name:      v.Name,
		IsActive:  v.IsActive,
		CreatedAt: formatTime(v.CreatedAt),
	}
}

type animalResponse struct {
	PDA              string  `json:"pda"`
	Seq              uint64  `json:"seq"`
	Owner            string  `json:"owner"`
	RanchPDA         string  `json:"ranchPda"`
	ChipID           string  `json:"chipId"`
	Specie           string  `json:"specie"`
	Breed            string  `json:"breed"`
	BirthDate        int64   `json:"birthDate"`
	IsVerified       bool    `json:"isVerified"`
	AssignedVerifier string  `json:"assignedVerifier,omitempty"`
	SalePrice        *uint64 `json:"salePrice,omitempty"`
	LastSalePrice    *uint64 `json:"lastSalePrice,omitempty"`
	AllowedBuyer     string  `json:"allowedBuyer,omitempty"`
	CreatedAt        string  `json:"createdAt,omitempty"`
	UpdatedAt        string  `json:"updatedAt,omitempty"`
}

func toAnimalResponse(a domain.Animal) animalResponse {
	return animalResponse{
		PDA:              a.PDA,
		Seq:              a.Seq,
		Owner:            a.Owner,
		RanchPDA:         a.RanchPDA,
		ChipID:           a.ChipID,
		Specie:           a.Specie,
		Breed:            a.Breed,
		BirthDate:        a.BirthDate,
		IsVerified:       a.IsVerified,
		AssignedVerifier: a.AssignedVerifier,
		SalePrice:        a.SalePrice,
		LastSalePrice:    a.LastSalePrice,
		AllowedBuyer:     a.AllowedBuyer,
		CreatedAt:        formatTime(a.CreatedAt),
		UpdatedAt:        formatTime(a.UpdatedAt),
	}
}

type pendingResponse struct {
	ID             string             `json:"id"`
	Kind           string             `json:"kind"`
	AnimalPDA      string             `json:"animalPda"`
	RancherPubkey  string             `json:"rancherPubkey"`
	VerifierPubkey string             `json:"verifierPubkey"`
	Status         string             `json:"status"`
	Commitment     commitmentResponse `json:"commitment"`
	CreatedAt      string             `json:"createdAt,omitempty"`
}

func toPendingResponse(p domain.PendingTransaction) pendingResponse {
	return pendingResponse{
		ID:             p.ID,
		Kind:           string(p.Kind),
		AnimalPDA:      p.AnimalPDA,
		RancherPubkey:  p.RancherPubkey,
		VerifierPubkey: p.VerifierPubkey,
		Status:         string(p.Status),
		Commitment:     toCommitmentResponse(p.Commitment),
		CreatedAt:      formatTime(p.CreatedAt),
	}
}
