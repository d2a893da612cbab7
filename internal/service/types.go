package service

import (
	"context"
	"time"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/solana"
)

// AuthStore is the storage contract required by the auth service.
type AuthStore interface {
	GetUser(ctx context.Context, pubkey string) (domain.User, error)
	CreateUser(ctx context.Context, user domain.User) error
	UpdateUserNonce(ctx context.Context, pubkey, nonce string) error
	CreateSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, token string) (domain.Session, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

// RanchStore is the storage contract required by the ranch service.
type RanchStore interface {
	CreateRanch(ctx context.Context, ranch domain.Ranch) error
	GetRanchByPDA(ctx context.Context, pda string) (domain.Ranch, error)
	GetRanchByAuthority(ctx context.Context, authority string) (domain.Ranch, error)
	UpdateRanch(ctx context.Context, ranch domain.Ranch) error
	ListRanches(ctx context.Context, filter domain.RanchFilter) (domain.RanchListResult, error)
	AddUserRole(ctx context.Context, pubkey string, role domain.Role) error
}

// VerifierStore is the storage contract required by the verifier service.
type VerifierStore interface {
	CreateVerifier(ctx context.Context, v domain.Verifier) error
	GetVerifierByPDA(ctx context.Context, pda string) (domain.Verifier, error)
	GetVerifierByAuthority(ctx context.Context, authority string) (domain.Verifier, error)
	SetVerifierActive(ctx context.Context, pda string, active bool) error
	ListVerifiers(ctx context.Context, filter domain.VerifierFilter) (domain.VerifierListResult, error)
	AddUserRole(ctx context.Context, pubkey string, role domain.Role) error
}

// AnimalStore is the storage contract required by the animal service.
type AnimalStore interface {
	CreateAnimal(ctx context.Context, a domain.Animal) error
	GetAnimalByPDA(ctx context.Context, pda string) (domain.Animal, error)
	UpdateAnimal(ctx context.Context, a domain.Animal) error
	DeleteAnimal(ctx context.Context, pda string) error
	ListAnimals(ctx context.Context, filter domain.AnimalFilter) (domain.AnimalListResult, error)

	GetRanchByPDA(ctx context.Context, pda string) (domain.Ranch, error)
	GetRanchByAuthority(ctx context.Context, authority string) (domain.Ranch, error)
	UpdateRanch(ctx context.Context, ranch domain.Ranch) error
	GetVerifierByPDA(ctx context.Context, pda string) (domain.Verifier, error)

	CreatePending(ctx context.Context, p domain.PendingTransaction) error
	GetPending(ctx context.Context, id string) (domain.PendingTransaction, error)
	GetLivePendingByAnimalPDA(ctx context.Context, pda string) (domain.PendingTransaction, error)
	UpdatePending(ctx context.Context, p domain.PendingTransaction) error
	ArchivePending(ctx context.Context, id string, status domain.TxStatus, errorMessage, txSignature string) error
	ListPendings(ctx context.Context, filter domain.PendingFilter) (domain.PendingListResult, error)
}

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	PublicKey string
	Roles     []domain.Role
}

// HasRole reports whether the identity carries the given role.
func (i Identity) HasRole(role domain.Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// BuildResult is the common output of every transaction builder: an unsigned
// payload for the client plus the commitment it must be confirmed against.
type BuildResult struct {
	PendingID   string // empty for flows without a pending row
	SubjectPDA  string
	Transaction string
	Commitment  domain.Commitment
}

// RegisterAnimalInput is the inbound payload for building an animal
// registration.
type RegisterAnimalInput struct {
	VerifierPDA string
	ChipID      string
	Specie      string
	Breed       string
	BirthDate   int64
}

// RegisterRanchInput is the inbound payload for building a ranch
// registration.
type RegisterRanchInput struct {
	Name    string
	Country domain.Country
}

// ConfirmInput identifies a submitted transaction to reconcile. Commitment is
// required for flows without a pending row; pending-row flows use the stored
// handle.
type ConfirmInput struct {
	PendingID   string
	SubjectPDA  string
	TxSignature string
	Commitment  domain.Commitment
}

// PaginationMeta captures pagination metadata returned to API clients.
type PaginationMeta struct {
	Page       int
	PageSize   int
	TotalItems int64
	TotalPages int
}

func paginationMeta(page, limit int, total int64) PaginationMeta {
	if limit <= 0 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	return PaginationMeta{Page: page, PageSize: limit, TotalItems: total, TotalPages: pages}
}

func confirmResultError(res solana.ConfirmResult) error {
	switch res.State {
	case solana.ConfirmFinalized:
		return nil
	case solana.ConfirmFailed:
		return domain.Ef(domain.KindTransactionFailed, "transaction failed on chain: %s", res.Reason)
	case solana.ConfirmExpired:
		return domain.E(domain.KindExpired, "transaction expired without landing")
	default:
		return domain.E(domain.KindPreconditionFailed, "transaction is not finalized yet")
	}
}
