package solana

import (
	"context"

	"github.com/solranch/backend/internal/domain"
)

// ConfirmState is the outcome of checking a signature against its blockhash
// window.
type ConfirmState string

const (
	ConfirmPending   ConfirmState = "pending"
	ConfirmFinalized ConfirmState = "finalized"
	ConfirmFailed    ConfirmState = "failed"
	ConfirmExpired   ConfirmState = "expired"
)

// ConfirmResult reports how a submitted transaction resolved.
type ConfirmResult struct {
	State  ConfirmState
	Reason string // program error text when State == ConfirmFailed
}

// RanchAccount is the borsh-decoded on-chain ranch record.
type RanchAccount struct {
	Authority   PublicKey
	Name        string
	Country     uint8
	IsVerified  bool
	AnimalCount uint64
	Bump        uint8
}

// VerifierAccount is the borsh-decoded on-chain verifier record.
type VerifierAccount struct {
	Authority PublicKey
	Name      string
	IsActive  bool
	Bump      uint8
}

// AnimalAccount is the borsh-decoded on-chain animal record.
type AnimalAccount struct {
	ID               uint64
	Owner            PublicKey
	OriginRanch      PublicKey
	IDChip           string
	Specie           string
	Breed            string
	BirthDate        int64
	IsVerified       bool
	AssignedVerifier PublicKey
	LastSalePrice    uint64
	SalePrice        *uint64    `bin:"optional"`
	AllowedBuyer     *PublicKey `bin:"optional"`
	Bump             uint8
}

// Gateway abstracts the ledger RPC node. Fetch methods return errors of kind
// NotFound when the account does not exist and NetworkError for transport
// faults; callers rely on the distinction during reconciliation.
type Gateway interface {
	// LatestCommitment returns a fresh blockhash handle to build against.
	LatestCommitment(ctx context.Context) (domain.Commitment, error)

	// CurrentBlockHeight returns the node's view of the chain tip height.
	CurrentBlockHeight(ctx context.Context) (uint64, error)

	// ConfirmSignature resolves a transaction signature against the
	// commitment it was built with. It reports Expired only once the chain
	// has advanced past the commitment's last valid height without the
	// transaction landing.
	ConfirmSignature(ctx context.Context, signature string, commitment domain.Commitment) (ConfirmResult, error)

	FetchRanch(ctx context.Context, address string) (*RanchAccount, error)
	FetchVerifier(ctx context.Context, address string) (*VerifierAccount, error)
	FetchAnimal(ctx context.Context, address string) (*AnimalAccount, error)

	// SubmitTransaction sends a fully signed transaction and returns its
	// signature. Used by admin flows where the service holds the only
	// required key.
	SubmitTransaction(ctx context.Context, serialized []byte) (string, error)
}
