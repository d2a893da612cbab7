package domain

import "time"

// TxKind names the ledger operation a pending transaction performs.
type TxKind string

const (
	TxKindRegisterAnimal TxKind = "register_animal"
	TxKindApproveAnimal  TxKind = "approve_animal"
	TxKindCancelAnimal   TxKind = "cancel_animal"
	TxKindRegisterRanch  TxKind = "register_ranch"
	TxKindSetPrice       TxKind = "set_price"
	TxKindSetBuyer       TxKind = "set_buyer"
	TxKindPurchase       TxKind = "purchase"
)

// TxStatus is the co-signing state of a pending transaction.
type TxStatus string

const (
	StatusAwaitingRancherSignature  TxStatus = "awaiting_rancher_signature"
	StatusAwaitingVerifierSignature TxStatus = "awaiting_verifier_signature"
	StatusReconciled                TxStatus = "reconciled"
	StatusFailed                    TxStatus = "failed"
	StatusExpired                   TxStatus = "expired"
)

// Terminal reports whether the status is absorbing.
func (s TxStatus) Terminal() bool {
	switch s {
	case StatusReconciled, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// Commitment is the blockhash handle a transaction was built against. A
// transaction not landed by LastValidBlockHeight can never land.
type Commitment struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// PendingTransaction tracks one in-flight co-signed operation. At most one
// non-archived row may exist per subject PDA.
type PendingTransaction struct {
	ID             string
	Kind           TxKind
	AnimalPDA      string
	RancherPubkey  string
	VerifierPubkey string
	SerializedTx   string // base64, updated as signatures accumulate
	Commitment     Commitment
	Status         TxStatus
	ErrorMessage   string
	TxSignature    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ArchivedAt     *time.Time
}

// PendingFilter narrows pending-transaction listings.
type PendingFilter struct {
	VerifierPubkey string
	RancherPubkey  string
	Status         TxStatus
	Page           int
	Limit          int
}

// PendingListResult captures paginated pending-transaction list results.
type PendingListResult struct {
	Items []PendingTransaction
	Total int64
}
