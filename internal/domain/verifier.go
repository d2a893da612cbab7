package domain

import "time"

// Verifier mirrors an on-chain verifier account.
type Verifier struct {
	PDA       string
	Authority string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VerifierFilter narrows verifier listings.
type VerifierFilter struct {
	Active *bool
	Page   int
	Limit  int
}

// VerifierListResult captures paginated verifier list results.
type VerifierListResult struct {
	Items []Verifier
	Total int64
}
