package domain

import "time"

// Animal mirrors an on-chain animal account. Seq is the ranch counter value
// at creation and never changes; the PDA is derived from it.
type Animal struct {
	PDA              string
	Seq              uint64
	Owner            string
	RanchPDA         string
	ChipID           string
	Specie           string
	Breed            string
	BirthDate        int64 // unix seconds, as stored on chain
	IsVerified       bool
	AssignedVerifier string
	SalePrice        *uint64 // lamports; nil when not listed
	LastSalePrice    *uint64
	AllowedBuyer     string // empty when no buyer is designated
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OnSale reports whether the animal is currently listed.
func (a Animal) OnSale() bool { return a.SalePrice != nil }

// AnimalFilter narrows animal listings.
type AnimalFilter struct {
	Specie   string
	Breed    string
	RanchPDA string
	Owner    string
	OnSale   *bool
	MinPrice *uint64
	MaxPrice *uint64
	Page     int
	Limit    int
}

// AnimalListResult captures paginated animal list results.
type AnimalListResult struct {
	Items []Animal
	Total int64
}
