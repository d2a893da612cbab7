package repository

import (
	"strings"
	"time"

	"github.com/solranch/backend/internal/domain"
)

type userModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	PublicKey string `gorm:"uniqueIndex;size:64"`
	Nonce     string `gorm:"size:64"`
	Roles     string `gorm:"size:128"` // comma-separated
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userModel) TableName() string { return "users" }

type sessionModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Token     string `gorm:"uniqueIndex;size:64"`
	PublicKey string `gorm:"index;size:64"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (sessionModel) TableName() string { return "sessions" }

type ranchModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	PDA         string `gorm:"column:pda;uniqueIndex;size:64"`
	Authority   string `gorm:"uniqueIndex;size:64"`
	Name        string `gorm:"size:64"`
	Country     uint8
	IsVerified  bool
	AnimalCount uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ranchModel) TableName() string { return "ranches" }

type verifierModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	PDA       string `gorm:"column:pda;uniqueIndex;size:64"`
	Authority string `gorm:"uniqueIndex;size:64"`
	Name      string `gorm:"size:64"`
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (verifierModel) TableName() string { return "verifiers" }

type animalModel struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	PDA              string `gorm:"column:pda;uniqueIndex;size:64"`
	Seq              uint64
	Owner            string `gorm:"index;size:64"`
	RanchPDA         string `gorm:"column:ranch_pda;index;size:64"`
	ChipID           string `gorm:"size:128"`
	Specie           string `gorm:"index;size:64"`
	Breed            string `gorm:"index;size:64"`
	BirthDate        int64
	IsVerified       bool
	AssignedVerifier string `gorm:"size:64"`
	SalePrice        *uint64
	LastSalePrice    *uint64
	AllowedBuyer     string `gorm:"size:64"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (animalModel) TableName() string { return "animals" }

// pendingTransactionModel tracks one in-flight co-signed operation. The
// partial unique index enforces at most one live row per subject PDA; the
// duplicate-key error it raises is the storage half of the build-conflict
// rule.
type pendingTransactionModel struct {
	ID                   string `gorm:"primaryKey;size:40"`
	Kind                 string `gorm:"size:32"`
	AnimalPDA            string `gorm:"column:animal_pda;size:64;index:idx_pending_live,unique,where:archived_at IS NULL"`
	RancherPubkey        string `gorm:"index;size:64"`
	VerifierPubkey       string `gorm:"index;size:64"`
	SerializedTx         string `gorm:"type:text"`
	Blockhash            string `gorm:"size:64"`
	LastValidBlockHeight uint64
	Status               string `gorm:"index;size:40"`
	ErrorMessage         string `gorm:"type:text"`
	TxSignature          string `gorm:"size:128"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
	ArchivedAt           *time.Time
}

func (pendingTransactionModel) TableName() string { return "pending_transactions" }

func (m userModel) toDomain() domain.User {
	u := domain.User{
		PublicKey: m.PublicKey,
		Nonce:     m.Nonce,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for _, r := range strings.Split(m.Roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			u.Roles = append(u.Roles, domain.Role(r))
		}
	}
	return u
}

func rolesToCSV(roles []domain.Role) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}

func (m sessionModel) toDomain() domain.Session {
	return domain.Session{
		Token:     m.Token,
		PublicKey: m.PublicKey,
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
	}
}

func (m ranchModel) toDomain() domain.Ranch {
	return domain.Ranch{
		PDA:         m.PDA,
		Authority:   m.Authority,
		Name:        m.Name,
		Country:     domain.Country(m.Country),
		IsVerified:  m.IsVerified,
		AnimalCount: m.AnimalCount,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func ranchToModel(r domain.Ranch) ranchModel {
	return ranchModel{
		PDA:         r.PDA,
		Authority:   r.Authority,
		Name:        r.Name,
		Country:     uint8(r.Country),
		IsVerified:  r.IsVerified,
		AnimalCount: r.AnimalCount,
	}
}

func (m verifierModel) toDomain() domain.Verifier {
	return domain.Verifier{
		PDA:       m.PDA,
		Authority: m.Authority,
		Name:      m.Name,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func verifierToModel(v domain.Verifier) verifierModel {
	return verifierModel{
		PDA:       v.PDA,
		Authority: v.Authority,
		Name:      v.Name,
		IsActive:  v.IsActive,
	}
}

func (m animalModel) toDomain() domain.Animal {
	return domain.Animal{
		PDA:              m.PDA,
		Seq:              m.Seq,
		Owner:            m.Owner,
		RanchPDA:         m.RanchPDA,
		ChipID:           m.ChipID,
		Specie:           m.Specie,
		Breed:            m.Breed,
		BirthDate:        m.BirthDate,
		IsVerified:       m.IsVerified,
		AssignedVerifier: m.AssignedVerifier,
		SalePrice:        m.SalePrice,
		LastSalePrice:    m.LastSalePrice,
		AllowedBuyer:     m.AllowedBuyer,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func animalToModel(a domain.Animal) animalModel {
	return animalModel{
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
	}
}

func (m pendingTransactionModel) toDomain() domain.PendingTransaction {
	return domain.PendingTransaction{
		ID:             m.ID,
		Kind:           domain.TxKind(m.Kind),
		AnimalPDA:      m.AnimalPDA,
		RancherPubkey:  m.RancherPubkey,
		VerifierPubkey: m.VerifierPubkey,
		SerializedTx:   m.SerializedTx,
		Commitment: domain.Commitment{
			Blockhash:            m.Blockhash,
			LastValidBlockHeight: m.LastValidBlockHeight,
		},
		Status:       domain.TxStatus(m.Status),
		ErrorMessage: m.ErrorMessage,
		TxSignature:  m.TxSignature,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		ArchivedAt:   m.ArchivedAt,
	}
}

func pendingToModel(p domain.PendingTransaction) pendingTransactionModel {
	return pendingTransactionModel{
		ID:                   p.ID,
		Kind:                 string(p.Kind),
		AnimalPDA:            p.AnimalPDA,
		RancherPubkey:        p.RancherPubkey,
		VerifierPubkey:       p.VerifierPubkey,
		SerializedTx:         p.SerializedTx,
		Blockhash:            p.Commitment.Blockhash,
		LastValidBlockHeight: p.Commitment.LastValidBlockHeight,
		Status:               string(p.Status),
		ErrorMessage:         p.ErrorMessage,
		TxSignature:          p.TxSignature,
		ArchivedAt:           p.ArchivedAt,
	}
}
