package service

import (
	"context"
	"sort"
	"time"

	"github.com/solranch/backend/internal/domain"
)

// memStore is an in-memory stand-in for the mirror repository. It enforces
// the same uniqueness rules the database does so the services see realistic
// conflicts.
type memStore struct {
	users     map[string]domain.User
	sessions  map[string]domain.Session
	ranches   map[string]domain.Ranch
	verifiers map[string]domain.Verifier
	animals   map[string]domain.Animal
	pendings  map[string]domain.PendingTransaction
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]domain.User),
		sessions:  make(map[string]domain.Session),
		ranches:   make(map[string]domain.Ranch),
		verifiers: make(map[string]domain.Verifier),
		animals:   make(map[string]domain.Animal),
		pendings:  make(map[string]domain.PendingTransaction),
	}
}

func (s *memStore) GetUser(_ context.Context, pubkey string) (domain.User, error) {
	user, ok := s.users[pubkey]
	if !ok {
		return domain.User{}, domain.E(domain.KindNotFound, "user not found")
	}
	return user, nil
}

func (s *memStore) CreateUser(_ context.Context, user domain.User) error {
	if _, ok := s.users[user.PublicKey]; ok {
		return domain.E(domain.KindConflict, "user already exists")
	}
	s.users[user.PublicKey] = user
	return nil
}

func (s *memStore) UpdateUserNonce(_ context.Context, pubkey, nonce string) error {
	user, ok := s.users[pubkey]
	if !ok {
		return domain.E(domain.KindNotFound, "user not found")
	}
	user.Nonce = nonce
	s.users[pubkey] = user
	return nil
}

func (s *memStore) AddUserRole(_ context.Context, pubkey string, role domain.Role) error {
	user, ok := s.users[pubkey]
	if !ok {
		return domain.E(domain.KindNotFound, "user not found")
	}
	if !user.HasRole(role) {
		user.Roles = append(user.Roles, role)
		s.users[pubkey] = user
	}
	return nil
}

func (s *memStore) CreateSession(_ context.Context, session domain.Session) error {
	s.sessions[session.Token] = session
	return nil
}

func (s *memStore) GetSession(_ context.Context, token string) (domain.Session, error) {
	session, ok := s.sessions[token]
	if !ok {
		return domain.Session{}, domain.E(domain.KindNotFound, "session not found")
	}
	return session, nil
}

func (s *memStore) DeleteExpiredSessions(_ context.Context, now time.Time) error {
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
		}
	}
	return nil
}

func (s *memStore) CreateRanch(_ context.Context, ranch domain.Ranch) error {
	if _, ok := s.ranches[ranch.PDA]; ok {
		return domain.E(domain.KindConflict, "ranch already exists")
	}
	for _, existing := range s.ranches {
		if existing.Authority == ranch.Authority {
			return domain.E(domain.KindConflict, "ranch already exists")
		}
	}
	s.ranches[ranch.PDA] = ranch
	return nil
}

func (s *memStore) GetRanchByPDA(_ context.Context, pda string) (domain.Ranch, error) {
	ranch, ok := s.ranches[pda]
	if !ok {
		return domain.Ranch{}, domain.E(domain.KindNotFound, "ranch not found")
	}
	return ranch, nil
}

func (s *memStore) GetRanchByAuthority(_ context.Context, authority string) (domain.Ranch, error) {
	for _, ranch := range s.ranches {
		if ranch.Authority == authority {
			return ranch, nil
		}
	}
	return domain.Ranch{}, domain.E(domain.KindNotFound, "ranch not found")
}

func (s *memStore) UpdateRanch(_ context.Context, ranch domain.Ranch) error {
	if _, ok := s.ranches[ranch.PDA]; !ok {
		return domain.E(domain.KindNotFound, "ranch not found")
	}
	s.ranches[ranch.PDA] = ranch
	return nil
}

func (s *memStore) ListRanches(_ context.Context, filter domain.RanchFilter) (domain.RanchListResult, error) {
	var items []domain.Ranch
	for _, ranch := range s.ranches {
		if filter.Verified != nil && ranch.IsVerified != *filter.Verified {
			continue
		}
		items = append(items, ranch)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].PDA < items[j].PDA })
	return domain.RanchListResult{Items: items, Total: int64(len(items))}, nil
}

func (s *memStore) CreateVerifier(_ context.Context, v domain.Verifier) error {
	if _, ok := s.verifiers[v.PDA]; ok {
		return domain.E(domain.KindConflict, "verifier already exists")
	}
	s.verifiers[v.PDA] = v
	return nil
}

func (s *memStore) GetVerifierByPDA(_ context.Context, pda string) (domain.Verifier, error) {
	v, ok := s.verifiers[pda]
	if !ok {
		return domain.Verifier{}, domain.E(domain.KindNotFound, "verifier not found")
	}
	return v, nil
}

func (s *memStore) GetVerifierByAuthority(_ context.Context, authority string) (domain.Verifier, error) {
	for _, v := range s.verifiers {
		if v.Authority == authority {
			return v, nil
		}
	}
	return domain.Verifier{}, domain.E(domain.KindNotFound, "verifier not found")
}

func (s *memStore) SetVerifierActive(_ context.Context, pda string, active bool) error {
	v, ok := s.verifiers[pda]
	if !ok {
		return domain.E(domain.KindNotFound, "verifier not found")
	}
	v.IsActive = active
	s.verifiers[pda] = v
	return nil
}

func (s *memStore) ListVerifiers(_ context.Context, filter domain.VerifierFilter) (domain.VerifierListResult, error) {
	var items []domain.Verifier
	for _, v := range s.verifiers {
		if filter.Active != nil && v.IsActive != *filter.Active {
			continue
		}
		items = append(items, v)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].PDA < items[j].PDA })
	return domain.VerifierListResult{Items: items, Total: int64(len(items))}, nil
}

func (s *memStore) CreateAnimal(_ context.Context, a domain.Animal) error {
	if _, ok := s.animals[a.PDA]; ok {
		return domain.E(domain.KindConflict, "animal already exists")
	}
	s.animals[a.PDA] = a
	return nil
}

func (s *memStore) GetAnimalByPDA(_ context.Context, pda string) (domain.Animal, error) {
	a, ok := s.animals[pda]
	if !ok {
		return domain.Animal{}, domain.E(domain.KindNotFound, "animal not found")
	}
	return a, nil
}

func (s *memStore) UpdateAnimal(_ context.Context, a domain.Animal) error {
	existing, ok := s.animals[a.PDA]
	if !ok {
		return domain.E(domain.KindNotFound, "animal not found")
	}
	existing.Owner = a.Owner
	existing.IsVerified = a.IsVerified
	existing.AssignedVerifier = a.AssignedVerifier
	existing.SalePrice = a.SalePrice
	existing.LastSalePrice = a.LastSalePrice
	existing.AllowedBuyer = a.AllowedBuyer
	s.animals[a.PDA] = existing
	return nil
}

func (s *memStore) DeleteAnimal(_ context.Context, pda string) error {
	if _, ok := s.animals[pda]; !ok {
		return domain.E(domain.KindNotFound, "animal not found")
	}
	delete(s.animals, pda)
	return nil
}

func (s *memStore) ListAnimals(_ context.Context, filter domain.AnimalFilter) (domain.AnimalListResult, error) {
	var items []domain.Animal
	for _, a := range s.animals {
		if filter.Specie != "" && a.Specie != filter.Specie {
			continue
		}
		if filter.Owner != "" && a.Owner != filter.Owner {
			continue
		}
		if filter.OnSale != nil && a.OnSale() != *filter.OnSale {
			continue
		}
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].PDA < items[j].PDA })
	return domain.AnimalListResult{Items: items, Total: int64(len(items))}, nil
}

func (s *memStore) CreatePending(_ context.Context, p domain.PendingTransaction) error {
	for _, existing := range s.pendings {
		if existing.AnimalPDA == p.AnimalPDA && existing.ArchivedAt == nil {
			return domain.E(domain.KindConflict, "an operation is already in flight")
		}
	}
	s.pendings[p.ID] = p
	return nil
}

func (s *memStore) GetPending(_ context.Context, id string) (domain.PendingTransaction, error) {
	p, ok := s.pendings[id]
	if !ok {
		return domain.PendingTransaction{}, domain.E(domain.KindNotFound, "pending transaction not found")
	}
	return p, nil
}

func (s *memStore) GetLivePendingByAnimalPDA(_ context.Context, pda string) (domain.PendingTransaction, error) {
	for _, p := range s.pendings {
		if p.AnimalPDA == pda && p.ArchivedAt == nil {
			return p, nil
		}
	}
	return domain.PendingTransaction{}, domain.E(domain.KindNotFound, "pending transaction not found")
}

func (s *memStore) UpdatePending(_ context.Context, p domain.PendingTransaction) error {
	existing, ok := s.pendings[p.ID]
	if !ok {
		return domain.E(domain.KindNotFound, "pending transaction not found")
	}
	existing.SerializedTx = p.SerializedTx
	existing.Status = p.Status
	existing.ErrorMessage = p.ErrorMessage
	existing.TxSignature = p.TxSignature
	s.pendings[p.ID] = existing
	return nil
}

func (s *memStore) ArchivePending(_ context.Context, id string, status domain.TxStatus, errorMessage, txSignature string) error {
	p, ok := s.pendings[id]
	if !ok || p.ArchivedAt != nil {
		return domain.E(domain.KindNotFound, "pending transaction not found or already archived")
	}
	now := time.Now().UTC()
	p.Status = status
	p.ErrorMessage = errorMessage
	p.TxSignature = txSignature
	p.ArchivedAt = &now
	s.pendings[id] = p
	return nil
}

func (s *memStore) ListPendings(_ context.Context, filter domain.PendingFilter) (domain.PendingListResult, error) {
	var items []domain.PendingTransaction
	for _, p := range s.pendings {
		if filter.VerifierPubkey != "" && p.VerifierPubkey != filter.VerifierPubkey {
			continue
		}
		if filter.RancherPubkey != "" && p.RancherPubkey != filter.RancherPubkey {
			continue
		}
		if filter.Status != "" && (p.Status != filter.Status || p.ArchivedAt != nil) {
			continue
		}
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.PendingListResult{Items: items, Total: int64(len(items))}, nil
}

var (
	_ AuthStore     = (*memStore)(nil)
	_ RanchStore    = (*memStore)(nil)
	_ VerifierStore = (*memStore)(nil)
	_ AnimalStore   = (*memStore)(nil)
)
