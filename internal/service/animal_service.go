package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/metrics"
	"github.com/solranch/backend/internal/solana"
)

const (
	maxChipIDLen = 100
	maxSpecieLen = 30
	maxBreedLen  = 30
)

// AnimalService builds animal operations, coordinates two-party co-signing
// and reconciles confirmed transactions into the mirror.
type AnimalService struct {
	store   AnimalStore
	gateway solana.Gateway
	program *solana.Program
	metrics *metrics.Metrics
	logger  *slog.Logger
	nowFn   func() time.Time
}

// NewAnimalService constructs an AnimalService.
func NewAnimalService(store AnimalStore, gateway solana.Gateway, program *solana.Program, m *metrics.Metrics, logger *slog.Logger) *AnimalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnimalService{
		store:   store,
		gateway: gateway,
		program: program,
		metrics: m,
		logger:  logger,
		nowFn:   time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *AnimalService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

func validateRegisterInput(in RegisterAnimalInput) error {
	switch {
	case strings.TrimSpace(in.ChipID) == "" || len(in.ChipID) > maxChipIDLen:
		return domain.Ef(domain.KindBadRequest, "chip id must be 1-%d characters", maxChipIDLen)
	case strings.TrimSpace(in.Specie) == "" || len(in.Specie) > maxSpecieLen:
		return domain.Ef(domain.KindBadRequest, "specie must be 1-%d characters", maxSpecieLen)
	case strings.TrimSpace(in.Breed) == "" || len(in.Breed) > maxBreedLen:
		return domain.Ef(domain.KindBadRequest, "breed must be 1-%d characters", maxBreedLen)
	case in.BirthDate <= 0:
		return domain.E(domain.KindBadRequest, "birth date is required")
	}
	return nil
}

// BuildRegister assembles an unsigned animal registration. The animal address
// is derived from the live on-chain ranch counter, and a pending row reserves
// it until the flow resolves.
func (s *AnimalService) BuildRegister(ctx context.Context, caller string, in RegisterAnimalInput) (BuildResult, error) {
	if err := validateRegisterInput(in); err != nil {
		return BuildResult{}, err
	}

	ranch, err := s.store.GetRanchByAuthority(ctx, caller)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return BuildResult{}, domain.E(domain.KindPreconditionFailed, "wallet does not own a ranch")
		}
		return BuildResult{}, err
	}
	if !ranch.IsVerified {
		return BuildResult{}, domain.E(domain.KindPreconditionFailed, "ranch is not verified")
	}

	verifier, err := s.store.GetVerifierByPDA(ctx, in.VerifierPDA)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return BuildResult{}, domain.E(domain.KindPreconditionFailed, "verifier does not exist")
		}
		return BuildResult{}, err
	}
	if !verifier.IsActive {
		return BuildResult{}, domain.E(domain.KindPreconditionFailed, "verifier is not active")
	}

	// The counter the address derives from must come from the chain, not
	// the mirror: a stale mirror count would produce an address the
	// program will reject.
	chainRanch, err := s.gateway.FetchRanch(ctx, ranch.PDA)
	if err != nil {
		return BuildResult{}, err
	}

	authority, err := solana.ParsePubkey(caller)
	if err != nil {
		return BuildResult{}, err
	}
	ranchPDA, err := solana.ParsePubkey(ranch.PDA)
	if err != nil {
		return BuildResult{}, err
	}
	verifierPDA, err := solana.ParsePubkey(verifier.PDA)
	if err != nil {
		return BuildResult{}, err
	}
	verifierAuthority, err := solana.ParsePubkey(verifier.Authority)
	if err != nil {
		return BuildResult{}, err
	}

	animalPDA, _, err := solana.AnimalPDA(s.program.ID, ranchPDA, chainRanch.AnimalCount)
	if err != nil {
		return BuildResult{}, err
	}

	commitment, err := s.gateway.LatestCommitment(ctx)
	if err != nil {
		return BuildResult{}, err
	}

	ix, err := s.program.RegisterAnimal(animalPDA, ranchPDA, verifierPDA, authority, verifierAuthority,
		in.ChipID, in.Specie, in.Breed, in.BirthDate)
	if err != nil {
		return BuildResult{}, err
	}
	tx, err := solana.NewUnsignedTransaction(ix, commitment, authority)
	if err != nil {
		return BuildResult{}, err
	}
	encoded, err := solana.EncodeTransaction(tx)
	if err != nil {
		return BuildResult{}, err
	}

	pending := domain.PendingTransaction{
		ID:             uuid.NewString(),
		Kind:           domain.TxKindRegisterAnimal,
		AnimalPDA:      animalPDA.String(),
		RancherPubkey:  caller,
		VerifierPubkey: verifier.Authority,
		SerializedTx:   encoded,
		Commitment:     commitment,
		Status:         domain.StatusAwaitingRancherSignature,
	}
	if err := s.store.CreatePending(ctx, pending); err != nil {
		if domain.IsKind(err, domain.KindConflict) {
			return BuildResult{}, domain.Ef(domain.KindConflict, "a registration for %s is already in flight", animalPDA.String())
		}
		return BuildResult{}, err
	}

	s.metrics.Build(string(domain.TxKindRegisterAnimal))
	s.logger.Info("animal registration built",
		"animal", animalPDA.String(), "ranch", ranch.PDA, "verifier", verifier.PDA)
	return BuildResult{
		PendingID:   pending.ID,
		SubjectPDA:  animalPDA.String(),
		Transaction: encoded,
		Commitment:  commitment,
	}, nil
}

// AddRancherSignature accepts the rancher's partially signed payload and
// advances the pending row to the verifier stage. A payload that does not
// deserialize or carries no signature is rejected without a state change.
func (s *AnimalService) AddRancherSignature(ctx context.Context, caller, pendingID, signedTx string) (domain.PendingTransaction, error) {
	pending, err := s.store.GetPending(ctx, pendingID)
	if err != nil {
		return domain.PendingTransaction{}, err
	}
	if pending.RancherPubkey != caller {
		return domain.PendingTransaction{}, domain.E(domain.KindForbidden, "pending transaction belongs to another rancher")
	}
	if pending.Status != domain.StatusAwaitingRancherSignature {
		return domain.PendingTransaction{}, domain.Ef(domain.KindPreconditionFailed, "pending transaction is %s, not awaiting the rancher signature", pending.Status)
	}

	tx, err := solana.DecodeTransaction(signedTx)
	if err != nil {
		return domain.PendingTransaction{}, err
	}
	if !solana.HasSignature(tx) {
		return domain.PendingTransaction{}, domain.E(domain.KindBadRequest, "payload carries no signature")
	}

	pending.SerializedTx = signedTx
	pending.Status = domain.StatusAwaitingVerifierSignature
	if err := s.store.UpdatePending(ctx, pending); err != nil {
		return domain.PendingTransaction{}, err
	}

	s.metrics.Signature()
	s.logger.Info("rancher signature accepted", "pending", pending.ID, "animal", pending.AnimalPDA)
	return pending, nil
}

// PendingsPage represents paginated pending transactions with metadata.
type PendingsPage struct {
	Items      []domain.PendingTransaction
	Pagination PaginationMeta
}

// PendingForVerifier lists registrations awaiting the caller's signature.
func (s *AnimalService) PendingForVerifier(ctx context.Context, caller string, page, limit int) (PendingsPage, error) {
	result, err := s.store.ListPendings(ctx, domain.PendingFilter{
		VerifierPubkey: caller,
		Status:         domain.StatusAwaitingVerifierSignature,
		Page:           page,
		Limit:          limit,
	})
	if err != nil {
		return PendingsPage{}, err
	}
	return PendingsPage{
		Items:      result.Items,
		Pagination: paginationMeta(page, limit, result.Total),
	}, nil
}

// TransactionEnvelope is the payload handed to the party whose signature is
// pending.
type TransactionEnvelope struct {
	PendingID   string
	AnimalPDA   string
	Transaction string
	Commitment  domain.Commitment
}

// TransactionForVerifier returns the partially signed payload of a pending
// registration. Only the verifier whose signature is pending may fetch it.
func (s *AnimalService) TransactionForVerifier(ctx context.Context, caller, pendingID string) (TransactionEnvelope, error) {
	pending, err := s.store.GetPending(ctx, pendingID)
	if err != nil {
		return TransactionEnvelope{}, err
	}
	if pending.VerifierPubkey != caller {
		return TransactionEnvelope{}, domain.E(domain.KindForbidden, "pending transaction is assigned to another verifier")
	}
	if pending.Status != domain.StatusAwaitingVerifierSignature {
		return TransactionEnvelope{}, domain.Ef(domain.KindPreconditionFailed, "pending transaction is %s, not awaiting the verifier signature", pending.Status)
	}
	return TransactionEnvelope{
		PendingID:   pending.ID,
		AnimalPDA:   pending.AnimalPDA,
		Transaction: pending.SerializedTx,
		Commitment:  pending.Commitment,
	}, nil
}

// BuildApprove assembles an unsigned approval for the animal's assigned
// verifier.
func (s *AnimalService) BuildApprove(ctx context.Context, caller, animalPDA string) (BuildResult, error) {
	animal, err := s.store.GetAnimalByPDA(ctx, animalPDA)
	if err != nil {
		return BuildResult{}, err
	}
	if animal.AssignedVerifier != caller {
		return BuildResult{}, domain.E(domain.KindForbidden, "only the assigned verifier may approve")
	}
	if animal.IsVerified {
		return BuildResult{}, domain.E(domain.KindPreconditionFailed, "animal is already verified")
	}

	verifierAuthority, err := solana.ParsePubkey(caller)
	if err != nil {
		return BuildResult{}, err
	}
	pda, err := solana.ParsePubkey(animalPDA)
	if err != nil {
		return BuildResult{}, err
	}

	ix, err := s.program.ApproveAnimal(pda, verifierAuthority)
	if err != nil {
		return BuildResult{}, err
	}
	return s.buildSingleSigner(ctx, domain.TxKindApproveAnimal, animal, verifierAuthority, ix,
		domain.StatusAwaitingVerifierSignature)
}

// BuildCancel assembles an unsigned cancellation (owner) or rejection
// (assigned verifier) of an unverified registration. The closed account's
// rent returns to the owner.
func (s *AnimalService) BuildCancel(ctx context.Context, caller, animalPDA string) (BuildResult, error) {
	animal, err := s.store.GetAnimalByPDA(ctx, animalPDA)
	if err != nil {
		return BuildResult{}, err
	}
	if animal.IsVerified {
		return BuildResult{}, domain.E(domain.KindPreconditionFailed, "a verified animal cannot be cancelled")
	}
	if animal.OnSale() {
		return BuildResult{}, domain.E(domain.KindPreconditionFailed, "an animal on sale cannot be cancelled")
	}
	if caller != animal.Owner && caller != animal.AssignedVerifier {
		return BuildResult{}, domain.E(domain.KindForbidden, "only the owner or the assigned verifier may cancel")
	}

	ranch, err := s.store.GetRanchByPDA(ctx, animal.RanchPDA)
	if err != nil {
		return BuildResult{}, err
	}

	pda, err := solana.ParsePubkey(animalPDA)
	if err != nil {
		return BuildResult{}, err
	}
	ranchPDA, err := solana.ParsePubkey(ranch.PDA)
	if err != nil {
		return BuildResult{}, err
	}
	signer, err := solana.ParsePubkey(caller)
	if err != nil {
		return BuildResult{}, err
	}
	owner, err := solana.ParsePubkey(animal.Owner)
	if err != nil {
		return BuildResult{}, err
	}

	ix, err := s.program.CancelAnimalRegistration(pda, ranchPDA, signer, owner, owner)
	if err != nil {
		return BuildResult{}, err
	}

	status := domain.StatusAwaitingRancherSignature
	if caller == animal.AssignedVerifier && caller != animal.Owner {
		status = domain.StatusAwaitingVerifierSignature
	}
	return s.buildSingleSigner(ctx, domain.TxKindCancelAnimal, animal, signer, ix, status)
}

// buildSingleSigner assembles and reserves a single-signer animal operation.
func (s *AnimalService) buildSingleSigner(ctx context.Context, kind domain.TxKind, animal domain.Animal, feePayer solana.PublicKey, ix solana.Instruction, status domain.TxStatus) (BuildResult, error) {
	commitment, err := s.gateway.LatestCommitment(ctx)
	if err != nil {
		return BuildResult{}, err
	}
	tx, err := solana.NewUnsignedTransaction(ix, commitment, feePayer)
	if err != nil {
		return BuildResult{}, err
	}
	encoded, err := solana.EncodeTransaction(tx)
	if err != nil {
		return BuildResult{}, err
	}

	pending := domain.PendingTransaction{
		ID:             uuid.NewString(),
		Kind:           kind,
		AnimalPDA:      animal.PDA,
		RancherPubkey:  animal.Owner,
		VerifierPubkey: animal.AssignedVerifier,
		SerializedTx:   encoded,
		Commitment:     commitment,
		Status:         status,
	}
	if err := s.store.CreatePending(ctx, pending); err != nil {
		if domain.IsKind(err, domain.KindConflict) {
			return BuildResult{}, domain.Ef(domain.KindConflict, "an operation for %s is already in flight", animal.PDA)
		}
		return BuildResult{}, err
	}

	s.metrics.Build(string(kind))
	return BuildResult{
		PendingID:   pending.ID,
		SubjectPDA:  animal.PDA,
		Transaction: encoded,
		Commitment:  commitment,
	}, nil
}

// buildMutation assembles a sale-flow operation. These carry no pending row:
// the caller holds the only signature and confirms with the commitment
// returned here.
func (s *AnimalService) buildMutation(ctx context.Context, kind domain.TxKind, animalPDA string, feePayer solana.PublicKey, ix solana.Instruction) (BuildResult, error) {
	commitment, err := s.gateway.LatestCommitment(ctx)
	if err != nil {
		return BuildResult{}, err
	}
	tx, err := solana.NewUnsignedTransaction(ix, commitment, feePayer)
	if err != nil {
		return BuildResult{}, err
	}
	encoded, err := solana.EncodeTransaction(tx)
	if err != nil {
		return BuildResult{}, err
	}

	s.metrics.Build(string(kind))
	return BuildResult{
		SubjectPDA:  animalPDA,
		Transaction: encoded,
		Commitment:  commitment,
	}, nil
}

// BuildSetPrice assembles an unsigned sale listing for a verified animal.
func (s *AnimalService) BuildSetPrice(ctx context.Context, caller, animalPDA string, price uint64) (BuildResult, error) {
	animal, err := s.store.GetAnimalByPDA(ctx, animalPDA)
	if err != nil {
		return BuildResult{}, err
	}
	if animal.Owner != caller {
		return BuildResult{}, domain.E(domain.KindForbidden, "only the owner may set the price")
	}
	if !animal.IsVerified {
		return BuildResult{}, domain.E(domain.KindPreconditionFailed, "animal is not verified")
	}
	if price == 0 {
		return BuildResult{}, domain.E(domain.KindBadRequest, "price must be positive")
	}

	pda, owner, originRanch, err := s.mutationKeys(animal)
	if err != nil {
		return BuildResult{}, err
	}
	ix, err := s.program.SetAnimalPrice(pda, owner, originRanch, price)
	if err != nil {
		return BuildResult{}, err
	}
	return s.buildMutation(ctx, domain.TxKindSetPrice, animal.PDA, owner, ix)
}

// BuildSetBuyer assembles an unsigned allowed-buyer designation for a listed
// animal.
func (s *AnimalService) BuildSetBuyer(ctx context.Context, caller, animalPDA, buyer string) (BuildResult, error) {
	animal, err := s.store.GetAnimalByPDA(ctx, animalPDA)
	if err != nil {
		return BuildResult{}, err
	}
	if animal.Owner != caller {
		return BuildResult{}, domain.E(domain.KindForbidden, "only the owner may designate a buyer")
	}
	if !animal.OnSale() {
		return BuildResult{}, domain.E(domain.KindPreconditionFailed, "animal is not listed for sale")
	}
	if buyer == caller {
		return BuildResult{}, domain.E(domain.KindPreconditionFailed, "the owner cannot be the buyer")
	}
	buyerKey, err := solana.ParsePubkey(buyer)
	if err != nil {
		return BuildResult{}, err
	}

	pda, owner, originRanch, err := s.mutationKeys(animal)
	if err != nil {
		return BuildResult{}, err
	}
	ix, err := s.program.SetAllowedAnimalBuyer(pda, owner, originRanch, buyerKey)
	if err != nil {
		return BuildResult{}, err
	}
	return s.buildMutation(ctx, domain.TxKindSetBuyer, animal.PDA, owner, ix)
}

// BuildPurchase assembles an unsigned purchase for the designated buyer.
func (s *AnimalService) BuildPurchase(ctx context.Context, caller, animalPDA string) (BuildResult, error) {
	animal, err := s.store.GetAnimalByPDA(ctx, animalPDA)
	if err != nil {
		return BuildResult{}, err
	}
	if !animal.OnSale() {
		return BuildResult{}, domain.E(domain.KindPreconditionFailed, "animal is not listed for sale")
	}
	if animal.AllowedBuyer != caller {
		return BuildResult{}, domain.E(domain.KindForbidden, "wallet is not the designated buyer")
	}
	if animal.Owner == caller {
		return BuildResult{}, domain.E(domain.KindPreconditionFailed, "the owner cannot purchase their own animal")
	}

	pda, err := solana.ParsePubkey(animal.PDA)
	if err != nil {
		return BuildResult{}, err
	}
	owner, err := solana.ParsePubkey(animal.Owner)
	if err != nil {
		return BuildResult{}, err
	}
	buyer, err := solana.ParsePubkey(caller)
	if err != nil {
		return BuildResult{}, err
	}

	ix, err := s.program.PurchaseAnimal(pda, owner, buyer)
	if err != nil {
		return BuildResult{}, err
	}
	return s.buildMutation(ctx, domain.TxKindPurchase, animal.PDA, buyer, ix)
}

func (s *AnimalService) mutationKeys(animal domain.Animal) (pda, owner, originRanch solana.PublicKey, err error) {
	if pda, err = solana.ParsePubkey(animal.PDA); err != nil {
		return
	}
	if owner, err = solana.ParsePubkey(animal.Owner); err != nil {
		return
	}
	originRanch, err = solana.ParsePubkey(animal.RanchPDA)
	return
}

// Get loads an animal by address.
func (s *AnimalService) Get(ctx context.Context, pda string) (domain.Animal, error) {
	return s.store.GetAnimalByPDA(ctx, pda)
}

// AnimalsPage represents paginated animals with metadata.
type AnimalsPage struct {
	Items      []domain.Animal
	Pagination PaginationMeta
}

// List retrieves paginated animals matching the filter.
func (s *AnimalService) List(ctx context.Context, filter domain.AnimalFilter) (AnimalsPage, error) {
	result, err := s.store.ListAnimals(ctx, filter)
	if err != nil {
		return AnimalsPage{}, err
	}
	return AnimalsPage{
		Items:      result.Items,
		Pagination: paginationMeta(filter.Page, filter.Limit, result.Total),
	}, nil
}
