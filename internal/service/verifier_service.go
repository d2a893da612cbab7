package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/metrics"
	"github.com/solranch/backend/internal/solana"
)

const maxVerifierNameLen = 50

// VerifierService manages verifier profiles. Both operations are admin-only:
// the program accepts them solely from the program authority, whose key the
// service holds.
type VerifierService struct {
	store   VerifierStore
	gateway solana.Gateway
	program *solana.Program
	admin   *adminSigner
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewVerifierService constructs a VerifierService.
func NewVerifierService(store VerifierStore, gateway solana.Gateway, program *solana.Program, adminKey solana.PrivateKey, confirmTimeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *VerifierService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &VerifierService{
		store:   store,
		gateway: gateway,
		program: program,
		metrics: m,
		logger:  logger,
	}
	if adminKey != nil {
		s.admin = newAdminSigner(adminKey, gateway, confirmTimeout)
	}
	return s
}

// Register creates a verifier profile for the given authority wallet on chain
// and mirrors it.
func (s *VerifierService) Register(ctx context.Context, verifierAuthority, name string) (domain.Verifier, error) {
	if s.admin == nil {
		return domain.Verifier{}, domain.E(domain.KindPreconditionFailed, "no program authority key is configured")
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxVerifierNameLen {
		return domain.Verifier{}, domain.Ef(domain.KindBadRequest, "verifier name must be 1-%d characters", maxVerifierNameLen)
	}

	authority, err := solana.ParsePubkey(verifierAuthority)
	if err != nil {
		return domain.Verifier{}, err
	}
	verifierPDA, _, err := solana.VerifierPDA(s.program.ID, authority)
	if err != nil {
		return domain.Verifier{}, err
	}

	if _, err := s.store.GetVerifierByAuthority(ctx, verifierAuthority); err == nil {
		return domain.Verifier{}, domain.E(domain.KindConflict, "wallet is already a verifier")
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return domain.Verifier{}, err
	}
	if _, err := s.gateway.FetchVerifier(ctx, verifierPDA.String()); err == nil {
		return domain.Verifier{}, domain.E(domain.KindConflict, "verifier account already exists on chain")
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return domain.Verifier{}, err
	}

	ix, err := s.program.RegisterVerifier(s.admin.pubkey(), authority, name)
	if err != nil {
		return domain.Verifier{}, err
	}
	if _, err := s.admin.submit(ctx, ix); err != nil {
		return domain.Verifier{}, err
	}

	account, err := s.gateway.FetchVerifier(ctx, verifierPDA.String())
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.Verifier{}, domain.E(domain.KindConflict, "transaction confirmed but verifier account does not exist")
		}
		return domain.Verifier{}, err
	}

	verifier := domain.Verifier{
		PDA:       verifierPDA.String(),
		Authority: account.Authority.String(),
		Name:      account.Name,
		IsActive:  account.IsActive,
	}
	if err := s.store.CreateVerifier(ctx, verifier); err != nil {
		s.metrics.Drift()
		s.logger.Error("mirror write failed after on-chain confirmation",
			"verifier", verifierPDA.String(), "error", err)
		return domain.Verifier{}, domain.Wrap(domain.KindReconciliationDrift, "verifier confirmed on chain but mirror insert failed", err)
	}

	// Best effort: the authority wallet may not have logged in yet.
	if err := s.store.AddUserRole(ctx, verifierAuthority, domain.RoleVerifier); err != nil && !domain.IsKind(err, domain.KindNotFound) {
		s.logger.Warn("could not grant verifier role", "pubkey", verifierAuthority, "error", err)
	}

	s.logger.Info("verifier registered", "verifier", verifierPDA.String(), "authority", verifierAuthority)
	return verifier, nil
}

// ToggleStatus flips a verifier's active flag on chain and mirrors the
// confirmed state.
func (s *VerifierService) ToggleStatus(ctx context.Context, verifierPDA string) (domain.Verifier, error) {
	if s.admin == nil {
		return domain.Verifier{}, domain.E(domain.KindPreconditionFailed, "no program authority key is configured")
	}

	verifier, err := s.store.GetVerifierByPDA(ctx, verifierPDA)
	if err != nil {
		return domain.Verifier{}, err
	}

	pda, err := solana.ParsePubkey(verifierPDA)
	if err != nil {
		return domain.Verifier{}, err
	}
	ix, err := s.program.ToggleVerifierStatus(pda, s.admin.pubkey())
	if err != nil {
		return domain.Verifier{}, err
	}
	if _, err := s.admin.submit(ctx, ix); err != nil {
		return domain.Verifier{}, err
	}

	account, err := s.gateway.FetchVerifier(ctx, verifierPDA)
	if err != nil {
		return domain.Verifier{}, err
	}
	if err := s.store.SetVerifierActive(ctx, verifierPDA, account.IsActive); err != nil {
		s.metrics.Drift()
		s.logger.Error("mirror write failed after on-chain confirmation",
			"verifier", verifierPDA, "error", err)
		return domain.Verifier{}, domain.Wrap(domain.KindReconciliationDrift, "toggle confirmed on chain but mirror update failed", err)
	}

	verifier.IsActive = account.IsActive
	s.logger.Info("verifier status toggled", "verifier", verifierPDA, "active", account.IsActive)
	return verifier, nil
}

// Status loads the caller's verifier profile.
func (s *VerifierService) Status(ctx context.Context, caller string) (domain.Verifier, error) {
	return s.store.GetVerifierByAuthority(ctx, caller)
}

// VerifiersPage represents paginated verifiers with metadata.
type VerifiersPage struct {
	Items      []domain.Verifier
	Pagination PaginationMeta
}

// List retrieves paginated verifiers matching the filter.
func (s *VerifierService) List(ctx context.Context, filter domain.VerifierFilter) (VerifiersPage, error) {
	result, err := s.store.ListVerifiers(ctx, filter)
	if err != nil {
		return VerifiersPage{}, err
	}
	return VerifiersPage{
		Items:      result.Items,
		Pagination: paginationMeta(filter.Page, filter.Limit, result.Total),
	}, nil
}
