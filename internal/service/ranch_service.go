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

const maxRanchNameLen = 50

// RanchService builds and reconciles ranch registrations and runs the admin
// verification toggle.
type RanchService struct {
	store   RanchStore
	gateway solana.Gateway
	program *solana.Program
	admin   *adminSigner
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRanchService constructs a RanchService. adminKey may be nil; the
// verification toggle then reports a precondition failure.
func NewRanchService(store RanchStore, gateway solana.Gateway, program *solana.Program, adminKey solana.PrivateKey, confirmTimeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *RanchService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RanchService{
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

// BuildRegistration assembles an unsigned ranch registration for the caller.
// A wallet can own at most one ranch.
func (s *RanchService) BuildRegistration(ctx context.Context, caller string, in RegisterRanchInput) (BuildResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxRanchNameLen {
		return BuildResult{}, domain.Ef(domain.KindBadRequest, "ranch name must be 1-%d characters", maxRanchNameLen)
	}

	authority, err := solana.ParsePubkey(caller)
	if err != nil {
		return BuildResult{}, err
	}
	ranchPDA, _, err := solana.RanchPDA(s.program.ID, authority)
	if err != nil {
		return BuildResult{}, err
	}

	if _, err := s.store.GetRanchByAuthority(ctx, caller); err == nil {
		return BuildResult{}, domain.E(domain.KindConflict, "wallet already owns a ranch")
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return BuildResult{}, err
	}

	// The mirror is a cache; the chain has the last word on existence.
	if _, err := s.gateway.FetchRanch(ctx, ranchPDA.String()); err == nil {
		return BuildResult{}, domain.E(domain.KindConflict, "ranch account already exists on chain")
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return BuildResult{}, err
	}

	commitment, err := s.gateway.LatestCommitment(ctx)
	if err != nil {
		return BuildResult{}, err
	}

	ix, err := s.program.RegisterRanch(authority, name, in.Country)
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

	s.metrics.Build(string(domain.TxKindRegisterRanch))
	return BuildResult{
		SubjectPDA:  ranchPDA.String(),
		Transaction: encoded,
		Commitment:  commitment,
	}, nil
}

// ConfirmRegistration reconciles a submitted ranch registration into the
// mirror and grants the RANCHER role.
func (s *RanchService) ConfirmRegistration(ctx context.Context, caller string, in ConfirmInput) (domain.Ranch, error) {
	authority, err := solana.ParsePubkey(caller)
	if err != nil {
		return domain.Ranch{}, err
	}
	ranchPDA, _, err := solana.RanchPDA(s.program.ID, authority)
	if err != nil {
		return domain.Ranch{}, err
	}

	if existing, err := s.store.GetRanchByAuthority(ctx, caller); err == nil {
		// Already reconciled; confirm is idempotent.
		return existing, nil
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return domain.Ranch{}, err
	}

	res, err := s.gateway.ConfirmSignature(ctx, in.TxSignature, in.Commitment)
	if err != nil {
		s.metrics.Confirm(string(domain.TxKindRegisterRanch), "error")
		return domain.Ranch{}, err
	}
	if err := confirmResultError(res); err != nil {
		s.metrics.Confirm(string(domain.TxKindRegisterRanch), string(res.State))
		return domain.Ranch{}, err
	}

	account, err := s.gateway.FetchRanch(ctx, ranchPDA.String())
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.Ranch{}, domain.E(domain.KindConflict, "transaction confirmed but ranch account does not exist")
		}
		return domain.Ranch{}, err
	}

	ranch := domain.Ranch{
		PDA:         ranchPDA.String(),
		Authority:   account.Authority.String(),
		Name:        account.Name,
		Country:     domain.Country(account.Country),
		IsVerified:  account.IsVerified,
		AnimalCount: account.AnimalCount,
	}
	if err := s.store.CreateRanch(ctx, ranch); err != nil {
		if domain.IsKind(err, domain.KindConflict) {
			return s.store.GetRanchByPDA(ctx, ranchPDA.String())
		}
		s.metrics.Drift()
		s.logger.Error("mirror write failed after on-chain confirmation",
			"ranch", ranchPDA.String(), "signature", in.TxSignature, "error", err)
		return domain.Ranch{}, domain.Wrap(domain.KindReconciliationDrift, "ranch confirmed on chain but mirror insert failed", err)
	}

	if err := s.store.AddUserRole(ctx, caller, domain.RoleRancher); err != nil {
		s.logger.Warn("could not grant rancher role", "pubkey", caller, "error", err)
	}

	s.metrics.Confirm(string(domain.TxKindRegisterRanch), "finalized")
	s.logger.Info("ranch registered", "ranch", ranchPDA.String(), "authority", caller)
	return ranch, nil
}

// Get loads a ranch by address.
func (s *RanchService) Get(ctx context.Context, pda string) (domain.Ranch, error) {
	return s.store.GetRanchByPDA(ctx, pda)
}

// Mine loads the caller's ranch.
func (s *RanchService) Mine(ctx context.Context, caller string) (domain.Ranch, error) {
	return s.store.GetRanchByAuthority(ctx, caller)
}

// RanchesPage represents paginated ranches with metadata.
type RanchesPage struct {
	Items      []domain.Ranch
	Pagination PaginationMeta
}

// List retrieves paginated ranches matching the filter.
func (s *RanchService) List(ctx context.Context, filter domain.RanchFilter) (RanchesPage, error) {
	result, err := s.store.ListRanches(ctx, filter)
	if err != nil {
		return RanchesPage{}, err
	}
	return RanchesPage{
		Items:      result.Items,
		Pagination: paginationMeta(filter.Page, filter.Limit, result.Total),
	}, nil
}

// SetVerification flips a ranch's verified flag on chain with the held
// program authority key, then mirrors the confirmed state. No-op toggles are
// rejected.
func (s *RanchService) SetVerification(ctx context.Context, ranchPDA string, verified bool) (domain.Ranch, error) {
	if s.admin == nil {
		return domain.Ranch{}, domain.E(domain.KindPreconditionFailed, "no program authority key is configured")
	}

	ranch, err := s.store.GetRanchByPDA(ctx, ranchPDA)
	if err != nil {
		return domain.Ranch{}, err
	}
	if ranch.IsVerified == verified {
		return domain.Ranch{}, domain.Ef(domain.KindPreconditionFailed, "ranch verification is already %t", verified)
	}

	pda, err := solana.ParsePubkey(ranchPDA)
	if err != nil {
		return domain.Ranch{}, err
	}
	ix, err := s.program.SetRanchVerification(pda, s.admin.pubkey(), verified)
	if err != nil {
		return domain.Ranch{}, err
	}
	if _, err := s.admin.submit(ctx, ix); err != nil {
		return domain.Ranch{}, err
	}

	account, err := s.gateway.FetchRanch(ctx, ranchPDA)
	if err != nil {
		return domain.Ranch{}, err
	}
	ranch.IsVerified = account.IsVerified
	ranch.AnimalCount = account.AnimalCount
	if err := s.store.UpdateRanch(ctx, ranch); err != nil {
		s.metrics.Drift()
		s.logger.Error("mirror write failed after on-chain confirmation",
			"ranch", ranchPDA, "error", err)
		return domain.Ranch{}, domain.Wrap(domain.KindReconciliationDrift, "verification confirmed on chain but mirror update failed", err)
	}

	s.logger.Info("ranch verification updated", "ranch", ranchPDA, "verified", account.IsVerified)
	return ranch, nil
}
