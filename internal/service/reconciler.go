package service

import (
	"context"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/solana"
)

// animalFromChain maps a freshly fetched account onto the mirror shape.
// Every mirrored field comes from the chain record, never from request data.
func animalFromChain(pda string, acc *solana.AnimalAccount) domain.Animal {
	animal := domain.Animal{
		PDA:        pda,
		Seq:        acc.ID,
		Owner:      acc.Owner.String(),
		RanchPDA:   acc.OriginRanch.String(),
		ChipID:     acc.IDChip,
		Specie:     acc.Specie,
		Breed:      acc.Breed,
		BirthDate:  acc.BirthDate,
		IsVerified: acc.IsVerified,
		SalePrice:  acc.SalePrice,
	}
	if !acc.AssignedVerifier.IsZero() {
		animal.AssignedVerifier = acc.AssignedVerifier.String()
	}
	if acc.LastSalePrice > 0 {
		price := acc.LastSalePrice
		animal.LastSalePrice = &price
	}
	if acc.AllowedBuyer != nil {
		animal.AllowedBuyer = acc.AllowedBuyer.String()
	}
	return animal
}

// resolvePending loads the pending row for a confirmation and verifies the
// caller is a party to it.
func (s *AnimalService) resolvePending(ctx context.Context, caller string, in ConfirmInput) (domain.PendingTransaction, error) {
	pending, err := s.store.GetPending(ctx, in.PendingID)
	if err != nil {
		return domain.PendingTransaction{}, err
	}
	if caller != pending.RancherPubkey && caller != pending.VerifierPubkey {
		return domain.PendingTransaction{}, domain.E(domain.KindForbidden, "caller is not a party to this transaction")
	}
	return pending, nil
}

// confirmPending resolves the confirmation outcome for a pending row,
// archiving it on failure and expiry. A nil return means the transaction
// finalized.
func (s *AnimalService) confirmPending(ctx context.Context, pending domain.PendingTransaction, txSignature string) error {
	res, err := s.gateway.ConfirmSignature(ctx, txSignature, pending.Commitment)
	if err != nil {
		s.metrics.Confirm(string(pending.Kind), "error")
		return err
	}

	switch res.State {
	case solana.ConfirmFinalized:
		return nil
	case solana.ConfirmFailed:
		s.metrics.Confirm(string(pending.Kind), "failed")
		if err := s.store.ArchivePending(ctx, pending.ID, domain.StatusFailed, res.Reason, txSignature); err != nil {
			s.logger.Warn("could not archive failed pending transaction", "pending", pending.ID, "error", err)
		}
		return domain.Ef(domain.KindTransactionFailed, "transaction failed on chain: %s", res.Reason)
	case solana.ConfirmExpired:
		s.metrics.Confirm(string(pending.Kind), "expired")
		if err := s.store.ArchivePending(ctx, pending.ID, domain.StatusExpired, "blockhash expired", txSignature); err != nil {
			s.logger.Warn("could not archive expired pending transaction", "pending", pending.ID, "error", err)
		}
		return domain.E(domain.KindExpired, "transaction expired without landing")
	default:
		// Still inside the height window; the caller may retry.
		return domain.E(domain.KindPreconditionFailed, "transaction is not finalized yet")
	}
}

// resyncRanchCount mirrors the on-chain ranch counter after a registration
// or cancellation lands.
func (s *AnimalService) resyncRanchCount(ctx context.Context, ranchPDA string) {
	chainRanch, err := s.gateway.FetchRanch(ctx, ranchPDA)
	if err != nil {
		s.logger.Warn("could not refresh ranch counter", "ranch", ranchPDA, "error", err)
		return
	}
	ranch, err := s.store.GetRanchByPDA(ctx, ranchPDA)
	if err != nil {
		s.logger.Warn("could not load mirror ranch", "ranch", ranchPDA, "error", err)
		return
	}
	ranch.AnimalCount = chainRanch.AnimalCount
	ranch.IsVerified = chainRanch.IsVerified
	if err := s.store.UpdateRanch(ctx, ranch); err != nil {
		s.logger.Warn("could not update mirror ranch counter", "ranch", ranchPDA, "error", err)
	}
}

// ConfirmRegister reconciles a submitted registration: the confirmed account
// is fetched from the chain and inserted into the mirror, and the ranch
// counter is resynced.
func (s *AnimalService) ConfirmRegister(ctx context.Context, caller string, in ConfirmInput) (domain.Animal, error) {
	pending, err := s.resolvePending(ctx, caller, in)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) && in.SubjectPDA != "" {
			return s.reconfirm(ctx, in.SubjectPDA)
		}
		return domain.Animal{}, err
	}
	if pending.Status.Terminal() {
		return s.reconfirmTerminal(ctx, pending)
	}
	if pending.Status != domain.StatusAwaitingVerifierSignature {
		return domain.Animal{}, domain.E(domain.KindPreconditionFailed, "registration is still awaiting the rancher signature")
	}

	if err := s.confirmPending(ctx, pending, in.TxSignature); err != nil {
		return domain.Animal{}, err
	}

	account, err := s.gateway.FetchAnimal(ctx, pending.AnimalPDA)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.Animal{}, domain.E(domain.KindConflict, "transaction confirmed but animal account does not exist")
		}
		return domain.Animal{}, err
	}

	animal := animalFromChain(pending.AnimalPDA, account)
	if err := s.store.CreateAnimal(ctx, animal); err != nil && !domain.IsKind(err, domain.KindConflict) {
		s.metrics.Drift()
		s.logger.Error("mirror write failed after on-chain confirmation",
			"animal", pending.AnimalPDA, "signature", in.TxSignature, "error", err)
		return domain.Animal{}, domain.Wrap(domain.KindReconciliationDrift, "animal confirmed on chain but mirror insert failed", err)
	}

	s.resyncRanchCount(ctx, animal.RanchPDA)

	if err := s.store.ArchivePending(ctx, pending.ID, domain.StatusReconciled, "", in.TxSignature); err != nil {
		s.logger.Warn("could not archive reconciled pending transaction", "pending", pending.ID, "error", err)
	}

	s.metrics.Confirm(string(domain.TxKindRegisterAnimal), "finalized")
	s.logger.Info("animal registered", "animal", animal.PDA, "ranch", animal.RanchPDA)
	return animal, nil
}

// reconfirm handles a confirm arriving after the pending row is gone: if the
// mirror already reflects the terminal state the result is returned
// idempotently, otherwise the request conflicts with reality.
func (s *AnimalService) reconfirm(ctx context.Context, animalPDA string) (domain.Animal, error) {
	animal, err := s.store.GetAnimalByPDA(ctx, animalPDA)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.Animal{}, domain.E(domain.KindConflict, "no pending transaction and no mirrored animal for this address")
		}
		return domain.Animal{}, err
	}
	return animal, nil
}

func (s *AnimalService) reconfirmTerminal(ctx context.Context, pending domain.PendingTransaction) (domain.Animal, error) {
	switch pending.Status {
	case domain.StatusReconciled:
		return s.reconfirm(ctx, pending.AnimalPDA)
	case domain.StatusFailed:
		return domain.Animal{}, domain.Ef(domain.KindTransactionFailed, "transaction failed on chain: %s", pending.ErrorMessage)
	default:
		return domain.Animal{}, domain.E(domain.KindExpired, "transaction expired without landing")
	}
}

// ConfirmApprove reconciles a submitted approval by copying the confirmed
// verification state from the chain.
func (s *AnimalService) ConfirmApprove(ctx context.Context, caller string, in ConfirmInput) (domain.Animal, error) {
	pending, err := s.resolvePending(ctx, caller, in)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) && in.SubjectPDA != "" {
			animal, rerr := s.reconfirm(ctx, in.SubjectPDA)
			if rerr != nil {
				return domain.Animal{}, rerr
			}
			if !animal.IsVerified {
				return domain.Animal{}, domain.E(domain.KindConflict, "no pending transaction and the mirror does not reflect an approval")
			}
			return animal, nil
		}
		return domain.Animal{}, err
	}
	if pending.Status.Terminal() {
		return s.reconfirmTerminal(ctx, pending)
	}

	if err := s.confirmPending(ctx, pending, in.TxSignature); err != nil {
		return domain.Animal{}, err
	}

	animal, err := s.mirrorChainAnimal(ctx, pending.AnimalPDA, in.TxSignature)
	if err != nil {
		return domain.Animal{}, err
	}

	if err := s.store.ArchivePending(ctx, pending.ID, domain.StatusReconciled, "", in.TxSignature); err != nil {
		s.logger.Warn("could not archive reconciled pending transaction", "pending", pending.ID, "error", err)
	}

	s.metrics.Confirm(string(domain.TxKindApproveAnimal), "finalized")
	s.logger.Info("animal approved", "animal", animal.PDA, "verifier", caller)
	return animal, nil
}

// ConfirmCancel reconciles a submitted cancellation. Only an explicit
// not-found on the animal account counts as closure; transport faults stay
// retryable.
func (s *AnimalService) ConfirmCancel(ctx context.Context, caller string, in ConfirmInput) error {
	pending, err := s.resolvePending(ctx, caller, in)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) && in.SubjectPDA != "" {
			if _, merr := s.store.GetAnimalByPDA(ctx, in.SubjectPDA); domain.IsKind(merr, domain.KindNotFound) {
				return nil // already reconciled
			}
			return domain.E(domain.KindConflict, "no pending transaction and the mirror still holds this animal")
		}
		return err
	}
	if pending.Status.Terminal() {
		if pending.Status == domain.StatusReconciled {
			return nil
		}
		_, terr := s.reconfirmTerminal(ctx, pending)
		return terr
	}

	if err := s.confirmPending(ctx, pending, in.TxSignature); err != nil {
		return err
	}

	animal, err := s.store.GetAnimalByPDA(ctx, pending.AnimalPDA)
	if err != nil && !domain.IsKind(err, domain.KindNotFound) {
		return err
	}

	_, fetchErr := s.gateway.FetchAnimal(ctx, pending.AnimalPDA)
	switch {
	case fetchErr == nil:
		return domain.E(domain.KindConflict, "transaction confirmed but the animal account still exists")
	case !domain.IsKind(fetchErr, domain.KindNotFound):
		// Transport fault: do not treat as closure, the caller may retry.
		return fetchErr
	}

	if err == nil {
		if derr := s.store.DeleteAnimal(ctx, pending.AnimalPDA); derr != nil && !domain.IsKind(derr, domain.KindNotFound) {
			s.metrics.Drift()
			s.logger.Error("mirror write failed after on-chain confirmation",
				"animal", pending.AnimalPDA, "signature", in.TxSignature, "error", derr)
			return domain.Wrap(domain.KindReconciliationDrift, "cancellation confirmed on chain but mirror delete failed", derr)
		}
		s.resyncRanchCount(ctx, animal.RanchPDA)
	}

	if err := s.store.ArchivePending(ctx, pending.ID, domain.StatusReconciled, "", in.TxSignature); err != nil {
		s.logger.Warn("could not archive reconciled pending transaction", "pending", pending.ID, "error", err)
	}

	s.metrics.Confirm(string(domain.TxKindCancelAnimal), "finalized")
	s.logger.Info("animal registration cancelled", "animal", pending.AnimalPDA, "by", caller)
	return nil
}

// ConfirmMutation reconciles a sale-flow transaction (price, buyer,
// purchase). These flows carry no pending row; the commitment comes from the
// build response the client held on to.
func (s *AnimalService) ConfirmMutation(ctx context.Context, kind domain.TxKind, in ConfirmInput) (domain.Animal, error) {
	if in.Commitment.Blockhash == "" {
		return domain.Animal{}, domain.E(domain.KindBadRequest, "commitment handle is required")
	}

	res, err := s.gateway.ConfirmSignature(ctx, in.TxSignature, in.Commitment)
	if err != nil {
		s.metrics.Confirm(string(kind), "error")
		return domain.Animal{}, err
	}
	if err := confirmResultError(res); err != nil {
		s.metrics.Confirm(string(kind), string(res.State))
		return domain.Animal{}, err
	}

	animal, err := s.mirrorChainAnimal(ctx, in.SubjectPDA, in.TxSignature)
	if err != nil {
		return domain.Animal{}, err
	}

	s.metrics.Confirm(string(kind), "finalized")
	return animal, nil
}

// mirrorChainAnimal fetches the authoritative animal record and overwrites
// the mirror row's chain-derived fields in one write.
func (s *AnimalService) mirrorChainAnimal(ctx context.Context, animalPDA, txSignature string) (domain.Animal, error) {
	account, err := s.gateway.FetchAnimal(ctx, animalPDA)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.Animal{}, domain.E(domain.KindConflict, "transaction confirmed but animal account does not exist")
		}
		return domain.Animal{}, err
	}

	animal := animalFromChain(animalPDA, account)
	if err := s.store.UpdateAnimal(ctx, animal); err != nil {
		s.metrics.Drift()
		s.logger.Error("mirror write failed after on-chain confirmation",
			"animal", animalPDA, "signature", txSignature, "error", err)
		return domain.Animal{}, domain.Wrap(domain.KindReconciliationDrift, "transaction confirmed on chain but mirror update failed", err)
	}
	return s.store.GetAnimalByPDA(ctx, animalPDA)
}
