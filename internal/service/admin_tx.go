package service

import (
	"context"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/solana"
)

// adminSigner signs and submits transactions with the service-held program
// authority key. Used by admin flows that require no co-signer.
type adminSigner struct {
	key          solana.PrivateKey
	gateway      solana.Gateway
	pollInterval time.Duration
	timeout      time.Duration
}

func newAdminSigner(key solana.PrivateKey, gateway solana.Gateway, timeout time.Duration) *adminSigner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &adminSigner{
		key:          key,
		gateway:      gateway,
		pollInterval: 2 * time.Second,
		timeout:      timeout,
	}
}

func (a *adminSigner) pubkey() solana.PublicKey {
	return a.key.PublicKey()
}

// submit builds, signs, sends and confirms a single-instruction transaction,
// returning its signature once finalized.
func (a *adminSigner) submit(ctx context.Context, ix solanago.Instruction) (string, error) {
	commitment, err := a.gateway.LatestCommitment(ctx)
	if err != nil {
		return "", err
	}

	tx, err := solana.NewUnsignedTransaction(ix, commitment, a.key.PublicKey())
	if err != nil {
		return "", err
	}
	if err := solana.SignWith(tx, a.key); err != nil {
		return "", err
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", domain.Wrap(domain.KindInternal, "serialize transaction", err)
	}

	sig, err := a.gateway.SubmitTransaction(ctx, raw)
	if err != nil {
		return "", err
	}

	if err := a.waitFinalized(ctx, sig, commitment); err != nil {
		return "", err
	}
	return sig, nil
}

func (a *adminSigner) waitFinalized(ctx context.Context, sig string, commitment domain.Commitment) error {
	deadline := time.Now().Add(a.timeout)
	for {
		res, err := a.gateway.ConfirmSignature(ctx, sig, commitment)
		if err != nil {
			return err
		}
		switch res.State {
		case solana.ConfirmFinalized:
			return nil
		case solana.ConfirmFailed:
			return domain.Ef(domain.KindTransactionFailed, "transaction failed on chain: %s", res.Reason)
		case solana.ConfirmExpired:
			return domain.E(domain.KindExpired, "transaction expired without landing")
		}

		if time.Now().After(deadline) {
			return domain.E(domain.KindNetwork, "confirmation timed out")
		}
		select {
		case <-ctx.Done():
			return domain.Wrap(domain.KindNetwork, "confirmation interrupted", ctx.Err())
		case <-time.After(a.pollInterval):
		}
	}
}
