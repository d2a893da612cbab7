package solana

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/solranch/backend/internal/domain"
)

// Client is the production Gateway backed by a ledger RPC node.
type Client struct {
	rpc *rpc.Client
}

// NewClient dials the RPC endpoint.
func NewClient(rpcURL string) *Client {
	return &Client{rpc: rpc.New(rpcURL)}
}

// LatestCommitment returns a finalized blockhash handle.
func (c *Client) LatestCommitment(ctx context.Context) (domain.Commitment, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return domain.Commitment{}, domain.Wrap(domain.KindNetwork, "get latest blockhash", err)
	}
	return domain.Commitment{
		Blockhash:            out.Value.Blockhash.String(),
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

// CurrentBlockHeight returns the finalized block height.
func (c *Client) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	height, err := c.rpc.GetBlockHeight(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return 0, domain.Wrap(domain.KindNetwork, "get block height", err)
	}
	return height, nil
}

// ConfirmSignature checks a signature's status; a signature that has not
// landed is pending until the chain passes the commitment's height window,
// after which it can never land.
func (c *Client) ConfirmSignature(ctx context.Context, signature string, commitment domain.Commitment) (ConfirmResult, error) {
	sig, err := solanago.SignatureFromBase58(signature)
	if err != nil {
		return ConfirmResult{}, domain.Wrap(domain.KindBadRequest, "invalid transaction signature", err)
	}

	statuses, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return ConfirmResult{}, domain.Wrap(domain.KindNetwork, "get signature status", err)
	}

	if len(statuses.Value) > 0 && statuses.Value[0] != nil {
		status := statuses.Value[0]
		if status.Err != nil {
			return ConfirmResult{State: ConfirmFailed, Reason: fmt.Sprintf("%v", status.Err)}, nil
		}
		if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			return ConfirmResult{State: ConfirmFinalized}, nil
		}
		return ConfirmResult{State: ConfirmPending}, nil
	}

	height, err := c.CurrentBlockHeight(ctx)
	if err != nil {
		return ConfirmResult{}, err
	}
	if height > commitment.LastValidBlockHeight {
		return ConfirmResult{State: ConfirmExpired}, nil
	}
	return ConfirmResult{State: ConfirmPending}, nil
}

func (c *Client) fetchAccountData(ctx context.Context, address string) ([]byte, error) {
	pk, err := solanago.PublicKeyFromBase58(address)
	if err != nil {
		return nil, domain.Wrap(domain.KindBadRequest, "invalid account address", err)
	}
	info, err := c.rpc.GetAccountInfo(ctx, pk)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, domain.Ef(domain.KindNotFound, "account %s does not exist", address)
		}
		return nil, domain.Wrap(domain.KindNetwork, "get account info", err)
	}
	if info.Value == nil {
		return nil, domain.Ef(domain.KindNotFound, "account %s does not exist", address)
	}
	return info.Value.Data.GetBinary(), nil
}

// FetchRanch loads and decodes a ranch account.
func (c *Client) FetchRanch(ctx context.Context, address string) (*RanchAccount, error) {
	data, err := c.fetchAccountData(ctx, address)
	if err != nil {
		return nil, err
	}
	return DecodeRanchAccount(data)
}

// FetchVerifier loads and decodes a verifier account.
func (c *Client) FetchVerifier(ctx context.Context, address string) (*VerifierAccount, error) {
	data, err := c.fetchAccountData(ctx, address)
	if err != nil {
		return nil, err
	}
	return DecodeVerifierAccount(data)
}

// FetchAnimal loads and decodes an animal account.
func (c *Client) FetchAnimal(ctx context.Context, address string) (*AnimalAccount, error) {
	data, err := c.fetchAccountData(ctx, address)
	if err != nil {
		return nil, err
	}
	return DecodeAnimalAccount(data)
}

// SubmitTransaction sends a fully signed transaction.
func (c *Client) SubmitTransaction(ctx context.Context, serialized []byte) (string, error) {
	tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(serialized))
	if err != nil {
		return "", domain.Wrap(domain.KindBadRequest, "transaction does not deserialize", err)
	}
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return "", domain.Wrap(domain.KindNetwork, "send transaction", err)
	}
	return sig.String(), nil
}

var _ Gateway = (*Client)(nil)
