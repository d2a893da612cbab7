package solana

import (
	"encoding/base64"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"github.com/solranch/backend/internal/domain"
)

// Instruction and Transaction re-export the SDK types used across the
// service layer.
type (
	Instruction = solanago.Instruction
	Transaction = solanago.Transaction
)

// NewUnsignedTransaction assembles a single-instruction transaction against
// the given commitment with feePayer covering fees.
func NewUnsignedTransaction(ix Instruction, commitment domain.Commitment, feePayer PublicKey) (*solanago.Transaction, error) {
	blockhash, err := solanago.HashFromBase58(commitment.Blockhash)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "invalid blockhash", err)
	}
	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{ix},
		blockhash,
		solanago.TransactionPayer(feePayer),
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "assemble transaction", err)
	}
	return tx, nil
}

// EncodeTransaction serializes a transaction to base64 for transport.
func EncodeTransaction(tx *solanago.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", domain.Wrap(domain.KindInternal, "serialize transaction", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeTransaction parses a base64 transaction payload. Malformed payloads
// are a BadRequest: they come from clients.
func DecodeTransaction(encoded string) (*solanago.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domain.Wrap(domain.KindBadRequest, "transaction payload is not valid base64", err)
	}
	tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, domain.Wrap(domain.KindBadRequest, "transaction payload does not deserialize", err)
	}
	return tx, nil
}

// HasSignature reports whether the transaction carries at least one non-empty
// signature. A freshly built transaction has placeholder zero signatures for
// each required signer.
func HasSignature(tx *solanago.Transaction) bool {
	var zero solanago.Signature
	for _, sig := range tx.Signatures {
		if sig != zero {
			return true
		}
	}
	return false
}

// SignWith signs the transaction with the given private key and returns it.
func SignWith(tx *solanago.Transaction, key solanago.PrivateKey) error {
	_, err := tx.Sign(func(pk solanago.PublicKey) *solanago.PrivateKey {
		if pk.Equals(key.PublicKey()) {
			return &key
		}
		return nil
	})
	if err != nil {
		return domain.Wrap(domain.KindInternal, "sign transaction", err)
	}
	return nil
}
