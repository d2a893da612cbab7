package solana

import (
	"encoding/binary"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/solranch/backend/internal/domain"
)

// PublicKey re-exports the ledger key type so callers outside this package do
// not import the SDK directly.
type PublicKey = solanago.PublicKey

// PrivateKey re-exports the ledger keypair type.
type PrivateKey = solanago.PrivateKey

// ParsePrivateKey decodes a base58 keypair.
func ParsePrivateKey(s string) (PrivateKey, error) {
	key, err := solanago.PrivateKeyFromBase58(s)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "invalid private key", err)
	}
	return key, nil
}

// NewKeypair generates a random keypair.
func NewKeypair() (PrivateKey, error) {
	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "generate keypair", err)
	}
	return key, nil
}

// PDA seed prefixes fixed by the registry program.
const (
	seedRanch    = "ranch"
	seedVerifier = "verifier"
	seedAnimal   = "ranch_animal"
)

// ParsePubkey decodes a base58 public key.
func ParsePubkey(s string) (PublicKey, error) {
	pk, err := solanago.PublicKeyFromBase58(s)
	if err != nil {
		return PublicKey{}, domain.Wrap(domain.KindBadRequest, "invalid public key", err)
	}
	return pk, nil
}

// RanchPDA derives the ranch account address for an authority.
func RanchPDA(program, authority PublicKey) (PublicKey, uint8, error) {
	addr, bump, err := solanago.FindProgramAddress(
		[][]byte{[]byte(seedRanch), authority.Bytes()},
		program,
	)
	if err != nil {
		return PublicKey{}, 0, domain.Wrap(domain.KindInternal, "derive ranch address", err)
	}
	return addr, bump, nil
}

// VerifierPDA derives the verifier account address for an authority.
func VerifierPDA(program, authority PublicKey) (PublicKey, uint8, error) {
	addr, bump, err := solanago.FindProgramAddress(
		[][]byte{[]byte(seedVerifier), authority.Bytes()},
		program,
	)
	if err != nil {
		return PublicKey{}, 0, domain.Wrap(domain.KindInternal, "derive verifier address", err)
	}
	return addr, bump, nil
}

// AnimalPDA derives the animal account address from its ranch and the ranch
// counter value at creation.
func AnimalPDA(program, ranch PublicKey, seq uint64) (PublicKey, uint8, error) {
	var seqBytes [8]byte
	binary.LittleEndian.PutUint64(seqBytes[:], seq)
	addr, bump, err := solanago.FindProgramAddress(
		[][]byte{[]byte(seedAnimal), ranch.Bytes(), seqBytes[:]},
		program,
	)
	if err != nil {
		return PublicKey{}, 0, domain.Wrap(domain.KindInternal, "derive animal address", err)
	}
	return addr, bump, nil
}
