package solana

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/solranch/backend/internal/domain"
)

// accountDiscriminator returns the 8-byte anchor account tag for a type name.
func accountDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:8]
}

// instructionDiscriminator returns the 8-byte anchor instruction tag for a
// snake_case method name.
func instructionDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

func decodeAccount(name string, data []byte, out any) error {
	disc := accountDiscriminator(name)
	if len(data) < len(disc) || !bytes.Equal(data[:8], disc) {
		return domain.Ef(domain.KindInternal, "account data is not a %s record", name)
	}
	if err := bin.NewBorshDecoder(data[8:]).Decode(out); err != nil {
		return domain.Wrap(domain.KindInternal, fmt.Sprintf("decode %s account", name), err)
	}
	return nil
}

// DecodeRanchAccount parses raw account data into a RanchAccount.
func DecodeRanchAccount(data []byte) (*RanchAccount, error) {
	var acc RanchAccount
	if err := decodeAccount("RanchProfile", data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// DecodeVerifierAccount parses raw account data into a VerifierAccount.
func DecodeVerifierAccount(data []byte) (*VerifierAccount, error) {
	var acc VerifierAccount
	if err := decodeAccount("VerifierProfile", data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// DecodeAnimalAccount parses raw account data into an AnimalAccount.
func DecodeAnimalAccount(data []byte) (*AnimalAccount, error) {
	var acc AnimalAccount
	if err := decodeAccount("Animal", data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func encodeAccount(name string, in any) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(accountDiscriminator(name))
	if err := bin.NewBorshEncoder(&buf).Encode(in); err != nil {
		return nil, domain.Wrap(domain.KindInternal, fmt.Sprintf("encode %s account", name), err)
	}
	return buf.Bytes(), nil
}

// EncodeRanchAccount serializes a RanchAccount with its discriminator.
func EncodeRanchAccount(acc *RanchAccount) ([]byte, error) {
	return encodeAccount("RanchProfile", acc)
}

// EncodeVerifierAccount serializes a VerifierAccount with its discriminator.
func EncodeVerifierAccount(acc *VerifierAccount) ([]byte, error) {
	return encodeAccount("VerifierProfile", acc)
}

// EncodeAnimalAccount serializes an AnimalAccount with its discriminator.
func EncodeAnimalAccount(acc *AnimalAccount) ([]byte, error) {
	return encodeAccount("Animal", acc)
}
