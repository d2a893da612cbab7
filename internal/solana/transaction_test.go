package solana

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/solranch/backend/internal/domain"
)

func TestTransactionSignAndRoundTrip(t *testing.T) {
	authority, err := NewKeypair()
	if err != nil {
		t.Fatalf("failed to generate keypair: %v", err)
	}
	program := &Program{ID: testProgram(t)}

	ix, err := program.RegisterRanch(authority.PublicKey(), "Cedar Creek Ranch", domain.CountryArgentina)
	if err != nil {
		t.Fatalf("build instruction failed: %v", err)
	}

	commitment := domain.Commitment{Blockhash: fakeBlockhash(), LastValidBlockHeight: 150}
	tx, err := NewUnsignedTransaction(ix, commitment, authority.PublicKey())
	if err != nil {
		t.Fatalf("assemble transaction failed: %v", err)
	}
	if HasSignature(tx) {
		t.Fatal("fresh transaction should carry only placeholder signatures")
	}

	if err := SignWith(tx, authority); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if !HasSignature(tx) {
		t.Fatal("signed transaction reports no signature")
	}

	encoded, err := EncodeTransaction(tx)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeTransaction(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !HasSignature(decoded) {
		t.Fatal("signature lost in round trip")
	}
	if decoded.Message.RecentBlockhash.String() != commitment.Blockhash {
		t.Fatalf("blockhash changed in round trip: %s", decoded.Message.RecentBlockhash)
	}
}

func TestDecodeTransactionRejectsGarbage(t *testing.T) {
	if _, err := DecodeTransaction("%%%not-base64%%%"); !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected bad request for invalid base64, got %v", err)
	}
	if _, err := DecodeTransaction("aGVsbG8="); !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected bad request for non-transaction bytes, got %v", err)
	}
}

func TestInstructionCarriesDiscriminatorAndArgs(t *testing.T) {
	authority := testProgram(t)
	program := &Program{ID: testProgram(t)}

	ix, err := program.SetAnimalPrice(testProgram(t), authority, testProgram(t), 1_000_000_000)
	if err != nil {
		t.Fatalf("build instruction failed: %v", err)
	}

	data, err := ix.Data()
	if err != nil {
		t.Fatalf("instruction data failed: %v", err)
	}
	sum := sha256.Sum256([]byte("global:set_animal_price"))
	if !bytes.HasPrefix(data, sum[:8]) {
		t.Fatalf("instruction data does not start with the method tag: %x", data[:8])
	}
	if len(data) != 8+8 {
		t.Fatalf("expected 8-byte tag plus u64 price, got %d bytes", len(data))
	}
}
