package solana

import (
	"testing"
)

func testProgram(t *testing.T) PublicKey {
	t.Helper()
	key, err := NewKeypair()
	if err != nil {
		t.Fatalf("failed to generate keypair: %v", err)
	}
	return key.PublicKey()
}

func TestRanchPDADeterministic(t *testing.T) {
	program := testProgram(t)
	authority := testProgram(t)

	first, bump1, err := RanchPDA(program, authority)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	second, bump2, err := RanchPDA(program, authority)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if first != second || bump1 != bump2 {
		t.Fatalf("derivation is not deterministic: %s/%d vs %s/%d", first, bump1, second, bump2)
	}
}

func TestAnimalPDASequential(t *testing.T) {
	program := testProgram(t)
	ranch := testProgram(t)

	seen := make(map[string]uint64)
	for seq := uint64(0); seq < 5; seq++ {
		addr, _, err := AnimalPDA(program, ranch, seq)
		if err != nil {
			t.Fatalf("derive failed for seq %d: %v", seq, err)
		}
		if prev, ok := seen[addr.String()]; ok {
			t.Fatalf("seq %d collides with seq %d at %s", seq, prev, addr)
		}
		seen[addr.String()] = seq
	}

	// The same counter always yields the same address.
	again, _, err := AnimalPDA(program, ranch, 3)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if seen[again.String()] != 3 {
		t.Fatalf("seq 3 re-derivation does not match")
	}
}

func TestAnimalPDADependsOnRanch(t *testing.T) {
	program := testProgram(t)
	ranchA := testProgram(t)
	ranchB := testProgram(t)

	a, _, err := AnimalPDA(program, ranchA, 0)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	b, _, err := AnimalPDA(program, ranchB, 0)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if a == b {
		t.Fatalf("different ranches derived the same animal address %s", a)
	}
}

func TestParsePubkeyRejectsGarbage(t *testing.T) {
	if _, err := ParsePubkey("not-a-key"); err == nil {
		t.Fatal("expected error for malformed public key")
	}
}
