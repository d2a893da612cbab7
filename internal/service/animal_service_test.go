package service

import (
	"context"
	"testing"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/solana"
)

// animalFixture wires a verified ranch and an active verifier into the store
// and the simulated chain, ready for registration flows.
type animalFixture struct {
	store   *memStore
	gateway *solana.MemoryGateway
	program *solana.Program
	svc     *AnimalService

	rancherKey  solana.PrivateKey
	rancher     string
	verifierKey solana.PrivateKey
	verifier    string
	ranchPDA    string
	verifierPDA string
}

func newAnimalFixture(t *testing.T) *animalFixture {
	t.Helper()
	f := &animalFixture{
		store:   newMemStore(),
		gateway: solana.NewMemoryGateway(),
		program: testProgram(t),
	}
	f.svc = NewAnimalService(f.store, f.gateway, f.program, nil, nil)

	f.rancherKey, f.rancher = testWallet(t)
	rancherAuthority, _ := solana.ParsePubkey(f.rancher)
	ranchPDA, _, err := solana.RanchPDA(f.program.ID, rancherAuthority)
	if err != nil {
		t.Fatalf("derive ranch failed: %v", err)
	}
	f.ranchPDA = ranchPDA.String()
	f.store.ranches[f.ranchPDA] = domain.Ranch{
		PDA: f.ranchPDA, Authority: f.rancher, Name: "Cedar Creek Ranch", IsVerified: true,
	}
	f.gateway.PutRanch(f.ranchPDA, solana.RanchAccount{
		Authority: rancherAuthority, Name: "Cedar Creek Ranch", IsVerified: true,
	})

	f.verifierKey, f.verifier = testWallet(t)
	verifierAuthority, _ := solana.ParsePubkey(f.verifier)
	verifierPDA, _, err := solana.VerifierPDA(f.program.ID, verifierAuthority)
	if err != nil {
		t.Fatalf("derive verifier failed: %v", err)
	}
	f.verifierPDA = verifierPDA.String()
	f.store.verifiers[f.verifierPDA] = domain.Verifier{
		PDA: f.verifierPDA, Authority: f.verifier, Name: "AgroCert", IsActive: true,
	}
	f.gateway.PutVerifier(f.verifierPDA, solana.VerifierAccount{
		Authority: verifierAuthority, Name: "AgroCert", IsActive: true,
	})
	return f
}

func (f *animalFixture) registerInput() RegisterAnimalInput {
	return RegisterAnimalInput{
		VerifierPDA: f.verifierPDA,
		ChipID:      "CHIP-000123",
		Specie:      "Bovine",
		Breed:       "Angus",
		BirthDate:   1_700_000_000,
	}
}

// partialSign adds one party's signature without requiring the others,
// mirroring what a wallet does to a co-signed payload.
func partialSign(t *testing.T, encoded string, key solana.PrivateKey) string {
	t.Helper()
	tx, err := solana.DecodeTransaction(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, err := tx.PartialSign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(key.PublicKey()) {
			return &key
		}
		return nil
	}); err != nil {
		t.Fatalf("partial sign failed: %v", err)
	}
	signed, err := solana.EncodeTransaction(tx)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return signed
}

// mirrorAnimal places a reconciled animal in the store and matching account
// on the chain, for flows that start after registration.
func (f *animalFixture) mirrorAnimal(t *testing.T, seq uint64, mutate func(*domain.Animal, *solana.AnimalAccount)) string {
	t.Helper()
	ranchPDA, _ := solana.ParsePubkey(f.ranchPDA)
	pda, _, err := solana.AnimalPDA(f.program.ID, ranchPDA, seq)
	if err != nil {
		t.Fatalf("derive animal failed: %v", err)
	}
	owner, _ := solana.ParsePubkey(f.rancher)
	verifierAuthority, _ := solana.ParsePubkey(f.verifier)

	account := solana.AnimalAccount{
		ID: seq, Owner: owner, OriginRanch: ranchPDA,
		IDChip: "CHIP-000123", Specie: "Bovine", Breed: "Angus",
		BirthDate: 1_700_000_000, AssignedVerifier: verifierAuthority,
	}
	animal := domain.Animal{
		PDA: pda.String(), Seq: seq, Owner: f.rancher, RanchPDA: f.ranchPDA,
		ChipID: "CHIP-000123", Specie: "Bovine", Breed: "Angus",
		BirthDate: 1_700_000_000, AssignedVerifier: f.verifier,
	}
	if mutate != nil {
		mutate(&animal, &account)
	}
	f.store.animals[animal.PDA] = animal
	f.gateway.PutAnimal(animal.PDA, account)
	return animal.PDA
}

func TestBuildRegisterAnimal(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()

	res, err := f.svc.BuildRegister(ctx, f.rancher, f.registerInput())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if res.PendingID == "" {
		t.Fatal("registration must reserve a pending row")
	}

	ranchPDA, _ := solana.ParsePubkey(f.ranchPDA)
	want, _, _ := solana.AnimalPDA(f.program.ID, ranchPDA, 0)
	if res.SubjectPDA != want.String() {
		t.Fatalf("address mismatch: got %s want %s", res.SubjectPDA, want)
	}

	pending := f.store.pendings[res.PendingID]
	if pending.Status != domain.StatusAwaitingRancherSignature {
		t.Fatalf("expected awaiting rancher signature, got %s", pending.Status)
	}
	if pending.RancherPubkey != f.rancher || pending.VerifierPubkey != f.verifier {
		t.Fatalf("pending row binds wrong parties: %+v", pending)
	}

	// A second build for the same address conflicts while the first is in
	// flight.
	if _, err := f.svc.BuildRegister(ctx, f.rancher, f.registerInput()); !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestBuildRegisterAnimalDerivesFromChainCounter(t *testing.T) {
	f := newAnimalFixture(t)

	// The chain counter, not the mirror's, decides the next address.
	rancherAuthority, _ := solana.ParsePubkey(f.rancher)
	f.gateway.PutRanch(f.ranchPDA, solana.RanchAccount{
		Authority: rancherAuthority, Name: "Cedar Creek Ranch", IsVerified: true, AnimalCount: 7,
	})

	res, err := f.svc.BuildRegister(context.Background(), f.rancher, f.registerInput())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	ranchPDA, _ := solana.ParsePubkey(f.ranchPDA)
	want, _, _ := solana.AnimalPDA(f.program.ID, ranchPDA, 7)
	if res.SubjectPDA != want.String() {
		t.Fatalf("address mismatch: got %s want %s", res.SubjectPDA, want)
	}
}

func TestBuildRegisterAnimalPreconditions(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()

	_, stranger := testWallet(t)
	if _, err := f.svc.BuildRegister(ctx, stranger, f.registerInput()); !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure without a ranch, got %v", err)
	}

	unverified := f.store.ranches[f.ranchPDA]
	unverified.IsVerified = false
	f.store.ranches[f.ranchPDA] = unverified
	if _, err := f.svc.BuildRegister(ctx, f.rancher, f.registerInput()); !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure for an unverified ranch, got %v", err)
	}
	unverified.IsVerified = true
	f.store.ranches[f.ranchPDA] = unverified

	in := f.registerInput()
	in.VerifierPDA = "NoSuchVerifier"
	if _, err := f.svc.BuildRegister(ctx, f.rancher, in); !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure for a missing verifier, got %v", err)
	}

	inactive := f.store.verifiers[f.verifierPDA]
	inactive.IsActive = false
	f.store.verifiers[f.verifierPDA] = inactive
	if _, err := f.svc.BuildRegister(ctx, f.rancher, f.registerInput()); !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure for an inactive verifier, got %v", err)
	}
}

func TestBuildRegisterAnimalValidatesInput(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*RegisterAnimalInput)
	}{
		{"blank chip", func(in *RegisterAnimalInput) { in.ChipID = " " }},
		{"blank specie", func(in *RegisterAnimalInput) { in.Specie = "" }},
		{"blank breed", func(in *RegisterAnimalInput) { in.Breed = "" }},
		{"zero birth date", func(in *RegisterAnimalInput) { in.BirthDate = 0 }},
	}
	for _, tc := range cases {
		in := f.registerInput()
		tc.mutate(&in)
		if _, err := f.svc.BuildRegister(ctx, f.rancher, in); !domain.IsKind(err, domain.KindBadRequest) {
			t.Fatalf("%s: expected bad request, got %v", tc.name, err)
		}
	}
}

func TestAddRancherSignature(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()

	res, err := f.svc.BuildRegister(ctx, f.rancher, f.registerInput())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	signed := partialSign(t, res.Transaction, f.rancherKey)
	pending, err := f.svc.AddRancherSignature(ctx, f.rancher, res.PendingID, signed)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if pending.Status != domain.StatusAwaitingVerifierSignature {
		t.Fatalf("expected awaiting verifier signature, got %s", pending.Status)
	}
	if pending.SerializedTx != signed {
		t.Fatal("stored payload was not replaced with the signed one")
	}
}

func TestAddRancherSignatureRejections(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()

	res, err := f.svc.BuildRegister(ctx, f.rancher, f.registerInput())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	_, stranger := testWallet(t)
	if _, err := f.svc.AddRancherSignature(ctx, stranger, res.PendingID, res.Transaction); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden for a stranger, got %v", err)
	}

	// The unsigned build payload carries only placeholder signatures.
	if _, err := f.svc.AddRancherSignature(ctx, f.rancher, res.PendingID, res.Transaction); !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected bad request for an unsigned payload, got %v", err)
	}
	if _, err := f.svc.AddRancherSignature(ctx, f.rancher, res.PendingID, "not base64!"); !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected bad request for garbage, got %v", err)
	}

	signed := partialSign(t, res.Transaction, f.rancherKey)
	if _, err := f.svc.AddRancherSignature(ctx, f.rancher, res.PendingID, signed); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	// Signing twice is a stage violation, not an overwrite.
	if _, err := f.svc.AddRancherSignature(ctx, f.rancher, res.PendingID, signed); !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure on repeat sign, got %v", err)
	}
}

func TestTransactionForVerifier(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()

	res, err := f.svc.BuildRegister(ctx, f.rancher, f.registerInput())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// Before the rancher signs, the payload is not available.
	if _, err := f.svc.TransactionForVerifier(ctx, f.verifier, res.PendingID); !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure before the rancher signs, got %v", err)
	}

	signed := partialSign(t, res.Transaction, f.rancherKey)
	if _, err := f.svc.AddRancherSignature(ctx, f.rancher, res.PendingID, signed); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := f.svc.TransactionForVerifier(ctx, f.rancher, res.PendingID); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden for a non-party verifier, got %v", err)
	}

	envelope, err := f.svc.TransactionForVerifier(ctx, f.verifier, res.PendingID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if envelope.Transaction != signed {
		t.Fatal("envelope does not carry the rancher-signed payload")
	}
	if envelope.Commitment.Blockhash != res.Commitment.Blockhash {
		t.Fatal("envelope does not carry the build commitment")
	}

	page, err := f.svc.PendingForVerifier(ctx, f.verifier, 1, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != res.PendingID {
		t.Fatalf("expected the pending registration in the verifier queue, got %+v", page.Items)
	}
}

func TestConfirmRegisterAnimal(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()

	res, err := f.svc.BuildRegister(ctx, f.rancher, f.registerInput())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	signed := partialSign(t, res.Transaction, f.rancherKey)
	if _, err := f.svc.AddRancherSignature(ctx, f.rancher, res.PendingID, signed); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	// The verifier co-signed and submitted; the account now exists and the
	// ranch counter moved.
	owner, _ := solana.ParsePubkey(f.rancher)
	ranchPDA, _ := solana.ParsePubkey(f.ranchPDA)
	verifierAuthority, _ := solana.ParsePubkey(f.verifier)
	f.gateway.PutAnimal(res.SubjectPDA, solana.AnimalAccount{
		ID: 0, Owner: owner, OriginRanch: ranchPDA,
		IDChip: "CHIP-000123", Specie: "Bovine", Breed: "Angus",
		BirthDate: 1_700_000_000, AssignedVerifier: verifierAuthority,
	})
	f.gateway.PutRanch(f.ranchPDA, solana.RanchAccount{
		Authority: owner, Name: "Cedar Creek Ranch", IsVerified: true, AnimalCount: 1,
	})
	f.gateway.ScriptConfirm("sig-reg", solana.ConfirmResult{State: solana.ConfirmFinalized})

	animal, err := f.svc.ConfirmRegister(ctx, f.verifier, ConfirmInput{PendingID: res.PendingID, TxSignature: "sig-reg"})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if animal.PDA != res.SubjectPDA || animal.ChipID != "CHIP-000123" || animal.AssignedVerifier != f.verifier {
		t.Fatalf("unexpected mirrored animal: %+v", animal)
	}
	if animal.IsVerified {
		t.Fatal("a fresh registration must not be verified")
	}

	pending := f.store.pendings[res.PendingID]
	if pending.Status != domain.StatusReconciled || pending.ArchivedAt == nil {
		t.Fatalf("pending row not archived as reconciled: %+v", pending)
	}
	if got := f.store.ranches[f.ranchPDA].AnimalCount; got != 1 {
		t.Fatalf("ranch counter not resynced, got %d", got)
	}

	// A repeat confirm is answered from the terminal row.
	again, err := f.svc.ConfirmRegister(ctx, f.rancher, ConfirmInput{PendingID: res.PendingID, TxSignature: "sig-reg"})
	if err != nil {
		t.Fatalf("repeat confirm failed: %v", err)
	}
	if again.PDA != animal.PDA {
		t.Fatalf("repeat confirm returned a different animal: %s", again.PDA)
	}
}

func TestConfirmRegisterAnimalBeforeRancherSigns(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()

	res, err := f.svc.BuildRegister(ctx, f.rancher, f.registerInput())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	_, err = f.svc.ConfirmRegister(ctx, f.rancher, ConfirmInput{PendingID: res.PendingID, TxSignature: "sig"})
	if !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestConfirmRegisterAnimalExpired(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()

	res, err := f.svc.BuildRegister(ctx, f.rancher, f.registerInput())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	signed := partialSign(t, res.Transaction, f.rancherKey)
	if _, err := f.svc.AddRancherSignature(ctx, f.rancher, res.PendingID, signed); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	f.gateway.AdvanceHeight(res.Commitment.LastValidBlockHeight + 1)
	_, err = f.svc.ConfirmRegister(ctx, f.verifier, ConfirmInput{PendingID: res.PendingID, TxSignature: "sig-lost"})
	if !domain.IsKind(err, domain.KindExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if got := f.store.pendings[res.PendingID].Status; got != domain.StatusExpired {
		t.Fatalf("pending row not archived as expired, got %s", got)
	}

	// The expired row is terminal.
	_, err = f.svc.ConfirmRegister(ctx, f.verifier, ConfirmInput{PendingID: res.PendingID, TxSignature: "sig-lost"})
	if !domain.IsKind(err, domain.KindExpired) {
		t.Fatalf("expected expired on repeat, got %v", err)
	}

	// And the address is free for a fresh build.
	if _, err := f.svc.BuildRegister(ctx, f.rancher, f.registerInput()); err != nil {
		t.Fatalf("rebuild after expiry failed: %v", err)
	}
}

func TestConfirmRegisterAnimalFailedOnChain(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()

	res, err := f.svc.BuildRegister(ctx, f.rancher, f.registerInput())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	signed := partialSign(t, res.Transaction, f.rancherKey)
	if _, err := f.svc.AddRancherSignature(ctx, f.rancher, res.PendingID, signed); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	f.gateway.ScriptConfirm("sig-bad", solana.ConfirmResult{State: solana.ConfirmFailed, Reason: "custom program error: 0x1772"})
	_, err = f.svc.ConfirmRegister(ctx, f.verifier, ConfirmInput{PendingID: res.PendingID, TxSignature: "sig-bad"})
	if !domain.IsKind(err, domain.KindTransactionFailed) {
		t.Fatalf("expected transaction failure, got %v", err)
	}
	if got := f.store.pendings[res.PendingID].Status; got != domain.StatusFailed {
		t.Fatalf("pending row not archived as failed, got %s", got)
	}
}

func TestApproveAnimalFlow(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()
	pda := f.mirrorAnimal(t, 0, nil)

	_, stranger := testWallet(t)
	if _, err := f.svc.BuildApprove(ctx, stranger, pda); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden for a non-assigned wallet, got %v", err)
	}
	if _, err := f.svc.BuildApprove(ctx, f.rancher, pda); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden for the owner, got %v", err)
	}

	res, err := f.svc.BuildApprove(ctx, f.verifier, pda)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if res.PendingID == "" {
		t.Fatal("approval must reserve a pending row")
	}

	// The verifier signed and submitted; the chain reflects the approval.
	owner, _ := solana.ParsePubkey(f.rancher)
	ranchPDA, _ := solana.ParsePubkey(f.ranchPDA)
	verifierAuthority, _ := solana.ParsePubkey(f.verifier)
	f.gateway.PutAnimal(pda, solana.AnimalAccount{
		ID: 0, Owner: owner, OriginRanch: ranchPDA,
		IDChip: "CHIP-000123", Specie: "Bovine", Breed: "Angus",
		BirthDate: 1_700_000_000, IsVerified: true, AssignedVerifier: verifierAuthority,
	})
	f.gateway.ScriptConfirm("sig-approve", solana.ConfirmResult{State: solana.ConfirmFinalized})

	animal, err := f.svc.ConfirmApprove(ctx, f.verifier, ConfirmInput{PendingID: res.PendingID, TxSignature: "sig-approve"})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if !animal.IsVerified {
		t.Fatal("approval did not mark the animal verified")
	}
	if !f.store.animals[pda].IsVerified {
		t.Fatal("mirror not updated")
	}

	// Already verified: a second approval cannot be built.
	if _, err := f.svc.BuildApprove(ctx, f.verifier, pda); !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure for a verified animal, got %v", err)
	}
}

func TestBuildCancelRejections(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()

	verified := f.mirrorAnimal(t, 0, func(a *domain.Animal, acc *solana.AnimalAccount) {
		a.IsVerified = true
		acc.IsVerified = true
	})
	if _, err := f.svc.BuildCancel(ctx, f.rancher, verified); !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure for a verified animal, got %v", err)
	}

	price := uint64(2_000_000_000)
	onSale := f.mirrorAnimal(t, 1, func(a *domain.Animal, acc *solana.AnimalAccount) {
		a.SalePrice = &price
		acc.SalePrice = &price
	})
	if _, err := f.svc.BuildCancel(ctx, f.rancher, onSale); !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure for an animal on sale, got %v", err)
	}

	plain := f.mirrorAnimal(t, 2, nil)
	_, stranger := testWallet(t)
	if _, err := f.svc.BuildCancel(ctx, stranger, plain); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden for a stranger, got %v", err)
	}
}

func TestCancelAnimalFlow(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()
	pda := f.mirrorAnimal(t, 0, nil)

	res, err := f.svc.BuildCancel(ctx, f.rancher, pda)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// The owner signed and submitted; the account is closed and the
	// counter rolled back.
	f.gateway.RemoveAnimal(pda)
	owner, _ := solana.ParsePubkey(f.rancher)
	f.gateway.PutRanch(f.ranchPDA, solana.RanchAccount{
		Authority: owner, Name: "Cedar Creek Ranch", IsVerified: true, AnimalCount: 0,
	})
	f.gateway.ScriptConfirm("sig-cancel", solana.ConfirmResult{State: solana.ConfirmFinalized})

	if err := f.svc.ConfirmCancel(ctx, f.rancher, ConfirmInput{PendingID: res.PendingID, TxSignature: "sig-cancel"}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, ok := f.store.animals[pda]; ok {
		t.Fatal("mirror row survived the cancellation")
	}
	if got := f.store.pendings[res.PendingID].Status; got != domain.StatusReconciled {
		t.Fatalf("pending row not archived, got %s", got)
	}

	// Idempotent on the terminal row.
	if err := f.svc.ConfirmCancel(ctx, f.rancher, ConfirmInput{PendingID: res.PendingID, TxSignature: "sig-cancel"}); err != nil {
		t.Fatalf("repeat confirm failed: %v", err)
	}
}

func TestConfirmCancelAccountStillExists(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()
	pda := f.mirrorAnimal(t, 0, nil)

	res, err := f.svc.BuildCancel(ctx, f.rancher, pda)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	// Finalized signature but the account was never closed: the mirror
	// must not drop the row.
	f.gateway.ScriptConfirm("sig-cancel", solana.ConfirmResult{State: solana.ConfirmFinalized})

	err = f.svc.ConfirmCancel(ctx, f.rancher, ConfirmInput{PendingID: res.PendingID, TxSignature: "sig-cancel"})
	if !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, ok := f.store.animals[pda]; !ok {
		t.Fatal("mirror row was dropped despite the live account")
	}
}

func TestBuildSetPriceGuards(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()

	unverified := f.mirrorAnimal(t, 0, nil)
	if _, err := f.svc.BuildSetPrice(ctx, f.rancher, unverified, 1000); !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure for an unverified animal, got %v", err)
	}

	verified := f.mirrorAnimal(t, 1, func(a *domain.Animal, acc *solana.AnimalAccount) {
		a.IsVerified = true
		acc.IsVerified = true
	})
	_, stranger := testWallet(t)
	if _, err := f.svc.BuildSetPrice(ctx, stranger, verified, 1000); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden for a non-owner, got %v", err)
	}
	if _, err := f.svc.BuildSetPrice(ctx, f.rancher, verified, 0); !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected bad request for a zero price, got %v", err)
	}

	res, err := f.svc.BuildSetPrice(ctx, f.rancher, verified, 2_000_000_000)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if res.PendingID != "" {
		t.Fatal("sale flows must not reserve a pending row")
	}
	if res.Commitment.Blockhash == "" {
		t.Fatal("sale flows must hand the commitment to the client")
	}
}

func TestBuildSetBuyerGuards(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()
	_, buyer := testWallet(t)

	notListed := f.mirrorAnimal(t, 0, func(a *domain.Animal, acc *solana.AnimalAccount) {
		a.IsVerified = true
		acc.IsVerified = true
	})
	if _, err := f.svc.BuildSetBuyer(ctx, f.rancher, notListed, buyer); !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure for an unlisted animal, got %v", err)
	}

	price := uint64(2_000_000_000)
	listed := f.mirrorAnimal(t, 1, func(a *domain.Animal, acc *solana.AnimalAccount) {
		a.IsVerified = true
		acc.IsVerified = true
		a.SalePrice = &price
		acc.SalePrice = &price
	})
	if _, err := f.svc.BuildSetBuyer(ctx, f.rancher, listed, f.rancher); !domain.IsKind(err, domain.KindPreconditionFailed) {
		t.Fatalf("expected precondition failure for owner-as-buyer, got %v", err)
	}
	if _, err := f.svc.BuildSetBuyer(ctx, buyer, listed, buyer); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden for a non-owner, got %v", err)
	}
	if _, err := f.svc.BuildSetBuyer(ctx, f.rancher, listed, buyer); err != nil {
		t.Fatalf("build failed: %v", err)
	}
}

func TestPurchaseAnimalFlow(t *testing.T) {
	f := newAnimalFixture(t)
	ctx := context.Background()
	_, buyer := testWallet(t)

	price := uint64(1_000_000_000)
	pda := f.mirrorAnimal(t, 0, func(a *domain.Animal, acc *solana.AnimalAccount) {
		a.IsVerified = true
		acc.IsVerified = true
		a.SalePrice = &price
		acc.SalePrice = &price
		a.AllowedBuyer = buyer
		buyerPub, _ := solana.ParsePubkey(buyer)
		acc.AllowedBuyer = &buyerPub
	})

	_, stranger := testWallet(t)
	if _, err := f.svc.BuildPurchase(ctx, stranger, pda); !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden for a non-designated wallet, got %v", err)
	}

	res, err := f.svc.BuildPurchase(ctx, buyer, pda)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// The buyer signed and submitted; the chain shows the new owner and a
	// cleared listing.
	owner, _ := solana.ParsePubkey(buyer)
	ranchPDA, _ := solana.ParsePubkey(f.ranchPDA)
	verifierAuthority, _ := solana.ParsePubkey(f.verifier)
	f.gateway.PutAnimal(pda, solana.AnimalAccount{
		ID: 0, Owner: owner, OriginRanch: ranchPDA,
		IDChip: "CHIP-000123", Specie: "Bovine", Breed: "Angus",
		BirthDate: 1_700_000_000, IsVerified: true, AssignedVerifier: verifierAuthority,
		LastSalePrice: price,
	})
	f.gateway.ScriptConfirm("sig-buy", solana.ConfirmResult{State: solana.ConfirmFinalized})

	animal, err := f.svc.ConfirmMutation(ctx, domain.TxKindPurchase, ConfirmInput{
		SubjectPDA: pda, TxSignature: "sig-buy", Commitment: res.Commitment,
	})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if animal.Owner != buyer {
		t.Fatalf("ownership did not transfer, owner is %s", animal.Owner)
	}
	if animal.OnSale() {
		t.Fatal("listing survived the purchase")
	}
	if animal.LastSalePrice == nil || *animal.LastSalePrice != price {
		t.Fatalf("last sale price not recorded: %+v", animal.LastSalePrice)
	}
	if animal.AllowedBuyer != "" {
		t.Fatal("allowed buyer survived the purchase")
	}
}

func TestConfirmMutationRequiresCommitment(t *testing.T) {
	f := newAnimalFixture(t)

	_, err := f.svc.ConfirmMutation(context.Background(), domain.TxKindSetPrice, ConfirmInput{
		SubjectPDA: "SomeAnimal", TxSignature: "sig",
	})
	if !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected bad request without a commitment, got %v", err)
	}
}
