package solana

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/solranch/backend/internal/domain"
)

// MemoryGateway is an in-memory Gateway used for unit testing service logic
// without a running ledger node. Accounts are stored as typed records keyed by
// address; confirm results can be scripted per signature.
type MemoryGateway struct {
	mu             sync.Mutex
	ranches        map[string]RanchAccount
	verifiers      map[string]VerifierAccount
	animals        map[string]AnimalAccount
	confirmResults map[string]ConfirmResult
	submitResult   *ConfirmResult
	height         uint64
	validWindow    uint64
	submitted      [][]byte
	onSubmit       func()
	err            error
}

// NewMemoryGateway instantiates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		ranches:        make(map[string]RanchAccount),
		verifiers:      make(map[string]VerifierAccount),
		animals:        make(map[string]AnimalAccount),
		confirmResults: make(map[string]ConfirmResult),
		validWindow:    150,
	}
}

// WithError configures the gateway to fail every call with err.
func (m *MemoryGateway) WithError(err error) *MemoryGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// PutRanch stores a ranch account at address.
func (m *MemoryGateway) PutRanch(address string, acc RanchAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranches[address] = acc
}

// PutVerifier stores a verifier account at address.
func (m *MemoryGateway) PutVerifier(address string, acc VerifierAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifiers[address] = acc
}

// PutAnimal stores an animal account at address.
func (m *MemoryGateway) PutAnimal(address string, acc AnimalAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.animals[address] = acc
}

// RemoveAnimal deletes the animal account at address, mimicking an on-chain
// account close.
func (m *MemoryGateway) RemoveAnimal(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.animals, address)
}

// ScriptConfirm fixes the result returned for a signature.
func (m *MemoryGateway) ScriptConfirm(signature string, result ConfirmResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmResults[signature] = result
}

// AdvanceHeight moves the simulated chain tip forward.
func (m *MemoryGateway) AdvanceHeight(delta uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height += delta
}

// Submitted returns the raw transactions passed to SubmitTransaction.
func (m *MemoryGateway) Submitted() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.submitted))
	copy(out, m.submitted)
	return out
}

func (m *MemoryGateway) LatestCommitment(_ context.Context) (domain.Commitment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Commitment{}, m.err
	}
	return domain.Commitment{
		Blockhash:            fakeBlockhash(),
		LastValidBlockHeight: m.height + m.validWindow,
	}, nil
}

func (m *MemoryGateway) CurrentBlockHeight(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return m.height, nil
}

func (m *MemoryGateway) ConfirmSignature(_ context.Context, signature string, commitment domain.Commitment) (ConfirmResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return ConfirmResult{}, m.err
	}
	if res, ok := m.confirmResults[signature]; ok {
		return res, nil
	}
	if m.height > commitment.LastValidBlockHeight {
		return ConfirmResult{State: ConfirmExpired}, nil
	}
	return ConfirmResult{State: ConfirmPending}, nil
}

func (m *MemoryGateway) FetchRanch(_ context.Context, address string) (*RanchAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	acc, ok := m.ranches[address]
	if !ok {
		return nil, domain.Ef(domain.KindNotFound, "account %s does not exist", address)
	}
	return &acc, nil
}

func (m *MemoryGateway) FetchVerifier(_ context.Context, address string) (*VerifierAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	acc, ok := m.verifiers[address]
	if !ok {
		return nil, domain.Ef(domain.KindNotFound, "account %s does not exist", address)
	}
	return &acc, nil
}

func (m *MemoryGateway) FetchAnimal(_ context.Context, address string) (*AnimalAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	acc, ok := m.animals[address]
	if !ok {
		return nil, domain.Ef(domain.KindNotFound, "account %s does not exist", address)
	}
	return &acc, nil
}

func (m *MemoryGateway) SubmitTransaction(_ context.Context, serialized []byte) (string, error) {
	m.mu.Lock()
	if m.err != nil {
		m.mu.Unlock()
		return "", m.err
	}
	raw := make([]byte, len(serialized))
	copy(raw, serialized)
	m.submitted = append(m.submitted, raw)
	// Submitted transactions finalize immediately unless a test scripts
	// otherwise through ScriptSubmitResult.
	sig := uuid.NewString()
	if m.submitResult != nil {
		m.confirmResults[sig] = *m.submitResult
	} else {
		m.confirmResults[sig] = ConfirmResult{State: ConfirmFinalized}
	}
	hook := m.onSubmit
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return sig, nil
}

// OnSubmit registers a hook invoked after each submission, letting tests
// materialize the accounts a landed transaction would create.
func (m *MemoryGateway) OnSubmit(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSubmit = fn
}

// ScriptSubmitResult fixes the confirm result assigned to every subsequently
// submitted transaction.
func (m *MemoryGateway) ScriptSubmitResult(result ConfirmResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitResult = &result
}

// fakeBlockhash produces a syntactically valid base58 hash for test builds.
func fakeBlockhash() string {
	id := uuid.New()
	var seed [32]byte
	copy(seed[:16], id[:])
	copy(seed[16:], id[:])
	return PublicKey(seed).String()
}

var _ Gateway = (*MemoryGateway)(nil)
