package relayer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Illuminfti/ika-tensei-relay/pkg/db"
	"github.com/Illuminfti/ika-tensei-relay/pkg/near"
	"github.com/Illuminfti/ika-tensei-relay/pkg/solana"
)

// mockStore is an in-memory SealStore enforcing the same transition guards
// as the real one.
type mockStore struct {
	mu      sync.Mutex
	records map[string]*db.SealRecord
	cursors map[string]int64

	markFailedCalls []string
	errOn           map[string]error
}

func newMockStore() *mockStore {
	return &mockStore{
		records: make(map[string]*db.SealRecord),
		cursors: make(map[string]int64),
		errOn:   make(map[string]error),
	}
}

func (m *mockStore) failNext(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errOn[method] = err
}

func (m *mockStore) takeErr(method string) error {
	if err, ok := m.errOn[method]; ok {
		delete(m.errOn, method)
		return err
	}
	return nil
}

func (m *mockStore) CreateSealRecord(_ context.Context, rec *db.SealRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr("CreateSealRecord"); err != nil {
		return false, err
	}
	if _, ok := m.records[rec.SealHash]; ok {
		return false, nil
	}
	cp := *rec
	cp.Status = db.StatusSealed
	m.records[rec.SealHash] = &cp
	return true, nil
}

func (m *mockStore) GetSealRecord(_ context.Context, sealHash string) (*db.SealRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr("GetSealRecord"); err != nil {
		return nil, err
	}
	rec, ok := m.records[sealHash]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *mockStore) GetResumable(_ context.Context) ([]*db.SealRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*db.SealRecord
	for _, rec := range m.records {
		if rec.Status != db.StatusCompleted && rec.Status != db.StatusFailed {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) CountByStatus(_ context.Context) (map[db.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[db.Status]int)
	for _, rec := range m.records {
		counts[rec.Status]++
	}
	return counts, nil
}

func (m *mockStore) UpdateStatus(_ context.Context, sealHash string, from, to db.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr("UpdateStatus"); err != nil {
		return err
	}
	if !db.CanTransition(from, to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	rec, ok := m.records[sealHash]
	if !ok || rec.Status != from {
		return db.ErrNoTransition
	}
	rec.Status = to
	return nil
}

func (m *mockStore) SetSignature(_ context.Context, sealHash, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sealHash]
	if !ok || rec.Status != db.StatusSigning {
		return db.ErrNoTransition
	}
	rec.Signature = signature
	rec.Status = db.StatusSigned
	return nil
}

func (m *mockStore) SetDestinationAsset(_ context.Context, sealHash, asset string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sealHash]
	if !ok || rec.DestinationAsset != "" {
		return db.ErrNoTransition
	}
	rec.DestinationAsset = asset
	rec.Status = db.StatusMinted
	return nil
}

func (m *mockStore) MarkFailed(_ context.Context, sealHash, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markFailedCalls = append(m.markFailedCalls, sealHash)
	rec, ok := m.records[sealHash]
	if !ok || rec.Status == db.StatusCompleted || rec.Status == db.StatusFailed {
		return db.ErrNoTransition
	}
	rec.FailedFrom = rec.Status
	rec.Status = db.StatusFailed
	rec.Error = &errMsg
	return nil
}

func (m *mockStore) GetCursor(_ context.Context, chain string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.cursors[chain]
	if !ok {
		return -1, nil
	}
	return seq, nil
}

func (m *mockStore) SetCursor(_ context.Context, chain string, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr("SetCursor"); err != nil {
		return err
	}
	m.cursors[chain] = seq
	return nil
}

func (m *mockStore) status(sealHash string) db.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sealHash]
	if !ok {
		return ""
	}
	return rec.Status
}

func (m *mockStore) record(sealHash string) *db.SealRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sealHash]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

func (m *mockStore) put(rec *db.SealRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.SealHash] = &cp
}

type mockOrigin struct {
	fetchSealEventsFn func(ctx context.Context, afterSeq int64, limit int) ([]near.SealEvent, error)
	markCompletedFn   func(ctx context.Context, sealHash, destAsset string) error

	mu             sync.Mutex
	completedCalls []string
}

func (m *mockOrigin) FetchSealEvents(ctx context.Context, afterSeq int64, limit int) ([]near.SealEvent, error) {
	if m.fetchSealEventsFn != nil {
		return m.fetchSealEventsFn(ctx, afterSeq, limit)
	}
	return nil, nil
}

func (m *mockOrigin) MarkCompleted(ctx context.Context, sealHash, destAsset string) error {
	m.mu.Lock()
	m.completedCalls = append(m.completedCalls, sealHash)
	m.mu.Unlock()
	if m.markCompletedFn != nil {
		return m.markCompletedFn(ctx, sealHash, destAsset)
	}
	return nil
}

type mockDest struct {
	verifySealFn    func(ctx context.Context, req *solana.VerifyRequest) error
	mintSealedFn    func(ctx context.Context, sealHash, name, uri string) (string, error)
	getSealStatusFn func(ctx context.Context, sealHash string) (*solana.SealStatus, error)

	mu          sync.Mutex
	verifyCalls []*solana.VerifyRequest
	mintCalls   []string
}

func (m *mockDest) VerifySeal(ctx context.Context, req *solana.VerifyRequest) error {
	m.mu.Lock()
	m.verifyCalls = append(m.verifyCalls, req)
	m.mu.Unlock()
	if m.verifySealFn != nil {
		return m.verifySealFn(ctx, req)
	}
	return nil
}

func (m *mockDest) MintSealed(ctx context.Context, sealHash, name, uri string) (string, error) {
	m.mu.Lock()
	m.mintCalls = append(m.mintCalls, sealHash)
	m.mu.Unlock()
	if m.mintSealedFn != nil {
		return m.mintSealedFn(ctx, sealHash, name, uri)
	}
	return "AssetAddr111", nil
}

func (m *mockDest) GetSealStatus(ctx context.Context, sealHash string) (*solana.SealStatus, error) {
	if m.getSealStatusFn != nil {
		return m.getSealStatusFn(ctx, sealHash)
	}
	return &solana.SealStatus{}, nil
}

type mockSigner struct {
	signFn func(ctx context.Context, sealHash common.Hash) (string, error)

	mu        sync.Mutex
	signCalls []common.Hash
}

func (m *mockSigner) calls() []common.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]common.Hash(nil), m.signCalls...)
}

func (m *mockSigner) Sign(ctx context.Context, sealHash common.Hash) (string, error) {
	m.mu.Lock()
	m.signCalls = append(m.signCalls, sealHash)
	m.mu.Unlock()
	if m.signFn != nil {
		return m.signFn(ctx, sealHash)
	}
	return "ab12", nil
}
