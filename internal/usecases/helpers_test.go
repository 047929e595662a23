package usecases

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/sand/solnests/backend/internal/entities"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	goldenNest   = "Golden Nest"
	goldenNestTo = "AnL8JWUWKC3WdWoST1bDLvrG1geMSaaWK72LupNNVLCb"
)

var testPlans = map[string]string{
	"Nest Starter": "9yrhTTh3y29NDVjxDzfo3tyiJ31r6DH42HiroGe2WASk",
	goldenNest:     goldenNestTo,
	"Elite Nest":   "5xsG6MEY6xYTc5kaK1kSvUGXiAaBfer9vao2GXhEbXJA",
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog(t *testing.T) *PlanCatalog {
	t.Helper()
	catalog, err := NewPlanCatalog(testPlans)
	require.NoError(t, err)
	return catalog
}

func testSignature(b byte) solana.Signature {
	var sig solana.Signature
	for i := range sig {
		sig[i] = b
	}
	return sig
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) LatestFreshness(ctx context.Context) (entities.Freshness, error) {
	args := m.Called(ctx)
	return args.Get(0).(entities.Freshness), args.Error(1)
}

func (m *mockLedger) TransactionStatus(ctx context.Context, signature solana.Signature) (entities.StatusReport, error) {
	args := m.Called(ctx, signature)
	return args.Get(0).(entities.StatusReport), args.Error(1)
}

func (m *mockLedger) BlockHeight(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Append(ctx context.Context, record entities.TransferRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// fakeAgent signs nothing; it returns whatever sign yields.
type fakeAgent struct {
	name string
	key  solana.PublicKey
	sign func(ctx context.Context, req *entities.TransferRequest) (solana.Signature, error)

	mu    sync.Mutex
	calls int
}

func newFakeAgent(sign func(ctx context.Context, req *entities.TransferRequest) (solana.Signature, error)) *fakeAgent {
	return &fakeAgent{
		name: "fake",
		key:  solana.NewWallet().PublicKey(),
		sign: sign,
	}
}

func (a *fakeAgent) Name() string                { return a.name }
func (a *fakeAgent) PublicKey() solana.PublicKey { return a.key }

func (a *fakeAgent) SignAndBroadcast(ctx context.Context, req *entities.TransferRequest) (solana.Signature, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return a.sign(ctx, req)
}

func (a *fakeAgent) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// agentTable resolves agents from a fixed map.
type agentTable map[string]ports.SigningAgent

func (t agentTable) Lookup(name string) (ports.SigningAgent, error) {
	agent, ok := t[name]
	if !ok {
		return nil, ports.ErrAgentUnavailable
	}
	return agent, nil
}

// recordingSink keeps every audit record it is handed.
type recordingSink struct {
	mu      sync.Mutex
	records []entities.TransferRecord
}

func (s *recordingSink) Record(record entities.TransferRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func (s *recordingSink) Records() []entities.TransferRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.TransferRecord(nil), s.records...)
}
