package signing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/sand/solnests/backend/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	height uint64
	sent   []*solana.Transaction
	opts   rpc.TransactionOpts
	err    error
}

func (f *fakeBroadcaster) GetBlockHeight(context.Context, rpc.CommitmentType) (uint64, error) {
	return f.height, nil
}

func (f *fakeBroadcaster) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return solana.Signature{}, f.err
	}
	f.sent = append(f.sent, tx)
	f.opts = opts
	return tx.Signatures[0], nil
}

func (f *fakeBroadcaster) Sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func transferRequest(t *testing.T, sender solana.PublicKey) *entities.TransferRequest {
	t.Helper()

	recipient := solana.NewWallet().PublicKey()
	freshness := entities.Freshness{Blockhash: solana.Hash{7}, LastValidBlockHeight: 100}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1_000, sender, recipient).Build()},
		freshness.Blockhash,
		solana.TransactionPayer(sender),
	)
	require.NoError(t, err)

	return &entities.TransferRequest{
		SessionID:   "session-1",
		Sender:      sender,
		Recipient:   recipient,
		Amount:      "0.000001",
		Lamports:    1_000,
		Freshness:   freshness,
		Transaction: tx,
	}
}

func TestKeyFromMnemonic(t *testing.T) {
	key, err := KeyFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	assert.Len(t, key, 64)

	again, err := KeyFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), again.PublicKey())

	other, err := KeyFromMnemonic(testMnemonic, "passphrase")
	require.NoError(t, err)
	assert.NotEqual(t, key.PublicKey(), other.PublicKey())

	_, err = KeyFromMnemonic("abandon abandon abandon", "")
	assert.Error(t, err)
}

func TestKeypairAgentSignAndBroadcast(t *testing.T) {
	key, err := KeyFromMnemonic(testMnemonic, "")
	require.NoError(t, err)

	rpcClient := &fakeBroadcaster{height: 50}
	agent := NewKeypairAgent(testLogger(), rpcClient, key, nil)
	assert.Equal(t, KeypairAgentName, agent.Name())

	req := transferRequest(t, agent.PublicKey())
	signature, err := agent.SignAndBroadcast(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, rpcClient.Sent())
	assert.Equal(t, req.Transaction.Signatures[0], signature)
	assert.NoError(t, req.Transaction.VerifySignatures())
	assert.Equal(t, rpc.CommitmentConfirmed, rpcClient.opts.PreflightCommitment)
	require.NotNil(t, rpcClient.opts.MaxRetries)
	assert.Equal(t, uint(sendMaxRetries), *rpcClient.opts.MaxRetries)
}

func TestKeypairAgentRejectsForeignSender(t *testing.T) {
	rpcClient := &fakeBroadcaster{}
	agent := NewKeypairAgent(testLogger(), rpcClient, solana.NewWallet().PrivateKey, AutoApprove{})

	_, err := agent.SignAndBroadcast(context.Background(), transferRequest(t, solana.NewWallet().PublicKey()))
	assert.ErrorIs(t, err, ports.ErrSenderMismatch)
	assert.Zero(t, rpcClient.Sent())
}

func TestKeypairAgentExpiredBlockhash(t *testing.T) {
	rpcClient := &fakeBroadcaster{height: 101}
	wallet := solana.NewWallet()
	agent := NewKeypairAgent(testLogger(), rpcClient, wallet.PrivateKey, AutoApprove{})

	_, err := agent.SignAndBroadcast(context.Background(), transferRequest(t, wallet.PublicKey()))
	assert.ErrorIs(t, err, ports.ErrFreshnessExpired)
	assert.Zero(t, rpcClient.Sent())
}

func TestKeypairAgentSendFailure(t *testing.T) {
	rpcClient := &fakeBroadcaster{height: 1, err: errors.New("Blockhash not found")}
	wallet := solana.NewWallet()
	agent := NewKeypairAgent(testLogger(), rpcClient, wallet.PrivateKey, AutoApprove{})

	_, err := agent.SignAndBroadcast(context.Background(), transferRequest(t, wallet.PublicKey()))
	assert.ErrorContains(t, err, "Blockhash not found")
}

func TestKeypairAgentManualApproval(t *testing.T) {
	wallet := solana.NewWallet()
	approver := NewManualApprover(time.Second)

	t.Run("rejected", func(t *testing.T) {
		rpcClient := &fakeBroadcaster{height: 1}
		agent := NewKeypairAgent(testLogger(), rpcClient, wallet.PrivateKey, approver)

		go func() {
			for !approver.Pending("session-1") {
				time.Sleep(time.Millisecond)
			}
			_ = approver.Decide("session-1", false)
		}()

		_, err := agent.SignAndBroadcast(context.Background(), transferRequest(t, wallet.PublicKey()))
		assert.ErrorIs(t, err, ports.ErrUserRejected)
		assert.Zero(t, rpcClient.Sent())
	})

	t.Run("approved", func(t *testing.T) {
		rpcClient := &fakeBroadcaster{height: 1}
		agent := NewKeypairAgent(testLogger(), rpcClient, wallet.PrivateKey, approver)

		go func() {
			for !approver.Pending("session-1") {
				time.Sleep(time.Millisecond)
			}
			_ = approver.Decide("session-1", true)
		}()

		_, err := agent.SignAndBroadcast(context.Background(), transferRequest(t, wallet.PublicKey()))
		require.NoError(t, err)
		assert.Equal(t, 1, rpcClient.Sent())
	})
}

func TestManualApproverTimeout(t *testing.T) {
	approver := NewManualApprover(10 * time.Millisecond)

	err := approver.Approve(context.Background(), &entities.TransferRequest{SessionID: "slow"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, approver.Pending("slow"))
}

func TestManualApproverContextCancelled(t *testing.T) {
	approver := NewManualApprover(0)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	err := approver.Approve(ctx, &entities.TransferRequest{SessionID: "gone"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, approver.Pending("gone"))
}

func TestManualApproverDecideWithoutRequest(t *testing.T) {
	approver := NewManualApprover(time.Second)
	assert.ErrorIs(t, approver.Decide("nobody", true), ports.ErrApprovalNotFound)
}

func TestManualApproverOnePendingPerSession(t *testing.T) {
	approver := NewManualApprover(time.Second)
	req := &entities.TransferRequest{SessionID: "dup"}

	done := make(chan error, 1)
	go func() { done <- approver.Approve(context.Background(), req) }()

	require.Eventually(t, func() bool { return approver.Pending("dup") }, time.Second, time.Millisecond)
	assert.Error(t, approver.Approve(context.Background(), req))

	require.NoError(t, approver.Decide("dup", true))
	assert.NoError(t, <-done)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	agent := NewKeypairAgent(testLogger(), &fakeBroadcaster{}, solana.NewWallet().PrivateKey, nil)

	require.NoError(t, registry.Register(agent))
	assert.Error(t, registry.Register(agent))
	assert.Error(t, registry.Register(nil))

	got, err := registry.Lookup(KeypairAgentName)
	require.NoError(t, err)
	assert.Equal(t, agent.PublicKey(), got.PublicKey())

	_, err = registry.Lookup("hardware")
	assert.ErrorIs(t, err, ports.ErrAgentUnavailable)
}
