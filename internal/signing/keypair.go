package signing

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/sand/solnests/backend/internal/entities"
	"github.com/tyler-smith/go-bip39"
	"go.openly.dev/pointy"
)

const (
	KeypairAgentName = "keypair"

	sendMaxRetries = 5 // RPC node rebroadcast attempts for one signature
)

// Broadcaster is the part of the RPC client the keypair agent needs.
type Broadcaster interface {
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// KeypairAgent signs with a locally held ed25519 key and broadcasts over RPC.
type KeypairAgent struct {
	logger   *slog.Logger
	rpc      Broadcaster
	key      solana.PrivateKey
	approver Approver
}

func NewKeypairAgent(logger *slog.Logger, rpc Broadcaster, key solana.PrivateKey, approver Approver) *KeypairAgent {
	if approver == nil {
		approver = AutoApprove{}
	}
	return &KeypairAgent{
		logger:   logger,
		rpc:      rpc,
		key:      key,
		approver: approver,
	}
}

// KeyFromMnemonic derives the account key the way `solana-keygen recover`
// does without a derivation path: the first 32 bytes of the BIP-39 seed.
func KeyFromMnemonic(mnemonic, passphrase string) (solana.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, passphrase)
	return solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])), nil
}

func (a *KeypairAgent) Name() string { return KeypairAgentName }

func (a *KeypairAgent) PublicKey() solana.PublicKey { return a.key.PublicKey() }

// SignAndBroadcast waits for approval, signs req and sends it. An approver
// rejection is reported as ports.ErrUserRejected.
func (a *KeypairAgent) SignAndBroadcast(ctx context.Context, req *entities.TransferRequest) (solana.Signature, error) {
	if req.Transaction == nil {
		return solana.Signature{}, fmt.Errorf("transfer request has no transaction")
	}

	if !req.Sender.Equals(a.PublicKey()) {
		return solana.Signature{}, ports.ErrSenderMismatch
	}

	if err := a.approver.Approve(ctx, req); err != nil {
		if errors.Is(err, ErrRejected) {
			return solana.Signature{}, fmt.Errorf("%w: %v", ports.ErrUserRejected, err)
		}
		return solana.Signature{}, fmt.Errorf("approval failed: %w", err)
	}

	height, err := a.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get block height: %w", err)
	}
	if height > req.Freshness.LastValidBlockHeight {
		return solana.Signature{}, ports.ErrFreshnessExpired
	}

	if _, err = req.Transaction.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(a.PublicKey()) {
			return &a.key
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	signature, err := a.rpc.SendTransactionWithOpts(ctx, req.Transaction, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
		MaxRetries:          pointy.Uint(sendMaxRetries),
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	a.logger.DebugContext(ctx, "Transaction sent",
		"session_id", req.SessionID,
		"tx_signature", signature.String(),
		"block_height", height)

	return signature, nil
}
