package ports

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/sand/solnests/backend/internal/entities"
)

// LedgerClient is the request/response view of the ledger network.
type LedgerClient interface {
	LatestFreshness(ctx context.Context) (entities.Freshness, error)
	TransactionStatus(ctx context.Context, signature solana.Signature) (entities.StatusReport, error)
	BlockHeight(ctx context.Context) (uint64, error)
}

// SigningAgent signs a transfer request and broadcasts it. A call may block
// for as long as a human takes to approve it.
type SigningAgent interface {
	Name() string
	PublicKey() solana.PublicKey
	SignAndBroadcast(ctx context.Context, req *entities.TransferRequest) (solana.Signature, error)
}

// ConfirmationPoller waits until a broadcast transaction reaches a terminal state.
// lastValidBlockHeight of zero disables the expiry check.
type ConfirmationPoller interface {
	AwaitTerminal(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) (entities.PollResult, error)
}

// AuditRecorder persists completed transfers.
type AuditRecorder interface {
	Append(ctx context.Context, record entities.TransferRecord) error
}
