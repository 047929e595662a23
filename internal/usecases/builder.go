package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/sand/solnests/backend/internal/entities"
)

// TransferInput is what the user supplied for one transfer attempt.
type TransferInput struct {
	SessionID string
	PlanLabel string
	Sender    solana.PublicKey
	Recipient string
	Amount    string
}

// TransferBuilder assembles unsigned transfer requests against a fresh blockhash.
type TransferBuilder struct {
	logger *slog.Logger
	ledger ports.LedgerClient
}

func NewTransferBuilder(logger *slog.Logger, ledger ports.LedgerClient) *TransferBuilder {
	return &TransferBuilder{logger: logger, ledger: ledger}
}

// Validate checks the recipient and amount and returns the parsed values.
func (b *TransferBuilder) Validate(in TransferInput) (solana.PublicKey, uint64, error) {
	recipient, err := ParseAddress(in.Recipient)
	if err != nil {
		return solana.PublicKey{}, 0, &ValidationError{Field: "recipient", Err: fmt.Errorf("%w: %v", ports.ErrInvalidRecipient, err)}
	}

	lamports, err := ParseLamports(in.Amount)
	if err != nil {
		return solana.PublicKey{}, 0, &ValidationError{Field: "amount", Err: err}
	}

	return recipient, lamports, nil
}

// Build validates the input, fetches a freshness token and assembles the request.
// The token is fetched on every call and never reused across attempts.
func (b *TransferBuilder) Build(ctx context.Context, in TransferInput) (*entities.TransferRequest, error) {
	if _, _, err := b.Validate(in); err != nil {
		return nil, err
	}

	freshness, err := b.ledger.LatestFreshness(ctx)
	if err != nil {
		return nil, &BuildError{Err: fmt.Errorf("failed to fetch latest blockhash: %w", err)}
	}

	req, err := Assemble(in, freshness)
	if err != nil {
		return nil, err
	}

	if b.logger.Enabled(ctx, slog.LevelDebug) {
		encoded, encErr := req.Encode()
		if encErr != nil {
			return nil, &BuildError{Err: encErr}
		}
		b.logger.DebugContext(ctx, "Assembled unsigned transfer",
			"session_id", in.SessionID,
			"blockhash", freshness.Blockhash.String(),
			"last_valid_block_height", freshness.LastValidBlockHeight,
			"sol", FormatLamports(req.Lamports),
			"unsigned_tx", encoded)
	}

	return req, nil
}

// Assemble builds the unsigned request from validated input and a freshness token.
// The sender pays the fee.
func Assemble(in TransferInput, freshness entities.Freshness) (*entities.TransferRequest, error) {
	recipient, err := ParseAddress(in.Recipient)
	if err != nil {
		return nil, &ValidationError{Field: "recipient", Err: fmt.Errorf("%w: %v", ports.ErrInvalidRecipient, err)}
	}

	lamports, err := ParseLamports(in.Amount)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Err: err}
	}

	if in.Sender.IsZero() {
		return nil, &SubmitError{Agent: "", Err: ports.ErrAgentUnavailable}
	}

	if freshness.Blockhash.IsZero() {
		return nil, &BuildError{Err: fmt.Errorf("empty blockhash")}
	}

	instruction := system.NewTransferInstruction(lamports, in.Sender, recipient).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		freshness.Blockhash,
		solana.TransactionPayer(in.Sender),
	)
	if err != nil {
		return nil, &BuildError{Err: fmt.Errorf("failed to create transaction: %w", err)}
	}

	return &entities.TransferRequest{
		SessionID:   in.SessionID,
		PlanLabel:   in.PlanLabel,
		Sender:      in.Sender,
		Recipient:   recipient,
		Amount:      in.Amount,
		Lamports:    lamports,
		Freshness:   freshness,
		Transaction: tx,
	}, nil
}
