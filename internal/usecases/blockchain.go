package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sand/solnests/backend/internal/entities"
	"golang.org/x/exp/maps"
)

// Networks understood by RPCEndpoints.
const (
	NetworkMainnet  = "mainnet"
	NetworkDevnet   = "devnet"
	NetworkTestnet  = "testnet"
	NetworkLocalnet = "localnet"
)

// RPCEndpoints returns the HTTP endpoints to try for network, custom first.
func RPCEndpoints(network, custom string) ([]string, error) {
	var endpoints []string
	if custom != "" {
		endpoints = append(endpoints, custom)
	}

	switch strings.ToLower(network) {
	case NetworkMainnet, "mainnet-beta", "":
		endpoints = append(endpoints, rpc.MainNetBeta_RPC)
	case NetworkDevnet:
		endpoints = append(endpoints, rpc.DevNet_RPC)
	case NetworkTestnet:
		endpoints = append(endpoints, rpc.TestNet_RPC)
	case NetworkLocalnet:
		endpoints = append(endpoints, rpc.LocalNet_RPC)
	default:
		return nil, fmt.Errorf("unknown solana network %q", network)
	}

	return endpoints, nil
}

// DialSolana returns a client for the first endpoint that answers getVersion.
func DialSolana(ctx context.Context, logger *slog.Logger, endpoints []string) (*rpc.Client, error) {
	var lastErr error

	for _, endpoint := range endpoints {
		logger.InfoContext(ctx, "Trying to connect to Solana HTTP endpoint", "endpoint", endpoint)
		client := rpc.New(endpoint)

		_, err := client.GetVersion(ctx)
		if err == nil {
			logger.InfoContext(ctx, "Successfully connected to Solana HTTP endpoint", "endpoint", endpoint)
			return client, nil
		}
		lastErr = err
		logger.WarnContext(ctx, "Failed to connect to Solana HTTP endpoint", "endpoint", endpoint, "error", err)
	}

	return nil, fmt.Errorf("failed to connect to any Solana HTTP endpoint: %w", lastErr)
}

// SolanaRPC is the subset of *rpc.Client the ledger client uses.
type SolanaRPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
}

// SolanaLedger answers freshness and status queries against a Solana RPC node.
type SolanaLedger struct {
	logger     *slog.Logger
	client     SolanaRPC
	commitment rpc.CommitmentType
}

func NewSolanaLedger(logger *slog.Logger, client SolanaRPC, commitment string) *SolanaLedger {
	c := rpc.CommitmentType(strings.ToLower(commitment))
	switch c {
	case rpc.CommitmentFinalized, rpc.CommitmentConfirmed, rpc.CommitmentProcessed:
	default:
		c = rpc.CommitmentFinalized
	}

	return &SolanaLedger{logger: logger, client: client, commitment: c}
}

// LatestFreshness returns the latest blockhash and its expiry height.
func (l *SolanaLedger) LatestFreshness(ctx context.Context) (entities.Freshness, error) {
	out, err := l.client.GetLatestBlockhash(ctx, l.commitment)
	if err != nil {
		return entities.Freshness{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return entities.Freshness{}, fmt.Errorf("empty latest blockhash response")
	}

	return entities.Freshness{
		Blockhash:            out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

// TransactionStatus maps getSignatureStatuses onto a ConfirmationStatus.
// Only "confirmed" or "finalized" count as confirmed.
func (l *SolanaLedger) TransactionStatus(ctx context.Context, signature solana.Signature) (entities.StatusReport, error) {
	out, err := l.client.GetSignatureStatuses(ctx, false, signature)
	if err != nil {
		return entities.StatusReport{}, fmt.Errorf("failed to get signature status: %w", err)
	}

	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return entities.StatusReport{Status: entities.StatusUnknown}, nil
	}

	status := out.Value[0]
	report := entities.StatusReport{Slot: status.Slot}

	switch {
	case status.Err != nil:
		report.Status = entities.StatusFailed
		report.Err = failureReason(status.Err)
		l.logger.WarnContext(ctx, "Transaction failed on chain",
			"tx_signature", signature.String(),
			"slot", status.Slot,
			"error", fmt.Sprintf("%v", status.Err))
	case status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed,
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized:
		report.Status = entities.StatusConfirmed
	default:
		report.Status = entities.StatusPending
	}

	return report, nil
}

// BlockHeight returns the current block height at "confirmed" commitment.
func (l *SolanaLedger) BlockHeight(ctx context.Context) (uint64, error) {
	height, err := l.client.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get block height: %w", err)
	}
	return height, nil
}

// failureReason names an on-chain transaction error, e.g. "AccountInUse" or
// "InstructionError: InsufficientFunds". Instruction indexes and custom
// program codes are left to the logs.
func failureReason(txErr any) string {
	switch e := txErr.(type) {
	case string:
		return e
	case map[string]any:
		name := firstKey(e)
		if name == "" {
			break
		}
		// {"InstructionError": [index, detail]}
		if parts, ok := e[name].([]any); ok && len(parts) == 2 {
			switch detail := parts[1].(type) {
			case string:
				return name + ": " + detail
			case map[string]any:
				if inner := firstKey(detail); inner != "" {
					return name + ": " + inner
				}
			}
		}
		return name
	}
	return "transaction error"
}

func firstKey(m map[string]any) string {
	keys := maps.Keys(m)
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return keys[0]
}
