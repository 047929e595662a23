package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/sand/solnests/backend/internal/entities"
)

// StatusSource is what the poller asks about a broadcast transaction.
type StatusSource interface {
	TransactionStatus(ctx context.Context, signature solana.Signature) (entities.StatusReport, error)
	BlockHeight(ctx context.Context) (uint64, error)
}

// ConfirmationPoller queries the network at a fixed interval until a
// transaction is confirmed, fails, expires, times out or the caller cancels.
type ConfirmationPoller struct {
	logger   *slog.Logger
	source   StatusSource
	interval time.Duration
	maxWait  time.Duration
}

// NewConfirmationPoller creates a poller. A maxWait of zero waits without bound.
func NewConfirmationPoller(logger *slog.Logger, source StatusSource, interval, maxWait time.Duration) *ConfirmationPoller {
	if interval <= 0 {
		interval = ports.DefaultPollInterval
	}
	return &ConfirmationPoller{
		logger:   logger,
		source:   source,
		interval: interval,
		maxWait:  maxWait,
	}
}

// AwaitTerminal polls until a terminal outcome. Failed status queries are
// logged and polling continues. Cancellation is an outcome, not an error.
func (p *ConfirmationPoller) AwaitTerminal(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) (entities.PollResult, error) {
	if signature.IsZero() {
		return entities.PollResult{}, ports.ErrMissingSignature
	}

	var deadline <-chan time.Time
	if p.maxWait > 0 {
		deadlineTimer := time.NewTimer(p.maxWait)
		defer deadlineTimer.Stop()
		deadline = deadlineTimer.C
	}

	wait := time.NewTimer(p.interval)
	wait.Stop()
	defer wait.Stop()

	result := entities.PollResult{Status: entities.StatusUnknown}

	for {
		if ctx.Err() != nil {
			result.Outcome = entities.OutcomeCancelled
			return result, nil
		}

		result.Ticks++
		report, err := p.source.TransactionStatus(ctx, signature)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				result.Outcome = entities.OutcomeCancelled
				return result, nil
			}
			p.logger.WarnContext(ctx, "Failed to query transaction status, will retry",
				"tx_signature", signature.String(), "tick", result.Ticks, "error", err)
		case report.Status == entities.StatusConfirmed:
			result.Status = report.Status
			result.Outcome = entities.OutcomeConfirmed
			return result, nil
		case report.Status == entities.StatusFailed:
			result.Status = report.Status
			result.Outcome = entities.OutcomeFailed
			result.Reason = report.Err
			return result, nil
		case report.Status == entities.StatusUnknown && lastValidBlockHeight > 0:
			result.Status = report.Status
			if p.expired(ctx, signature, lastValidBlockHeight) {
				// One last look in case the status lagged behind the block height.
				result.Ticks++
				final, err := p.source.TransactionStatus(ctx, signature)
				if err == nil && final.Status.Terminal() {
					result.Status = final.Status
					result.Outcome = entities.OutcomeConfirmed
					if final.Status == entities.StatusFailed {
						result.Outcome = entities.OutcomeFailed
						result.Reason = final.Err
					}
					return result, nil
				}
				result.Outcome = entities.OutcomeFailed
				result.Reason = "blockhash expired before the transaction landed"
				return result, nil
			}
		default:
			result.Status = report.Status
			p.logger.DebugContext(ctx, "Waiting for confirmation",
				"tx_signature", signature.String(), "status", report.Status.String(), "tick", result.Ticks)
		}

		wait.Reset(p.interval)
		select {
		case <-ctx.Done():
			result.Outcome = entities.OutcomeCancelled
			return result, nil
		case <-deadline:
			p.logger.WarnContext(ctx, "Confirmation wait exceeded bound",
				"tx_signature", signature.String(), "max_wait", p.maxWait.String(), "ticks", result.Ticks)
			result.Outcome = entities.OutcomeTimeout
			return result, nil
		case <-wait.C:
		}
	}
}

// expired reports whether the block height has passed the transaction's last
// valid height, after which it can no longer land.
func (p *ConfirmationPoller) expired(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) bool {
	height, err := p.source.BlockHeight(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to get block height", "tx_signature", signature.String(), "error", err)
		return false
	}

	return height > lastValidBlockHeight
}
