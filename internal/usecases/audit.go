package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/sand/solnests/backend/internal/entities"
)

// AuditDispatcher writes transfer records in the background. Failures are
// logged and never reach the session.
type AuditDispatcher struct {
	logger   *slog.Logger
	recorder ports.AuditRecorder
	timeout  time.Duration

	wg sync.WaitGroup
}

func NewAuditDispatcher(logger *slog.Logger, recorder ports.AuditRecorder, timeout time.Duration) *AuditDispatcher {
	if timeout <= 0 {
		timeout = ports.DefaultAuditTimeout
	}
	return &AuditDispatcher{logger: logger, recorder: recorder, timeout: timeout}
}

// Record starts the write and returns immediately.
func (d *AuditDispatcher) Record(record entities.TransferRecord) {
	if d.recorder == nil {
		d.logger.Debug("Audit store disabled, skipping transfer record", "tx_signature", record.Signature)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.recorder.Append(ctx, record); err != nil {
			d.logger.ErrorContext(ctx, "Failed to save transfer record",
				"tx_signature", record.Signature, "plan", record.PlanLabel, "error", err)
			return
		}

		d.logger.InfoContext(ctx, "Transfer record saved",
			"tx_signature", record.Signature, "plan", record.PlanLabel)
	}()
}

// Wait blocks until every started write has finished or ctx is done.
func (d *AuditDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
