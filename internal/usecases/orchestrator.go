package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/sand/solnests/backend/internal/entities"
)

// AuditSink takes completed transfers without blocking the caller.
type AuditSink interface {
	Record(record entities.TransferRecord)
}

// TransferOrchestrator runs a session's submission: validate, build, sign and
// broadcast, wait for confirmation, then hand the record to the audit sink.
type TransferOrchestrator struct {
	logger  *slog.Logger
	builder *TransferBuilder
	gateway *SigningGateway
	poller  ports.ConfirmationPoller
	audit   AuditSink
}

func NewTransferOrchestrator(
	logger *slog.Logger,
	builder *TransferBuilder,
	gateway *SigningGateway,
	poller ports.ConfirmationPoller,
	audit AuditSink,
) *TransferOrchestrator {
	return &TransferOrchestrator{
		logger:  logger,
		builder: builder,
		gateway: gateway,
		poller:  poller,
		audit:   audit,
	}
}

// Submit runs one submission to a terminal state and leaves the outcome on
// the session. It returns an error only when the submission did not start:
// ErrSubmitDisabled, ErrSubmissionInProgress or ErrSessionDiscarded.
func (o *TransferOrchestrator) Submit(ctx context.Context, session *Session) error {
	run, err := o.Start(session)
	if err != nil {
		return err
	}

	run(ctx)
	return nil
}

// Start claims the session for a new submission and returns the function
// that carries it to a terminal state. The claim is taken before Start
// returns, so of two concurrent callers exactly one gets a runner. The runner
// must be called exactly once.
func (o *TransferOrchestrator) Start(session *Session) (func(ctx context.Context), error) {
	if !session.CanSubmit() {
		if session.Busy() {
			return nil, ErrSubmissionInProgress
		}
		if session.Discarded() {
			return nil, ErrSessionDiscarded
		}
		return nil, ErrSubmitDisabled
	}

	if !session.busy.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInProgress
	}

	in, ok := session.begin()
	if !ok {
		session.finish(0)
		return nil, ErrSessionDiscarded
	}

	return func(ctx context.Context) {
		defer session.finish(in.attempt)

		ctx, cancel := mergeCancel(ctx, session.ctx)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				o.logger.ErrorContext(ctx, "Transfer submission panicked",
					"session_id", session.ID(), "panic", fmt.Sprint(r))
				session.fail(in.attempt, MsgUnexpected)
			}
		}()

		o.run(ctx, session, in)
	}, nil
}

func (o *TransferOrchestrator) run(ctx context.Context, session *Session, in attemptInput) {
	log := o.logger.With("session_id", session.ID(), "attempt", in.attempt)

	sender, err := o.gateway.Sender()
	if err != nil {
		o.failWith(ctx, log, session, in.attempt, err)
		return
	}

	input := TransferInput{
		SessionID: session.ID(),
		PlanLabel: in.planLabel,
		Sender:    sender,
		Recipient: in.recipient,
		Amount:    in.amount,
	}

	if _, _, err = o.builder.Validate(input); err != nil {
		o.failWith(ctx, log, session, in.attempt, err)
		return
	}

	if !session.transition(in.attempt, StateBuilding) {
		return
	}

	req, err := o.builder.Build(ctx, input)
	if err != nil {
		o.failWith(ctx, log, session, in.attempt, err)
		return
	}

	if !session.transition(in.attempt, StateAwaitingSignature) {
		return
	}

	signature, err := o.gateway.Submit(ctx, req)
	if err != nil {
		o.failWith(ctx, log, session, in.attempt, err)
		return
	}

	// A signature that arrives after the session was abandoned is dropped here.
	if !session.recordSignature(in.attempt, signature) {
		log.WarnContext(ctx, "Session abandoned after broadcast", "tx_signature", signature.String())
		return
	}

	if !session.transition(in.attempt, StateConfirming) {
		return
	}

	result, err := o.poller.AwaitTerminal(ctx, signature, req.Freshness.LastValidBlockHeight)
	if err != nil {
		o.failWith(ctx, log, session, in.attempt, err)
		return
	}

	log = log.With("tx_signature", signature.String(), "ticks", result.Ticks)

	switch result.Outcome {
	case entities.OutcomeConfirmed:
		if !session.succeed(in.attempt) {
			return
		}
		log.InfoContext(ctx, "Transfer confirmed",
			"lamports", req.Lamports,
			"sol", FormatLamports(req.Lamports),
			"recipient", req.Recipient.String())
		o.recordAudit(req, in, signature.String())
	case entities.OutcomeFailed:
		log.WarnContext(ctx, "Transfer failed on chain", "reason", result.Reason)
		session.fail(in.attempt, failedMessage(result.Reason))
	case entities.OutcomeTimeout:
		log.WarnContext(ctx, "Transfer confirmation timed out")
		session.fail(in.attempt, MsgTimeout)
	case entities.OutcomeCancelled:
		log.InfoContext(ctx, "Transfer confirmation cancelled")
		session.fail(in.attempt, MsgCancelled)
	default:
		session.fail(in.attempt, MsgUnexpected)
	}
}

func (o *TransferOrchestrator) failWith(ctx context.Context, log *slog.Logger, session *Session, attempt uint64, err error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		log.InfoContext(ctx, "Transfer submission cancelled", "error", err)
		session.fail(attempt, MsgCancelled)
		return
	}

	log.WarnContext(ctx, "Transfer submission failed", "error", err)
	session.fail(attempt, userMessage(err))
}

func (o *TransferOrchestrator) recordAudit(req *entities.TransferRequest, in attemptInput, signature string) {
	if o.audit == nil {
		return
	}

	// Only plan purchases are audited.
	if in.planLabel == "" {
		return
	}

	o.audit.Record(entities.TransferRecord{
		SenderAddress:    req.Sender.String(),
		SenderEmail:      in.senderEmail,
		RecipientAddress: req.Recipient.String(),
		PlanLabel:        in.planLabel,
		Amount:           req.Amount,
		AmountLamports:   req.Lamports,
		Signature:        signature,
		Timestamp:        time.Now().UTC(),
		Status:           entities.RecordStatusSubmitted,
	})
}

func failedMessage(reason string) string {
	if reason == "" {
		return "Transaction failed"
	}
	return "Transaction failed: " + reason
}

// mergeCancel returns a context derived from parent that is also cancelled when other is.
func mergeCancel(parent, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(other, cancel)

	return ctx, func() {
		stop()
		cancel()
	}
}
