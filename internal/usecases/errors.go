package usecases

import (
	"errors"
	"fmt"

	"github.com/sand/solnests/backend/internal/core/ports"
)

var (
	ErrSubmissionInProgress = errors.New("a submission is already in progress for this session")
	ErrSubmitDisabled       = errors.New("recipient and amount are required")
	ErrSessionDiscarded     = errors.New("session was discarded")
	ErrSessionNotFound      = errors.New("session not found")
	ErrUnknownPlan          = errors.New("unknown plan")

	errInvalidAddressFormat = errors.New("address is empty or padded")
)

// ValidationError is a problem with user input. The user corrects the input.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BuildError is a failure to assemble the transfer, usually the freshness fetch.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build transfer: %v", e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// SubmitError is a failure of the signing agent to sign or broadcast.
type SubmitError struct {
	Agent string
	Err   error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("failed to submit transfer via %q: %v", e.Agent, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Messages shown to the user for each terminal failure.
const (
	MsgInvalidRecipient = "Invalid receiver address"
	MsgInvalidAmount    = "Invalid amount"
	MsgUserCancelled    = "Transaction cancelled by user"
	MsgAgentUnavailable = "A signing wallet is required to send transactions"
	MsgMissingSignature = "Transaction signature is undefined."
	MsgFreshness        = "Could not reach the network to prepare the transaction, please retry"
	MsgExpired          = "The transaction expired before it was sent, please retry"
	MsgTimeout          = "Confirmation timed out. Check the transaction signature before sending again"
	MsgCancelled        = "Transaction tracking was cancelled"
	MsgUnexpected       = "Unexpected error, please retry"
)

// userMessage maps an error from any stage to the message shown to the user.
func userMessage(err error) string {
	var (
		validationErr *ValidationError
		buildErr      *BuildError
		submitErr     *SubmitError
	)

	switch {
	case errors.Is(err, ports.ErrUserRejected):
		return MsgUserCancelled
	case errors.Is(err, ports.ErrInvalidRecipient):
		return MsgInvalidRecipient
	case errors.Is(err, ports.ErrInvalidAmount):
		return MsgInvalidAmount
	case errors.Is(err, ports.ErrAgentUnavailable):
		return MsgAgentUnavailable
	case errors.Is(err, ports.ErrMissingSignature):
		return MsgMissingSignature
	case errors.Is(err, ports.ErrFreshnessExpired):
		return MsgExpired
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.As(err, &buildErr):
		return MsgFreshness
	case errors.As(err, &submitErr):
		return submitErr.Err.Error()
	default:
		return MsgUnexpected
	}
}
