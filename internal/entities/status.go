package entities

// ConfirmationStatus is what the network reports for a transaction signature.
type ConfirmationStatus int

const (
	// StatusUnknown means the network has not returned a status yet.
	StatusUnknown ConfirmationStatus = iota
	// StatusPending means the transaction was seen below the required depth.
	StatusPending
	// StatusConfirmed means the transaction reached "confirmed" or "finalized".
	StatusConfirmed
	// StatusFailed means the transaction landed with an execution error.
	StatusFailed
)

func (s ConfirmationStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether polling can stop on this status.
func (s ConfirmationStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// StatusReport is a single answer of the network to a status query.
type StatusReport struct {
	Status ConfirmationStatus
	Slot   uint64
	// Err carries the on-chain execution error when Status is StatusFailed.
	Err string
}

// Outcome is the terminal result of waiting on a transaction.
type Outcome int

const (
	OutcomeConfirmed Outcome = iota + 1
	OutcomeFailed
	OutcomeCancelled
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// PollResult describes how a confirmation wait ended.
type PollResult struct {
	Outcome Outcome
	Status  ConfirmationStatus
	Reason  string
	Ticks   int
}
