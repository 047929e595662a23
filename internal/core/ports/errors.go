package ports

import "errors"

// Errors shared across the transfer core and its adapters. Adapters translate
// their native failures into these at the boundary.
var (
	ErrInvalidRecipient  = errors.New("invalid recipient address")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrAgentUnavailable  = errors.New("signing agent not registered")
	ErrUserRejected      = errors.New("user rejected the request")
	ErrMissingSignature  = errors.New("transaction signature is undefined")
	ErrFreshnessExpired  = errors.New("blockhash expired before broadcast")
	ErrSenderMismatch    = errors.New("sender does not match signing agent account")
	ErrApprovalNotFound  = errors.New("no approval pending for session")
	ErrAuditStoreMissing = errors.New("audit store is not configured")
)
