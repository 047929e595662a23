package ports

import "time"

const (
	LamportsExponent    = 9
	DefaultPollInterval = 2 * time.Second // Fixed delay between status queries
	DefaultAuditTimeout = 10 * time.Second
)
