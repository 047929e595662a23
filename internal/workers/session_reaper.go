package workers

import (
	"context"
	"log/slog"
	"time"
)

const defaultReapInterval = time.Minute

// SessionStore is the part of the session store the reaper needs.
type SessionStore interface {
	RemoveIdle(olderThan time.Duration) int
}

// SessionReaper discards sessions that have been idle for too long.
type SessionReaper struct {
	logger   *slog.Logger
	sessions SessionStore

	// Idle time after which a session is discarded
	idleTTL time.Duration

	// How often to look for idle sessions
	interval time.Duration
}

func NewSessionReaper(logger *slog.Logger, sessions SessionStore, idleTTL, interval time.Duration) *SessionReaper {
	if interval <= 0 {
		interval = defaultReapInterval
	}
	return &SessionReaper{
		logger:   logger,
		sessions: sessions,
		idleTTL:  idleTTL,
		interval: interval,
	}
}

// Start runs the reaper until ctx is done.
func (r *SessionReaper) Start(ctx context.Context) {
	r.logger.Info("Starting session reaper worker",
		"idle_ttl", r.idleTTL.String(),
		"interval", r.interval.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Session reaper worker stopped")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *SessionReaper) reap(ctx context.Context) {
	count := r.sessions.RemoveIdle(r.idleTTL)
	if count > 0 {
		r.logger.InfoContext(ctx, "Discarded idle sessions", "count", count, "idle_ttl", r.idleTTL.String())
	} else {
		r.logger.DebugContext(ctx, "No idle sessions to discard")
	}
}
