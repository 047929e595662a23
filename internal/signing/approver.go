package signing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/sand/solnests/backend/internal/entities"
)

// ErrRejected is what an approver returns when a human declines the request.
var ErrRejected = errors.New("request rejected")

// Approver decides whether a transfer request may be signed.
type Approver interface {
	Approve(ctx context.Context, req *entities.TransferRequest) error
}

// AutoApprove approves every request.
type AutoApprove struct{}

func (AutoApprove) Approve(context.Context, *entities.TransferRequest) error { return nil }

// ManualApprover parks each request until Decide is called for its session.
type ManualApprover struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan bool
}

func NewManualApprover(timeout time.Duration) *ManualApprover {
	return &ManualApprover{
		timeout: timeout,
		pending: make(map[string]chan bool),
	}
}

// Approve blocks until the session's request is approved, rejected, times out
// or ctx is done.
func (a *ManualApprover) Approve(ctx context.Context, req *entities.TransferRequest) error {
	decision := make(chan bool, 1)

	a.mu.Lock()
	if _, busy := a.pending[req.SessionID]; busy {
		a.mu.Unlock()
		return fmt.Errorf("approval already pending for session %s", req.SessionID)
	}
	a.pending[req.SessionID] = decision
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		if a.pending[req.SessionID] == decision {
			delete(a.pending, req.SessionID)
		}
		a.mu.Unlock()
	}()

	var timeout <-chan time.Time
	if a.timeout > 0 {
		timer := time.NewTimer(a.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return fmt.Errorf("%w: approval timed out", ErrRejected)
	case approved := <-decision:
		if !approved {
			return ErrRejected
		}
		return nil
	}
}

// Decide resolves the request pending for sessionID.
func (a *ManualApprover) Decide(sessionID string, approved bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	decision, ok := a.pending[sessionID]
	if !ok {
		return ports.ErrApprovalNotFound
	}
	delete(a.pending, sessionID)
	decision <- approved

	return nil
}

// Pending reports whether a request is waiting for sessionID.
func (a *ManualApprover) Pending(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.pending[sessionID]
	return ok
}
