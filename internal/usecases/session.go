package usecases

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// State is the step a session's current submission is in.
type State string

const (
	StateIdle              State = "idle"
	StateValidating        State = "validating"
	StateBuilding          State = "building"
	StateAwaitingSignature State = "awaiting_signature"
	StateConfirming        State = "confirming"
	StateSuccess           State = "success"
	StateFailure           State = "failure"
)

// Terminal reports whether no further transitions happen from s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Result is the UI-facing outcome of the last submission.
type Result string

const (
	ResultIdle    Result = "idle"
	ResultSuccess Result = "success"
	ResultFailed  Result = "failed"
)

// Snapshot is the render state of a session.
type Snapshot struct {
	ID                string    `json:"id"`
	PlanLabel         string    `json:"plan_label"`
	Recipient         string    `json:"recipient"`
	Amount            string    `json:"amount"`
	SenderEmail       string    `json:"sender_email,omitempty"`
	State             State     `json:"state"`
	Status            Result    `json:"status"`
	Loading           bool      `json:"loading"`
	ErrorMessage      string    `json:"error_message"`
	LastTransactionID string    `json:"last_transaction_id"`
	CanSubmit         bool      `json:"can_submit"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Session is one user's transfer form and the lifecycle of its submissions.
// At most one submission runs at a time.
type Session struct {
	id      string
	catalog *PlanCatalog

	ctx    context.Context
	cancel context.CancelFunc
	busy   atomic.Bool

	mu           sync.Mutex
	planLabel    string
	recipient    string
	amount       string
	senderEmail  string
	state        State
	result       Result
	loading      bool
	errorMessage string
	lastTxID     string
	attempt      uint64
	discarded    bool
	updatedAt    time.Time

	subscribers map[uint64]chan Snapshot
	nextSubID   uint64
}

func NewSession(catalog *PlanCatalog) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		id:          uuid.NewString(),
		catalog:     catalog,
		ctx:         ctx,
		cancel:      cancel,
		state:       StateIdle,
		result:      ResultIdle,
		updatedAt:   time.Now(),
		subscribers: make(map[uint64]chan Snapshot),
	}
}

func (s *Session) ID() string { return s.id }

// SelectPlan sets the recipient from the plan table. An empty or unknown
// label clears the recipient, which keeps submission disabled.
func (s *Session) SelectPlan(label string) error {
	address, ok := s.catalog.Lookup(label)

	s.mu.Lock()
	s.planLabel = label
	s.recipient = address
	if !ok {
		s.planLabel = ""
	}
	s.touchLocked()
	s.mu.Unlock()

	if !ok && label != "" {
		return ErrUnknownPlan
	}
	return nil
}

func (s *Session) SetAmount(amount string) {
	s.mu.Lock()
	s.amount = strings.TrimSpace(amount)
	s.touchLocked()
	s.mu.Unlock()
}

func (s *Session) SetSenderEmail(email string) {
	s.mu.Lock()
	s.senderEmail = strings.TrimSpace(email)
	s.touchLocked()
	s.mu.Unlock()
}

// CanSubmit reports whether the submit action is enabled.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmitLocked()
}

func (s *Session) canSubmitLocked() bool {
	return s.recipient != "" && s.amount != "" && !s.discarded && !s.busy.Load()
}

// Busy reports whether a submission is in flight.
func (s *Session) Busy() bool { return s.busy.Load() }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:                s.id,
		PlanLabel:         s.planLabel,
		Recipient:         s.recipient,
		Amount:            s.amount,
		SenderEmail:       s.senderEmail,
		State:             s.state,
		Status:            s.result,
		Loading:           s.loading,
		ErrorMessage:      s.errorMessage,
		LastTransactionID: s.lastTxID,
		CanSubmit:         s.canSubmitLocked(),
		UpdatedAt:         s.updatedAt,
	}
}

// LastActivity is the time of the last change to the session.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Discard abandons the session. An in-flight submission is cancelled and
// whatever it produces later is dropped.
func (s *Session) Discard() {
	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return
	}
	s.discarded = true
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.mu.Unlock()

	s.cancel()
}

func (s *Session) Discarded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

// Subscribe returns a channel receiving a snapshot after every change, and a
// function to stop receiving. Slow readers miss intermediate snapshots.
func (s *Session) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	ch <- s.snapshotLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			close(sub)
			delete(s.subscribers, id)
		}
	}
}

// attemptInput is the session input captured when a submission starts.
type attemptInput struct {
	attempt     uint64
	planLabel   string
	recipient   string
	amount      string
	senderEmail string
}

// begin resets the result of the previous attempt and captures the input.
func (s *Session) begin() (attemptInput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return attemptInput{}, false
	}

	s.attempt++
	s.state = StateValidating
	s.result = ResultIdle
	s.loading = true
	s.errorMessage = ""
	s.lastTxID = ""
	s.touchLocked()

	return attemptInput{
		attempt:     s.attempt,
		planLabel:   s.planLabel,
		recipient:   s.recipient,
		amount:      s.amount,
		senderEmail: s.senderEmail,
	}, true
}

// update applies fn if attempt is still the current one and the session is live.
func (s *Session) update(attempt uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded || attempt != s.attempt {
		return false
	}
	fn()
	s.touchLocked()
	return true
}

func (s *Session) transition(attempt uint64, state State) bool {
	return s.update(attempt, func() { s.state = state })
}

func (s *Session) recordSignature(attempt uint64, signature solana.Signature) bool {
	return s.update(attempt, func() { s.lastTxID = signature.String() })
}

func (s *Session) succeed(attempt uint64) bool {
	return s.update(attempt, func() {
		s.state = StateSuccess
		s.result = ResultSuccess
		s.errorMessage = ""
	})
}

func (s *Session) fail(attempt uint64, message string) bool {
	return s.update(attempt, func() {
		s.state = StateFailure
		s.result = ResultFailed
		s.errorMessage = message
	})
}

// finish releases the submission claim. When attempt is still current the
// loading flag drops in the same change, so subscribers see the session
// submittable again.
func (s *Session) finish(attempt uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.busy.Store(false)
	if s.discarded || attempt != s.attempt {
		return
	}
	s.loading = false
	s.touchLocked()
}

// touchLocked stamps the change and fans the new snapshot out. Caller holds s.mu.
func (s *Session) touchLocked() {
	s.updatedAt = time.Now()
	if len(s.subscribers) == 0 {
		return
	}

	snapshot := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// SessionStore keeps live sessions by id.
type SessionStore struct {
	catalog *PlanCatalog

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore(catalog *PlanCatalog) *SessionStore {
	return &SessionStore{catalog: catalog, sessions: make(map[string]*Session)}
}

func (st *SessionStore) Create() *Session {
	session := NewSession(st.catalog)

	st.mu.Lock()
	st.sessions[session.ID()] = session
	st.mu.Unlock()

	return session
}

func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	session, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Discard removes the session and cancels whatever it is doing.
func (st *SessionStore) Discard(id string) error {
	st.mu.Lock()
	session, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.Discard()
	return nil
}

// RemoveIdle discards sessions with no activity for olderThan and no submission in flight.
func (st *SessionStore) RemoveIdle(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	st.mu.Lock()
	var stale []*Session
	for id, session := range st.sessions {
		if session.Busy() || session.LastActivity().After(cutoff) {
			continue
		}
		stale = append(stale, session)
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	for _, session := range stale {
		session.Discard()
	}
	return len(stale)
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
