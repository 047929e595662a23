package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/sand/solnests/backend/internal/usecases"
)

// Submitter claims a session for a submission. The returned function runs
// the claimed submission to a terminal state.
type Submitter interface {
	Start(session *usecases.Session) (func(ctx context.Context), error)
}

// ApprovalDecider settles a transfer waiting for operator approval.
type ApprovalDecider interface {
	Decide(sessionID string, approved bool) error
	Pending(sessionID string) bool
}

var _ Submitter = (*usecases.TransferOrchestrator)(nil)

type HTTPHandler struct {
	logger    *slog.Logger
	baseCtx   context.Context
	validate  *validator.Validate
	catalog   *usecases.PlanCatalog
	sessions  *usecases.SessionStore
	submitter Submitter
	approvals ApprovalDecider
}

// NewHTTPHandler creates the REST handler. Submissions started through it run
// under baseCtx, so cancelling baseCtx aborts them. approvals may be nil when
// transfers are signed without operator approval.
func NewHTTPHandler(
	baseCtx context.Context,
	logger *slog.Logger,
	catalog *usecases.PlanCatalog,
	sessions *usecases.SessionStore,
	submitter Submitter,
	approvals ApprovalDecider,
) *HTTPHandler {
	return &HTTPHandler{
		logger:    logger,
		baseCtx:   baseCtx,
		validate:  validator.New(),
		catalog:   catalog,
		sessions:  sessions,
		submitter: submitter,
		approvals: approvals,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	// Plans
	router.HandleFunc("/plans", h.GetPlans).Methods("GET")

	// Sessions
	router.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	router.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	router.HandleFunc("/sessions/{id}", h.UpdateSession).Methods("PUT")
	router.HandleFunc("/sessions/{id}", h.DeleteSession).Methods("DELETE")
	router.HandleFunc("/sessions/{id}/submit", h.SubmitSession).Methods("POST")

	// Approvals
	router.HandleFunc("/sessions/{id}/approve", h.ApproveTransfer).Methods("POST")
	router.HandleFunc("/sessions/{id}/reject", h.RejectTransfer).Methods("POST")

	router.HandleFunc("/health", h.Health).Methods("GET")
}

// GetPlans returns the plan catalog sorted by label.
func (h *HTTPHandler) GetPlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(h.logger, w, http.StatusOK, h.catalog.Plans())
}

func (h *HTTPHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(h.logger, w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}

// writeJSON encodes body as the response with the given status.
func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Error encoding response", "error", err)
	}
}

func writeError(logger *slog.Logger, w http.ResponseWriter, status int, message string) {
	writeJSON(logger, w, status, map[string]string{"error": message})
}

// decodeBody decodes and validates a JSON request body into dst.
func (h *HTTPHandler) decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return fmt.Errorf("field %s failed on %q", fe.Field(), fe.Tag())
		}
		return err
	}

	return nil
}

// statusFor maps a session or approval error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, usecases.ErrSessionNotFound),
		errors.Is(err, ports.ErrApprovalNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecases.ErrSubmissionInProgress),
		errors.Is(err, usecases.ErrSessionDiscarded):
		return http.StatusConflict
	case errors.Is(err, usecases.ErrSubmitDisabled),
		errors.Is(err, usecases.ErrUnknownPlan):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
