package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sand/solnests/backend/internal/usecases"
)

type updateSessionRequest struct {
	PlanLabel   *string `json:"plan_label"   validate:"omitempty,max=64"`
	Amount      *string `json:"amount"       validate:"omitempty,max=32"`
	SenderEmail *string `json:"sender_email" validate:"omitempty,email"`
}

// CreateSession opens a new transfer form.
func (h *HTTPHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Create()

	h.logger.InfoContext(r.Context(), "Session created", "session_id", session.ID())
	writeJSON(h.logger, w, http.StatusCreated, session.Snapshot())
}

func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	writeJSON(h.logger, w, http.StatusOK, session.Snapshot())
}

// UpdateSession edits the form. Fields left out of the body are unchanged.
func (h *HTTPHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req updateSessionRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Amount != nil {
		session.SetAmount(*req.Amount)
	}
	if req.SenderEmail != nil {
		session.SetSenderEmail(*req.SenderEmail)
	}
	if req.PlanLabel != nil {
		if err := session.SelectPlan(*req.PlanLabel); err != nil {
			writeError(h.logger, w, statusFor(err), err.Error())
			return
		}
	}

	writeJSON(h.logger, w, http.StatusOK, session.Snapshot())
}

// DeleteSession discards the session and abandons any submission in flight.
func (h *HTTPHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.sessions.Discard(id); err != nil {
		writeError(h.logger, w, statusFor(err), err.Error())
		return
	}

	h.logger.InfoContext(r.Context(), "Session discarded", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// SubmitSession claims the session and answers 202 with its snapshot, then
// runs the submission in the background. Progress is observed via GET or the
// websocket stream.
func (h *HTTPHandler) SubmitSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	run, err := h.submitter.Start(session)
	if err != nil {
		h.logger.InfoContext(r.Context(), "Submission rejected", "session_id", session.ID(), "error", err)
		writeError(h.logger, w, statusFor(err), err.Error())
		return
	}

	go run(h.baseCtx)

	writeJSON(h.logger, w, http.StatusAccepted, session.Snapshot())
}

func (h *HTTPHandler) ApproveTransfer(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *HTTPHandler) RejectTransfer(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *HTTPHandler) decide(w http.ResponseWriter, r *http.Request, approved bool) {
	if h.approvals == nil {
		writeError(h.logger, w, http.StatusNotFound, "manual approval is not enabled")
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.approvals.Decide(id, approved); err != nil {
		writeError(h.logger, w, statusFor(err), err.Error())
		return
	}

	h.logger.InfoContext(r.Context(), "Transfer decision recorded", "session_id", id, "approved", approved)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) lookupSession(w http.ResponseWriter, r *http.Request) (*usecases.Session, bool) {
	session, err := h.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		status := statusFor(err)
		if !errors.Is(err, usecases.ErrSessionNotFound) {
			h.logger.ErrorContext(r.Context(), "Error loading session", "error", err)
		}
		writeError(h.logger, w, status, err.Error())
		return nil, false
	}
	return session, true
}
