package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cantadelicia/estanquillo-backend/api/responses"
	"github.com/cantadelicia/estanquillo-backend/internal/authsession"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
)

type sessionStateResponse struct {
	State     authsession.State `json:"state"`
	SessionID *uuid.UUID        `json:"session_id,omitempty"`
	EditMode  bool              `json:"edit_mode"`
}

func stateResponse(manager *authsession.Manager, editMode bool) sessionStateResponse {
	resp := sessionStateResponse{State: manager.State(), EditMode: editMode}
	if id, ok := manager.ActiveSessionID(); ok {
		resp.SessionID = &id
	}
	return resp
}

// SessionState reports the calling tab's authorization machine state.
func SessionState(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, manager, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stateResponse(manager, store.EditModeActive()))
	}
}

// SessionRequest asks for price-edit rights on the active cart.
// Supervisors get them immediately; vendors are left pending.
func SessionRequest(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, manager, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := manager.RequestEdit(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stateResponse(manager, store.EditModeActive()))
	}
}

// SessionCancelRequest withdraws the tab's pending edit request.
func SessionCancelRequest(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, manager, err := deps.workspace(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := manager.CancelPendingRequest(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stateResponse(manager, store.EditModeActive()))
	}
}

// SessionTeardown releases the tab's session on logout or tab close.
func SessionTeardown(deps ClientDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, _, _, err := resolveClient(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deps.Sessions.Remove(r.Context(), client)
		responses.WriteSuccess(w, map[string]string{"status": "released"})
	}
}

// EditRequestList returns the approval queue, oldest first.
func EditRequestList(approvals *authsession.Approvals, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, err := approvals.ListPending(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pending)
	}
}

// EditRequestApprove grants the requesting vendor a timed session.
func EditRequestApprove(approvals *authsession.Approvals, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := pathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := approvals.Approve(r.Context(), requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// EditRequestDeny resolves a pending request without granting a session.
func EditRequestDeny(approvals *authsession.Approvals, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := pathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := approvals.Deny(r.Context(), requestID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "denied"})
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid id")
	}
	return id, nil
}
