package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authmw "github.com/mind-engage/mindengage-authoring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-authoring/internal/notify"
	"github.com/mind-engage/mindengage-authoring/internal/rbac"
	"github.com/mind-engage/mindengage-authoring/internal/sessions"
	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

const maxBody = 1 << 20

// PermAnySession lets a role act on sessions owned by others.
const PermAnySession = "session:any"

func callerFrom(r *http.Request) sessions.Caller {
	return sessions.Caller{
		Subject: authmw.SubjectFromContext(r.Context()),
		Admin:   rbac.Can(rbac.RoleFromContext(r.Context()), PermAnySession),
	}
}

// CommandResult is the response to a dispatched command: the view is always
// present, the error only when the command failed.
type CommandResult struct {
	View  wizard.View `json:"view"`
	Error *ErrorBody  `json:"error,omitempty"`
}

// POST /sessions
func CreateSessionHandler(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessions.CreateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		ss, err := reg.Create(r.Context(), callerFrom(r), req)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, ss.View())
	}
}

// GET /sessions/{sessionID}
func GetSessionHandler(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ss, err := reg.Get(callerFrom(r), chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ss.View())
	}
}

// GET /sessions/{sessionID}/snapshot
func SnapshotHandler(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ss, err := reg.Get(callerFrom(r), chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ss.Snapshot())
	}
}

// POST /sessions/{sessionID}/commands/{command}
// The body holds the command's arguments and may be empty.
func DispatchHandler(reg *sessions.Registry, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		args, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		cmd, err := wizard.DecodeCommand(chi.URLParam(r, "command"), json.RawMessage(args))
		if err != nil {
			respondError(w, err)
			return
		}
		id := chi.URLParam(r, "sessionID")
		v, err := reg.Dispatch(r.Context(), callerFrom(r), id, cmd)
		if errors.Is(err, sessions.ErrNotFound) || errors.Is(err, sessions.ErrForbidden) {
			respondError(w, err)
			return
		}
		res := CommandResult{View: v}
		status := http.StatusOK
		if err != nil {
			var body ErrorBody
			status, body = classify(err)
			res.Error = &body
			if status >= http.StatusInternalServerError {
				log.Warn("command failed", zap.String("session", id), zap.String("command", cmd.Name()), zap.Error(err))
			}
		}
		respondJSON(w, status, res)
	}
}

// DELETE /sessions/{sessionID}; also discards a saved draft.
func CloseSessionHandler(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Close(r.Context(), callerFrom(r), chi.URLParam(r, "sessionID")); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /sessions/{sessionID}/notices (WebSocket)
func NoticesHandler(reg *sessions.Registry, hub *notify.Hub, checkOrigin func(*http.Request) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		if _, err := reg.Get(callerFrom(r), id); err != nil {
			respondError(w, err)
			return
		}
		hub.Serve(w, r, id, checkOrigin)
	}
}

// GET /drafts
func ListDraftsHandler(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := reg.Drafts(r.Context(), callerFrom(r))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// POST /drafts/{sessionID}/resume  { "sesskey": "..." }
func ResumeDraftHandler(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessKey string `json:"sesskey" validate:"required"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := wizard.Validate(req); err != nil {
			respondError(w, err)
			return
		}
		ss, err := reg.Resume(r.Context(), callerFrom(r), chi.URLParam(r, "sessionID"), req.SessKey)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ss.View())
	}
}
