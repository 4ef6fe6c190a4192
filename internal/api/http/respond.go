// Package http holds the authoring API handlers. Routes are wired in
// cmd/builderd.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mind-engage/mindengage-authoring/internal/sessions"
	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Kind        string              `json:"kind"`
	Message     string              `json:"message"`
	Fields      []wizard.FieldError `json:"fields,omitempty"`
	RedirectURL string              `json:"redirectUrl,omitempty"`
}

// classify maps err onto a status code and a body.
func classify(err error) (int, ErrorBody) {
	var (
		ve *wizard.ValidationError
		br *wizard.BackendRejected
		tf *wizard.TransportFailure
		uo *wizard.UnsupportedOperation
	)
	body := ErrorBody{Message: wizard.UserMessage(err)}
	switch {
	case errors.As(err, &ve):
		body.Kind, body.Fields = "validation", ve.Fields
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &uo):
		body.Kind, body.RedirectURL = "unsupported", uo.RedirectURL
		return http.StatusOK, body
	case errors.As(err, &br):
		body.Kind = "rejected"
		return http.StatusBadRequest, body
	case errors.As(err, &tf):
		body.Kind = "transport"
		return http.StatusBadGateway, body
	case errors.Is(err, wizard.ErrConfirmationRequired):
		body.Kind = "confirmation_required"
		return http.StatusConflict, body
	case errors.Is(err, wizard.ErrStale):
		body.Kind = "stale"
		return http.StatusConflict, body
	case errors.Is(err, wizard.ErrSubmitInFlight):
		body.Kind = "in_flight"
		return http.StatusConflict, body
	case errors.Is(err, wizard.ErrEditorClosed), errors.Is(err, wizard.ErrNoActiveSuggestion),
		errors.Is(err, wizard.ErrEmptySuggestions):
		body.Kind = "conflict"
		return http.StatusConflict, body
	case errors.Is(err, wizard.ErrItemNotFound), errors.Is(err, wizard.ErrUnknownCommand),
		errors.Is(err, sessions.ErrNotFound):
		body.Kind = "not_found"
		return http.StatusNotFound, body
	case errors.Is(err, sessions.ErrForbidden):
		body.Kind = "forbidden"
		return http.StatusForbidden, body
	default:
		body.Kind, body.Message = "internal", "internal error"
		return http.StatusInternalServerError, body
	}
}

func respondError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	respondJSON(w, status, body)
}
