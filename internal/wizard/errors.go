package wizard

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStale reports a locally held reference (placement, group, item) that no
	// longer exists on the backend.
	ErrStale = errors.New("selection no longer exists")

	ErrConfirmationRequired = errors.New("confirmation required")
	ErrSubmitInFlight       = errors.New("submission already in progress")
	ErrUnknownCommand       = errors.New("unknown command")
	ErrEmptySuggestions     = errors.New("no suggestions to review")
	ErrNoActiveSuggestion   = errors.New("no active suggestion")
	ErrEditorClosed         = errors.New("editor is not open")
	ErrItemNotFound         = errors.New("item not found")
)

// FieldError is a single field-level validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is raised before any network call and never reaches the backend.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(fields ...FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func fieldErr(field, format string, args ...any) FieldError {
	return FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// BackendRejected carries the message of a request that reached the LMS and
// came back with success=false. The message is shown verbatim.
type BackendRejected struct {
	Message string
}

func (e *BackendRejected) Error() string { return e.Message }

// MembersNotAdded reports a group the LMS created whose members could not be
// added. Group is usable and has no members.
type MembersNotAdded struct {
	Group Group
	Err   error
}

func (e *MembersNotAdded) Error() string {
	return "group " + e.Group.Name + " created without members: " + e.Err.Error()
}
func (e *MembersNotAdded) Unwrap() error { return e.Err }

// TransportFailure wraps network and decoding failures.
type TransportFailure struct {
	Op  string
	Err error
}

func (e *TransportFailure) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportFailure) Unwrap() error { return e.Err }

// UnsupportedOperation marks an item kind the builder cannot edit. The caller
// is redirected to the LMS's native editor instead.
type UnsupportedOperation struct {
	Kind        Kind
	RedirectURL string
}

func (e *UnsupportedOperation) Error() string {
	return fmt.Sprintf("%s questions must be edited in the native question editor", e.Kind)
}

// IsValidation reports whether err carries field-level validation messages.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UserMessage renders err the way it is surfaced in a notice.
func UserMessage(err error) string {
	var (
		ve *ValidationError
		br *BackendRejected
		tf *TransportFailure
		uo *UnsupportedOperation
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		if len(ve.Fields) > 0 {
			return ve.Fields[0].Message
		}
		return "please correct the highlighted fields"
	case errors.As(err, &br):
		return br.Message
	case errors.As(err, &tf):
		return "Could not reach the server. Please try again."
	case errors.As(err, &uo):
		return uo.Error()
	case errors.Is(err, ErrStale):
		return "The previous selection is no longer available. Please select again."
	default:
		return err.Error()
	}
}
