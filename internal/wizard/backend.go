package wizard

import (
	"context"
	"encoding/json"
)

// Backend is the host LMS as seen by the wizard. Every method is a single
// request/response exchange; mutating calls carry the session key themselves.
// Implementations report failures as *TransportFailure, *BackendRejected or
// ErrStale (unknown id).
type Backend interface {
	CourseStructure(ctx context.Context, courseID int) (CourseTree, error)
	Competencies(ctx context.Context, courseID int) ([]Competency, error)
	Groups(ctx context.Context, courseID int) ([]Group, error)
	// CreateGroup returns *MembersNotAdded when the group exists but adding
	// its members failed.
	CreateGroup(ctx context.Context, sesskey string, g NewGroup) (Group, error)
	GroupMembers(ctx context.Context, groupID int) ([]Member, error)
	CourseStudents(ctx context.Context, courseID int) ([]Member, error)
	BankItems(ctx context.Context, q BankQuery) ([]ItemSummary, error)
	ItemDetail(ctx context.Context, ref ItemRef) (ItemDetail, error)
	GenerateItems(ctx context.Context, sesskey string, req GenerateRequest) ([]RawSuggestion, error)
	SubmitActivity(ctx context.Context, p SubmissionPayload) (SubmitResult, error)
}

// BankQuery filters the question bank listing. InstanceID restricts the
// listing to the items already placed in an existing activity.
type BankQuery struct {
	CourseID   int    `json:"courseid"`
	InstanceID int    `json:"instanceid,omitempty"`
	Kind       Kind   `json:"qtype,omitempty"`
	Search     string `json:"search,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// ItemSummary is one row of a question bank listing.
type ItemSummary struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"kind"`
	Title       string  `json:"title"`
	BodyPreview string  `json:"bodyPreview"`
	Weight      float64 `json:"weight"`
	Slot        int     `json:"slot,omitempty"`
}

// ItemRef looks an item up by backend id, or by its positional slot inside
// the activity when no id has been assigned yet.
type ItemRef struct {
	ID         string `json:"id,omitempty"`
	Slot       int    `json:"slot,omitempty"`
	InstanceID int    `json:"instanceid,omitempty"`
}

// ItemDetail is the full kind-specific payload of one item. NonEditable marks
// kinds that can only be edited in the LMS's own editor.
type ItemDetail struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Title       string          `json:"title"`
	BodyText    string          `json:"bodyText"`
	Weight      float64         `json:"weight"`
	Shape       json.RawMessage `json:"shapeData,omitempty"`
	NonEditable bool            `json:"nonEditable,omitempty"`
	EditURL     string          `json:"editUrl,omitempty"`
}

// SubmitResult is the create/update contract's response.
type SubmitResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	RedirectTarget string `json:"redirectTarget,omitempty"`
}
