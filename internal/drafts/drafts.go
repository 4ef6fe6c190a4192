// Package drafts keeps authoring-session snapshots so an interrupted session
// can be resumed. Stores: in-process memory, SQL (sqlite/postgres) and redis.
package drafts

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

var ErrNotFound = errors.New("draft not found")

// Draft is one saved session. Owner is the authenticated subject that
// created the session.
type Draft struct {
	Owner     string          `json:"owner"`
	Snapshot  wizard.Snapshot `json:"snapshot"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Summary is the listing row for a draft.
type Summary struct {
	SessionID  string              `json:"sessionId"`
	Owner      string              `json:"owner"`
	Activity   wizard.ActivityType `json:"activity"`
	InstanceID int                 `json:"instanceId,omitempty"`
	Name       string              `json:"name"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

type Store interface {
	Save(ctx context.Context, d Draft) error
	Load(ctx context.Context, sessionID string) (Draft, error)
	Delete(ctx context.Context, sessionID string) error
	// List returns the owner's drafts, most recently updated first.
	List(ctx context.Context, owner string) ([]Summary, error)
}

func (d Draft) summary() Summary {
	return Summary{
		SessionID:  d.Snapshot.SessionID,
		Owner:      d.Owner,
		Activity:   d.Snapshot.Activity,
		InstanceID: d.Snapshot.InstanceID,
		Name:       d.Snapshot.General.Name,
		UpdatedAt:  d.UpdatedAt,
	}
}

func validDraft(d Draft) error {
	if d.Snapshot.SessionID == "" {
		return errors.New("draft without session id")
	}
	return nil
}
