package wizard

import (
	"encoding/json"
	"time"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Redirect asks the page to navigate after a fixed delay.
type Redirect struct {
	URL   string        `json:"url"`
	After time.Duration `json:"-"`
}

func (r Redirect) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		URL     string `json:"url"`
		AfterMS int64  `json:"after_ms"`
	}{r.URL, r.After.Milliseconds()})
}

// Notice is a transient message shown to the teacher.
type Notice struct {
	Level    Level     `json:"level"`
	Message  string    `json:"message"`
	Region   string    `json:"region,omitempty"`
	Redirect *Redirect `json:"redirect,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier receives every notice a session raises. Implementations must not block.
type Notifier interface {
	Notify(sessionID string, n Notice)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, Notice) {}

const maxNotices = 20
