package wizard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultRedirectDelay  = 2 * time.Second
	DefaultSearchDebounce = 300 * time.Millisecond
)

// Options configure a new session. InstanceID opens an existing activity in
// edit mode. A zero SearchDebounce applies searches immediately.
type Options struct {
	ID             string
	Activity       ActivityType
	InstanceID     int
	CourseID       int
	SessKey        string
	EditPolicy     EditPolicy
	SearchDebounce time.Duration
	RedirectDelay  time.Duration
	ListingURL     string
	Logger         *zap.Logger
	Notifier       Notifier
	Clock          func() time.Time
}

// Session is one authoring session: the wizard, the builder and the selectors
// sharing a single State.
type Session struct {
	state   *State
	backend Backend

	Tabs         *TabNavigator
	Placement    *PlacementSelector
	Builder      *Builder
	Suggestions  *SuggestionFlow
	Competencies *CompetencySelector
	Groups       *GroupSelector
	Bank         *Bank
	Assembler    *Assembler

	debouncers []*debouncer
}

// New builds a session around backend. Nothing is fetched until Open.
func New(backend Backend, opts Options) (*Session, error) {
	if opts.Activity == "" {
		opts.Activity = ActivityQuiz
	}
	switch opts.Activity {
	case ActivityAssign, ActivityQuiz, ActivityCodeEditor:
	default:
		return nil, invalid(fieldErr("activity", "unknown activity type %q", opts.Activity))
	}
	if opts.EditPolicy == "" {
		opts.EditPolicy = EditAsNew
	}
	if opts.EditPolicy != EditAsNew && opts.EditPolicy != EditInPlace {
		return nil, invalid(fieldErr("editPolicy", "unknown edit policy %q", opts.EditPolicy))
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = DefaultRedirectDelay
	}

	s := newState()
	s.id = opts.ID
	s.activity = opts.Activity
	s.instanceID = opts.InstanceID
	s.sesskey = opts.SessKey
	s.policy = opts.EditPolicy
	s.listingURL = opts.ListingURL
	s.redirectAfter = opts.RedirectDelay
	s.wizard.IsEditMode = opts.InstanceID != 0
	s.general.CourseID = opts.CourseID
	if opts.Logger != nil {
		s.log = opts.Logger.With(zap.String("session", opts.ID))
	}
	if opts.Notifier != nil {
		s.notifier = opts.Notifier
	}
	if opts.Clock != nil {
		s.now = opts.Clock
	}

	compSearch := &debouncer{delay: opts.SearchDebounce}
	memberSearch := &debouncer{delay: opts.SearchDebounce}
	return &Session{
		state:        s,
		backend:      backend,
		Tabs:         &TabNavigator{s: s},
		Placement:    &PlacementSelector{s: s, backend: backend},
		Builder:      &Builder{s: s, backend: backend},
		Suggestions:  &SuggestionFlow{s: s, backend: backend},
		Competencies: &CompetencySelector{s: s, backend: backend, debounce: compSearch},
		Groups:       &GroupSelector{s: s, backend: backend, debounce: memberSearch},
		Bank:         &Bank{s: s, backend: backend},
		Assembler:    &Assembler{s: s, backend: backend},
		debouncers:   []*debouncer{compSearch, memberSearch},
	}, nil
}

// Open loads the course data and, in edit mode, the activity's current items.
func (ss *Session) Open(ctx context.Context) error {
	s := ss.state
	s.mu.Lock()
	courseID, instanceID := s.general.CourseID, s.instanceID
	s.mu.Unlock()
	if courseID == 0 {
		return nil
	}
	ss.loadCourse(ctx, courseID)
	if instanceID != 0 {
		return ss.Bank.ImportItems(ctx, courseID, instanceID)
	}
	return nil
}

// Close stops pending debounced searches.
func (ss *Session) Close() {
	for _, d := range ss.debouncers {
		d.stop()
	}
}

func (ss *Session) ID() string { return ss.state.id }

// Notices returns the most recent notices, oldest first.
func (ss *Session) Notices() []Notice {
	ss.state.mu.Lock()
	defer ss.state.mu.Unlock()
	return append([]Notice(nil), ss.state.notices...)
}
