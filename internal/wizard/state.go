package wizard

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type ActivityType string

const (
	ActivityAssign     ActivityType = "assign"
	ActivityQuiz       ActivityType = "quiz"
	ActivityCodeEditor ActivityType = "codeeditor"
)

// EditPolicy decides what saving an edited, already persisted item means.
type EditPolicy string

const (
	// EditAsNew drops the persisted id so the edited copy is created as a new
	// item on submit.
	EditAsNew EditPolicy = "new"
	// EditInPlace keeps the persisted id so the item is updated on submit.
	EditInPlace EditPolicy = "inplace"
)

type GradingMethod string

const (
	GradingSimple GradingMethod = "simple"
	GradingRubric GradingMethod = "rubric"
)

// WizardState is the navigation part of a session.
type WizardState struct {
	ActiveTab  Tab  `json:"activeTab"`
	IsEditMode bool `json:"isEditMode"`
}

// GeneralFields are the General tab inputs. Times are unix seconds, 0 = unset.
type GeneralFields struct {
	Name     string `json:"name"`
	Intro    string `json:"intro,omitempty"`
	CourseID int    `json:"courseId"`
	OpenAt   int64  `json:"openAt,omitempty"`
	CloseAt  int64  `json:"closeAt,omitempty"`
	DueAt    int64  `json:"dueAt,omitempty"`
	Visible  bool   `json:"visible"`
}

// GradeSettings are the Grade tab inputs.
type GradeSettings struct {
	MaxGrade  float64       `json:"maxGrade" validate:"gte=0"`
	GradePass float64       `json:"gradePass" validate:"gte=0,ltefield=MaxGrade"`
	Method    GradingMethod `json:"method" validate:"oneof=simple rubric"`
}

type RegionStatus string

const (
	StatusIdle    RegionStatus = "idle"
	StatusLoading RegionStatus = "loading"
	StatusReady   RegionStatus = "ready"
	StatusFailed  RegionStatus = "failed"
)

// Region is the load state of one independently fetched part of the page.
type Region struct {
	Status RegionStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

func loading() Region            { return Region{Status: StatusLoading} }
func ready() Region              { return Region{Status: StatusReady} }
func failed(err error) Region    { return Region{Status: StatusFailed, Error: UserMessage(err)} }
func idle() Region               { return Region{Status: StatusIdle} }
func (r Region) isLoading() bool { return r.Status == StatusLoading }

type EditorMode string

const (
	EditorClosed EditorMode = "closed"
	EditorCreate EditorMode = "create"
	EditorEdit   EditorMode = "edit"
)

type editorState struct {
	Mode      EditorMode   `json:"mode"`
	Kind      Kind         `json:"kind,omitempty"`
	EditingID string       `json:"editingId,omitempty"`
	Draft     *BuilderItem `json:"draft,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
	Loading   bool         `json:"loading,omitempty"`
}

type placementState struct {
	Region    Region              `json:"region"`
	CourseID  int                 `json:"courseId"`
	Tree      CourseTree          `json:"tree"`
	Selection *PlacementSelection `json:"selection,omitempty"`
}

type queueState struct {
	Kind     Kind            `json:"kind,omitempty"`
	Pending  []RawSuggestion `json:"pending,omitempty"`
	Current  int             `json:"current"`
	Accepted int             `json:"accepted"`
	Skipped  int             `json:"skipped"`
	Active   bool            `json:"active"`
	Region   Region          `json:"region"`
}

type competencyState struct {
	Region   Region       `json:"region"`
	Tree     []Competency `json:"tree"`
	Selected map[int]bool `json:"selected"`
	Query    string       `json:"query,omitempty"`
	Matches  []int        `json:"matches,omitempty"`
}

type groupState struct {
	Region         Region           `json:"region"`
	StudentsRegion Region           `json:"studentsRegion"`
	MembersRegion  Region           `json:"membersRegion"`
	Groups         []Group          `json:"groups"`
	Selected       map[int]bool     `json:"selected"`
	Students       []Member         `json:"students"`
	Members        map[int][]Member `json:"members"`
	Query          string           `json:"query,omitempty"`
	Matches        []int            `json:"matches,omitempty"`
}

type bankState struct {
	Region  Region        `json:"region"`
	Results []ItemSummary `json:"results"`
}

type submitState struct {
	InFlight bool          `json:"inFlight"`
	Last     *SubmitResult `json:"last,omitempty"`
}

// State is everything one authoring session holds in memory. All components of
// a session share one State; mu serialises every mutation so each command runs
// to completion before the next one observes the state. Network calls are made
// with mu released and their results re-checked against tokens.
type State struct {
	mu     sync.Mutex
	tokens requestTokens

	id         string
	activity   ActivityType
	instanceID int
	sesskey    string
	policy     EditPolicy
	listingURL string

	redirectAfter time.Duration

	wizard    WizardState
	general   GeneralFields
	grade     GradeSettings
	placement placementState
	items     []BuilderItem
	editor    editorState
	queue     queueState
	comps     competencyState
	groups    groupState
	bank      bankState
	submit    submitState
	notices   []Notice

	log      *zap.Logger
	notifier Notifier
	now      func() time.Time
}

func newState() *State {
	return &State{
		tokens:    requestTokens{},
		wizard:    WizardState{ActiveTab: TabGeneral},
		grade:     GradeSettings{MaxGrade: 100, Method: GradingSimple},
		general:   GeneralFields{Visible: true},
		editor:    editorState{Mode: EditorClosed},
		placement: placementState{Region: idle()},
		comps:     competencyState{Region: idle(), Selected: map[int]bool{}},
		groups:    groupState{Region: idle(), StudentsRegion: idle(), MembersRegion: idle(), Selected: map[int]bool{}, Members: map[int][]Member{}},
		bank:      bankState{Region: idle()},
		queue:     queueState{Region: idle()},
		log:       zap.NewNop(),
		notifier:  nopNotifier{},
		now:       time.Now,
	}
}

// notify records n and forwards it; mu must be held.
func (s *State) notify(level Level, region, msg string) Notice {
	n := Notice{Level: level, Message: msg, Region: region, At: s.now()}
	s.push(n)
	return n
}

func (s *State) push(n Notice) {
	s.notices = append(s.notices, n)
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
	s.notifier.Notify(s.id, n)
}

func (s *State) itemIndex(localID string) int {
	for i := range s.items {
		if s.items[i].LocalID == localID {
			return i
		}
	}
	return -1
}
