package wizard

import (
	"context"
	"time"
)

// View is the read model of a session returned after every command.
type View struct {
	SessionID   string         `json:"sessionId"`
	Activity    ActivityType   `json:"activity"`
	InstanceID  int            `json:"instanceId,omitempty"`
	Wizard      WizardState    `json:"wizard"`
	Buttons     ActionButtons  `json:"buttons"`
	General     GeneralFields  `json:"general"`
	Grade       GradeSettings  `json:"grade"`
	RubricMax   float64        `json:"rubricMax"`
	Placement   PlacementView  `json:"placement"`
	Items       []BuilderItem  `json:"items"`
	Editor      EditorView     `json:"editor"`
	Suggestions QueueStatus    `json:"suggestions"`
	Competency  CompetencyView `json:"competencies"`
	Group       GroupView      `json:"groups"`
	Bank        BankView       `json:"bank"`
	Submitting  bool           `json:"submitting"`
	LastSubmit  *SubmitResult  `json:"lastSubmit,omitempty"`
	Notices     []Notice       `json:"notices"`
}

type PlacementView struct {
	Region    Region              `json:"region"`
	Tree      CourseTree          `json:"tree"`
	Selection *PlacementSelection `json:"selection,omitempty"`
}

type EditorView struct {
	Mode      EditorMode    `json:"mode"`
	Kind      Kind          `json:"kind,omitempty"`
	EditingID string        `json:"editingId,omitempty"`
	Draft     *BuilderItem  `json:"draft,omitempty"`
	Errors    []FieldError  `json:"errors,omitempty"`
	Loading   bool          `json:"loading,omitempty"`
	Schema    *EditorSchema `json:"schema,omitempty"`
}

type CompetencyView struct {
	Region   Region       `json:"region"`
	Tree     []Competency `json:"tree"`
	Selected []int        `json:"selected"`
	Query    string       `json:"query,omitempty"`
	Matches  []int        `json:"matches,omitempty"`
}

type GroupView struct {
	Region         Region           `json:"region"`
	StudentsRegion Region           `json:"studentsRegion"`
	MembersRegion  Region           `json:"membersRegion"`
	Groups         []Group          `json:"groups"`
	Selected       []int            `json:"selected"`
	Students       []Member         `json:"students"`
	Members        map[int][]Member `json:"members,omitempty"`
	Query          string           `json:"query,omitempty"`
	Matches        []int            `json:"matches,omitempty"`
}

type BankView struct {
	Region  Region        `json:"region"`
	Results []ItemSummary `json:"results"`
}

// View returns a copy of the session that shares nothing with it.
func (ss *Session) View() View {
	s := ss.state
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		SessionID:   s.id,
		Activity:    s.activity,
		InstanceID:  s.instanceID,
		Wizard:      s.wizard,
		Buttons:     buttonsFor(s.wizard.ActiveTab),
		General:     s.general,
		Grade:       s.grade,
		RubricMax:   RubricMax(s.items),
		Items:       s.itemsCopyLocked(),
		Suggestions: s.queueStatusLocked(),
		Submitting:  s.submit.InFlight,
		Notices:     append([]Notice(nil), s.notices...),
		Placement: PlacementView{
			Region: s.placement.Region,
			Tree:   s.placement.Tree.clone(),
		},
		Editor: EditorView{
			Mode:      s.editor.Mode,
			Kind:      s.editor.Kind,
			EditingID: s.editor.EditingID,
			Errors:    append([]FieldError(nil), s.editor.Errors...),
			Loading:   s.editor.Loading,
		},
		Competency: CompetencyView{
			Region:   s.comps.Region,
			Tree:     cloneCompetencies(s.comps.Tree),
			Selected: sortedIDs(s.comps.Selected),
			Query:    s.comps.Query,
			Matches:  append([]int(nil), s.comps.Matches...),
		},
		Group: GroupView{
			Region:         s.groups.Region,
			StudentsRegion: s.groups.StudentsRegion,
			MembersRegion:  s.groups.MembersRegion,
			Groups:         append([]Group(nil), s.groups.Groups...),
			Selected:       sortedIDs(s.groups.Selected),
			Students:       append([]Member(nil), s.groups.Students...),
			Members:        make(map[int][]Member, len(s.groups.Members)),
			Query:          s.groups.Query,
			Matches:        append([]int(nil), s.groups.Matches...),
		},
		Bank: BankView{Region: s.bank.Region, Results: append([]ItemSummary(nil), s.bank.Results...)},
	}
	if sel := s.placement.Selection; sel != nil {
		c := *sel
		if sel.ModuleID != nil {
			id := *sel.ModuleID
			c.ModuleID = &id
		}
		v.Placement.Selection = &c
	}
	if d := s.editor.Draft; d != nil {
		c := d.clone()
		v.Editor.Draft = &c
		if spec, ok := Lookup(d.Kind); ok {
			schema := spec.Editor()
			v.Editor.Schema = &schema
		}
	}
	for id, ms := range s.groups.Members {
		v.Group.Members[id] = append([]Member(nil), ms...)
	}
	if s.submit.Last != nil {
		last := *s.submit.Last
		v.LastSubmit = &last
	}
	return v
}

// Snapshot is the resumable part of a session: what the teacher typed and
// picked, not what was fetched.
type Snapshot struct {
	SessionID     string              `json:"sessionId"`
	Activity      ActivityType        `json:"activity"`
	InstanceID    int                 `json:"instanceId,omitempty"`
	Wizard        WizardState         `json:"wizard"`
	General       GeneralFields       `json:"general"`
	Grade         GradeSettings       `json:"grade"`
	Placement     *PlacementSelection `json:"placement,omitempty"`
	Items         []BuilderItem       `json:"items"`
	GroupIDs      []int               `json:"groupIds"`
	CompetencyIDs []int               `json:"competencyIds"`
	SavedAt       time.Time           `json:"savedAt"`
}

func (ss *Session) Snapshot() Snapshot {
	v := ss.View()
	return Snapshot{
		SessionID:     v.SessionID,
		Activity:      v.Activity,
		InstanceID:    v.InstanceID,
		Wizard:        v.Wizard,
		General:       v.General,
		Grade:         v.Grade,
		Placement:     v.Placement.Selection,
		Items:         v.Items,
		GroupIDs:      v.Group.Selected,
		CompetencyIDs: v.Competency.Selected,
		SavedAt:       ss.state.now(),
	}
}

// Restore puts snap back into a freshly created session and reloads the
// course data. Selections that no longer exist in the course are dropped.
func (ss *Session) Restore(ctx context.Context, snap Snapshot) {
	s := ss.state
	s.mu.Lock()
	s.wizard = snap.Wizard
	if !s.wizard.ActiveTab.valid() {
		s.wizard.ActiveTab = TabGeneral
	}
	s.general = snap.General
	s.grade = snap.Grade
	if snap.Placement != nil {
		sel := *snap.Placement
		s.placement.Selection = &sel
	}
	s.items = make([]BuilderItem, len(snap.Items))
	for i, it := range snap.Items {
		s.items[i] = it.clone()
	}
	s.groups.Selected = map[int]bool{}
	for _, id := range snap.GroupIDs {
		s.groups.Selected[id] = true
	}
	s.comps.Selected = map[int]bool{}
	for _, id := range snap.CompetencyIDs {
		s.comps.Selected[id] = true
	}
	courseID := s.general.CourseID
	s.mu.Unlock()

	if courseID != 0 {
		ss.loadCourse(ctx, courseID)
	}
}
