package wizard

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// SubmittedItem is one question or criterion as sent to the create/update
// contract. ID is empty for items the LMS has to create.
type SubmittedItem struct {
	ID       string          `json:"id,omitempty"`
	LocalID  string          `json:"localid" validate:"required"`
	Kind     Kind            `json:"qtype" validate:"required"`
	Title    string          `json:"name" validate:"required"`
	BodyText string          `json:"questiontext"`
	Weight   float64         `json:"defaultmark" validate:"gte=0"`
	Shape    json.RawMessage `json:"shapeData,omitempty"`
	Slot     int             `json:"slot,omitempty"`
	// Unchanged marks an imported item whose details were never loaded. It
	// is sent by reference only and Shape is empty.
	Unchanged bool `json:"unchanged,omitempty"`
}

// SubmissionPayload is the immutable create/update request built from a
// session at submit time.
type SubmissionPayload struct {
	SessKey       string          `json:"sesskey" validate:"required"`
	Activity      ActivityType    `json:"activitytype" validate:"oneof=assign quiz codeeditor"`
	InstanceID    int             `json:"instanceid,omitempty"`
	CourseID      int             `json:"courseid" validate:"gt=0"`
	SectionID     int             `json:"sectionid" validate:"gt=0"`
	ModuleID      int             `json:"moduleid"`
	General       GeneralFields   `json:"general"`
	Grade         GradeSettings   `json:"grade"`
	Items         []SubmittedItem `json:"items" validate:"dive"`
	GroupIDs      []int           `json:"groupids"`
	CompetencyIDs []int           `json:"competencyids"`
}

const defaultRejection = "The activity could not be saved."

// Assembler turns the session into one create/update request.
type Assembler struct {
	s       *State
	backend Backend
}

// Submit sends the activity. Missing required inputs fail before any request
// is made, and a second Submit while one is in flight is refused.
func (a *Assembler) Submit(ctx context.Context) (SubmitResult, error) {
	s := a.s
	s.mu.Lock()
	if s.submit.InFlight {
		s.mu.Unlock()
		return SubmitResult{}, ErrSubmitInFlight
	}
	p, err := s.payloadLocked()
	if err != nil {
		s.notify(LevelError, string(regionSubmit), UserMessage(err))
		s.mu.Unlock()
		return SubmitResult{}, err
	}
	s.submit.InFlight = true
	s.mu.Unlock()

	res, err := a.backend.SubmitActivity(ctx, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submit.InFlight = false
	if err == nil && !res.Success {
		msg := strings.TrimSpace(res.Message)
		if msg == "" {
			msg = defaultRejection
		}
		err = &BackendRejected{Message: msg}
	}
	if err != nil {
		s.log.Warn("submit failed", zap.String("session", s.id), zap.Int("course_id", p.CourseID), zap.Error(err))
		s.notify(LevelError, string(regionSubmit), UserMessage(err))
		return SubmitResult{}, err
	}

	s.submit.Last = &res
	for i := range s.items {
		s.items[i].IsDirty = false
	}
	target := res.RedirectTarget
	if target == "" {
		target = s.listingURL
	}
	n := Notice{Level: LevelSuccess, Message: res.Message, Region: string(regionSubmit), At: s.now()}
	if n.Message == "" {
		n.Message = "Activity saved."
	}
	if target != "" {
		n.Redirect = &Redirect{URL: target, After: s.redirectAfter}
	}
	s.push(n)
	s.log.Info("activity submitted", zap.String("session", s.id), zap.Int("course_id", p.CourseID), zap.Int("items", len(p.Items)))
	return res, nil
}

// Payload builds the request Submit would send, without sending it.
func (a *Assembler) Payload() (SubmissionPayload, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	return a.s.payloadLocked()
}

func (s *State) payloadLocked() (SubmissionPayload, error) {
	var fields []FieldError
	if strings.TrimSpace(s.general.Name) == "" {
		fields = append(fields, fieldErr("name", "a name is required"))
	}
	if s.general.CourseID == 0 {
		fields = append(fields, fieldErr("courseId", "select a course"))
	}
	if s.placement.Selection == nil {
		fields = append(fields, fieldErr("placement", "select where the activity is placed"))
	}
	if s.grade.Method == GradingRubric && !hasCriterion(s.items) {
		fields = append(fields, fieldErr("items", "a rubric needs at least one criterion"))
	}
	if len(fields) > 0 {
		return SubmissionPayload{}, invalid(fields...)
	}

	sel := s.placement.Selection
	p := SubmissionPayload{
		SessKey:       s.sesskey,
		Activity:      s.activity,
		InstanceID:    s.instanceID,
		CourseID:      s.general.CourseID,
		SectionID:     sel.SectionID,
		General:       s.general,
		Grade:         s.grade,
		Items:         make([]SubmittedItem, 0, len(s.items)),
		GroupIDs:      sortedIDs(s.groups.Selected),
		CompetencyIDs: sortedIDs(s.comps.Selected),
	}
	p.General.Name = strings.TrimSpace(p.General.Name)
	if sel.ModuleID != nil {
		p.ModuleID = *sel.ModuleID
	}
	for _, it := range s.items {
		si := SubmittedItem{LocalID: it.LocalID, Kind: it.Kind, Title: it.Title, BodyText: it.BodyText, Weight: it.Weight, Slot: it.Slot}
		if it.PersistedID != nil {
			si.ID = *it.PersistedID
		}
		if it.Origin == OriginImported && !it.DetailsLoaded {
			si.Unchanged = true
		} else {
			raw, err := encodeShape(it.Kind, it.Shape)
			if err != nil {
				return SubmissionPayload{}, err
			}
			si.Shape = raw
		}
		p.Items = append(p.Items, si)
	}
	if err := validateStruct(p); err != nil {
		return SubmissionPayload{}, err
	}
	return p, nil
}

func hasCriterion(items []BuilderItem) bool {
	for _, it := range items {
		if it.Kind == KindCriterion {
			return true
		}
	}
	return false
}

// InFlight reports whether a submit is waiting for the LMS.
func (a *Assembler) InFlight() bool {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	return a.s.submit.InFlight
}
