package wizard

import (
	"strings"
)

// FormPatch updates the General and Grade tab inputs. Nil fields are left as
// they are. The course is changed with SelectCourse, not here.
type FormPatch struct {
	Name      *string        `json:"name,omitempty"`
	Intro     *string        `json:"intro,omitempty"`
	OpenAt    *int64         `json:"openAt,omitempty"`
	CloseAt   *int64         `json:"closeAt,omitempty"`
	DueAt     *int64         `json:"dueAt,omitempty"`
	Visible   *bool          `json:"visible,omitempty"`
	MaxGrade  *float64       `json:"maxGrade,omitempty"`
	GradePass *float64       `json:"gradePass,omitempty"`
	Method    *GradingMethod `json:"method,omitempty"`
}

// SetForm applies p. An invalid result leaves both tabs unchanged.
func (ss *Session) SetForm(p FormPatch) error {
	s := ss.state
	s.mu.Lock()
	defer s.mu.Unlock()

	g, gr := s.general, s.grade
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Intro != nil {
		g.Intro = *p.Intro
	}
	if p.OpenAt != nil {
		g.OpenAt = *p.OpenAt
	}
	if p.CloseAt != nil {
		g.CloseAt = *p.CloseAt
	}
	if p.DueAt != nil {
		g.DueAt = *p.DueAt
	}
	if p.Visible != nil {
		g.Visible = *p.Visible
	}
	if p.MaxGrade != nil {
		gr.MaxGrade = *p.MaxGrade
	}
	if p.GradePass != nil {
		gr.GradePass = *p.GradePass
	}
	if p.Method != nil {
		gr.Method = *p.Method
	}

	var fields []FieldError
	if p.Name != nil && strings.TrimSpace(g.Name) == "" {
		fields = append(fields, fieldErr("name", "a name is required"))
	}
	if g.OpenAt != 0 && g.CloseAt != 0 && g.CloseAt < g.OpenAt {
		fields = append(fields, fieldErr("closeAt", "the close date must be after the open date"))
	}
	if err := validateStruct(gr); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			fields = append(fields, ve.Fields...)
		} else {
			return err
		}
	}
	if len(fields) > 0 {
		return invalid(fields...)
	}
	s.general, s.grade = g, gr
	return nil
}
