package wizard

import (
	"context"

	"go.uber.org/zap"
)

type Module struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	SectionID int    `json:"sectionId"`
}

type Section struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Modules []Module `json:"modules"`
}

// CourseTree is the section → module structure of one course.
type CourseTree struct {
	CourseID int       `json:"courseId"`
	Sections []Section `json:"sections"`
}

func (t CourseTree) clone() CourseTree {
	if t.Sections == nil {
		return t
	}
	out := CourseTree{CourseID: t.CourseID, Sections: make([]Section, len(t.Sections))}
	for i, sec := range t.Sections {
		sec.Modules = append([]Module(nil), sec.Modules...)
		out.Sections[i] = sec
	}
	return out
}

type PlacementType string

const (
	PlaceSection PlacementType = "section"
	PlaceModule  PlacementType = "module"
)

// PlacementSelection is where the new activity goes. ModuleID is nil for a
// top-level placement in the section.
type PlacementSelection struct {
	Type        PlacementType `json:"type"`
	SectionID   int           `json:"sectionId"`
	ModuleID    *int          `json:"moduleId"`
	DisplayPath string        `json:"displayPath"`
}

// resolve finds the node (id, typ) in t and builds a selection for it.
func (t CourseTree) resolve(id int, typ PlacementType) (PlacementSelection, bool) {
	for _, sec := range t.Sections {
		switch typ {
		case PlaceSection:
			if sec.ID == id {
				return PlacementSelection{Type: PlaceSection, SectionID: sec.ID, DisplayPath: sec.Name}, true
			}
		case PlaceModule:
			for _, m := range sec.Modules {
				if m.ID == id {
					mid := m.ID
					return PlacementSelection{
						Type:        PlaceModule,
						SectionID:   sec.ID,
						ModuleID:    &mid,
						DisplayPath: sec.Name + " / " + m.Name,
					}, true
				}
			}
		}
	}
	return PlacementSelection{}, false
}

// PlacementSelector is the course section/module picker.
type PlacementSelector struct {
	s       *State
	backend Backend
}

// LoadTree fetches the course structure and restores the current selection if
// its node still exists. Failures are shown in the tree region only.
func (p *PlacementSelector) LoadTree(ctx context.Context, courseID int) {
	s := p.s
	s.mu.Lock()
	tok := s.tokens.next(regionTree)
	s.placement.Region = loading()
	s.placement.CourseID = courseID
	s.mu.Unlock()

	tree, err := p.backend.CourseStructure(ctx, courseID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tokens.latest(regionTree, tok) {
		s.log.Debug("dropping stale course tree", zap.Int("course_id", courseID))
		return
	}
	if err != nil {
		s.log.Warn("course tree load failed", zap.Int("course_id", courseID), zap.Error(err))
		s.placement.Region = failed(err)
		s.placement.Tree = CourseTree{CourseID: courseID}
		return
	}
	if tree.CourseID == 0 {
		tree.CourseID = courseID
	}
	s.placement.Tree = tree
	s.placement.Region = ready()
	s.restorePlacementLocked()
}

func (s *State) restorePlacementLocked() {
	prev := s.placement.Selection
	if prev == nil {
		return
	}
	id := prev.SectionID
	if prev.Type == PlaceModule && prev.ModuleID != nil {
		id = *prev.ModuleID
	}
	sel, ok := s.placement.Tree.resolve(id, prev.Type)
	if !ok {
		s.placement.Selection = nil
		s.notify(LevelWarning, string(regionTree), UserMessage(ErrStale))
		return
	}
	s.placement.Selection = &sel
}

// Select marks one tree node as the placement, replacing any previous one.
func (p *PlacementSelector) Select(nodeID int, typ PlacementType) (PlacementSelection, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if typ != PlaceSection && typ != PlaceModule {
		return PlacementSelection{}, invalid(fieldErr("type", "unknown placement type %q", typ))
	}
	sel, ok := s.placement.Tree.resolve(nodeID, typ)
	if !ok {
		return PlacementSelection{}, invalid(fieldErr("placement", "%s %d is not in the course structure", typ, nodeID))
	}
	s.placement.Selection = &sel
	return sel, nil
}

// Clear drops the current selection.
func (p *PlacementSelector) Clear() {
	p.s.mu.Lock()
	p.s.placement.Selection = nil
	p.s.mu.Unlock()
}

// Selection returns the current placement, if any.
func (p *PlacementSelector) Selection() (PlacementSelection, bool) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.s.placement.Selection == nil {
		return PlacementSelection{}, false
	}
	sel := *p.s.placement.Selection
	return sel, true
}

// Fields returns the two scalar submission fields; moduleID is 0 for a
// section-level placement.
func (p *PlacementSelector) Fields() (sectionID, moduleID int, ok bool) {
	sel, ok := p.Selection()
	if !ok {
		return 0, 0, false
	}
	if sel.ModuleID != nil {
		moduleID = *sel.ModuleID
	}
	return sel.SectionID, moduleID, true
}

func (p *PlacementSelector) Region() Region {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.s.placement.Region
}
