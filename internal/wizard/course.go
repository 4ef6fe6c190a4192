package wizard

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// SelectCourse switches the session to courseID. Selections that belong to
// the previous course are dropped and every course-scoped region is fetched
// again; each fetch lands in its own region independently of the others.
func (ss *Session) SelectCourse(ctx context.Context, courseID int) error {
	if courseID <= 0 {
		return invalid(fieldErr("courseId", "select a course"))
	}
	s := ss.state
	s.mu.Lock()
	if s.general.CourseID != courseID {
		s.log.Info("course changed", zap.String("session", s.id), zap.Int("from", s.general.CourseID), zap.Int("to", courseID))
		s.general.CourseID = courseID
		s.placement.Selection = nil
		s.comps.Selected = map[int]bool{}
		s.groups.Selected = map[int]bool{}
		s.groups.Members = map[int][]Member{}
		s.bank = bankState{Region: idle()}
	}
	for _, r := range []region{regionTree, regionCompetencies, regionGroups, regionStudents, regionMembers, regionBank} {
		s.tokens.invalidate(r)
	}
	s.mu.Unlock()

	ss.loadCourse(ctx, courseID)
	return nil
}

func (ss *Session) loadCourse(ctx context.Context, courseID int) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); ss.Placement.LoadTree(ctx, courseID) }()
	go func() { defer wg.Done(); ss.Competencies.Load(ctx, courseID) }()
	go func() { defer wg.Done(); ss.Groups.Load(ctx, courseID) }()
	wg.Wait()
}
