package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
)

type Group struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MemberCount int    `json:"memberCount"`
}

type Member struct {
	ID       int    `json:"id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

// NewGroup is the create-group request.
type NewGroup struct {
	CourseID    int    `json:"courseId" validate:"gt=0"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MemberIDs   []int  `json:"memberIds"`
}

// GroupSelector lists, creates and selects course groups, and searches the
// course's students.
type GroupSelector struct {
	s        *State
	backend  Backend
	debounce *debouncer
}

// Load fetches groups and students concurrently; each updates its own region.
func (g *GroupSelector) Load(ctx context.Context, courseID int) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); g.loadGroups(ctx, courseID) }()
	go func() { defer wg.Done(); g.loadStudents(ctx, courseID) }()
	wg.Wait()
}

func (g *GroupSelector) loadGroups(ctx context.Context, courseID int) {
	s := g.s
	s.mu.Lock()
	tok := s.tokens.next(regionGroups)
	s.groups.Region = loading()
	s.mu.Unlock()

	groups, err := g.backend.Groups(ctx, courseID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tokens.latest(regionGroups, tok) {
		s.log.Debug("dropping stale groups", zap.Int("course_id", courseID))
		return
	}
	if err != nil {
		s.log.Warn("group load failed", zap.Int("course_id", courseID), zap.Error(err))
		s.groups.Region = failed(err)
		return
	}
	s.groups.Groups = groups
	s.groups.Region = ready()
	known := map[int]bool{}
	for _, gr := range groups {
		known[gr.ID] = true
	}
	for id := range s.groups.Selected {
		if !known[id] {
			delete(s.groups.Selected, id)
		}
	}
}

func (g *GroupSelector) loadStudents(ctx context.Context, courseID int) {
	s := g.s
	s.mu.Lock()
	tok := s.tokens.next(regionStudents)
	s.groups.StudentsRegion = loading()
	s.mu.Unlock()

	students, err := g.backend.CourseStudents(ctx, courseID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tokens.latest(regionStudents, tok) {
		return
	}
	if err != nil {
		s.log.Warn("student load failed", zap.Int("course_id", courseID), zap.Error(err))
		s.groups.StudentsRegion = failed(err)
		return
	}
	s.groups.Students = students
	s.groups.StudentsRegion = ready()
	s.groups.Matches = filterMembers(students, s.groups.Query)
}

// LoadMembers fetches the members of one group.
func (g *GroupSelector) LoadMembers(ctx context.Context, groupID int) ([]Member, error) {
	s := g.s
	s.mu.Lock()
	tok := s.tokens.next(regionMembers)
	s.groups.MembersRegion = loading()
	s.mu.Unlock()

	members, err := g.backend.GroupMembers(ctx, groupID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tokens.latest(regionMembers, tok) {
		return members, nil
	}
	if err != nil {
		s.groups.MembersRegion = failed(err)
		return nil, err
	}
	s.groups.MembersRegion = ready()
	s.groups.Members[groupID] = members
	return members, nil
}

// Toggle selects or deselects a group.
func (g *GroupSelector) Toggle(id int) (bool, error) {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, gr := range s.groups.Groups {
		if gr.ID == id {
			found = true
			break
		}
	}
	if !found {
		return false, invalid(fieldErr("group", "group %d is not available in this course", id))
	}
	on := !s.groups.Selected[id]
	if on {
		s.groups.Selected[id] = true
	} else {
		delete(s.groups.Selected, id)
	}
	return on, nil
}

// Selected returns the selected group ids in ascending order.
func (g *GroupSelector) Selected() []int {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	return sortedIDs(g.s.groups.Selected)
}

func (g *GroupSelector) Groups() []Group {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	return append([]Group(nil), g.s.groups.Groups...)
}

// CreateGroup creates an ad-hoc group, appends it to the list and selects it
// when the course has not changed meanwhile.
func (g *GroupSelector) CreateGroup(ctx context.Context, name, description string, memberIDs []int) (Group, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < 2 {
		return Group{}, invalid(fieldErr("name", "group name must be at least 2 characters"))
	}
	s := g.s
	s.mu.Lock()
	courseID := s.general.CourseID
	sesskey := s.sesskey
	s.mu.Unlock()
	req := NewGroup{CourseID: courseID, Name: name, Description: strings.TrimSpace(description), MemberIDs: append([]int(nil), memberIDs...)}
	if err := validateStruct(req); err != nil {
		return Group{}, invalid(fieldErr("course", "select a course first"))
	}

	created, err := g.backend.CreateGroup(ctx, sesskey, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	var partial *MembersNotAdded
	switch {
	case errors.As(err, &partial):
		created = partial.Group
		created.MemberCount = 0
	case err != nil:
		s.notify(LevelError, string(regionGroups), UserMessage(err))
		return Group{}, err
	case created.MemberCount == 0:
		created.MemberCount = len(req.MemberIDs)
	}
	if created.Name == "" {
		created.Name = name
	}
	if s.general.CourseID != courseID {
		s.log.Debug("group created for a previous course", zap.Int("course_id", courseID), zap.Int("group_id", created.ID))
		return created, nil
	}
	s.groups.Groups = append(s.groups.Groups, created)
	s.groups.Selected[created.ID] = true
	if partial != nil {
		s.log.Warn("group created without members", zap.Int("group_id", created.ID), zap.Error(partial.Err))
		s.notify(LevelWarning, string(regionGroups), "Group \""+created.Name+"\" created, but its members could not be added: "+UserMessage(partial.Err))
		return created, nil
	}
	s.notify(LevelSuccess, string(regionGroups), "Group \""+created.Name+"\" created.")
	return created, nil
}

// SearchMembers filters the course students after the debounce delay.
func (g *GroupSelector) SearchMembers(query string) {
	s := g.s
	s.mu.Lock()
	tok := s.tokens.next(regionMemberSearch)
	s.mu.Unlock()
	g.debounce.trigger(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.tokens.latest(regionMemberSearch, tok) {
			return
		}
		s.groups.Query = query
		s.groups.Matches = filterMembers(s.groups.Students, query)
		if g.debounce.deferred() {
			s.notify(LevelInfo, string(regionMemberSearch), searchNotice("student", "students", len(s.groups.Matches), query))
		}
	})
}

// MemberMatches returns the student ids matched by the last applied search.
func (g *GroupSelector) MemberMatches() []int {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	return append([]int(nil), g.s.groups.Matches...)
}

func filterMembers(ms []Member, query string) []int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []int
	for _, m := range ms {
		if strings.Contains(strings.ToLower(m.Fullname), q) || strings.Contains(strings.ToLower(m.Email), q) {
			out = append(out, m.ID)
		}
	}
	return out
}
