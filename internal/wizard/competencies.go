package wizard

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Competency is a node of the course's competency tree.
type Competency struct {
	ID          int          `json:"id"`
	Shortname   string       `json:"shortname"`
	IDNumber    string       `json:"idnumber"`
	Description string       `json:"description,omitempty"`
	Framework   string       `json:"framework,omitempty"`
	Children    []Competency `json:"children,omitempty"`
}

func cloneCompetencies(in []Competency) []Competency {
	if in == nil {
		return nil
	}
	out := make([]Competency, len(in))
	for i, c := range in {
		c.Children = cloneCompetencies(c.Children)
		out[i] = c
	}
	return out
}

// CompetencySelector is the cascading multi-select over the competency tree.
type CompetencySelector struct {
	s        *State
	backend  Backend
	debounce *debouncer
}

// Load replaces the tree with the course's competencies. Selections whose ids
// are gone are dropped.
func (c *CompetencySelector) Load(ctx context.Context, courseID int) {
	s := c.s
	s.mu.Lock()
	tok := s.tokens.next(regionCompetencies)
	s.comps.Region = loading()
	s.mu.Unlock()

	tree, err := c.backend.Competencies(ctx, courseID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tokens.latest(regionCompetencies, tok) {
		s.log.Debug("dropping stale competencies", zap.Int("course_id", courseID))
		return
	}
	if err != nil {
		s.log.Warn("competency load failed", zap.Int("course_id", courseID), zap.Error(err))
		s.comps.Region = failed(err)
		return
	}
	s.comps.Tree = tree
	s.comps.Region = ready()
	known := map[int]bool{}
	walkCompetencies(tree, func(n *Competency) { known[n.ID] = true })
	for id := range s.comps.Selected {
		if !known[id] {
			delete(s.comps.Selected, id)
		}
	}
	s.comps.Matches = filterCompetencies(tree, s.comps.Query)
}

// walkCompetencies visits nodes in pre-order. Every id is visited at most once.
func walkCompetencies(nodes []Competency, fn func(*Competency)) {
	seen := map[int]bool{}
	var walk func([]Competency)
	walk = func(ns []Competency) {
		for i := range ns {
			n := &ns[i]
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			fn(n)
			walk(n.Children)
		}
	}
	walk(nodes)
}

func findCompetency(nodes []Competency, id int) *Competency {
	var found *Competency
	walkCompetencies(nodes, func(n *Competency) {
		if found == nil && n.ID == id {
			found = n
		}
	})
	return found
}

// Toggle flips id and gives every descendant the same new state.
func (c *CompetencySelector) Toggle(id int) (bool, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	node := findCompetency(s.comps.Tree, id)
	if node == nil {
		return false, invalid(fieldErr("competency", "competency %d is not available in this course", id))
	}
	on := !s.comps.Selected[id]
	walkCompetencies([]Competency{*node}, func(n *Competency) {
		if on {
			s.comps.Selected[n.ID] = true
		} else {
			delete(s.comps.Selected, n.ID)
		}
	})
	return on, nil
}

func (c *CompetencySelector) IsSelected(id int) bool {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.comps.Selected[id]
}

// Selected returns the selected ids in ascending order.
func (c *CompetencySelector) Selected() []int {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return sortedIDs(c.s.comps.Selected)
}

// Search filters the tree after the debounce delay; only the latest query
// is applied.
func (c *CompetencySelector) Search(query string) {
	s := c.s
	s.mu.Lock()
	tok := s.tokens.next(regionCompetencySearch)
	s.mu.Unlock()
	c.debounce.trigger(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.tokens.latest(regionCompetencySearch, tok) {
			return
		}
		s.comps.Query = query
		s.comps.Matches = filterCompetencies(s.comps.Tree, query)
		if c.debounce.deferred() {
			s.notify(LevelInfo, string(regionCompetencySearch), searchNotice("competency", "competencies", len(s.comps.Matches), query))
		}
	})
}

// Matches returns the ids matched by the last applied search.
func (c *CompetencySelector) Matches() []int {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return append([]int(nil), c.s.comps.Matches...)
}

func filterCompetencies(tree []Competency, query string) []int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []int
	walkCompetencies(tree, func(n *Competency) {
		if strings.Contains(strings.ToLower(n.Shortname), q) ||
			strings.Contains(strings.ToLower(n.IDNumber), q) ||
			strings.Contains(strings.ToLower(n.Description), q) {
			out = append(out, n.ID)
		}
	})
	return out
}

func sortedIDs(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for id, on := range m {
		if on {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
