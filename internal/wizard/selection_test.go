package wizard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

func descendants(n wizard.Competency) []int {
	var out []int
	for _, c := range n.Children {
		out = append(out, c.ID)
		out = append(out, descendants(c)...)
	}
	return out
}

func allNodes(nodes []wizard.Competency) []wizard.Competency {
	var out []wizard.Competency
	for _, n := range nodes {
		out = append(out, n)
		out = append(out, allNodes(n.Children)...)
	}
	return out
}

func TestToggleCascadesToDescendants(t *testing.T) {
	f := newFakeBackend()
	ss := openCourse(t, f)

	for _, node := range allNodes(f.competencies[courseA]) {
		on, err := ss.Competencies.Toggle(node.ID)
		require.NoError(t, err)
		for _, id := range descendants(node) {
			assert.Equal(t, on, ss.Competencies.IsSelected(id), "node %d descendant %d", node.ID, id)
		}
		_, err = ss.Competencies.Toggle(node.ID)
		require.NoError(t, err)
		for _, id := range descendants(node) {
			assert.Equal(t, !on, ss.Competencies.IsSelected(id), "node %d descendant %d", node.ID, id)
		}
	}
}

func TestToggleParentOverridesChildren(t *testing.T) {
	ss := openCourse(t, newFakeBackend())

	_, err := ss.Competencies.Toggle(1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, ss.Competencies.Selected())

	_, err = ss.Competencies.Toggle(2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, ss.Competencies.Selected())

	_, err = ss.Competencies.Toggle(1)
	require.NoError(t, err)
	assert.Empty(t, ss.Competencies.Selected())
}

func TestToggleTerminatesOnRepeatedIDs(t *testing.T) {
	f := newFakeBackend()
	seedCourses(f)
	f.competencies[courseA] = []wizard.Competency{
		{ID: 1, Shortname: "Loop", Children: []wizard.Competency{
			{ID: 1, Shortname: "Loop again", Children: []wizard.Competency{{ID: 2, Shortname: "Leaf"}}},
		}},
	}
	ss := newSession(t, f, wizard.Options{CourseID: courseA})
	require.NoError(t, ss.Open(context.Background()))

	on, err := ss.Competencies.Toggle(1)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, []int{1}, ss.Competencies.Selected())
}

func TestToggleUnknownCompetency(t *testing.T) {
	ss := openCourse(t, newFakeBackend())
	_, err := ss.Competencies.Toggle(404)
	assert.True(t, wizard.IsValidation(err))
}

func TestCompetencySearchWithoutDelay(t *testing.T) {
	ss := openCourse(t, newFakeBackend())
	ss.Competencies.Search("slope")
	assert.Equal(t, []int{4}, ss.Competencies.Matches())
	ss.Competencies.Search("")
	assert.Empty(t, ss.Competencies.Matches())
}

func TestSearchAppliesOnlyLastQuery(t *testing.T) {
	f := newFakeBackend()
	seedCourses(f)
	ss := newSession(t, f, wizard.Options{CourseID: courseA, SearchDebounce: 20 * time.Millisecond})
	require.NoError(t, ss.Open(context.Background()))

	ss.Competencies.Search("alg")
	ss.Competencies.Search("geo")
	assert.Empty(t, ss.Competencies.Matches(), "nothing is applied before the delay")

	require.Eventually(t, func() bool {
		m := ss.Competencies.Matches()
		return len(m) == 1 && m[0] == 5
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "geo", ss.View().Competency.Query)

	ss.Groups.SearchMembers("grace")
	require.Eventually(t, func() bool {
		m := ss.Groups.MemberMatches()
		return len(m) == 1 && m[0] == 33
	}, time.Second, 5*time.Millisecond)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []wizard.Notice
}

func (r *recordingNotifier) Notify(_ string, n wizard.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) inRegion(region string) []wizard.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []wizard.Notice
	for _, n := range r.notices {
		if n.Region == region {
			out = append(out, n)
		}
	}
	return out
}

func TestDebouncedSearchPushesNotice(t *testing.T) {
	f := newFakeBackend()
	seedCourses(f)
	rec := &recordingNotifier{}
	ss := newSession(t, f, wizard.Options{CourseID: courseA, SearchDebounce: 10 * time.Millisecond, Notifier: rec})
	require.NoError(t, ss.Open(context.Background()))

	ss.Competencies.Search("geo")
	require.Eventually(t, func() bool { return len(rec.inRegion("competency-search")) == 1 }, time.Second, 5*time.Millisecond)
	n := rec.inRegion("competency-search")[0]
	assert.Equal(t, wizard.LevelInfo, n.Level)
	assert.Equal(t, `1 competency matches "geo".`, n.Message)

	ss.Groups.SearchMembers("a")
	require.Eventually(t, func() bool { return len(rec.inRegion("member-search")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, `3 students match "a".`, rec.inRegion("member-search")[0].Message)
}

func TestImmediateSearchPushesNothing(t *testing.T) {
	f := newFakeBackend()
	seedCourses(f)
	rec := &recordingNotifier{}
	ss := newSession(t, f, wizard.Options{CourseID: courseA, Notifier: rec})
	require.NoError(t, ss.Open(context.Background()))

	ss.Competencies.Search("geo")
	assert.Equal(t, []int{5}, ss.Competencies.Matches())
	assert.Empty(t, rec.inRegion("competency-search"))
}

func TestCreateGroupRejectsShortName(t *testing.T) {
	f := newFakeBackend()
	ss := openCourse(t, f)

	for _, name := range []string{"", " ", "A", " B  "} {
		_, err := ss.Groups.CreateGroup(context.Background(), name, "", nil)
		assert.True(t, wizard.IsValidation(err), "name %q", name)
	}
	assert.Zero(t, f.count("CreateGroup"))
	assert.Len(t, ss.Groups.Groups(), 2)
}

func TestCreateGroupAppendsAndSelects(t *testing.T) {
	f := newFakeBackend()
	ss := openCourse(t, f)

	g, err := ss.Groups.CreateGroup(context.Background(), " AB ", "pair work", []int{31, 32})
	require.NoError(t, err)

	assert.Equal(t, "AB", g.Name)
	assert.Equal(t, 2, g.MemberCount)
	groups := ss.Groups.Groups()
	require.Len(t, groups, 3)
	assert.Equal(t, g, groups[2])
	assert.Contains(t, ss.Groups.Selected(), g.ID)
	require.Len(t, f.created, 1)
	assert.Equal(t, courseA, f.created[0].CourseID)
	assert.Equal(t, []int{31, 32}, f.created[0].MemberIDs)
}

func TestCreateGroupKeepsGroupWhenMembersFail(t *testing.T) {
	f := newFakeBackend()
	ss := openCourse(t, f)
	f.membersErr = &wizard.BackendRejected{Message: "No permission to add members"}

	g, err := ss.Groups.CreateGroup(context.Background(), "Lab A", "", []int{31, 32})
	require.NoError(t, err)

	assert.NotZero(t, g.ID)
	assert.Zero(t, g.MemberCount)
	groups := ss.Groups.Groups()
	require.Len(t, groups, 3)
	assert.Equal(t, g, groups[2])
	assert.Contains(t, ss.Groups.Selected(), g.ID)
	n := ss.Notices()
	last := n[len(n)-1]
	assert.Equal(t, wizard.LevelWarning, last.Level)
	assert.Contains(t, last.Message, "No permission to add members")
}

func TestCreateGroupBackendRejects(t *testing.T) {
	f := newFakeBackend()
	ss := openCourse(t, f)
	f.fail["CreateGroup"] = &wizard.BackendRejected{Message: "Group name already exists"}

	_, err := ss.Groups.CreateGroup(context.Background(), "Morning", "", nil)

	var br *wizard.BackendRejected
	require.ErrorAs(t, err, &br)
	assert.Len(t, ss.Groups.Groups(), 2)
	assert.Empty(t, ss.Groups.Selected())
	n := ss.Notices()
	assert.Equal(t, "Group name already exists", n[len(n)-1].Message)
}

func TestGroupToggleAndMembers(t *testing.T) {
	ss := openCourse(t, newFakeBackend())

	on, err := ss.Groups.Toggle(2)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, []int{2}, ss.Groups.Selected())
	_, err = ss.Groups.Toggle(77)
	assert.True(t, wizard.IsValidation(err))

	members, err := ss.Groups.LoadMembers(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Ada Lovelace", members[0].Fullname)
	assert.Len(t, ss.View().Group.Members[1], 1)
}

func TestSelectCourseRefetchesAndClears(t *testing.T) {
	f := newFakeBackend()
	ss := openCourse(t, f)
	_, err := ss.Groups.Toggle(1)
	require.NoError(t, err)
	_, err = ss.Competencies.Toggle(5)
	require.NoError(t, err)
	_, err = ss.Placement.Select(7, wizard.PlaceModule)
	require.NoError(t, err)

	require.NoError(t, ss.SelectCourse(context.Background(), courseB))

	assert.Equal(t, 2, f.count("Groups"))
	assert.Equal(t, 2, f.count("CourseStudents"))
	assert.Equal(t, 2, f.count("Competencies"))
	assert.Equal(t, 2, f.count("CourseStructure"))
	v := ss.View()
	assert.Equal(t, courseB, v.General.CourseID)
	assert.Empty(t, v.Group.Selected)
	assert.Empty(t, v.Group.Groups)
	assert.Empty(t, v.Competency.Selected)
	assert.Nil(t, v.Placement.Selection)
	assert.Equal(t, courseB, v.Placement.Tree.CourseID)
}

func TestCourseRegionsFailIndependently(t *testing.T) {
	f := newFakeBackend()
	seedCourses(f)
	f.fail["Groups"] = &wizard.TransportFailure{Op: "groups", Err: errors.New("timeout")}
	ss := newSession(t, f, wizard.Options{CourseID: courseA})
	require.NoError(t, ss.Open(context.Background()))

	v := ss.View()
	assert.Equal(t, wizard.StatusFailed, v.Group.Region.Status)
	assert.Equal(t, wizard.StatusReady, v.Group.StudentsRegion.Status)
	assert.Equal(t, wizard.StatusReady, v.Competency.Region.Status)
	assert.Equal(t, wizard.StatusReady, v.Placement.Region.Status)
}

func TestSelectCourseNeedsID(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	assert.True(t, wizard.IsValidation(ss.SelectCourse(context.Background(), 0)))
}
