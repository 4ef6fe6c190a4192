package wizard_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

/* ---------------- In-memory fake satisfying wizard.Backend ---------------- */

type fakeBackend struct {
	mu sync.Mutex

	trees        map[int]wizard.CourseTree
	competencies map[int][]wizard.Competency
	groups       map[int][]wizard.Group
	members      map[int][]wizard.Member
	students     map[int][]wizard.Member
	bank         []wizard.ItemSummary
	details      map[string]wizard.ItemDetail
	slotDetails  map[int]wizard.ItemDetail
	suggestions  []wizard.RawSuggestion
	submitResult wizard.SubmitResult

	// failures by operation name
	fail map[string]error
	// gates block an operation until the channel is closed
	gates map[string]chan struct{}

	// membersErr fails adding members after the group is created
	membersErr  error
	nextGroupID int
	calls       map[string]int
	submitted   []wizard.SubmissionPayload
	created     []wizard.NewGroup
	detailRefs  []wizard.ItemRef
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		trees:        map[int]wizard.CourseTree{},
		competencies: map[int][]wizard.Competency{},
		groups:       map[int][]wizard.Group{},
		members:      map[int][]wizard.Member{},
		students:     map[int][]wizard.Member{},
		details:      map[string]wizard.ItemDetail{},
		slotDetails:  map[int]wizard.ItemDetail{},
		fail:         map[string]error{},
		gates:        map[string]chan struct{}{},
		calls:        map[string]int{},
		nextGroupID:  100,
		submitResult: wizard.SubmitResult{Success: true, Message: "Saved"},
	}
}

func (f *fakeBackend) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	gate := f.gates[op]
	err := f.fail[op]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) block(op string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[op] = ch
	return ch
}

func (f *fakeBackend) unblock(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.gates, op)
}

func (f *fakeBackend) CourseStructure(ctx context.Context, courseID int) (wizard.CourseTree, error) {
	if err := f.enter(ctx, "CourseStructure"); err != nil {
		return wizard.CourseTree{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trees[courseID]
	if !ok {
		return wizard.CourseTree{}, &wizard.TransportFailure{Op: "course structure", Err: fmt.Errorf("no course %d", courseID)}
	}
	return t, nil
}

func (f *fakeBackend) Competencies(ctx context.Context, courseID int) ([]wizard.Competency, error) {
	if err := f.enter(ctx, "Competencies"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.competencies[courseID], nil
}

func (f *fakeBackend) Groups(ctx context.Context, courseID int) ([]wizard.Group, error) {
	if err := f.enter(ctx, "Groups"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wizard.Group(nil), f.groups[courseID]...), nil
}

func (f *fakeBackend) CreateGroup(ctx context.Context, sesskey string, g wizard.NewGroup) (wizard.Group, error) {
	if err := f.enter(ctx, "CreateGroup"); err != nil {
		return wizard.Group{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if sesskey == "" {
		return wizard.Group{}, &wizard.BackendRejected{Message: "Invalid session key"}
	}
	f.created = append(f.created, g)
	f.nextGroupID++
	gr := wizard.Group{ID: f.nextGroupID, Name: g.Name, Description: g.Description}
	f.groups[g.CourseID] = append(f.groups[g.CourseID], gr)
	if f.membersErr != nil && len(g.MemberIDs) > 0 {
		return gr, &wizard.MembersNotAdded{Group: gr, Err: f.membersErr}
	}
	return gr, nil
}

func (f *fakeBackend) GroupMembers(ctx context.Context, groupID int) ([]wizard.Member, error) {
	if err := f.enter(ctx, "GroupMembers"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[groupID], nil
}

func (f *fakeBackend) CourseStudents(ctx context.Context, courseID int) ([]wizard.Member, error) {
	if err := f.enter(ctx, "CourseStudents"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.students[courseID], nil
}

func (f *fakeBackend) BankItems(ctx context.Context, q wizard.BankQuery) ([]wizard.ItemSummary, error) {
	if err := f.enter(ctx, "BankItems"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []wizard.ItemSummary
	for _, it := range f.bank {
		if q.Kind != "" && it.Kind != q.Kind {
			continue
		}
		if q.InstanceID != 0 && it.Slot == 0 {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeBackend) ItemDetail(ctx context.Context, ref wizard.ItemRef) (wizard.ItemDetail, error) {
	if err := f.enter(ctx, "ItemDetail"); err != nil {
		return wizard.ItemDetail{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailRefs = append(f.detailRefs, ref)
	if ref.ID != "" {
		d, ok := f.details[ref.ID]
		if !ok {
			return wizard.ItemDetail{}, wizard.ErrStale
		}
		return d, nil
	}
	d, ok := f.slotDetails[ref.Slot]
	if !ok {
		return wizard.ItemDetail{}, wizard.ErrStale
	}
	return d, nil
}

func (f *fakeBackend) GenerateItems(ctx context.Context, sesskey string, req wizard.GenerateRequest) ([]wizard.RawSuggestion, error) {
	if err := f.enter(ctx, "GenerateItems"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := req.Count
	if n > len(f.suggestions) {
		n = len(f.suggestions)
	}
	return append([]wizard.RawSuggestion(nil), f.suggestions[:n]...), nil
}

func (f *fakeBackend) SubmitActivity(ctx context.Context, p wizard.SubmissionPayload) (wizard.SubmitResult, error) {
	if err := f.enter(ctx, "SubmitActivity"); err != nil {
		return wizard.SubmitResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, p)
	return f.submitResult, nil
}

/* ---------------- fixtures ---------------- */

const (
	courseA = 10
	courseB = 20
)

func seedCourses(f *fakeBackend) {
	f.trees[courseA] = wizard.CourseTree{CourseID: courseA, Sections: []wizard.Section{
		{ID: 1, Name: "Week 1", Modules: []wizard.Module{{ID: 7, Name: "Intro", SectionID: 1}, {ID: 8, Name: "Reading", SectionID: 1}}},
		{ID: 2, Name: "Week 2"},
	}}
	f.trees[courseB] = wizard.CourseTree{CourseID: courseB, Sections: []wizard.Section{
		{ID: 1, Name: "Unit A", Modules: []wizard.Module{{ID: 9, Name: "Lab", SectionID: 1}}},
	}}
	f.competencies[courseA] = []wizard.Competency{
		{ID: 1, Shortname: "Algebra", IDNumber: "ALG", Children: []wizard.Competency{
			{ID: 2, Shortname: "Linear equations", IDNumber: "ALG-1", Children: []wizard.Competency{
				{ID: 4, Shortname: "Slope", IDNumber: "ALG-1-1"},
			}},
			{ID: 3, Shortname: "Quadratics", IDNumber: "ALG-2"},
		}},
		{ID: 5, Shortname: "Geometry", IDNumber: "GEO"},
	}
	f.groups[courseA] = []wizard.Group{{ID: 1, Name: "Morning", MemberCount: 12}, {ID: 2, Name: "Evening", MemberCount: 9}}
	f.students[courseA] = []wizard.Member{
		{ID: 31, Fullname: "Ada Lovelace", Email: "ada@example.org"},
		{ID: 32, Fullname: "Alan Turing", Email: "alan@example.org"},
		{ID: 33, Fullname: "Grace Hopper", Email: "grace@example.org"},
	}
	f.members[1] = []wizard.Member{{ID: 31, Fullname: "Ada Lovelace", Email: "ada@example.org"}}
}

func newSession(t *testing.T, f *fakeBackend, opts wizard.Options) *wizard.Session {
	t.Helper()
	if opts.SessKey == "" {
		opts.SessKey = "sk-123"
	}
	ss, err := wizard.New(f, opts)
	require.NoError(t, err)
	t.Cleanup(ss.Close)
	return ss
}

// openCourse returns a session with courseA loaded.
func openCourse(t *testing.T, f *fakeBackend) *wizard.Session {
	t.Helper()
	seedCourses(f)
	ss := newSession(t, f, wizard.Options{CourseID: courseA, ListingURL: "/course/view.php?id=10"})
	require.NoError(t, ss.Open(context.Background()))
	return ss
}

func ptr[T any](v T) *T { return &v }
