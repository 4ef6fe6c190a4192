package wizard_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

func dispatch(t *testing.T, ss *wizard.Session, name, args string) (wizard.View, error) {
	t.Helper()
	cmd, err := wizard.DecodeCommand(name, json.RawMessage(args))
	require.NoError(t, err)
	return ss.Dispatch(context.Background(), cmd)
}

func TestCommandNamesCoverEveryIntent(t *testing.T) {
	names := wizard.CommandNames()
	for _, n := range []string{
		"tab.activate", "tab.advance", "form.set", "course.select", "placement.load", "placement.select",
		"builder.open", "builder.edit", "builder.update", "builder.save", "builder.cancel", "builder.remove",
		"builder.move", "ai.generate", "ai.start", "ai.accept", "ai.skip", "competency.toggle",
		"competency.search", "group.toggle", "group.create", "group.members", "member.search",
		"bank.search", "bank.add", "submit",
	} {
		assert.Contains(t, names, n)
	}
}

func TestDecodeUnknownCommand(t *testing.T) {
	_, err := wizard.DecodeCommand("builder.explode", nil)
	assert.ErrorIs(t, err, wizard.ErrUnknownCommand)
}

func TestDecodeMalformedArguments(t *testing.T) {
	_, err := wizard.DecodeCommand("builder.move", json.RawMessage(`{"index":"first"}`))
	assert.True(t, wizard.IsValidation(err))
}

func TestCommandsDriveAWholeSession(t *testing.T) {
	f := newFakeBackend()
	seedCourses(f)
	ss := newSession(t, f, wizard.Options{ListingURL: "/course/view.php?id=10"})

	v, err := dispatch(t, ss, "course.select", `{"courseId":10}`)
	require.NoError(t, err)
	assert.Equal(t, wizard.StatusReady, v.Placement.Region.Status)

	_, err = dispatch(t, ss, "form.set", `{"name":"Week 1 quiz","maxGrade":10,"gradePass":5}`)
	require.NoError(t, err)
	v, err = dispatch(t, ss, "placement.select", `{"nodeId":7,"type":"module"}`)
	require.NoError(t, err)
	assert.Equal(t, "Week 1 / Intro", v.Placement.Selection.DisplayPath)

	v, err = dispatch(t, ss, "builder.open", `{"kind":"match"}`)
	require.NoError(t, err)
	assert.Equal(t, wizard.EditorCreate, v.Editor.Mode)
	require.NotNil(t, v.Editor.Schema)
	assert.Equal(t, wizard.KindMatch, v.Editor.Schema.Kind)

	_, err = dispatch(t, ss, "builder.update", `{"title":"Animals","shapeData":{"pairs":[{"question":"cat","answer":"meow"},{"question":"dog","answer":"woof"}]}}`)
	require.NoError(t, err)
	v, err = dispatch(t, ss, "builder.save", ``)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)

	v, err = dispatch(t, ss, "builder.remove", `{"localId":"`+v.Items[0].LocalID+`"}`)
	assert.ErrorIs(t, err, wizard.ErrConfirmationRequired)
	assert.Len(t, v.Items, 1, "the view is returned even when a command fails")

	_, err = dispatch(t, ss, "group.create", `{"name":"Lab A","memberIds":[31]}`)
	require.NoError(t, err)
	_, err = dispatch(t, ss, "competency.toggle", `{"id":1}`)
	require.NoError(t, err)
	v, err = dispatch(t, ss, "tab.activate", `{"tab":"assignto"}`)
	require.NoError(t, err)
	assert.True(t, v.Buttons.Finalize)

	v, err = dispatch(t, ss, "submit", ``)
	require.NoError(t, err)
	require.NotNil(t, v.LastSubmit)
	require.Len(t, f.submitted, 1)
	assert.Equal(t, []int{1, 2, 3, 4}, f.submitted[0].CompetencyIDs)
	assert.Len(t, f.submitted[0].GroupIDs, 1)
	assert.Equal(t, 10.0, f.submitted[0].Grade.MaxGrade)
}

func TestSnapshotRestore(t *testing.T) {
	f := newFakeBackend()
	ss := openCourse(t, f)
	require.NoError(t, ss.SetForm(wizard.FormPatch{Name: ptr("Draft quiz")}))
	_, err := ss.Placement.Select(8, wizard.PlaceModule)
	require.NoError(t, err)
	addItem(t, ss, wizard.KindMultiChoice, "Capital of France?", capitalOptions)
	_, err = ss.Groups.Toggle(2)
	require.NoError(t, err)
	ss.Tabs.Activate(wizard.TabGrade)

	raw, err := json.Marshal(ss.Snapshot())
	require.NoError(t, err)
	var snap wizard.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))

	restored := newSession(t, f, wizard.Options{ID: snap.SessionID, Activity: snap.Activity})
	restored.Restore(context.Background(), snap)

	v := restored.View()
	assert.Equal(t, ss.ID(), v.SessionID)
	assert.Equal(t, wizard.TabGrade, v.Wizard.ActiveTab)
	assert.Equal(t, "Draft quiz", v.General.Name)
	require.NotNil(t, v.Placement.Selection)
	assert.Equal(t, "Week 1 / Reading", v.Placement.Selection.DisplayPath)
	assert.Equal(t, []int{2}, v.Group.Selected)
	assert.Equal(t, ss.Builder.Items(), v.Items)
}

func TestRestoreDropsVanishedSelections(t *testing.T) {
	f := newFakeBackend()
	ss := openCourse(t, f)
	_, err := ss.Groups.Toggle(2)
	require.NoError(t, err)
	snap := ss.Snapshot()

	f.groups[courseA] = f.groups[courseA][:1]
	restored := newSession(t, f, wizard.Options{ID: snap.SessionID})
	restored.Restore(context.Background(), snap)

	assert.Empty(t, restored.Groups.Selected())
}

func TestViewTreesAreCopies(t *testing.T) {
	ss := openCourse(t, newFakeBackend())
	v := ss.View()
	require.NotEmpty(t, v.Placement.Tree.Sections)
	require.NotEmpty(t, v.Competency.Tree)

	v.Placement.Tree.Sections[0].Modules[0].Name = "Renamed"
	v.Placement.Tree.Sections[0].Name = "Renamed"
	v.Competency.Tree[0].Children[0].Shortname = "Renamed"

	again := ss.View()
	assert.Equal(t, "Week 1", again.Placement.Tree.Sections[0].Name)
	assert.Equal(t, "Intro", again.Placement.Tree.Sections[0].Modules[0].Name)
	assert.Equal(t, "Linear equations", again.Competency.Tree[0].Children[0].Shortname)

	sel, err := ss.Placement.Select(7, wizard.PlaceModule)
	require.NoError(t, err)
	assert.Equal(t, "Week 1 / Intro", sel.DisplayPath)
}
