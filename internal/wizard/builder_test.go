package wizard_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

func draft(title, shape string) wizard.DraftPatch {
	p := wizard.DraftPatch{Title: ptr(title)}
	if shape != "" {
		p.Shape = json.RawMessage(shape)
	}
	return p
}

func addItem(t *testing.T, ss *wizard.Session, kind wizard.Kind, title, shape string) wizard.BuilderItem {
	t.Helper()
	require.NoError(t, ss.Builder.Open(kind))
	require.NoError(t, ss.Builder.UpdateDraft(draft(title, shape)))
	it, err := ss.Builder.Save()
	require.NoError(t, err)
	return it
}

const capitalOptions = `{"single":true,"options":[{"text":"Paris","correct":true},{"text":"London"},{"text":"Berlin"}]}`

func TestSaveMultipleChoiceAppendsItem(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})

	it := addItem(t, ss, wizard.KindMultiChoice, "Capital of France?", capitalOptions)

	items := ss.Builder.Items()
	require.Len(t, items, 1)
	assert.Equal(t, it.LocalID, items[0].LocalID)
	assert.NotEmpty(t, it.LocalID)
	assert.Nil(t, it.PersistedID)
	assert.Equal(t, wizard.OriginManual, it.Origin)

	shape, ok := items[0].Shape.(wizard.ChoiceShape)
	require.True(t, ok)
	require.Len(t, shape.Options, 3)
	correct := 0
	for _, o := range shape.Options {
		if o.Correct {
			correct++
		}
	}
	assert.Equal(t, 1, correct)
	assert.Equal(t, wizard.EditorClosed, ss.Builder.Mode())
}

func TestSaveInvalidShapeLeavesListUnchanged(t *testing.T) {
	cases := []struct {
		name  string
		kind  wizard.Kind
		shape string
		field string
		msg   string
	}{
		{"choice without options", wizard.KindMultiChoice, `{"single":true,"options":[]}`, "options", ""},
		{"choice without correct option", wizard.KindMultiChoice, `{"single":true,"options":[{"text":"A"},{"text":"B"}]}`, "options", ""},
		{"single choice with two correct", wizard.KindMultiChoice, `{"single":true,"options":[{"text":"A","correct":true},{"text":"B","correct":true}]}`, "options", ""},
		{"match with one pair", wizard.KindMatch, `{"pairs":[{"question":"cat","answer":"meow"}]}`, "pairs", ""},
		{"ordering with one item", wizard.KindOrdering, `{"items":["first"]}`, "items", ""},
		{"short answer without full credit", wizard.KindShortAnswer, `{"answers":[{"text":"maybe","fraction":0.5}]}`, "answers", "one answer must have a grade of 100%"},
		{"numerical without value", wizard.KindNumerical, `{"tolerance":0.1}`, "value", ""},
		{"essay limits reversed", wizard.KindEssay, `{"minWords":200,"maxWords":100}`, "maxWords", ""},
		{"gap text without placeholder", wizard.KindGapSelect, `{"text":"The sky is blue","choices":[{"index":1,"answer":"blue"}]}`, "text", ""},
		{"cloze placeholder without answer", wizard.KindCloze, `{"text":"[[1]] and [[2]]","choices":[{"index":1,"answer":"salt"}]}`, "choices", ""},
		{"calculated with undefined wildcard", wizard.KindCalculated, `{"formula":"{a} * {b}","variables":[{"name":"a","min":1,"max":5}]}`, "variables", ""},
		{"criterion with one level", wizard.KindCriterion, `{"levels":[{"score":1,"definition":"ok"}]}`, "levels", ""},
		{"criterion with equal scores", wizard.KindCriterion, `{"levels":[{"score":1,"definition":"ok"},{"score":1,"definition":"good"}]}`, "levels[1].score", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ss := newSession(t, newFakeBackend(), wizard.Options{})
			addItem(t, ss, wizard.KindTrueFalse, "Existing", "")

			require.NoError(t, ss.Builder.Open(tc.kind))
			require.NoError(t, ss.Builder.UpdateDraft(draft("Question", tc.shape)))
			_, err := ss.Builder.Save()

			var ve *wizard.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			fields := map[string]string{}
			for _, fe := range ve.Fields {
				fields[fe.Field] = fe.Message
			}
			msg, ok := fields[tc.field]
			assert.True(t, ok, "fields: %+v", ve.Fields)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, msg)
			}
			assert.Len(t, ss.Builder.Items(), 1)
			assert.Equal(t, wizard.EditorCreate, ss.Builder.Mode(), "the editor stays open for correction")
			assert.NotEmpty(t, ss.View().Editor.Errors)
		})
	}
}

func TestSaveRequiresTitle(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	require.NoError(t, ss.Builder.Open(wizard.KindTrueFalse))
	require.NoError(t, ss.Builder.UpdateDraft(draft("   ", "")))

	_, err := ss.Builder.Save()
	var ve *wizard.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Fields[0].Field)
	assert.Empty(t, ss.Builder.Items())
}

func TestDescriptionHasNoWeight(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	require.NoError(t, ss.Builder.Open(wizard.KindDescription))
	p := draft("Read this first", "")
	p.Weight = ptr(5.0)
	require.NoError(t, ss.Builder.UpdateDraft(p))

	it, err := ss.Builder.Save()
	require.NoError(t, err)
	assert.Zero(t, it.Weight)
}

func TestOpenNonEditableKindRedirects(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})

	err := ss.Builder.Open(wizard.KindDragDropMarker)

	var uo *wizard.UnsupportedOperation
	require.ErrorAs(t, err, &uo)
	assert.Equal(t, wizard.KindDragDropMarker, uo.Kind)
	assert.Equal(t, wizard.EditorClosed, ss.Builder.Mode())
	require.NotEmpty(t, ss.Notices())
	assert.Equal(t, wizard.LevelWarning, ss.Notices()[0].Level)
}

func TestOpenUnknownKind(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	assert.True(t, wizard.IsValidation(ss.Builder.Open("hotspot")))
}

func TestUpdateWithoutEditor(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	assert.ErrorIs(t, ss.Builder.UpdateDraft(draft("x", "")), wizard.ErrEditorClosed)
	_, err := ss.Builder.Save()
	assert.ErrorIs(t, err, wizard.ErrEditorClosed)
}

func TestEditLocalItemKeepsLocalID(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	it := addItem(t, ss, wizard.KindMultiChoice, "Capital of France?", capitalOptions)

	require.NoError(t, ss.Builder.LoadForEdit(context.Background(), it.LocalID))
	assert.Equal(t, wizard.EditorEdit, ss.Builder.Mode())
	require.NoError(t, ss.Builder.UpdateDraft(draft("Capital city of France?", "")))
	saved, err := ss.Builder.Save()
	require.NoError(t, err)

	items := ss.Builder.Items()
	require.Len(t, items, 1)
	assert.Equal(t, it.LocalID, saved.LocalID)
	assert.Equal(t, "Capital city of France?", items[0].Title)
}

func TestCancelDiscardsDraft(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	it := addItem(t, ss, wizard.KindTrueFalse, "Water is wet", "")

	require.NoError(t, ss.Builder.LoadForEdit(context.Background(), it.LocalID))
	require.NoError(t, ss.Builder.UpdateDraft(draft("Changed", "")))
	ss.Builder.Cancel()

	assert.Equal(t, wizard.EditorClosed, ss.Builder.Mode())
	assert.Equal(t, "Water is wet", ss.Builder.Items()[0].Title)
}

func TestRemoveNeedsConfirmation(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	it := addItem(t, ss, wizard.KindTrueFalse, "Water is wet", "")

	assert.ErrorIs(t, ss.Builder.Remove(it.LocalID, false), wizard.ErrConfirmationRequired)
	assert.Len(t, ss.Builder.Items(), 1)

	require.NoError(t, ss.Builder.Remove(it.LocalID, true))
	assert.Empty(t, ss.Builder.Items())
	assert.ErrorIs(t, ss.Builder.Remove(it.LocalID, true), wizard.ErrItemNotFound)
}

func TestMoveReorders(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	a := addItem(t, ss, wizard.KindTrueFalse, "A", "")
	addItem(t, ss, wizard.KindTrueFalse, "B", "")
	addItem(t, ss, wizard.KindTrueFalse, "C", "")

	require.NoError(t, ss.Builder.Move(a.LocalID, 2))

	var titles []string
	for _, it := range ss.Builder.Items() {
		titles = append(titles, it.Title)
	}
	assert.Equal(t, []string{"B", "C", "A"}, titles)
	assert.True(t, wizard.IsValidation(ss.Builder.Move(a.LocalID, 3)))
}

func importSession(t *testing.T, f *fakeBackend, policy wizard.EditPolicy) *wizard.Session {
	t.Helper()
	seedCourses(f)
	f.bank = []wizard.ItemSummary{
		{ID: "q1", Kind: wizard.KindMultiChoice, Title: "Capital of France?", Weight: 2, Slot: 1},
		{ID: "q9", Kind: wizard.KindTrueFalse, Title: "Sky is green", Weight: 1, Slot: 2},
		{ID: "q5", Kind: wizard.KindDragDropMarker, Title: "Label the map", Weight: 1, Slot: 3},
	}
	f.details["q1"] = wizard.ItemDetail{ID: "q1", Kind: wizard.KindMultiChoice, Title: "Capital of France?", Weight: 2, Shape: json.RawMessage(capitalOptions)}
	f.slotDetails[2] = wizard.ItemDetail{ID: "q9", Kind: wizard.KindTrueFalse, Title: "Sky is green", Weight: 1, Shape: json.RawMessage(`{"answer":false}`)}
	f.details["q5"] = wizard.ItemDetail{ID: "q5", Kind: wizard.KindDragDropMarker, NonEditable: true, EditURL: "/question/bank/editquestion/question.php?id=5"}

	ss := newSession(t, f, wizard.Options{CourseID: courseA, InstanceID: 55, EditPolicy: policy})
	require.NoError(t, ss.Open(context.Background()))
	return ss
}

func TestImportedItemsLoadDetailsOnEdit(t *testing.T) {
	f := newFakeBackend()
	ss := importSession(t, f, "")
	items := ss.Builder.Items()
	require.Len(t, items, 3)
	assert.Equal(t, wizard.OriginImported, items[0].Origin)
	assert.False(t, items[0].DetailsLoaded)

	require.NoError(t, ss.Builder.LoadForEdit(context.Background(), items[0].LocalID))

	d, ok := ss.Builder.Draft()
	require.True(t, ok)
	shape := d.Shape.(wizard.ChoiceShape)
	assert.Len(t, shape.Options, 3)
	assert.True(t, ss.Builder.Items()[0].DetailsLoaded)
}

func TestItemDetailFallsBackToSlot(t *testing.T) {
	f := newFakeBackend()
	ss := importSession(t, f, "")
	items := ss.Builder.Items()

	require.NoError(t, ss.Builder.LoadForEdit(context.Background(), items[1].LocalID))

	require.Len(t, f.detailRefs, 2)
	assert.Equal(t, "q9", f.detailRefs[0].ID)
	assert.Equal(t, 2, f.detailRefs[1].Slot)
	assert.Empty(t, f.detailRefs[1].ID)
	d, _ := ss.Builder.Draft()
	assert.Equal(t, wizard.TrueFalseShape{Answer: false}, d.Shape)
}

func TestNonEditableDetailRedirects(t *testing.T) {
	f := newFakeBackend()
	ss := importSession(t, f, "")
	items := ss.Builder.Items()

	err := ss.Builder.LoadForEdit(context.Background(), items[2].LocalID)
	var uo *wizard.UnsupportedOperation
	require.ErrorAs(t, err, &uo)
	assert.Equal(t, wizard.EditorClosed, ss.Builder.Mode())
	assert.Zero(t, f.count("ItemDetail"), "known non-editable kinds are not fetched")
}

func TestEditedPersistedItemPolicy(t *testing.T) {
	for _, tc := range []struct {
		policy wizard.EditPolicy
		keepID bool
	}{
		{"", false},
		{wizard.EditAsNew, false},
		{wizard.EditInPlace, true},
	} {
		t.Run(string(tc.policy), func(t *testing.T) {
			ss := importSession(t, newFakeBackend(), tc.policy)
			first := ss.Builder.Items()[0]
			require.NoError(t, ss.Builder.LoadForEdit(context.Background(), first.LocalID))
			require.NoError(t, ss.Builder.UpdateDraft(draft("Capital of France (edited)", "")))
			saved, err := ss.Builder.Save()
			require.NoError(t, err)

			assert.Equal(t, first.LocalID, saved.LocalID)
			if tc.keepID {
				require.NotNil(t, saved.PersistedID)
				assert.Equal(t, "q1", *saved.PersistedID)
			} else {
				assert.Nil(t, saved.PersistedID)
			}
			assert.Len(t, ss.Builder.Items(), 3)
		})
	}
}

func TestRubricMaxSumsBestLevels(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{Activity: wizard.ActivityAssign})
	addItem(t, ss, wizard.KindCriterion, "Structure", `{"levels":[{"score":0,"definition":"none"},{"score":4,"definition":"clear"}]}`)
	addItem(t, ss, wizard.KindCriterion, "Style", `{"levels":[{"score":1,"definition":"weak"},{"score":3,"definition":"strong"}]}`)

	assert.Equal(t, 7.0, ss.View().RubricMax)
}

func TestBankSearchAndAdd(t *testing.T) {
	f := newFakeBackend()
	seedCourses(f)
	f.bank = []wizard.ItemSummary{
		{ID: "q1", Kind: wizard.KindMultiChoice, Title: "Capital of France?", Weight: 2},
		{ID: "q9", Kind: wizard.KindTrueFalse, Title: "Sky is green", Weight: 1},
	}
	ss := newSession(t, f, wizard.Options{CourseID: courseA})
	require.NoError(t, ss.Open(context.Background()))

	rows, err := ss.Bank.Search(context.Background(), wizard.KindTrueFalse, "  sky ")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	it, err := ss.Bank.Add("q9")
	require.NoError(t, err)
	assert.Equal(t, wizard.OriginImported, it.Origin)
	require.NotNil(t, it.PersistedID)
	assert.Equal(t, "q9", *it.PersistedID)
	assert.Len(t, ss.Builder.Items(), 1)

	_, err = ss.Bank.Add("q9")
	assert.True(t, wizard.IsValidation(err), "already listed")
	_, err = ss.Bank.Add("q1")
	assert.ErrorIs(t, err, wizard.ErrItemNotFound, "not in the last result page")
}

func TestBankSearchNeedsCourse(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	_, err := ss.Bank.Search(context.Background(), "", "")
	assert.True(t, wizard.IsValidation(err))
}

func TestFailedDetailFetchLeavesNoSuggestionQueue(t *testing.T) {
	f := newFakeBackend()
	ss := importSession(t, f, "")
	require.NoError(t, ss.Suggestions.Start(wizard.KindMultiChoice, []wizard.RawSuggestion{choiceSuggestion("s1"), choiceSuggestion("s2")}))
	f.fail["ItemDetail"] = &wizard.TransportFailure{Op: "item detail", Err: errors.New("connection reset")}

	err := ss.Builder.LoadForEdit(context.Background(), ss.Builder.Items()[0].LocalID)

	var tf *wizard.TransportFailure
	require.ErrorAs(t, err, &tf)
	assert.False(t, ss.Suggestions.Status().Active)
	assert.Equal(t, wizard.EditorClosed, ss.Builder.Mode())
	_, err = ss.Suggestions.AcceptCurrent()
	assert.ErrorIs(t, err, wizard.ErrNoActiveSuggestion)
}
