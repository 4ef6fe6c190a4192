package wizard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies the shape of a builder item.
type Kind string

const (
	KindMultiChoice      Kind = "multichoice"
	KindTrueFalse        Kind = "truefalse"
	KindShortAnswer      Kind = "shortanswer"
	KindNumerical        Kind = "numerical"
	KindEssay            Kind = "essay"
	KindMatch            Kind = "match"
	KindOrdering         Kind = "ordering"
	KindGapSelect        Kind = "gapselect"
	KindDragDropText     Kind = "ddwtos"
	KindCloze            Kind = "multianswer"
	KindCalculated       Kind = "calculated"
	KindCalculatedSimple Kind = "calculatedsimple"
	KindDescription      Kind = "description"
	KindDragDropImage    Kind = "ddimageortext"
	KindDragDropMarker   Kind = "ddmarker"
	KindCriterion        Kind = "criterion"
)

// Shape is the kind-specific part of a builder item.
type Shape interface {
	isShape()
}

// KindSpec is one row of the per-kind dispatch table.
type KindSpec interface {
	Kind() Kind
	Label() string
	// Editable is false for kinds that need assets only the LMS editor can upload.
	Editable() bool
	New() Shape
	Decode(raw json.RawMessage) (Shape, error)
	Encode(sh Shape) (json.RawMessage, error)
	Validate(sh Shape) []FieldError
	Editor() EditorSchema
}

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextArea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldCheckbox FieldType = "checkbox"
	FieldSelect   FieldType = "select"
	FieldRows     FieldType = "rows"
)

// EditorField describes one input of the kind-specific editor. Rows fields
// repeat their Columns once per entry (options, pairs, levels, ...).
type EditorField struct {
	Name     string        `json:"name"`
	Label    string        `json:"label"`
	Type     FieldType     `json:"type"`
	Required bool          `json:"required,omitempty"`
	MinRows  int           `json:"min_rows,omitempty"`
	Choices  []string      `json:"choices,omitempty"`
	Columns  []EditorField `json:"columns,omitempty"`
}

type EditorSchema struct {
	Kind   Kind          `json:"kind"`
	Fields []EditorField `json:"fields"`
}

var registry = map[Kind]KindSpec{}

func register(s KindSpec) { registry[s.Kind()] = s }

// Lookup returns the spec for a kind.
func Lookup(k Kind) (KindSpec, bool) { s, ok := registry[k]; return s, ok }

// Kinds lists every registered kind in a stable order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// kindSpec implements KindSpec for one concrete shape type.
type kindSpec[T Shape] struct {
	kind     Kind
	label    string
	editable bool
	zero     func() T
	validate func(T) []FieldError
	fields   []EditorField
}

func (k kindSpec[T]) Kind() Kind     { return k.kind }
func (k kindSpec[T]) Label() string  { return k.label }
func (k kindSpec[T]) Editable() bool { return k.editable }
func (k kindSpec[T]) New() Shape     { return k.zero() }

func (k kindSpec[T]) Decode(raw json.RawMessage) (Shape, error) {
	v := k.zero()
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s shape: %w", k.kind, err)
	}
	return v, nil
}

func (k kindSpec[T]) Encode(sh Shape) (json.RawMessage, error) {
	v, ok := sh.(T)
	if !ok {
		return nil, fmt.Errorf("encode %s shape: unexpected %T", k.kind, sh)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (k kindSpec[T]) Validate(sh Shape) []FieldError {
	v, ok := sh.(T)
	if !ok {
		return []FieldError{fieldErr("shape", "does not match question type %s", k.kind)}
	}
	if k.validate == nil {
		return nil
	}
	return k.validate(v)
}

func (k kindSpec[T]) Editor() EditorSchema {
	fields := append([]EditorField{}, commonFields...)
	if k.kind == KindDescription {
		fields = fields[:2]
	}
	return EditorSchema{Kind: k.kind, Fields: append(fields, k.fields...)}
}

var commonFields = []EditorField{
	{Name: "title", Label: "Name", Type: FieldText, Required: true},
	{Name: "bodyText", Label: "Text", Type: FieldTextArea},
	{Name: "weight", Label: "Default mark", Type: FieldNumber},
}

func init() {
	register(kindSpec[ChoiceShape]{
		kind: KindMultiChoice, label: "Multiple choice", editable: true,
		zero:     func() ChoiceShape { return ChoiceShape{Single: true} },
		validate: validateChoice,
		fields: []EditorField{
			{Name: "single", Label: "One answer only", Type: FieldCheckbox},
			{Name: "shuffle", Label: "Shuffle the choices", Type: FieldCheckbox},
			{Name: "options", Label: "Choices", Type: FieldRows, Required: true, MinRows: 1, Columns: []EditorField{
				{Name: "text", Label: "Choice", Type: FieldText, Required: true},
				{Name: "correct", Label: "Correct", Type: FieldCheckbox},
				{Name: "feedback", Label: "Feedback", Type: FieldText},
			}},
		},
	})
	register(kindSpec[TrueFalseShape]{
		kind: KindTrueFalse, label: "True/False", editable: true,
		zero: func() TrueFalseShape { return TrueFalseShape{Answer: true} },
		fields: []EditorField{
			{Name: "answer", Label: "Correct answer", Type: FieldSelect, Choices: []string{"true", "false"}},
		},
	})
	register(kindSpec[ShortAnswerShape]{
		kind: KindShortAnswer, label: "Short answer", editable: true,
		zero:     func() ShortAnswerShape { return ShortAnswerShape{} },
		validate: validateShortAnswer,
		fields: []EditorField{
			{Name: "caseSensitive", Label: "Case sensitive", Type: FieldCheckbox},
			{Name: "answers", Label: "Answers", Type: FieldRows, Required: true, MinRows: 1, Columns: []EditorField{
				{Name: "text", Label: "Answer", Type: FieldText, Required: true},
				{Name: "fraction", Label: "Grade", Type: FieldNumber},
			}},
		},
	})
	register(kindSpec[NumericalShape]{
		kind: KindNumerical, label: "Numerical", editable: true,
		zero:     func() NumericalShape { return NumericalShape{} },
		validate: validateNumerical,
		fields: []EditorField{
			{Name: "value", Label: "Answer", Type: FieldNumber, Required: true},
			{Name: "tolerance", Label: "Error", Type: FieldNumber},
			{Name: "unit", Label: "Unit", Type: FieldText},
		},
	})
	register(kindSpec[EssayShape]{
		kind: KindEssay, label: "Essay", editable: true,
		zero:     func() EssayShape { return EssayShape{ResponseFormat: "editor"} },
		validate: validateEssay,
		fields: []EditorField{
			{Name: "responseFormat", Label: "Response format", Type: FieldSelect, Choices: []string{"editor", "plain", "noinline"}},
			{Name: "minWords", Label: "Minimum word limit", Type: FieldNumber},
			{Name: "maxWords", Label: "Maximum word limit", Type: FieldNumber},
			{Name: "graderInfo", Label: "Information for graders", Type: FieldTextArea},
		},
	})
	register(kindSpec[MatchShape]{
		kind: KindMatch, label: "Matching", editable: true,
		zero:     func() MatchShape { return MatchShape{Shuffle: true} },
		validate: validateMatch,
		fields: []EditorField{
			{Name: "shuffle", Label: "Shuffle", Type: FieldCheckbox},
			{Name: "pairs", Label: "Pairs", Type: FieldRows, Required: true, MinRows: 2, Columns: []EditorField{
				{Name: "question", Label: "Question", Type: FieldText, Required: true},
				{Name: "answer", Label: "Answer", Type: FieldText, Required: true},
			}},
		},
	})
	register(kindSpec[OrderingShape]{
		kind: KindOrdering, label: "Ordering", editable: true,
		zero:     func() OrderingShape { return OrderingShape{} },
		validate: validateOrdering,
		fields: []EditorField{
			{Name: "items", Label: "Items in correct order", Type: FieldRows, Required: true, MinRows: 2, Columns: []EditorField{
				{Name: "text", Label: "Item", Type: FieldText, Required: true},
			}},
		},
	})
	for _, k := range []struct {
		kind  Kind
		label string
	}{
		{KindGapSelect, "Select missing words"},
		{KindDragDropText, "Drag and drop into text"},
		{KindCloze, "Embedded answers (Cloze)"},
	} {
		register(kindSpec[GapShape]{
			kind: k.kind, label: k.label, editable: true,
			zero:     func() GapShape { return GapShape{} },
			validate: validateGaps,
			fields: []EditorField{
				{Name: "text", Label: "Text with [[n]] placeholders", Type: FieldTextArea, Required: true},
				{Name: "choices", Label: "Choices", Type: FieldRows, Required: true, MinRows: 1, Columns: []EditorField{
					{Name: "index", Label: "Placeholder", Type: FieldNumber, Required: true},
					{Name: "answer", Label: "Answer", Type: FieldText, Required: true},
					{Name: "group", Label: "Group", Type: FieldNumber},
				}},
			},
		})
	}
	for _, k := range []struct {
		kind  Kind
		label string
	}{
		{KindCalculated, "Calculated"},
		{KindCalculatedSimple, "Calculated simple"},
	} {
		register(kindSpec[CalculatedShape]{
			kind: k.kind, label: k.label, editable: true,
			zero:     func() CalculatedShape { return CalculatedShape{} },
			validate: validateCalculated,
			fields: []EditorField{
				{Name: "formula", Label: "Correct answer formula", Type: FieldText, Required: true},
				{Name: "tolerance", Label: "Tolerance", Type: FieldNumber},
				{Name: "variables", Label: "Wildcards", Type: FieldRows, Columns: []EditorField{
					{Name: "name", Label: "Name", Type: FieldText, Required: true},
					{Name: "min", Label: "Minimum", Type: FieldNumber},
					{Name: "max", Label: "Maximum", Type: FieldNumber},
					{Name: "decimals", Label: "Decimal places", Type: FieldNumber},
				}},
			},
		})
	}
	register(kindSpec[DescriptionShape]{
		kind: KindDescription, label: "Description", editable: true,
		zero: func() DescriptionShape { return DescriptionShape{} },
	})
	register(kindSpec[AssetShape]{
		kind: KindDragDropImage, label: "Drag and drop onto image",
		zero: func() AssetShape { return AssetShape{} },
	})
	register(kindSpec[AssetShape]{
		kind: KindDragDropMarker, label: "Drag and drop markers",
		zero: func() AssetShape { return AssetShape{} },
	})
	register(kindSpec[CriterionShape]{
		kind: KindCriterion, label: "Rubric criterion", editable: true,
		zero:     func() CriterionShape { return CriterionShape{} },
		validate: validateCriterion,
		fields: []EditorField{
			{Name: "levels", Label: "Levels", Type: FieldRows, Required: true, MinRows: 2, Columns: []EditorField{
				{Name: "score", Label: "Points", Type: FieldNumber, Required: true},
				{Name: "definition", Label: "Level definition", Type: FieldText, Required: true},
			}},
		},
	})
}
