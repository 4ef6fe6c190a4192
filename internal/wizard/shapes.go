package wizard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Option struct {
	Text     string `json:"text"`
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback,omitempty"`
}

// ChoiceShape backs multiple choice questions.
type ChoiceShape struct {
	Single  bool     `json:"single"`
	Shuffle bool     `json:"shuffle"`
	Options []Option `json:"options"`
}

type TrueFalseShape struct {
	Answer bool `json:"answer"`
}

type Answer struct {
	Text     string  `json:"text"`
	Fraction float64 `json:"fraction"`
}

type ShortAnswerShape struct {
	CaseSensitive bool     `json:"caseSensitive"`
	Answers       []Answer `json:"answers"`
}

type NumericalShape struct {
	Value     *float64 `json:"value"`
	Tolerance float64  `json:"tolerance"`
	Unit      string   `json:"unit,omitempty"`
}

type EssayShape struct {
	ResponseFormat string `json:"responseFormat"`
	MinWords       int    `json:"minWords,omitempty"`
	MaxWords       int    `json:"maxWords,omitempty"`
	GraderInfo     string `json:"graderInfo,omitempty"`
}

type Pair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type MatchShape struct {
	Shuffle bool   `json:"shuffle"`
	Pairs   []Pair `json:"pairs"`
}

type OrderingShape struct {
	Items []string `json:"items"`
}

// Gap fills placeholder [[Index]] of a gap text.
type Gap struct {
	Index  int    `json:"index"`
	Answer string `json:"answer"`
	Group  int    `json:"group,omitempty"`
}

// GapShape backs every gap-fill kind: select missing words, drag and drop
// into text and cloze.
type GapShape struct {
	Text    string `json:"text"`
	Choices []Gap  `json:"choices"`
}

type Variable struct {
	Name     string  `json:"name"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Decimals int     `json:"decimals,omitempty"`
}

type CalculatedShape struct {
	Formula   string     `json:"formula"`
	Tolerance float64    `json:"tolerance"`
	Variables []Variable `json:"variables"`
}

type DescriptionShape struct{}

// AssetShape is carried opaquely for kinds edited only in the LMS.
type AssetShape struct {
	Background string `json:"background,omitempty"`
}

type RubricLevel struct {
	Score      float64 `json:"score"`
	Definition string  `json:"definition"`
}

// CriterionShape is one rubric criterion.
type CriterionShape struct {
	Levels []RubricLevel `json:"levels"`
}

// MaxScore is the score of the criterion's best level.
func (c CriterionShape) MaxScore() float64 {
	best := 0.0
	for _, l := range c.Levels {
		if l.Score > best {
			best = l.Score
		}
	}
	return best
}

func (ChoiceShape) isShape()      {}
func (TrueFalseShape) isShape()   {}
func (ShortAnswerShape) isShape() {}
func (NumericalShape) isShape()   {}
func (EssayShape) isShape()       {}
func (MatchShape) isShape()       {}
func (OrderingShape) isShape()    {}
func (GapShape) isShape()         {}
func (CalculatedShape) isShape()  {}
func (DescriptionShape) isShape() {}
func (AssetShape) isShape()       {}
func (CriterionShape) isShape()   {}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func validateChoice(c ChoiceShape) []FieldError {
	var errs []FieldError
	filled, correct := 0, 0
	for i, o := range c.Options {
		if blank(o.Text) {
			errs = append(errs, fieldErr(fmt.Sprintf("options[%d].text", i), "choice text is required"))
			continue
		}
		filled++
		if o.Correct {
			correct++
		}
	}
	switch {
	case filled == 0:
		return append(errs, fieldErr("options", "at least one choice is required"))
	case correct == 0:
		errs = append(errs, fieldErr("options", "mark at least one choice as correct"))
	case c.Single && correct > 1:
		errs = append(errs, fieldErr("options", "only one choice can be correct"))
	}
	return errs
}

func validateShortAnswer(s ShortAnswerShape) []FieldError {
	var errs []FieldError
	full := false
	n := 0
	for i, a := range s.Answers {
		if blank(a.Text) {
			errs = append(errs, fieldErr(fmt.Sprintf("answers[%d].text", i), "answer text is required"))
			continue
		}
		if a.Fraction < 0 || a.Fraction > 1 {
			errs = append(errs, fieldErr(fmt.Sprintf("answers[%d].fraction", i), "grade must be between 0 and 1"))
		}
		if a.Fraction == 1 {
			full = true
		}
		n++
	}
	if n == 0 {
		return append(errs, fieldErr("answers", "at least one answer is required"))
	}
	if !full {
		errs = append(errs, fieldErr("answers", "one answer must have a grade of 100%%"))
	}
	return errs
}

func validateNumerical(n NumericalShape) []FieldError {
	var errs []FieldError
	if n.Value == nil {
		errs = append(errs, fieldErr("value", "an answer value is required"))
	}
	if n.Tolerance < 0 {
		errs = append(errs, fieldErr("tolerance", "error must not be negative"))
	}
	return errs
}

func validateEssay(e EssayShape) []FieldError {
	if e.MinWords < 0 || e.MaxWords < 0 {
		return []FieldError{fieldErr("minWords", "word limits must not be negative")}
	}
	if e.MinWords > 0 && e.MaxWords > 0 && e.MinWords > e.MaxWords {
		return []FieldError{fieldErr("maxWords", "maximum word limit must be at least the minimum")}
	}
	return nil
}

func validateMatch(m MatchShape) []FieldError {
	var errs []FieldError
	complete := 0
	for i, p := range m.Pairs {
		switch {
		case blank(p.Question) && blank(p.Answer):
		case blank(p.Question) || blank(p.Answer):
			errs = append(errs, fieldErr(fmt.Sprintf("pairs[%d]", i), "both question and answer are required"))
		default:
			complete++
		}
	}
	if complete < 2 {
		errs = append(errs, fieldErr("pairs", "at least two pairs are required"))
	}
	return errs
}

func validateOrdering(o OrderingShape) []FieldError {
	n := 0
	for _, it := range o.Items {
		if !blank(it) {
			n++
		}
	}
	if n < 2 {
		return []FieldError{fieldErr("items", "at least two items are required")}
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`\[\[(\d+)\]\]`)

func validateGaps(g GapShape) []FieldError {
	if blank(g.Text) {
		return []FieldError{fieldErr("text", "text with placeholders is required")}
	}
	marks := placeholderRe.FindAllStringSubmatch(g.Text, -1)
	if len(marks) == 0 {
		return []FieldError{fieldErr("text", "add at least one [[n]] placeholder")}
	}
	have := map[int]bool{}
	for _, c := range g.Choices {
		if !blank(c.Answer) {
			have[c.Index] = true
		}
	}
	var errs []FieldError
	seen := map[int]bool{}
	for _, m := range marks {
		n, _ := strconv.Atoi(m[1])
		if seen[n] {
			continue
		}
		seen[n] = true
		if !have[n] {
			errs = append(errs, fieldErr("choices", "placeholder [[%d]] has no answer", n))
		}
	}
	return errs
}

var wildcardRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func validateCalculated(c CalculatedShape) []FieldError {
	if blank(c.Formula) {
		return []FieldError{fieldErr("formula", "a formula is required")}
	}
	var errs []FieldError
	if c.Tolerance < 0 {
		errs = append(errs, fieldErr("tolerance", "tolerance must not be negative"))
	}
	vars := map[string]Variable{}
	for _, v := range c.Variables {
		vars[v.Name] = v
	}
	seen := map[string]bool{}
	for _, m := range wildcardRe.FindAllStringSubmatch(c.Formula, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		v, ok := vars[name]
		if !ok {
			errs = append(errs, fieldErr("variables", "wildcard {%s} is not defined", name))
			continue
		}
		if v.Min > v.Max {
			errs = append(errs, fieldErr("variables", "wildcard {%s}: minimum exceeds maximum", name))
		}
	}
	return errs
}

func validateCriterion(c CriterionShape) []FieldError {
	var errs []FieldError
	scores := map[float64]bool{}
	for i, l := range c.Levels {
		if blank(l.Definition) {
			errs = append(errs, fieldErr(fmt.Sprintf("levels[%d].definition", i), "level definition is required"))
		}
		if l.Score < 0 {
			errs = append(errs, fieldErr(fmt.Sprintf("levels[%d].score", i), "points must not be negative"))
		}
		if scores[l.Score] {
			errs = append(errs, fieldErr(fmt.Sprintf("levels[%d].score", i), "each level needs different points"))
		}
		scores[l.Score] = true
	}
	if len(c.Levels) < 2 {
		errs = append(errs, fieldErr("levels", "a criterion needs at least two levels"))
	}
	return errs
}
