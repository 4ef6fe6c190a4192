package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Command is one named user intent applied to a session.
type Command interface {
	Name() string
	apply(ctx context.Context, ss *Session) error
}

var commands = map[string]func() Command{}

func registerCommand(name string, fn func() Command) { commands[name] = fn }

// CommandNames lists the accepted command names.
func CommandNames() []string {
	out := make([]string, 0, len(commands))
	for n := range commands {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// DecodeCommand builds the command called name from its JSON arguments.
func DecodeCommand(name string, args json.RawMessage) (Command, error) {
	fn, ok := commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	cmd := fn()
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, cmd); err != nil {
			return nil, invalid(fieldErr("args", "malformed arguments for %s: %v", name, err))
		}
	}
	return cmd, nil
}

// Dispatch applies cmd and returns the resulting view. The view is returned
// even when cmd fails, so callers can render field errors and notices.
func (ss *Session) Dispatch(ctx context.Context, cmd Command) (View, error) {
	err := cmd.apply(ctx, ss)
	if err != nil {
		ss.state.log.Debug("command failed", zap.String("command", cmd.Name()), zap.Error(err))
	}
	return ss.View(), err
}

type TabActivate struct {
	Tab Tab `json:"tab"`
}

func (TabActivate) Name() string { return "tab.activate" }
func (c *TabActivate) apply(_ context.Context, ss *Session) error {
	ss.Tabs.Activate(c.Tab)
	return nil
}

type TabAdvance struct{}

func (TabAdvance) Name() string { return "tab.advance" }
func (c *TabAdvance) apply(_ context.Context, ss *Session) error {
	ss.Tabs.Advance()
	return nil
}

type FormSet struct {
	FormPatch
}

func (FormSet) Name() string                                  { return "form.set" }
func (c *FormSet) apply(_ context.Context, ss *Session) error { return ss.SetForm(c.FormPatch) }

type CourseSelect struct {
	CourseID int `json:"courseId"`
}

func (CourseSelect) Name() string { return "course.select" }
func (c *CourseSelect) apply(ctx context.Context, ss *Session) error {
	return ss.SelectCourse(ctx, c.CourseID)
}

type PlacementLoad struct{}

func (PlacementLoad) Name() string { return "placement.load" }
func (c *PlacementLoad) apply(ctx context.Context, ss *Session) error {
	ss.state.mu.Lock()
	courseID := ss.state.general.CourseID
	ss.state.mu.Unlock()
	if courseID == 0 {
		return invalid(fieldErr("courseId", "select a course first"))
	}
	ss.Placement.LoadTree(ctx, courseID)
	return nil
}

type PlacementSelect struct {
	NodeID int           `json:"nodeId"`
	Type   PlacementType `json:"type"`
	Clear  bool          `json:"clear,omitempty"`
}

func (PlacementSelect) Name() string { return "placement.select" }
func (c *PlacementSelect) apply(_ context.Context, ss *Session) error {
	if c.Clear {
		ss.Placement.Clear()
		return nil
	}
	_, err := ss.Placement.Select(c.NodeID, c.Type)
	return err
}

type BuilderOpen struct {
	Kind Kind `json:"kind"`
}

func (BuilderOpen) Name() string                                  { return "builder.open" }
func (c *BuilderOpen) apply(_ context.Context, ss *Session) error { return ss.Builder.Open(c.Kind) }

type BuilderEdit struct {
	LocalID string `json:"localId"`
}

func (BuilderEdit) Name() string { return "builder.edit" }
func (c *BuilderEdit) apply(ctx context.Context, ss *Session) error {
	return ss.Builder.LoadForEdit(ctx, c.LocalID)
}

type BuilderUpdate struct {
	DraftPatch
}

func (BuilderUpdate) Name() string { return "builder.update" }
func (c *BuilderUpdate) apply(_ context.Context, ss *Session) error {
	return ss.Builder.UpdateDraft(c.DraftPatch)
}

type BuilderSave struct{}

func (BuilderSave) Name() string { return "builder.save" }
func (c *BuilderSave) apply(_ context.Context, ss *Session) error {
	_, err := ss.Builder.Save()
	return err
}

type BuilderCancel struct{}

func (BuilderCancel) Name() string { return "builder.cancel" }
func (c *BuilderCancel) apply(_ context.Context, ss *Session) error {
	ss.Builder.Cancel()
	return nil
}

type BuilderRemove struct {
	LocalID   string `json:"localId"`
	Confirmed bool   `json:"confirmed"`
}

func (BuilderRemove) Name() string { return "builder.remove" }
func (c *BuilderRemove) apply(_ context.Context, ss *Session) error {
	return ss.Builder.Remove(c.LocalID, c.Confirmed)
}

type BuilderMove struct {
	LocalID string `json:"localId"`
	Index   int    `json:"index"`
}

func (BuilderMove) Name() string { return "builder.move" }
func (c *BuilderMove) apply(_ context.Context, ss *Session) error {
	return ss.Builder.Move(c.LocalID, c.Index)
}

type AIGenerate struct {
	GenerateRequest
}

func (AIGenerate) Name() string { return "ai.generate" }
func (c *AIGenerate) apply(ctx context.Context, ss *Session) error {
	return ss.Suggestions.Generate(ctx, c.GenerateRequest)
}

type AIStart struct {
	Kind        Kind            `json:"kind"`
	Suggestions []RawSuggestion `json:"suggestions"`
}

func (AIStart) Name() string { return "ai.start" }
func (c *AIStart) apply(_ context.Context, ss *Session) error {
	return ss.Suggestions.Start(c.Kind, c.Suggestions)
}

type AIAccept struct{}

func (AIAccept) Name() string { return "ai.accept" }
func (c *AIAccept) apply(_ context.Context, ss *Session) error {
	_, err := ss.Suggestions.AcceptCurrent()
	return err
}

type AISkip struct{}

func (AISkip) Name() string                                  { return "ai.skip" }
func (c *AISkip) apply(_ context.Context, ss *Session) error { return ss.Suggestions.SkipCurrent() }

type CompetencyToggle struct {
	ID int `json:"id"`
}

func (CompetencyToggle) Name() string { return "competency.toggle" }
func (c *CompetencyToggle) apply(_ context.Context, ss *Session) error {
	_, err := ss.Competencies.Toggle(c.ID)
	return err
}

type CompetencySearch struct {
	Query string `json:"query"`
}

func (CompetencySearch) Name() string { return "competency.search" }
func (c *CompetencySearch) apply(_ context.Context, ss *Session) error {
	ss.Competencies.Search(c.Query)
	return nil
}

type GroupToggle struct {
	ID int `json:"id"`
}

func (GroupToggle) Name() string { return "group.toggle" }
func (c *GroupToggle) apply(_ context.Context, ss *Session) error {
	_, err := ss.Groups.Toggle(c.ID)
	return err
}

type GroupCreate struct {
	GroupName   string `json:"name"`
	Description string `json:"description"`
	MemberIDs   []int  `json:"memberIds"`
}

func (GroupCreate) Name() string { return "group.create" }
func (c *GroupCreate) apply(ctx context.Context, ss *Session) error {
	_, err := ss.Groups.CreateGroup(ctx, c.GroupName, c.Description, c.MemberIDs)
	return err
}

type GroupMembers struct {
	GroupID int `json:"groupId"`
}

func (GroupMembers) Name() string { return "group.members" }
func (c *GroupMembers) apply(ctx context.Context, ss *Session) error {
	_, err := ss.Groups.LoadMembers(ctx, c.GroupID)
	return err
}

type MemberSearch struct {
	Query string `json:"query"`
}

func (MemberSearch) Name() string { return "member.search" }
func (c *MemberSearch) apply(_ context.Context, ss *Session) error {
	ss.Groups.SearchMembers(c.Query)
	return nil
}

type BankSearch struct {
	Kind   Kind   `json:"kind,omitempty"`
	Search string `json:"search,omitempty"`
}

func (BankSearch) Name() string { return "bank.search" }
func (c *BankSearch) apply(ctx context.Context, ss *Session) error {
	_, err := ss.Bank.Search(ctx, c.Kind, c.Search)
	return err
}

type BankAdd struct {
	ID string `json:"id"`
}

func (BankAdd) Name() string { return "bank.add" }
func (c *BankAdd) apply(_ context.Context, ss *Session) error {
	_, err := ss.Bank.Add(c.ID)
	return err
}

type Submit struct{}

func (Submit) Name() string { return "submit" }
func (c *Submit) apply(ctx context.Context, ss *Session) error {
	_, err := ss.Assembler.Submit(ctx)
	return err
}

func init() {
	for _, fn := range []func() Command{
		func() Command { return &TabActivate{} },
		func() Command { return &TabAdvance{} },
		func() Command { return &FormSet{} },
		func() Command { return &CourseSelect{} },
		func() Command { return &PlacementLoad{} },
		func() Command { return &PlacementSelect{} },
		func() Command { return &BuilderOpen{} },
		func() Command { return &BuilderEdit{} },
		func() Command { return &BuilderUpdate{} },
		func() Command { return &BuilderSave{} },
		func() Command { return &BuilderCancel{} },
		func() Command { return &BuilderRemove{} },
		func() Command { return &BuilderMove{} },
		func() Command { return &AIGenerate{} },
		func() Command { return &AIStart{} },
		func() Command { return &AIAccept{} },
		func() Command { return &AISkip{} },
		func() Command { return &CompetencyToggle{} },
		func() Command { return &CompetencySearch{} },
		func() Command { return &GroupToggle{} },
		func() Command { return &GroupCreate{} },
		func() Command { return &GroupMembers{} },
		func() Command { return &MemberSearch{} },
		func() Command { return &BankSearch{} },
		func() Command { return &BankAdd{} },
		func() Command { return &Submit{} },
	} {
		registerCommand(fn().Name(), fn)
	}
}
