package lms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

// Web-service functions. Core functions where the LMS has one; the rest are
// provided by the authoring plugin.
const (
	fnCourseContents   = "core_course_get_contents"
	fnCompetencies     = "core_competency_list_course_competencies"
	fnCourseGroups     = "core_group_get_course_groups"
	fnCreateGroups     = "core_group_create_groups"
	fnAddGroupMembers  = "core_group_add_group_members"
	fnEnrolledUsers    = "core_enrol_get_enrolled_users"
	fnGroupMembers     = "local_mindengage_get_group_members"
	fnBankItems        = "local_mindengage_list_bank_items"
	fnItemDetail       = "local_mindengage_get_question"
	fnGenerateItems    = "local_mindengage_generate_questions"
	fnSaveActivity     = "local_mindengage_save_activity"
	studentRoleShortnm = "student"
)

var _ wizard.Backend = (*Client)(nil)

func itoa(n int) string { return strconv.Itoa(n) }

func (c *Client) CourseStructure(ctx context.Context, courseID int) (wizard.CourseTree, error) {
	var sections []struct {
		ID      int    `json:"id"`
		Name    string `json:"name"`
		Modules []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"modules"`
	}
	if err := c.call(ctx, fnCourseContents, url.Values{"courseid": {itoa(courseID)}}, &sections); err != nil {
		return wizard.CourseTree{}, err
	}
	tree := wizard.CourseTree{CourseID: courseID, Sections: make([]wizard.Section, 0, len(sections))}
	for _, s := range sections {
		sec := wizard.Section{ID: s.ID, Name: s.Name, Modules: make([]wizard.Module, 0, len(s.Modules))}
		for _, m := range s.Modules {
			sec.Modules = append(sec.Modules, wizard.Module{ID: m.ID, Name: m.Name, SectionID: s.ID})
		}
		tree.Sections = append(tree.Sections, sec)
	}
	return tree, nil
}

type competencyRecord struct {
	ID          int    `json:"id"`
	Shortname   string `json:"shortname"`
	IDNumber    string `json:"idnumber"`
	Description string `json:"description"`
	ParentID    int    `json:"parentid"`
	FrameworkID int    `json:"competencyframeworkid"`
}

func (c *Client) Competencies(ctx context.Context, courseID int) ([]wizard.Competency, error) {
	var rows []struct {
		Competency competencyRecord `json:"competency"`
	}
	if err := c.call(ctx, fnCompetencies, url.Values{"id": {itoa(courseID)}}, &rows); err != nil {
		return nil, err
	}
	recs := make([]competencyRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.Competency)
	}
	return buildCompetencyTree(recs), nil
}

// buildCompetencyTree nests the flat list by parent id. Records whose parent
// is not in the list become roots; a parent chain that loops back is cut.
func buildCompetencyTree(recs []competencyRecord) []wizard.Competency {
	byID := make(map[int]competencyRecord, len(recs))
	children := map[int][]int{}
	var order []int
	for _, r := range recs {
		if _, dup := byID[r.ID]; dup {
			continue
		}
		byID[r.ID] = r
		order = append(order, r.ID)
	}
	var roots []int
	for _, id := range order {
		p := byID[id].ParentID
		if _, ok := byID[p]; ok && p != id {
			children[p] = append(children[p], id)
		} else {
			roots = append(roots, id)
		}
	}
	placed := map[int]bool{}
	var build func(id int) wizard.Competency
	build = func(id int) wizard.Competency {
		placed[id] = true
		r := byID[id]
		n := wizard.Competency{
			ID: r.ID, Shortname: r.Shortname, IDNumber: r.IDNumber,
			Description: r.Description, Framework: itoa(r.FrameworkID),
		}
		for _, cid := range children[id] {
			if !placed[cid] {
				n.Children = append(n.Children, build(cid))
			}
		}
		return n
	}
	out := make([]wizard.Competency, 0, len(roots))
	for _, id := range roots {
		out = append(out, build(id))
	}
	// nodes only reachable through a cycle
	for _, id := range order {
		if !placed[id] {
			out = append(out, build(id))
		}
	}
	return out
}

func (c *Client) Groups(ctx context.Context, courseID int) ([]wizard.Group, error) {
	var rows []struct {
		ID          int    `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		MemberCount int    `json:"membercount"`
	}
	if err := c.call(ctx, fnCourseGroups, url.Values{"courseid": {itoa(courseID)}}, &rows); err != nil {
		return nil, err
	}
	out := make([]wizard.Group, 0, len(rows))
	for _, r := range rows {
		out = append(out, wizard.Group{ID: r.ID, Name: r.Name, Description: r.Description, MemberCount: r.MemberCount})
	}
	return out, nil
}

func (c *Client) CreateGroup(ctx context.Context, sesskey string, g wizard.NewGroup) (wizard.Group, error) {
	args := url.Values{
		"sesskey":                      {sesskey},
		"groups[0][courseid]":          {itoa(g.CourseID)},
		"groups[0][name]":              {g.Name},
		"groups[0][description]":       {g.Description},
		"groups[0][descriptionformat]": {"1"},
	}
	var created []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := c.call(ctx, fnCreateGroups, args, &created); err != nil {
		return wizard.Group{}, err
	}
	if len(created) == 0 {
		return wizard.Group{}, &wizard.TransportFailure{Op: fnCreateGroups, Err: fmt.Errorf("empty response")}
	}
	grp := wizard.Group{ID: created[0].ID, Name: created[0].Name, Description: g.Description}
	if len(g.MemberIDs) == 0 {
		return grp, nil
	}
	members := url.Values{"sesskey": {sesskey}}
	for i, uid := range g.MemberIDs {
		members.Set(fmt.Sprintf("members[%d][groupid]", i), itoa(grp.ID))
		members.Set(fmt.Sprintf("members[%d][userid]", i), itoa(uid))
	}
	if err := c.call(ctx, fnAddGroupMembers, members, nil); err != nil {
		return grp, &wizard.MembersNotAdded{Group: grp, Err: err}
	}
	grp.MemberCount = len(g.MemberIDs)
	return grp, nil
}

type userRecord struct {
	ID       int    `json:"id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Roles    []struct {
		Shortname string `json:"shortname"`
	} `json:"roles"`
}

func (c *Client) GroupMembers(ctx context.Context, groupID int) ([]wizard.Member, error) {
	var rows []userRecord
	if err := c.call(ctx, fnGroupMembers, url.Values{"groupid": {itoa(groupID)}}, &rows); err != nil {
		return nil, err
	}
	out := make([]wizard.Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, wizard.Member{ID: r.ID, Fullname: r.Fullname, Email: r.Email})
	}
	return out, nil
}

func (c *Client) CourseStudents(ctx context.Context, courseID int) ([]wizard.Member, error) {
	args := url.Values{
		"courseid":          {itoa(courseID)},
		"options[0][name]":  {"userfields"},
		"options[0][value]": {"id,fullname,email,roles"},
	}
	var rows []userRecord
	if err := c.call(ctx, fnEnrolledUsers, args, &rows); err != nil {
		return nil, err
	}
	out := make([]wizard.Member, 0, len(rows))
	for _, r := range rows {
		if !hasRole(r, studentRoleShortnm) {
			continue
		}
		out = append(out, wizard.Member{ID: r.ID, Fullname: r.Fullname, Email: r.Email})
	}
	return out, nil
}

func hasRole(u userRecord, shortname string) bool {
	if len(u.Roles) == 0 {
		return true
	}
	for _, r := range u.Roles {
		if r.Shortname == shortname {
			return true
		}
	}
	return false
}

type questionRecord struct {
	ID           json.Number `json:"id"`
	QType        string      `json:"qtype"`
	Name         string      `json:"name"`
	QuestionText string      `json:"questiontext"`
	DefaultMark  float64     `json:"defaultmark"`
	Slot         int         `json:"slot"`
	ShapeData    string      `json:"shapedata"`
	NonEditable  bool        `json:"noneditable"`
	EditURL      string      `json:"editurl"`
}

func (c *Client) BankItems(ctx context.Context, q wizard.BankQuery) ([]wizard.ItemSummary, error) {
	args := url.Values{"courseid": {itoa(q.CourseID)}}
	if q.InstanceID != 0 {
		args.Set("instanceid", itoa(q.InstanceID))
	}
	if q.Kind != "" {
		args.Set("qtype", string(q.Kind))
	}
	if q.Search != "" {
		args.Set("search", q.Search)
	}
	if q.Limit > 0 {
		args.Set("limit", itoa(q.Limit))
	}
	var rows []questionRecord
	if err := c.call(ctx, fnBankItems, args, &rows); err != nil {
		return nil, err
	}
	out := make([]wizard.ItemSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, wizard.ItemSummary{
			ID: r.ID.String(), Kind: wizard.Kind(r.QType), Title: r.Name,
			BodyPreview: r.QuestionText, Weight: r.DefaultMark, Slot: r.Slot,
		})
	}
	return out, nil
}

func (c *Client) ItemDetail(ctx context.Context, ref wizard.ItemRef) (wizard.ItemDetail, error) {
	args := url.Values{}
	switch {
	case ref.ID != "":
		args.Set("id", ref.ID)
	case ref.Slot > 0:
		args.Set("slot", itoa(ref.Slot))
		args.Set("instanceid", itoa(ref.InstanceID))
	default:
		return wizard.ItemDetail{}, fmt.Errorf("item detail: %w", wizard.ErrStale)
	}
	var r questionRecord
	if err := c.call(ctx, fnItemDetail, args, &r); err != nil {
		return wizard.ItemDetail{}, err
	}
	d := wizard.ItemDetail{
		ID: r.ID.String(), Kind: wizard.Kind(r.QType), Title: r.Name, BodyText: r.QuestionText,
		Weight: r.DefaultMark, NonEditable: r.NonEditable, EditURL: r.EditURL,
	}
	if r.ShapeData != "" {
		d.Shape = json.RawMessage(r.ShapeData)
	}
	return d, nil
}

func (c *Client) GenerateItems(ctx context.Context, sesskey string, req wizard.GenerateRequest) ([]wizard.RawSuggestion, error) {
	args := url.Values{
		"sesskey":     {sesskey},
		"topic":       {req.Topic},
		"qtype":       {string(req.Kind)},
		"difficulty":  {req.Difficulty},
		"optioncount": {itoa(req.OptionCount)},
		"count":       {itoa(req.Count)},
	}
	var res struct {
		Questions []questionRecord `json:"questions"`
	}
	if err := c.call(ctx, fnGenerateItems, args, &res); err != nil {
		return nil, err
	}
	out := make([]wizard.RawSuggestion, 0, len(res.Questions))
	for _, q := range res.Questions {
		s := wizard.RawSuggestion{Title: q.Name, BodyText: q.QuestionText, Weight: q.DefaultMark}
		if q.ShapeData != "" {
			s.Shape = json.RawMessage(q.ShapeData)
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) SubmitActivity(ctx context.Context, p wizard.SubmissionPayload) (wizard.SubmitResult, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return wizard.SubmitResult{}, fmt.Errorf("encode submission: %w", err)
	}
	args := url.Values{"sesskey": {p.SessKey}, "jsonformdata": {string(payload)}}
	var res struct {
		Success        bool   `json:"success"`
		Message        string `json:"message"`
		RedirectTarget string `json:"redirecttarget"`
	}
	if err := c.call(ctx, fnSaveActivity, args, &res); err != nil {
		return wizard.SubmitResult{}, err
	}
	return wizard.SubmitResult{Success: res.Success, Message: res.Message, RedirectTarget: res.RedirectTarget}, nil
}
