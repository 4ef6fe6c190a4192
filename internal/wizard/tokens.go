package wizard

// region names one independently loaded part of the page. Each region has its
// own monotonic request token; a response is applied only while its token is
// still the latest one issued for that region.
type region string

const (
	regionTree             region = "tree"
	regionCompetencies     region = "competencies"
	regionGroups           region = "groups"
	regionStudents         region = "students"
	regionMembers          region = "members"
	regionDetail           region = "detail"
	regionGenerate         region = "generate"
	regionBank             region = "bank"
	regionSubmit           region = "submit"
	regionCompetencySearch region = "competency-search"
	regionMemberSearch     region = "member-search"
)

type requestTokens map[region]uint64

func (t requestTokens) next(r region) uint64 {
	t[r]++
	return t[r]
}

func (t requestTokens) latest(r region, tok uint64) bool { return t[r] == tok }

// invalidate makes every in-flight response for r stale.
func (t requestTokens) invalidate(r region) { t[r]++ }
