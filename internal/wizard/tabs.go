package wizard

type Tab string

const (
	TabGeneral      Tab = "general"
	TabContent      Tab = "content"
	TabGrade        Tab = "grade"
	TabCompetencies Tab = "competencies"
	TabAssignTo     Tab = "assignto"
)

// TabOrder is the fixed forward order of the wizard.
var TabOrder = []Tab{TabGeneral, TabContent, TabGrade, TabCompetencies, TabAssignTo}

func (t Tab) valid() bool { return t.index() >= 0 }

func (t Tab) index() int {
	for i, x := range TabOrder {
		if x == t {
			return i
		}
	}
	return -1
}

// ActionButtons tells the page which terminal button to show.
type ActionButtons struct {
	Next     bool `json:"next"`
	Finalize bool `json:"finalize"`
}

// TabNavigator tracks the active wizard section.
type TabNavigator struct {
	s *State
}

// Activate switches to tab. Unknown tabs are ignored and false is returned.
func (n *TabNavigator) Activate(tab Tab) bool {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	return n.activateLocked(tab)
}

func (n *TabNavigator) activateLocked(tab Tab) bool {
	if !tab.valid() {
		return false
	}
	n.s.wizard.ActiveTab = tab
	return true
}

// Advance moves to the following tab; it does nothing on the last one.
func (n *TabNavigator) Advance() Tab {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	i := n.s.wizard.ActiveTab.index()
	if i >= 0 && i < len(TabOrder)-1 {
		n.s.wizard.ActiveTab = TabOrder[i+1]
	}
	return n.s.wizard.ActiveTab
}

func (n *TabNavigator) Active() Tab {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	return n.s.wizard.ActiveTab
}

func (n *TabNavigator) Buttons() ActionButtons {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	return buttonsFor(n.s.wizard.ActiveTab)
}

func buttonsFor(t Tab) ActionButtons {
	fin := t == TabAssignTo
	return ActionButtons{Next: !fin, Finalize: fin}
}
