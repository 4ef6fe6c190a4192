package wizard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

func TestActivateThenAdvanceMovesToNextTab(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	for i, tab := range wizard.TabOrder {
		assert.True(t, ss.Tabs.Activate(tab))
		got := ss.Tabs.Advance()
		if i == len(wizard.TabOrder)-1 {
			assert.Equal(t, tab, got, "advance from the last tab is a no-op")
			continue
		}
		assert.Equal(t, wizard.TabOrder[i+1], got)
	}
}

func TestActivateUnknownTabIsIgnored(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	ss.Tabs.Activate(wizard.TabGrade)

	assert.False(t, ss.Tabs.Activate("settings"))
	assert.Equal(t, wizard.TabGrade, ss.Tabs.Active())
}

func TestFinalizeOnlyOnLastTab(t *testing.T) {
	ss := newSession(t, newFakeBackend(), wizard.Options{})
	assert.Equal(t, wizard.TabGeneral, ss.Tabs.Active())
	for _, tab := range wizard.TabOrder {
		ss.Tabs.Activate(tab)
		b := ss.Tabs.Buttons()
		last := tab == wizard.TabAssignTo
		assert.Equal(t, last, b.Finalize, tab)
		assert.Equal(t, !last, b.Next, tab)
	}
}

func TestEditModeFollowsInstance(t *testing.T) {
	f := newFakeBackend()
	assert.False(t, newSession(t, f, wizard.Options{}).View().Wizard.IsEditMode)
	assert.True(t, newSession(t, f, wizard.Options{InstanceID: 4}).View().Wizard.IsEditMode)
}
