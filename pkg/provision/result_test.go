package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult_Terminal(t *testing.T) {
	assert.False(t, Result{}.Terminal())
	assert.False(t, ShowForm(StepIDUser, nil, nil).Terminal())
	assert.False(t, ShowMenu(StepIDChooseAuthType, nil).Terminal())
	assert.True(t, CreatedEntry(testSerial, testSerial, testHost).Terminal())
	assert.True(t, AbortFlow(AbortNotSpanPanel).Terminal())
}

func TestResult_ZeroValueIsNone(t *testing.T) {
	// A zero Result must not pass for a form or menu: the manager keys
	// input routing off the pending result's type.
	var res Result
	assert.Equal(t, ResultTypeNone, res.Type)
	assert.Empty(t, res.StepID())
}

func TestResult_StepID(t *testing.T) {
	assert.Equal(t, StepIDAuthToken, ShowForm(StepIDAuthToken, nil, nil).StepID())
	assert.Equal(t, StepIDChooseAuthType, ShowMenu(StepIDChooseAuthType, nil).StepID())
	assert.Empty(t, CreatedEntry(testSerial, testSerial, testHost).StepID())
	assert.Empty(t, AbortFlow(AbortHostNotSet).StepID())
}

func TestResult_Constructors(t *testing.T) {
	form := ShowForm(StepIDUser, map[string]string{"base": ErrorCannotConnect}, map[string]string{FieldHost: testHost})
	assert.Equal(t, ResultTypeForm, form.Type)
	assert.Equal(t, ErrorCannotConnect, form.Form.Errors["base"])
	assert.Equal(t, testHost, form.Form.Placeholders[FieldHost])

	entry := CreatedEntry(testSerial, testSerial, testHost)
	assert.Equal(t, ResultTypeEntry, entry.Type)
	assert.Equal(t, testSerial, entry.Entry.Title)
	assert.Equal(t, testHost, entry.Entry.Host)

	abort := AbortFlow(AbortReauthSuccessful)
	assert.Equal(t, ResultTypeAbort, abort.Type)
	assert.Equal(t, AbortReauthSuccessful, abort.Abort.Reason)
}

func TestMenuResult_HasOption(t *testing.T) {
	menu := ShowMenu(StepIDChooseAuthType, []MenuOption{
		{ID: StepIDAuthProximity, Label: "Proof of Proximity (recommended)"},
		{ID: StepIDAuthToken, Label: "Existing Auth Token"},
	})

	assert.True(t, menu.Menu.HasOption(StepIDAuthProximity))
	assert.True(t, menu.Menu.HasOption(StepIDAuthToken))
	assert.False(t, menu.Menu.HasOption("user"))
	assert.False(t, menu.Menu.HasOption(""))
}

func TestResultType_String(t *testing.T) {
	assert.Equal(t, "NONE", ResultTypeNone.String())
	assert.Equal(t, "FORM", ResultTypeForm.String())
	assert.Equal(t, "MENU", ResultTypeMenu.String())
	assert.Equal(t, "ENTRY", ResultTypeEntry.String())
	assert.Equal(t, "ABORT", ResultTypeAbort.String())
	assert.Equal(t, "UNKNOWN", ResultType(42).String())
}
