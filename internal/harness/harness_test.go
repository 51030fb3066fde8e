package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func editLeaveScenario() *Scenario {
	return &Scenario{
		Name:        "edit_leave",
		Description: "edit a job, follow a link, leave",
		Start:       "/jobs/1",
		Flow: []Step{
			{Event: "mount", Form: "job", Record: "1"},
			{Event: "change", Form: "job", Record: "1", Data: map[string]interface{}{"notes": "ring twice"}},
			{Event: "navigate", Href: "/clients"},
			{Event: "decide", Choice: "leave"},
		},
		Assertions: []Assertion{
			{Type: AssertDirty, Value: boolPtr(false)},
			{Type: AssertLocation, Href: "/clients"},
			{Type: AssertDecisions, Choices: []string{"leave"}},
		},
	}
}

func TestRun_Pass(t *testing.T) {
	result, err := Run(editLeaveScenario())
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	var types []string
	for _, ev := range result.Trace {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{"mounted", "changed", "blocked", "resolved", "navigated", "unmounted"}, types)
}

func TestRun_FailedAssertion(t *testing.T) {
	sc := editLeaveScenario()
	sc.Assertions = []Assertion{{Type: AssertLocation, Href: "/jobs/1"}}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: location")
	assert.Contains(t, result.Errors[0], "Actual: /clients")
}

func TestRun_ExpectedError(t *testing.T) {
	sc := &Scenario{
		Name:        "expected_error",
		Description: "errors are checked by code",
		Flow: []Step{
			{Event: "change", Form: "client", ExpectError: "NOT_MOUNTED"},
			{Event: "mount", Form: "estimate", ExpectError: "UNKNOWN_FORM"},
			{Event: "decide", Choice: "stay", ExpectError: "INVALID_CHOICE"},
		},
		Assertions: []Assertion{{Type: AssertDirty, Value: boolPtr(false)}},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Trace)
}

func TestRun_ExpectedErrorMismatch(t *testing.T) {
	sc := &Scenario{
		Name:        "mismatch",
		Description: "the wrong code fails the step",
		Flow: []Step{
			{Event: "mount", Form: "client", ExpectError: "INVALID_DATA"},
		},
		Assertions: []Assertion{{Type: AssertDirty, Value: boolPtr(false)}},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[0] mount: expected error INVALID_DATA")
}

func TestRun_UnexpectedStepError(t *testing.T) {
	sc := &Scenario{
		Name:        "step_error",
		Description: "a failing step is reported and the flow continues",
		Flow: []Step{
			{Event: "restore", Form: "client"},
			{Event: "mount", Form: "client"},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Event: "mounted", Count: 1}},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "NOT_MOUNTED")
}

func TestRun_SetupDrafts(t *testing.T) {
	sc := &Scenario{
		Name:        "stored_draft",
		Description: "a draft left by an earlier visit is offered on mount",
		Drafts: []DraftSetup{
			{Key: "new-client", Data: map[string]interface{}{"firstName": "Lin"}},
		},
		Flow: []Step{
			{Event: "mount", Form: "client"},
			{Event: "restore", Form: "client"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Event: "mounted", HasDraft: boolPtr(true)},
			{Type: AssertFormData, FormID: "new-client", Expect: map[string]interface{}{"firstName": "Lin"}},
			{Type: AssertDirty, Value: boolPtr(true)},
		},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CustomSchema(t *testing.T) {
	dir := t.TempDir()
	src := `package forms

form: estimate: {
	label: "estimate"
	fields: {
		client:     string | *""
		totalCents: int | *0
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "estimate.cue"), []byte(src), 0o644))

	sc := &Scenario{
		Name:        "custom_schema",
		Description: "forms come from a schema directory",
		Schema:      dir,
		Flow: []Step{
			{Event: "mount", Form: "estimate"},
			{Event: "change", Form: "estimate", Data: map[string]interface{}{"client": "Acme", "totalCents": 4200}},
		},
		Assertions: []Assertion{
			{Type: AssertDraft, Key: "new-estimate", Expect: map[string]interface{}{"client": "Acme", "totalCents": 4200}},
		},
	}

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_BadSchema(t *testing.T) {
	sc := editLeaveScenario()
	sc.Schema = filepath.Join(t.TempDir(), "missing")

	_, err := Run(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load schema")
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(editLeaveScenario())
	require.NoError(t, err)
	second, err := Run(editLeaveScenario())
	require.NoError(t, err)

	a, err := MarshalTrace("edit_leave", first)
	require.NoError(t, err)
	b, err := MarshalTrace("edit_leave", second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
