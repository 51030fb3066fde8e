package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/formguard/internal/engine"
	"github.com/roach88/formguard/internal/guard"
	"github.com/roach88/formguard/internal/ir"
)

// Scenario is a scripted browser session with assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is an optional directory of CUE form definitions, relative to
	// the scenario file. Empty means the built-in CRM forms.
	Schema string `yaml:"schema,omitempty"`

	// Start is the first history entry (default "/").
	Start string `yaml:"start,omitempty"`

	// Drafts are stored before the session starts, as if left by an
	// earlier visit.
	Drafts []DraftSetup `yaml:"drafts,omitempty"`

	// Flow is the sequence of UI events.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state and the trace.
	Assertions []Assertion `yaml:"assertions"`
}

// DraftSetup is a draft present in storage when the scenario starts.
type DraftSetup struct {
	Key  string                 `yaml:"key"`
	Data map[string]interface{} `yaml:"data"`
}

// Step is one UI event.
type Step struct {
	// Event is the event type: mount, change, save, restore, unmount,
	// navigate, popstate, decide, unload, reload.
	Event string `yaml:"event"`

	Form   string                 `yaml:"form,omitempty"`
	Record string                 `yaml:"record,omitempty"`
	Data   map[string]interface{} `yaml:"data,omitempty"`

	Href    string `yaml:"href,omitempty"`
	NewTab  bool   `yaml:"new_tab,omitempty"`
	Replace bool   `yaml:"replace,omitempty"`

	Choice string `yaml:"choice,omitempty"`

	// ExpectError is the session error code this step must fail with
	// (e.g. "INVALID_DATA"). Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the outcome.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Value is the expected boolean (dirty).
	Value *bool `yaml:"value,omitempty"`

	// Dialog is "edit", "draft" or "none" (dialog); a filter for the trace
	// assertions.
	Dialog string `yaml:"dialog,omitempty"`

	// FormID selects a form (form_data) or filters trace events.
	FormID string `yaml:"form_id,omitempty"`

	// Href is the expected location (location) or a trace filter.
	Href string `yaml:"href,omitempty"`

	// Choice filters trace events.
	Choice string `yaml:"choice,omitempty"`

	// HasDraft filters mounted trace events.
	HasDraft *bool `yaml:"has_draft,omitempty"`

	// Key is the draft key (draft).
	Key string `yaml:"key,omitempty"`

	// Expect holds expected field values (draft, form_data). Subset match
	// with diff engine equality, so "" matches an absent field.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Absent asserts that no draft is stored under Key (draft).
	Absent bool `yaml:"absent,omitempty"`

	// Event is the trace event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected trace order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of matching trace events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Choices is the expected decision log, oldest first (decisions).
	Choices []string `yaml:"choices,omitempty"`
}

// Assertion type constants.
const (
	AssertDirty         = "dirty"
	AssertDialog        = "dialog"
	AssertLocation      = "location"
	AssertDraft         = "draft"
	AssertFormData      = "form_data"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertDecisions     = "decisions"
)

var eventTypes = map[string]engine.EventType{
	"mount":    engine.EventMount,
	"change":   engine.EventChange,
	"save":     engine.EventSave,
	"restore":  engine.EventRestore,
	"unmount":  engine.EventUnmount,
	"navigate": engine.EventNavigate,
	"popstate": engine.EventPopState,
	"decide":   engine.EventDecide,
	"unload":   engine.EventUnload,
	"reload":   engine.EventReload,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative Schema path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml file in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Schema != "" {
		if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
			return fmt.Errorf("schema directory not found: %s", s.Schema)
		}
	}

	for i, d := range s.Drafts {
		if d.Key == "" {
			return fmt.Errorf("drafts[%d]: key is required", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *Step) error {
	et, ok := eventTypes[step.Event]
	if !ok {
		return fmt.Errorf("flow[%d]: unknown event %q", index, step.Event)
	}

	switch et {
	case engine.EventMount, engine.EventChange, engine.EventSave, engine.EventRestore, engine.EventUnmount:
		if step.Form == "" {
			return fmt.Errorf("flow[%d]: form is required for %s", index, step.Event)
		}
	case engine.EventNavigate:
		if step.Href == "" {
			return fmt.Errorf("flow[%d]: href is required for navigate", index)
		}
	case engine.EventDecide:
		if _, err := guard.ParseChoice(step.Choice); err != nil {
			return fmt.Errorf("flow[%d]: %w", index, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertDirty:
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for dirty", index)
		}
	case AssertDialog:
		switch a.Dialog {
		case "edit", "draft", "none":
		default:
			return fmt.Errorf("assertions[%d]: dialog must be edit, draft or none", index)
		}
	case AssertLocation:
		if a.Href == "" {
			return fmt.Errorf("assertions[%d]: href is required for location", index)
		}
	case AssertDraft:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for draft", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for draft", index)
		}
	case AssertFormData:
		if a.FormID == "" {
			return fmt.Errorf("assertions[%d]: form_id is required for form_data", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for form_data", index)
		}
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertDecisions:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// toEvent converts a step into a session event.
func (step Step) toEvent() (engine.Event, error) {
	data, err := ir.ObjectFromGo(step.Data)
	if err != nil {
		return engine.Event{}, fmt.Errorf("data: %w", err)
	}
	if step.Data == nil {
		data = nil
	}
	return engine.Event{
		Type:    eventTypes[step.Event],
		Form:    step.Form,
		Record:  step.Record,
		Data:    data,
		Href:    step.Href,
		NewTab:  step.NewTab,
		Replace: step.Replace,
		Choice:  guard.Choice(step.Choice),
	}, nil
}
