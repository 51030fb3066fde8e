package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/formguard/internal/diff"
	"github.com/roach88/formguard/internal/draft"
	"github.com/roach88/formguard/internal/engine"
	"github.com/roach88/formguard/internal/guard"
	"github.com/roach88/formguard/internal/ir"
	"github.com/roach88/formguard/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, describe(event))
		}
	}

	return buf.String()
}

// describe renders a trace event on one line.
func describe(ev TraceEvent) string {
	parts := []string{ev.Type}
	if ev.FormID != "" {
		parts = append(parts, "form="+ev.FormID)
	}
	if ev.Dialog != "" {
		parts = append(parts, "dialog="+ev.Dialog)
	}
	if ev.Choice != "" {
		parts = append(parts, "choice="+ev.Choice)
	}
	if ev.Href != "" {
		parts = append(parts, "href="+ev.Href)
	}
	if ev.Dirty != nil {
		parts = append(parts, fmt.Sprintf("dirty=%t", *ev.Dirty))
	}
	return strings.Join(parts, " ")
}

// AssertionContext provides the live objects assertions inspect.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Session *engine.Session
}

func assertDirty(s *engine.Session, a Assertion) error {
	if got := s.IsDirty(); got != *a.Value {
		return &AssertionError{
			Type:     AssertDirty,
			Expected: fmt.Sprintf("dirty=%t", *a.Value),
			Actual:   fmt.Sprintf("dirty=%t", got),
		}
	}
	return nil
}

func assertDialog(s *engine.Session, a Assertion) error {
	p := s.Prompt()
	got := "none"
	switch p.State {
	case guard.StateAwaitingEdit:
		got = "edit"
	case guard.StateAwaitingDraft:
		got = "draft"
	}
	if got != a.Dialog {
		return &AssertionError{
			Type:     AssertDialog,
			Expected: fmt.Sprintf("dialog %s", a.Dialog),
			Actual:   fmt.Sprintf("dialog %s", got),
		}
	}
	if a.FormID != "" && p.FormID != a.FormID {
		return &AssertionError{
			Type:     AssertDialog,
			Expected: fmt.Sprintf("dialog for %s", a.FormID),
			Actual:   fmt.Sprintf("dialog for %s", p.FormID),
		}
	}
	return nil
}

func assertLocation(s *engine.Session, a Assertion) error {
	if got := s.History().Current(); got != a.Href {
		return &AssertionError{
			Type:     AssertLocation,
			Expected: a.Href,
			Actual:   got,
		}
	}
	return nil
}

func assertDraft(ctx context.Context, st *store.Store, a Assertion) error {
	rec, err := st.Load(ctx, a.Key)
	if a.Absent {
		if errors.Is(err, draft.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("draft %s: %w", a.Key, err)
		}
		return &AssertionError{
			Type:     AssertDraft,
			Expected: fmt.Sprintf("no draft under %s", a.Key),
			Actual:   fmt.Sprintf("draft version %d", rec.Version),
		}
	}
	if errors.Is(err, draft.ErrNotFound) {
		return &AssertionError{
			Type:     AssertDraft,
			Expected: fmt.Sprintf("draft under %s", a.Key),
			Actual:   "not stored",
		}
	}
	if err != nil {
		return fmt.Errorf("draft %s: %w", a.Key, err)
	}
	return matchFields(AssertDraft, rec.Data, a.Expect)
}

func assertFormData(s *engine.Session, a Assertion) error {
	data, ok := s.FormData(a.FormID)
	if !ok {
		return &AssertionError{
			Type:     AssertFormData,
			Expected: fmt.Sprintf("form %s open", a.FormID),
			Actual:   fmt.Sprintf("open forms %v", s.Mounted()),
		}
	}
	return matchFields(AssertFormData, data, a.Expect)
}

// matchFields checks that actual holds every expected field (subset match),
// comparing with the diff engine so "" and absent are the same.
func matchFields(kind string, actual ir.IRObject, expected map[string]interface{}) error {
	want, err := ir.ObjectFromGo(expected)
	if err != nil {
		return fmt.Errorf("%s: expect: %w", kind, err)
	}
	for _, k := range want.SortedKeys() {
		if !diff.Equal(actual[k], want[k]) {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s=%v", k, ir.ToGo(want[k])),
				Actual:   fmt.Sprintf("%s=%v", k, ir.ToGo(actual[k])),
			}
		}
	}
	return nil
}

// matchEvent reports whether ev satisfies the filters set on a.
func matchEvent(ev TraceEvent, a Assertion) bool {
	if ev.Type != a.Event {
		return false
	}
	if a.FormID != "" && ev.FormID != a.FormID {
		return false
	}
	if a.Dialog != "" && ev.Dialog != a.Dialog {
		return false
	}
	if a.Href != "" && ev.Href != a.Href {
		return false
	}
	if a.Choice != "" && ev.Choice != a.Choice {
		return false
	}
	if a.HasDraft != nil && (ev.HasDraft == nil || *ev.HasDraft != *a.HasDraft) {
		return false
	}
	return true
}

// assertTraceContains checks that some trace event matches the filters.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matchEvent(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s event %s", a.Event, filters(a)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the event types appear in the given order.
// Intervening events are allowed; each expected event must come after the
// previous match.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for _, want := range a.Events {
		found := false
		for pos < len(trace) {
			ev := trace[pos]
			pos++
			if ev.Type == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual:   fmt.Sprintf("no %s after the previous match", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the number of matching trace events.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if matchEvent(ev, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events %s", a.Count, a.Event, filters(a)),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertDecisions checks the recorded dialog choices, oldest first.
func assertDecisions(ctx context.Context, st *store.Store, a Assertion) error {
	decisions, err := st.ReadDecisions(ctx)
	if err != nil {
		return fmt.Errorf("read decisions: %w", err)
	}
	got := make([]string, len(decisions))
	for i, d := range decisions {
		got[i] = d.Choice
	}
	want := a.Choices
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertDecisions,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func filters(a Assertion) string {
	var parts []string
	for _, kv := range [][2]string{
		{"form_id", a.FormID},
		{"dialog", a.Dialog},
		{"href", a.Href},
		{"choice", a.Choice},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	if a.HasDraft != nil {
		parts = append(parts, fmt.Sprintf("has_draft=%t", *a.HasDraft))
	}
	if len(parts) == 0 {
		return "(no filters)"
	}
	return "with " + strings.Join(parts, " ")
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertDirty, AssertDialog, AssertLocation, AssertFormData:
			if actx == nil || actx.Session == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a session", i, a.Type)
				break
			}
			switch a.Type {
			case AssertDirty:
				err = assertDirty(actx.Session, a)
			case AssertDialog:
				err = assertDialog(actx.Session, a)
			case AssertLocation:
				err = assertLocation(actx.Session, a)
			default:
				err = assertFormData(actx.Session, a)
			}
		case AssertDraft, AssertDecisions:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, a.Type)
				break
			}
			if a.Type == AssertDraft {
				err = assertDraft(actx.Ctx, actx.Store, a)
			} else {
				err = assertDecisions(actx.Ctx, actx.Store, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
