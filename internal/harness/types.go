package harness

import (
	"github.com/roach88/formguard/internal/diff"
	"github.com/roach88/formguard/internal/engine"
	"github.com/roach88/formguard/internal/ir"
	"github.com/roach88/formguard/internal/registry"
)

// TraceEvent is the serializable form of an engine trace event.
// Form data is shown normalized, so blank fields are left out.
type TraceEvent struct {
	Seq      int64      `json:"seq"`
	Type     string     `json:"type"`
	FormID   string     `json:"form_id,omitempty"`
	Kind     string     `json:"kind,omitempty"`
	Dirty    *bool      `json:"dirty,omitempty"`
	HasDraft *bool      `json:"has_draft,omitempty"`
	Data     ir.IRValue `json:"data,omitempty"`
	Href     string     `json:"href,omitempty"`
	Dialog   string     `json:"dialog,omitempty"`
	Choice   string     `json:"choice,omitempty"`
	IntentID string     `json:"intent_id,omitempty"`
}

func fromEngine(ev engine.TraceEvent) TraceEvent {
	out := TraceEvent{
		Seq:      ev.Seq,
		Type:     string(ev.Type),
		FormID:   ev.FormID,
		Kind:     ev.Kind,
		Href:     ev.Href,
		Dialog:   ev.Dialog,
		Choice:   ev.Choice,
		IntentID: ev.IntentID,
	}
	switch ev.Type {
	case engine.TraceChanged, engine.TraceRestored, engine.TraceUnload:
		dirty := ev.Dirty
		out.Dirty = &dirty
	case engine.TraceMounted:
		if kind, ok := registry.ParseKind(ev.Kind); ok && kind == registry.KindDraft {
			hasDraft := ev.HasDraft
			out.HasDraft = &hasDraft
		}
	}
	if ev.Data != nil {
		out.Data = diff.Normalize(ev.Data)
	}
	return out
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step and assertion held.
	Pass bool `json:"pass"`

	// Trace is the session trace in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an engine trace event.
func (r *Result) AddTrace(ev engine.TraceEvent) {
	r.Trace = append(r.Trace, fromEngine(ev))
}
