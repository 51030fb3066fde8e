package engine

import (
	"sync"

	"github.com/roach88/formguard/internal/ir"
)

// TraceType names an observable session effect.
type TraceType string

const (
	TraceMounted   TraceType = "mounted"
	TraceChanged   TraceType = "changed"
	TraceSaved     TraceType = "saved"
	TraceRestored  TraceType = "restored"
	TraceUnmounted TraceType = "unmounted"
	TraceBlocked   TraceType = "blocked"
	TraceResolved  TraceType = "resolved"
	TraceNavigated TraceType = "navigated"
	TraceNewTab    TraceType = "new_tab"
	TraceUnload    TraceType = "unload"
	TraceReloaded  TraceType = "reloaded"
)

// TraceEvent is one observable effect, stamped with the session clock.
// Only the fields meaningful for Type are set.
type TraceEvent struct {
	Seq  int64
	Type TraceType

	FormID   string
	Kind     string // "edit" or "draft" on mounted
	Dirty    bool   // Form dirty state; on unload, whether the browser prompts
	HasDraft bool
	Data     ir.IRObject // Stored draft on mounted, restored data on restored

	Href     string
	Dialog   string // "edit" or "draft" on blocked and resolved
	Choice   string
	IntentID string
}

// Observer receives trace events in seq order from the goroutine processing
// the event. It is called with the session lock held and must not call back
// into the session.
type Observer interface {
	Observe(TraceEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(TraceEvent)

func (f ObserverFunc) Observe(ev TraceEvent) { f(ev) }

// TraceRecorder is an Observer that keeps every event.
type TraceRecorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (r *TraceRecorder) Observe(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded trace.
func (r *TraceRecorder) Events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}
