package engine

import (
	"sync"

	"github.com/roach88/formguard/internal/guard"
	"github.com/roach88/formguard/internal/ir"
)

// EventType names a UI event delivered to a session.
type EventType string

const (
	// EventMount opens a form view. Record selects the edit form of an
	// existing record; an empty Record opens the blank "new" form.
	EventMount EventType = "mount"
	// EventChange sets fields on a mounted form.
	EventChange EventType = "change"
	// EventSave is a successful save (edit) or submission (new).
	EventSave EventType = "save"
	// EventRestore loads the stored draft into a new form.
	EventRestore EventType = "restore"
	// EventUnmount closes a form view.
	EventUnmount EventType = "unmount"
	// EventNavigate is a link click or programmatic push/replace.
	EventNavigate EventType = "navigate"
	// EventPopState is the browser back button.
	EventPopState EventType = "popstate"
	// EventDecide answers the open confirmation dialog.
	EventDecide EventType = "decide"
	// EventUnload asks whether closing the tab should prompt.
	EventUnload EventType = "unload"
	// EventReload reloads the page: every form closes and the registry and
	// guard start over. Stored drafts survive.
	EventReload EventType = "reload"
)

// Event is one UI event.
type Event struct {
	Type EventType

	Form   string      // Form name from the schema catalog ("job")
	Record string      // Record ID; empty addresses the "new" form
	Data   ir.IRObject // mount: record data; change: fields to set

	Href    string // navigate, and optionally save (navigate after saving)
	NewTab  bool
	Replace bool

	Choice guard.Choice // decide
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so a UI goroutine posting events never blocks on
// the session loop. The signal channel lets Run wait on it alongside
// context cancellation.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking; the buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	// Drop the slot's references (Data maps) so they can be collected.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed when the queue closes.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
