package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/formguard/internal/binding"
	"github.com/roach88/formguard/internal/draft"
	"github.com/roach88/formguard/internal/guard"
	"github.com/roach88/formguard/internal/ir"
	"github.com/roach88/formguard/internal/registry"
	"github.com/roach88/formguard/internal/schema"
)

// Sequencer stamps events with logical seqs. *Clock and
// testutil.DeterministicClock implement it.
type Sequencer interface {
	Next() int64
}

// Session is one browser tab: a registry, a guard over it, a router, the
// history, and the mounted forms.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Dispatch(): safe from any goroutine; events are applied one at a time
//
// Accessors read the registry's latest snapshot and are safe at any time.
type Session struct {
	catalog  *schema.Catalog
	backend  draft.Backend
	clock    Sequencer
	ids      guard.IDGenerator
	recorder guard.Recorder
	observer Observer
	logger   *slog.Logger
	autosave time.Duration
	start    string

	queue *eventQueue

	mu      sync.Mutex // Serializes event processing
	reg     *registry.Registry
	guard   *guard.Guard
	router  *guard.Router
	history *History
	forms   map[string]*form
	order   []string // Mounted form IDs in mount order
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock sets the seq source for trace events and decisions.
func WithClock(c Sequencer) SessionOption {
	return func(s *Session) {
		s.clock = c
	}
}

// WithIDGenerator sets the navigation intent ID generator.
func WithIDGenerator(gen guard.IDGenerator) SessionOption {
	return func(s *Session) {
		s.ids = gen
	}
}

// WithRecorder logs every resolved dialog decision.
func WithRecorder(rec guard.Recorder) SessionOption {
	return func(s *Session) {
		s.recorder = rec
	}
}

// WithObserver receives the session trace.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		s.observer = o
	}
}

// WithLogger sets the logger for the session and everything it creates.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithAutosaveInterval coalesces draft writes (default: write on every
// change).
func WithAutosaveInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		s.autosave = d
	}
}

// WithStartURL sets the first history entry (default "/").
func WithStartURL(href string) SessionOption {
	return func(s *Session) {
		s.start = href
	}
}

// NewSession creates a session over catalog. A nil backend keeps drafts in
// memory.
func NewSession(catalog *schema.Catalog, backend draft.Backend, opts ...SessionOption) *Session {
	if backend == nil {
		backend = draft.NewMemoryBackend()
	}
	s := &Session{
		catalog: catalog,
		backend: backend,
		clock:   NewClock(),
		ids:     guard.UUIDv7Generator{},
		logger:  slog.Default(),
		start:   "/",
		queue:   newEventQueue(),
		forms:   make(map[string]*form),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.history = NewHistory(s.start)
	s.history.onChange = s.navigated
	s.resetLocked()
	return s
}

// resetLocked builds a fresh registry, guard and router, as a page load does.
func (s *Session) resetLocked() {
	s.reg = registry.New(registry.WithLogger(s.logger))
	gopts := []guard.Option{
		guard.WithIDGenerator(s.ids),
		guard.WithSequencer(s.clock.Next),
		guard.WithLogger(s.logger),
	}
	if s.recorder != nil {
		gopts = append(gopts, guard.WithRecorder(s.recorder))
	}
	s.guard = guard.New(s.reg, gopts...)
	s.router = guard.NewRouter(s.guard, s.history)
}

// Enqueue submits an event for the Run loop. Returns false once the session
// has stopped.
func (s *Session) Enqueue(ev Event) bool {
	return s.queue.Enqueue(ev)
}

// Run drains the event queue until ctx is cancelled or Stop is called.
//
// Events that fail are logged with their context and processing continues;
// a rejected event leaves the session unchanged.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session starting")

	for {
		ev, ok := s.queue.TryDequeue()
		if ok {
			if err := s.Dispatch(ctx, ev); err != nil {
				s.logEventError(ev, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("session stopping: context cancelled")
			s.queue.Close()
			return ctx.Err()

		case _, open := <-s.queue.Wait():
			// A receive on the open channel can be a leftover signal for an
			// event already dequeued; only a closed, drained queue stops Run.
			if !open && s.queue.Len() == 0 {
				s.logger.Info("session stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once it has drained.
func (s *Session) Stop() {
	s.queue.Close()
}

// Close closes every mounted form, flushing pending draft writes, and stops
// the queue.
func (s *Session) Close() {
	s.queue.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		s.forms[id].close()
	}
	s.forms = make(map[string]*form)
	s.order = nil
}

// Dispatch applies one event synchronously.
func (s *Session) Dispatch(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("processing event",
		"type", string(ev.Type),
		"form", ev.Form,
		"record", ev.Record,
		"href", ev.Href,
	)

	switch ev.Type {
	case EventMount:
		return s.mount(ctx, ev)
	case EventChange:
		return s.change(ev)
	case EventSave:
		return s.save(ev)
	case EventRestore:
		return s.restore(ev)
	case EventUnmount:
		return s.unmount(ev)
	case EventNavigate:
		return s.navigate(ev)
	case EventPopState:
		return s.popState()
	case EventDecide:
		return s.decide(ev)
	case EventUnload:
		s.emit(TraceEvent{Type: TraceUnload, Dirty: s.router.BeforeUnload()})
		return nil
	case EventReload:
		s.reload()
		return nil
	default:
		return newSessionError(ErrCodeInvalidEvent, ev, "", fmt.Sprintf("unknown event type %q", ev.Type), nil)
	}
}

func (s *Session) mount(ctx context.Context, ev Event) error {
	fs, ok := s.catalog.Form(ev.Form)
	if !ok {
		return newSessionError(ErrCodeUnknownForm, ev, "", fmt.Sprintf("no form named %q", ev.Form), nil)
	}
	id := formID(fs, ev.Record)
	if _, exists := s.forms[id]; exists {
		return newSessionError(ErrCodeAlreadyMounted, ev, id, "form is already open", nil)
	}

	f := &form{id: id, schema: fs}
	trace := TraceEvent{Type: TraceMounted, FormID: id}

	if ev.Record == "" {
		if len(ev.Data) > 0 {
			return newSessionError(ErrCodeInvalidEvent, ev, id, "new forms start from their defaults", nil)
		}
		a, err := draft.NewAutosaver(context.WithoutCancel(ctx), s.backend, s.reg, draft.Options{
			Key:         id,
			Enabled:     true,
			EntityLabel: fs.Label,
			Defaults:    fs.Defaults(),
			Interval:    s.autosave,
			Logger:      s.logger,
		})
		if err != nil {
			return newSessionError(ErrCodeInvalidEvent, ev, id, "open draft", err)
		}
		f.draft = a
		f.data = fs.Defaults()
		trace.Kind = registry.KindDraft.String()
		trace.HasDraft = a.HasDraft()
		trace.Data = a.DraftData()
	} else {
		initial := merge(fs.Defaults(), ev.Data)
		if err := fs.Validate(initial); err != nil {
			return newSessionError(ErrCodeInvalidData, ev, id, "record data", err)
		}
		b, err := binding.New(s.reg, binding.Options{
			FormID:     id,
			Initial:    initial,
			Enabled:    true,
			Kind:       registry.KindEdit,
			EntityType: fs.Label,
			Logger:     s.logger,
		})
		if err != nil {
			return newSessionError(ErrCodeInvalidEvent, ev, id, "bind form", err)
		}
		f.edit = b
		f.data = initial
		trace.Kind = registry.KindEdit.String()
	}

	s.forms[id] = f
	s.order = append(s.order, id)
	s.emit(trace)
	return nil
}

func (s *Session) change(ev Event) error {
	f, err := s.lookup(ev)
	if err != nil {
		return err
	}
	next := merge(f.data, ev.Data)
	if err := f.schema.Validate(next); err != nil {
		return newSessionError(ErrCodeInvalidData, ev, f.id, "change rejected", err)
	}
	f.data = next

	var dirty bool
	if f.edit != nil {
		dirty = f.edit.Update(next)
	} else {
		f.draft.Update(next)
		dirty = f.draft.IsDirty()
	}
	s.emit(TraceEvent{Type: TraceChanged, FormID: f.id, Dirty: dirty})
	return nil
}

// save marks an edit form clean, or clears a submitted new form's draft,
// then follows ev.Href if set.
func (s *Session) save(ev Event) error {
	f, err := s.lookup(ev)
	if err != nil {
		return err
	}
	if err := f.schema.Validate(f.data); err != nil {
		return newSessionError(ErrCodeInvalidData, ev, f.id, "save rejected", err)
	}

	if f.edit != nil {
		f.edit.MarkClean()
	} else {
		f.draft.Clear()
		f.data = f.schema.Defaults()
	}
	s.emit(TraceEvent{Type: TraceSaved, FormID: f.id})

	if ev.Href != "" {
		return s.navigate(Event{Type: EventNavigate, Href: ev.Href})
	}
	return nil
}

func (s *Session) restore(ev Event) error {
	f, err := s.lookup(ev)
	if err != nil {
		return err
	}
	if f.draft == nil {
		return newSessionError(ErrCodeInvalidEvent, ev, f.id, "only new forms have drafts", nil)
	}
	data, ok := f.draft.Restore()
	if !ok {
		return newSessionError(ErrCodeNoDraft, ev, f.id, "no stored draft", nil)
	}
	f.data = data
	s.emit(TraceEvent{Type: TraceRestored, FormID: f.id, Dirty: f.draft.IsDirty(), Data: ir.CloneObject(data)})
	return nil
}

func (s *Session) unmount(ev Event) error {
	f, err := s.lookup(ev)
	if err != nil {
		return err
	}
	s.closeForm(f.id)
	return nil
}

func (s *Session) navigate(ev Event) error {
	if ev.Href == "" {
		return newSessionError(ErrCodeInvalidEvent, ev, "", "navigate needs an href", nil)
	}

	var proceeded bool
	switch {
	case ev.NewTab:
		proceeded = s.router.Link(guard.Click{Href: ev.Href, NewTab: true})
		s.emit(TraceEvent{Type: TraceNewTab, Href: ev.Href})
	case ev.Replace:
		proceeded = s.router.Replace(ev.Href)
	default:
		proceeded = s.router.Link(guard.Click{Href: ev.Href})
	}
	if !proceeded {
		s.emitBlocked(ev.Href)
	}
	return nil
}

// popState handles the browser back button. The host has already undone the
// native pop; a clean session lets it stand.
func (s *Session) popState() error {
	target := s.history.Previous()
	if s.router.PopState() {
		s.history.Back()
		return nil
	}
	s.emitBlocked(target)
	return nil
}

func (s *Session) decide(ev Event) error {
	p := s.guard.Prompt()
	if p.State == guard.StateIdle {
		return newSessionError(ErrCodeInvalidChoice, ev, "", "no dialog is open", guard.ErrNoPendingNavigation)
	}
	if !p.State.Offers(ev.Choice) {
		return newSessionError(ErrCodeInvalidChoice, ev, p.FormID,
			fmt.Sprintf("%q is not offered in the %s dialog", ev.Choice, dialogKind(p.State)), guard.ErrInvalidChoice)
	}

	// Discarding a draft also deletes what autosave stored.
	if ev.Choice == guard.ChoiceDiscard {
		if f, ok := s.forms[p.FormID]; ok && f.draft != nil {
			f.draft.Clear()
			f.data = f.schema.Defaults()
		}
	}

	s.emit(TraceEvent{
		Type:     TraceResolved,
		FormID:   p.FormID,
		Dialog:   dialogKind(p.State),
		Choice:   string(ev.Choice),
		IntentID: p.IntentID,
	})
	if err := s.guard.Resolve(ev.Choice); err != nil {
		return newSessionError(ErrCodeInvalidChoice, ev, p.FormID, "resolve", err)
	}
	return nil
}

// reload closes every form (pending drafts are flushed) and starts a fresh
// registry and guard. The history and stored drafts survive.
func (s *Session) reload() {
	for _, id := range s.order {
		s.forms[id].close()
	}
	s.forms = make(map[string]*form)
	s.order = nil
	s.resetLocked()
	s.emit(TraceEvent{Type: TraceReloaded, Href: s.history.Current()})
}

// navigated is the history's change hook: the old view's forms unmount.
func (s *Session) navigated(href string) {
	s.emit(TraceEvent{Type: TraceNavigated, Href: href})
	for _, id := range append([]string(nil), s.order...) {
		s.closeForm(id)
	}
}

func (s *Session) closeForm(id string) {
	f, ok := s.forms[id]
	if !ok {
		return
	}
	f.close()
	delete(s.forms, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.emit(TraceEvent{Type: TraceUnmounted, FormID: id})
}

func (s *Session) emitBlocked(href string) {
	p := s.guard.Prompt()
	s.emit(TraceEvent{
		Type:     TraceBlocked,
		FormID:   p.FormID,
		Href:     href,
		Dialog:   dialogKind(p.State),
		IntentID: p.IntentID,
	})
}

func (s *Session) emit(ev TraceEvent) {
	ev.Seq = s.clock.Next()
	if s.observer != nil {
		s.observer.Observe(ev)
	}
}

func (s *Session) lookup(ev Event) (*form, error) {
	fs, ok := s.catalog.Form(ev.Form)
	if !ok {
		return nil, newSessionError(ErrCodeUnknownForm, ev, "", fmt.Sprintf("no form named %q", ev.Form), nil)
	}
	id := formID(fs, ev.Record)
	f, ok := s.forms[id]
	if !ok {
		return nil, newSessionError(ErrCodeNotMounted, ev, id, "form is not open", nil)
	}
	return f, nil
}

func (s *Session) logEventError(ev Event, err error) {
	s.logger.Error("event processing failed",
		"error", err,
		"type", string(ev.Type),
		"form", ev.Form,
		"record", ev.Record,
		"href", ev.Href,
		"choice", string(ev.Choice),
	)
}

// IsDirty reports the registry's aggregate dirty state.
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	reg := s.reg
	s.mu.Unlock()
	return reg.IsDirty()
}

// Prompt returns the open dialog, if any.
func (s *Session) Prompt() guard.Prompt {
	s.mu.Lock()
	g := s.guard
	s.mu.Unlock()
	return g.Prompt()
}

// History returns the session's history.
func (s *Session) History() *History {
	return s.history
}

// Backend returns the draft backend.
func (s *Session) Backend() draft.Backend {
	return s.backend
}

// FormData returns a copy of a mounted form's data.
func (s *Session) FormData(formID string) (ir.IRObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[formID]
	if !ok {
		return nil, false
	}
	return ir.CloneObject(f.data), true
}

// Mounted returns the open form IDs in mount order.
func (s *Session) Mounted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// form is one mounted form view. Exactly one of edit and draft is set.
type form struct {
	id     string
	schema *schema.FormSchema
	data   ir.IRObject
	edit   *binding.Binding
	draft  *draft.Autosaver
}

func (f *form) close() {
	if f.edit != nil {
		f.edit.Close()
	}
	if f.draft != nil {
		f.draft.Close()
	}
}

func formID(fs *schema.FormSchema, record string) string {
	if record == "" {
		return fs.DraftKey()
	}
	return fs.EditFormID(record)
}

func dialogKind(st guard.State) string {
	if st == guard.StateAwaitingDraft {
		return registry.KindDraft.String()
	}
	return registry.KindEdit.String()
}

func merge(base, patch ir.IRObject) ir.IRObject {
	out := ir.CloneObject(base)
	if out == nil {
		out = ir.IRObject{}
	}
	for k, v := range patch {
		out[k] = ir.Clone(v)
	}
	return out
}
