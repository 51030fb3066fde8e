// Package registry is the single source of truth for which mounted forms
// hold unsaved changes.
//
// Every mounted form registers under its own form ID with a kind (Edit or
// Draft). Bindings push dirty transitions; the navigation guard reads the
// aggregate.
//
// LATEST SNAPSHOT:
// Each mutation rebuilds an immutable Snapshot under the mutex and publishes
// it through an atomic pointer before returning. Code running outside the
// normal event flow (unload prompts, history pops) calls Snapshot() or
// IsDirty() at the instant it needs the answer and never keeps a copy
// across events.
//
// Unknown-form operations (MarkDirty, UpdateSaveCallback on an ID that was
// never registered or already unregistered) are silent no-ops: late effects
// after unmount are expected.
package registry

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrEmptyFormID is returned by Register when the form ID is empty.
var ErrEmptyFormID = errors.New("registry: form id must not be empty")

// Kind selects the dirty-tracking policy and the confirmation flow.
type Kind int

const (
	// KindEdit tracks a full diff against the entity being edited.
	KindEdit Kind = iota + 1
	// KindDraft tracks an unsaved new-entity form with draft persistence.
	KindDraft
)

// String returns the lowercase name used in logs, traces and decisions.
func (k Kind) String() string {
	switch k {
	case KindEdit:
		return "edit"
	case KindDraft:
		return "draft"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "edit":
		return KindEdit, true
	case "draft":
		return KindDraft, true
	default:
		return 0, false
	}
}

// Registration is one mounted form.
type Registration struct {
	FormID      string
	Kind        Kind
	Dirty       bool
	EntityLabel string
	SaveDraft   func()
	Seq         int64 // Registration order
}

// RegisterOption configures a registration.
type RegisterOption func(*Registration)

// WithEntityLabel sets the noun used in dialog copy ("client", "job").
func WithEntityLabel(label string) RegisterOption {
	return func(r *Registration) {
		r.EntityLabel = label
	}
}

// WithSaveDraft sets the callback invoked by "save draft and leave".
func WithSaveDraft(fn func()) RegisterOption {
	return func(r *Registration) {
		r.SaveDraft = fn
	}
}

// Registry holds the registrations of one session.
//
// Thread-safety: all methods are safe for concurrent use. Mutations are
// serialized by mu; reads go through the atomic snapshot and never block.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Registration
	seq     int64
	latest  atomic.Pointer[Snapshot]
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*Registration),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.latest.Store(emptySnapshot)
	return r
}

// Register inserts or overwrites the entry for formID with Dirty=false.
func (r *Registry) Register(formID string, kind Kind, opts ...RegisterOption) error {
	if formID == "" {
		return ErrEmptyFormID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	reg := &Registration{
		FormID: formID,
		Kind:   kind,
		Seq:    r.seq,
	}
	for _, opt := range opts {
		opt(reg)
	}
	if _, exists := r.entries[formID]; exists {
		r.logger.Debug("form re-registered", "form_id", formID, "kind", kind.String())
	}
	r.entries[formID] = reg
	r.publishLocked()

	r.logger.Debug("form registered", "form_id", formID, "kind", kind.String())
	return nil
}

// Unregister removes the entry for formID. Unknown IDs are ignored.
func (r *Registry) Unregister(formID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[formID]; !ok {
		return
	}
	delete(r.entries, formID)
	r.publishLocked()

	r.logger.Debug("form unregistered", "form_id", formID)
}

// UpdateSaveCallback replaces the save-draft callback without touching the
// dirty flag. Unknown IDs are ignored.
func (r *Registry) UpdateSaveCallback(formID string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[formID]
	if !ok {
		r.logger.Debug("save callback for unknown form ignored", "form_id", formID)
		return
	}
	reg.SaveDraft = fn
	r.publishLocked()
}

// MarkDirty sets the dirty flag for formID. Unknown IDs are ignored.
func (r *Registry) MarkDirty(formID string, dirty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[formID]
	if !ok {
		r.logger.Debug("dirty mark for unknown form ignored", "form_id", formID, "dirty", dirty)
		return
	}
	if reg.Dirty == dirty {
		return
	}
	reg.Dirty = dirty
	r.publishLocked()

	r.logger.Debug("form dirty state changed", "form_id", formID, "kind", reg.Kind.String(), "dirty", dirty)
}

// ResetAll clears every dirty flag. Registrations stay in place.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for _, reg := range r.entries {
		if reg.Dirty {
			reg.Dirty = false
			changed = true
		}
	}
	if changed {
		r.publishLocked()
		r.logger.Debug("all dirty flags cleared")
	}
}

// Lookup returns the current registration for formID.
func (r *Registry) Lookup(formID string) (Registration, bool) {
	return r.Snapshot().Lookup(formID)
}

// IsDirty reports whether any registered form is dirty, as of now.
func (r *Registry) IsDirty() bool {
	return r.Snapshot().IsDirty()
}

// Snapshot returns the latest published snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.latest.Load()
}

// publishLocked rebuilds and publishes the snapshot.
// CRITICAL: must be called with mu held, before the mutating method returns.
func (r *Registry) publishLocked() {
	r.latest.Store(newSnapshot(r.entries))
}
