// Package binding ties one form's live data to the registry.
//
// A Binding captures the entity being edited once, as its baseline, and on
// every Update recomputes dirtiness with the diff engine and pushes the
// result to the registry. MarkClean is called by the save handler right
// before navigating away after a successful save; it also rebases the
// baseline so later edits compare against the saved data.
//
// A disabled binding (brand-new entities that are not persisted yet) never
// registers and has no effect.
package binding

import (
	"log/slog"
	"sync"

	"github.com/roach88/formguard/internal/diff"
	"github.com/roach88/formguard/internal/ir"
	"github.com/roach88/formguard/internal/registry"
)

// Options configures a Binding.
type Options struct {
	// FormID identifies the form in the registry ("job-rec123").
	FormID string

	// Initial is the entity being edited. It is cloned once at New and
	// never re-read.
	Initial ir.IRObject

	// Enabled turns tracking on. A disabled binding does nothing.
	Enabled bool

	// Kind is the registry kind; zero means registry.KindEdit.
	Kind registry.Kind

	// EntityType is the noun shown in dialogs ("job", "client").
	EntityType string

	// OnSaveDraft is registered as the save-draft callback for KindDraft.
	OnSaveDraft func()

	Logger *slog.Logger
}

// Binding is the per-form handle. Safe for concurrent use.
type Binding struct {
	reg     *registry.Registry
	formID  string
	enabled bool
	logger  *slog.Logger

	mu       sync.Mutex
	baseline ir.IRObject
	current  ir.IRObject
	dirty    bool
	closed   bool
}

// New creates a binding and, when enabled, registers it.
func New(reg *registry.Registry, opts Options) (*Binding, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	kind := opts.Kind
	if kind == 0 {
		kind = registry.KindEdit
	}

	baseline := ir.CloneObject(opts.Initial)
	if baseline == nil {
		baseline = ir.IRObject{}
	}

	b := &Binding{
		reg:      reg,
		formID:   opts.FormID,
		enabled:  opts.Enabled,
		logger:   logger,
		baseline: baseline,
		current:  ir.CloneObject(baseline),
	}
	if !b.enabled {
		return b, nil
	}

	regOpts := []registry.RegisterOption{registry.WithEntityLabel(opts.EntityType)}
	if opts.OnSaveDraft != nil {
		regOpts = append(regOpts, registry.WithSaveDraft(opts.OnSaveDraft))
	}
	if err := reg.Register(opts.FormID, kind, regOpts...); err != nil {
		return nil, err
	}
	return b, nil
}

// FormID returns the registry key of this binding.
func (b *Binding) FormID() string {
	return b.formID
}

// Enabled reports whether the binding tracks anything.
func (b *Binding) Enabled() bool {
	return b.enabled
}

// Update records the form's current data and pushes its dirty state.
// Returns the local dirty state.
func (b *Binding) Update(current ir.IRObject) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled || b.closed {
		return false
	}

	b.current = ir.CloneObject(current)
	dirty := diff.IsDirty(b.current, b.baseline)
	if dirty != b.dirty {
		b.logger.Debug("form changed",
			"form_id", b.formID,
			"dirty", dirty,
			"fields", diff.ChangedFields(b.current, b.baseline),
		)
	}
	b.dirty = dirty
	b.reg.MarkDirty(b.formID, dirty)
	return dirty
}

// MarkClean marks the form clean and makes the last Update the new baseline.
func (b *Binding) MarkClean() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled || b.closed {
		return
	}

	b.baseline = ir.CloneObject(b.current)
	if b.baseline == nil {
		b.baseline = ir.IRObject{}
	}
	b.dirty = false
	b.reg.MarkDirty(b.formID, false)
}

// IsDirty reports this form's own dirty state.
func (b *Binding) IsDirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

// Baseline returns a copy of the data the form is compared against.
func (b *Binding) Baseline() ir.IRObject {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ir.CloneObject(b.baseline)
}

// SetSaveDraft replaces the save-draft callback in the registry.
func (b *Binding) SetSaveDraft(fn func()) {
	if !b.enabled {
		return
	}
	b.reg.UpdateSaveCallback(b.formID, fn)
}

// BlockUnload reports whether closing the tab should prompt. It reflects
// every form in the registry, not only this one.
func (b *Binding) BlockUnload() bool {
	if !b.enabled {
		return false
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	return !closed && b.reg.IsDirty()
}

// Close unregisters the form. Safe to call more than once.
func (b *Binding) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled || b.closed {
		return
	}
	b.closed = true
	b.reg.Unregister(b.formID)
}
