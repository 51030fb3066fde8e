// Package draft persists work-in-progress snapshots of new-entity forms.
//
// An Autosaver is attached to one "new" form (key "new-client"). It reports
// whether a draft was already stored when the form opened, writes the form's
// data to a Backend while it differs from the form defaults, and registers
// itself in the registry as a draft-kind form whose save callback is SaveNow.
//
// Storage is best effort: a failing backend is logged at warn level and
// never surfaces to the form.
package draft

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/formguard/internal/diff"
	"github.com/roach88/formguard/internal/ir"
	"github.com/roach88/formguard/internal/registry"
)

// ErrEmptyKey is returned by NewAutosaver when the draft key is empty.
var ErrEmptyKey = errors.New("draft: key must not be empty")

// Options configures an Autosaver.
type Options struct {
	// Key is both the storage key and the registry form ID.
	Key string

	// Enabled turns writing and dirty tracking on.
	Enabled bool

	// EntityLabel is the noun shown in the draft dialog.
	EntityLabel string

	// Defaults is the blank form. Data equal to it is not dirty.
	Defaults ir.IRObject

	// Interval coalesces writes; zero writes on every Update.
	Interval time.Duration

	Logger *slog.Logger
}

// Autosaver is the per-form draft handle. Safe for concurrent use.
type Autosaver struct {
	ctx      context.Context
	backend  Backend
	reg      *registry.Registry
	key      string
	enabled  bool
	defaults ir.IRObject
	interval time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	current    ir.IRObject
	dirty      bool
	lastDigest string
	timer      *time.Timer
	hasDraft   bool
	draftData  ir.IRObject
	closed     bool
}

// NewAutosaver loads any stored draft for opts.Key and, when enabled,
// registers the form as a draft-kind form.
func NewAutosaver(ctx context.Context, backend Backend, reg *registry.Registry, opts Options) (*Autosaver, error) {
	if opts.Key == "" {
		return nil, ErrEmptyKey
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaults := ir.CloneObject(opts.Defaults)
	if defaults == nil {
		defaults = ir.IRObject{}
	}

	a := &Autosaver{
		ctx:      ctx,
		backend:  backend,
		reg:      reg,
		key:      opts.Key,
		enabled:  opts.Enabled,
		defaults: defaults,
		interval: opts.Interval,
		logger:   logger,
	}

	rec, err := backend.Load(ctx, opts.Key)
	switch {
	case err == nil:
		a.hasDraft = true
		a.draftData = rec.Data
		a.lastDigest = rec.Digest
		logger.Debug("draft found", "key", opts.Key, "version", rec.Version)
	case errors.Is(err, ErrNotFound):
	default:
		logger.Warn("draft load failed", "key", opts.Key, "error", err)
	}

	if !a.enabled {
		return a, nil
	}
	if err := reg.Register(opts.Key, registry.KindDraft,
		registry.WithEntityLabel(opts.EntityLabel),
		registry.WithSaveDraft(a.SaveNow),
	); err != nil {
		return nil, err
	}
	return a, nil
}

// Key returns the draft key.
func (a *Autosaver) Key() string {
	return a.key
}

// HasDraft reports whether a draft was stored when the form opened and has
// not been erased since.
func (a *Autosaver) HasDraft() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasDraft
}

// DraftData returns a copy of the stored draft, or nil.
func (a *Autosaver) DraftData() ir.IRObject {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ir.CloneObject(a.draftData)
}

// IsDirty reports whether the form holds non-default data.
func (a *Autosaver) IsDirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

// Restore feeds the stored draft back in as the form's data.
// Returns false when there is nothing to restore.
func (a *Autosaver) Restore() (ir.IRObject, bool) {
	data := a.DraftData()
	if data == nil {
		return nil, false
	}
	a.Update(data)
	return data, true
}

// Update records the form's current data. While the data differs from the
// defaults the form is dirty and the data is persisted. Going back to the
// defaults erases the stored draft.
func (a *Autosaver) Update(data ir.IRObject) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled || a.closed {
		return
	}

	wasDirty := a.dirty
	a.current = ir.CloneObject(data)
	a.dirty = diff.IsDirty(a.current, a.defaults)
	a.reg.MarkDirty(a.key, a.dirty)
	if !a.dirty {
		if wasDirty {
			a.stopTimerLocked()
			a.eraseLocked()
		}
		return
	}

	if a.interval <= 0 {
		a.persistLocked()
		return
	}
	if a.timer == nil {
		a.timer = time.AfterFunc(a.interval, a.flush)
	}
}

// SaveNow persists the current data immediately. It is the registry's
// save-draft callback.
func (a *Autosaver) SaveNow() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled || a.closed {
		return
	}
	a.stopTimerLocked()
	if a.current == nil || !a.dirty {
		return
	}
	a.persistLocked()
}

// Clear deletes the stored draft and marks the form clean. Call it after a
// successful submission and when the user discards the draft.
func (a *Autosaver) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopTimerLocked()
	if err := a.backend.Delete(a.ctx, a.key); err != nil {
		a.logger.Warn("draft delete failed", "key", a.key, "error", err)
	}
	a.hasDraft = false
	a.draftData = nil
	a.lastDigest = ""
	a.current = nil
	a.dirty = false
	if a.enabled && !a.closed {
		a.reg.MarkDirty(a.key, false)
	}
	a.logger.Debug("draft cleared", "key", a.key)
}

// Close flushes a pending write, stops the timer and unregisters the form.
// Safe to call more than once.
func (a *Autosaver) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	if a.stopTimerLocked() && a.dirty {
		a.persistLocked()
	}
	a.closed = true
	if a.enabled {
		a.reg.Unregister(a.key)
	}
}

func (a *Autosaver) flush() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.timer = nil
	if a.closed || !a.dirty {
		return
	}
	a.persistLocked()
}

// stopTimerLocked cancels a pending write. Reports whether one was pending.
// A timer that already fired but is waiting on mu still counts: flush
// clears a.timer only once it holds the lock.
func (a *Autosaver) stopTimerLocked() bool {
	if a.timer == nil {
		return false
	}
	a.timer.Stop()
	a.timer = nil
	return true
}

// eraseLocked deletes the stored draft once the form is back to its
// defaults. Must be called with mu held.
func (a *Autosaver) eraseLocked() {
	if a.lastDigest == "" && !a.hasDraft {
		return
	}
	if err := a.backend.Delete(a.ctx, a.key); err != nil {
		a.logger.Warn("draft delete failed", "key", a.key, "error", err)
		return
	}
	a.lastDigest = ""
	a.hasDraft = false
	a.draftData = nil
	a.logger.Debug("draft erased", "key", a.key)
}

// persistLocked writes the current data unless it matches the last write.
// CRITICAL: must be called with mu held.
func (a *Autosaver) persistLocked() {
	digest, err := ir.DraftDigest(a.key, a.current)
	if err != nil {
		a.logger.Warn("draft digest failed", "key", a.key, "error", err)
		return
	}
	if digest == a.lastDigest {
		return
	}

	rec, err := a.backend.Save(a.ctx, a.key, a.current)
	if err != nil {
		a.logger.Warn("draft save failed", "key", a.key, "error", err)
		return
	}
	a.lastDigest = digest
	a.logger.Debug("draft saved", "key", a.key, "version", rec.Version)
}
