// Package guard decides whether a navigation may proceed.
//
// Every route change (link click, programmatic push, history pop) goes
// through ConfirmNavigation. With nothing dirty the navigation runs at once.
// Otherwise it is parked as the single pending intent and the guard moves to
// an awaiting state; the dialog layer renders from Prompt() and feeds the
// user's choice back through Resolve.
//
// STATE MACHINE:
//
//	Idle -> AwaitingDraft   ConfirmNavigation, some draft form dirty
//	Idle -> AwaitingEdit    ConfirmNavigation, only edit forms dirty
//	AwaitingEdit  -> Idle   Stay | Leave
//	AwaitingDraft -> Idle   Stay | Discard | SaveAndLeave
//
// ConfirmNavigation while awaiting replaces the pending intent and keeps the
// open dialog. Leave, Discard and SaveAndLeave clear every dirty flag in the
// registry, not only the form that opened the dialog.
//
// The guard reads the registry's latest snapshot at the instant of each call.
// Callbacks (save draft, proceed) run after the guard lock is released.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/formguard/internal/ir"
	"github.com/roach88/formguard/internal/registry"
)

var (
	// ErrNoPendingNavigation is returned by Resolve when no dialog is open.
	ErrNoPendingNavigation = errors.New("guard: no pending navigation")

	// ErrInvalidChoice is returned by Resolve for a choice the open dialog
	// does not offer.
	ErrInvalidChoice = errors.New("guard: choice not offered by the open dialog")
)

// recordTimeout bounds a single decision-log write.
const recordTimeout = 2 * time.Second

// State is the guard's dialog state.
type State int

const (
	StateIdle State = iota
	StateAwaitingEdit
	StateAwaitingDraft
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingEdit:
		return "awaiting_edit"
	case StateAwaitingDraft:
		return "awaiting_draft"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Choice is a user's answer to a confirmation dialog.
type Choice string

const (
	ChoiceStay         Choice = "stay"
	ChoiceLeave        Choice = "leave"
	ChoiceDiscard      Choice = "discard"
	ChoiceSaveAndLeave Choice = "save_and_leave"
)

// ParseChoice validates a choice name.
func ParseChoice(s string) (Choice, error) {
	switch c := Choice(s); c {
	case ChoiceStay, ChoiceLeave, ChoiceDiscard, ChoiceSaveAndLeave:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown choice %q", ErrInvalidChoice, s)
}

// Offers reports whether the dialog shown in state s includes choice c.
func (s State) Offers(c Choice) bool {
	switch s {
	case StateAwaitingEdit:
		return c == ChoiceStay || c == ChoiceLeave
	case StateAwaitingDraft:
		return c == ChoiceStay || c == ChoiceDiscard || c == ChoiceSaveAndLeave
	default:
		return false
	}
}

// Prompt describes the open dialog. The zero Prompt (StateIdle) means no
// dialog.
type Prompt struct {
	State       State
	FormID      string // Form that chose the dialog
	EntityLabel string
	IntentID    string
}

// Recorder receives resolved decisions. The SQLite store implements it.
type Recorder interface {
	RecordDecision(ctx context.Context, d ir.Decision) error
}

// Guard is the navigation guard for one session. Safe for concurrent use.
type Guard struct {
	reg      *registry.Registry
	ids      IDGenerator
	recorder Recorder
	seq      func() int64
	logger   *slog.Logger

	mu        sync.Mutex
	prompt    Prompt
	pending   func()
	saveDraft func() // Captured when the draft dialog opened
}

// Option configures a Guard.
type Option func(*Guard)

// WithIDGenerator sets the intent ID generator (default UUIDv7).
func WithIDGenerator(gen IDGenerator) Option {
	return func(g *Guard) {
		g.ids = gen
	}
}

// WithRecorder logs every resolved decision to rec.
func WithRecorder(rec Recorder) Option {
	return func(g *Guard) {
		g.recorder = rec
	}
}

// WithSequencer stamps decisions with seq() instead of an internal counter.
func WithSequencer(seq func() int64) Option {
	return func(g *Guard) {
		g.seq = seq
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = l
	}
}

// New creates a guard over reg.
func New(reg *registry.Registry, opts ...Option) *Guard {
	var counter atomic.Int64
	g := &Guard{
		reg:    reg,
		ids:    UUIDv7Generator{},
		seq:    func() int64 { return counter.Add(1) },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ConfirmNavigation runs proceed now when nothing is dirty and returns true.
// Otherwise proceed becomes the pending intent, a dialog opens (or stays
// open) and it returns false.
func (g *Guard) ConfirmNavigation(proceed func()) bool {
	return g.confirm(proceed, true)
}

// confirm implements ConfirmNavigation. With runIfClean false, a clean
// registry returns true without calling proceed; the history pop path uses
// this because the browser already navigated.
func (g *Guard) confirm(proceed func(), runIfClean bool) bool {
	if proceed == nil {
		proceed = func() {}
	}

	snap := g.reg.Snapshot()
	if !snap.IsDirty() {
		if runIfClean {
			proceed()
		}
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	intentID := g.ids.Generate()
	g.pending = proceed

	if g.prompt.State != StateIdle {
		g.logger.Debug("pending navigation replaced",
			"state", g.prompt.State.String(),
			"previous_intent", g.prompt.IntentID,
			"intent_id", intentID,
		)
		g.prompt.IntentID = intentID
		return false
	}

	if draft, ok := snap.ActiveDraft(); ok {
		g.prompt = Prompt{
			State:       StateAwaitingDraft,
			FormID:      draft.FormID,
			EntityLabel: draft.EntityLabel,
			IntentID:    intentID,
		}
		g.saveDraft = draft.SaveDraft
	} else {
		form := firstDirty(snap)
		g.prompt = Prompt{
			State:       StateAwaitingEdit,
			FormID:      form.FormID,
			EntityLabel: form.EntityLabel,
			IntentID:    intentID,
		}
		g.saveDraft = nil
	}

	g.logger.Debug("navigation blocked",
		"state", g.prompt.State.String(),
		"form_id", g.prompt.FormID,
		"intent_id", intentID,
	)
	return false
}

func firstDirty(snap *registry.Snapshot) registry.Registration {
	if edit, ok := snap.ActiveEdit(); ok {
		return edit
	}
	for _, reg := range snap.Entries() {
		if reg.Dirty {
			return reg
		}
	}
	return registry.Registration{}
}

// Resolve applies the user's choice to the open dialog.
func (g *Guard) Resolve(choice Choice) error {
	g.mu.Lock()
	prompt := g.prompt
	if prompt.State == StateIdle {
		g.mu.Unlock()
		return ErrNoPendingNavigation
	}
	if !prompt.State.Offers(choice) {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s in %s", ErrInvalidChoice, choice, prompt.State)
	}
	proceed := g.pending
	captured := g.saveDraft
	g.prompt = Prompt{}
	g.pending = nil
	g.saveDraft = nil
	g.mu.Unlock()

	snap := g.reg.Snapshot()
	g.record(prompt, choice, snap.DirtyForms())

	g.logger.Debug("navigation resolved",
		"choice", string(choice),
		"form_id", prompt.FormID,
		"intent_id", prompt.IntentID,
	)

	if choice == ChoiceStay {
		return nil
	}

	if choice == ChoiceSaveAndLeave {
		// Prefer the form's current callback; it may have been replaced
		// since the dialog opened.
		save := captured
		if reg, ok := snap.Lookup(prompt.FormID); ok && reg.SaveDraft != nil {
			save = reg.SaveDraft
		}
		if save != nil {
			save()
		} else {
			g.logger.Warn("no save-draft callback", "form_id", prompt.FormID)
		}
	}

	g.reg.ResetAll()
	proceed()
	return nil
}

// Stay closes the dialog and drops the pending navigation.
func (g *Guard) Stay() error { return g.Resolve(ChoiceStay) }

// Leave abandons every dirty form and runs the pending navigation.
func (g *Guard) Leave() error { return g.Resolve(ChoiceLeave) }

// Discard abandons the draft and runs the pending navigation.
func (g *Guard) Discard() error { return g.Resolve(ChoiceDiscard) }

// SaveAndLeave saves the draft, then behaves like Discard.
func (g *Guard) SaveAndLeave() error { return g.Resolve(ChoiceSaveAndLeave) }

// AllowNavigation clears every dirty flag so later navigations pass.
func (g *Guard) AllowNavigation() {
	g.reg.ResetAll()
}

// BeforeUnload reports whether closing the tab should show the browser's
// generic prompt.
func (g *Guard) BeforeUnload() bool {
	return g.reg.IsDirty()
}

// Prompt returns the open dialog, if any.
func (g *Guard) Prompt() Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompt
}

// State returns the current dialog state.
func (g *Guard) State() State {
	return g.Prompt().State
}

func (g *Guard) record(p Prompt, choice Choice, forms []string) {
	if g.recorder == nil {
		return
	}
	if forms == nil {
		forms = []string{}
	}
	dialog := registry.KindEdit.String()
	if p.State == StateAwaitingDraft {
		dialog = registry.KindDraft.String()
	}
	d := ir.Decision{
		IntentID: p.IntentID,
		Dialog:   dialog,
		Choice:   string(choice),
		Forms:    forms,
		Seq:      g.seq(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := g.recorder.RecordDecision(ctx, d); err != nil {
		g.logger.Warn("decision not recorded", "intent_id", p.IntentID, "error", err)
	}
}
