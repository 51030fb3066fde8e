// Package harness runs scripted form sessions and checks the outcome.
//
// A scenario is a YAML file: an optional set of stored drafts, a flow of UI
// events (mount, change, navigate, decide, reload, ...) and assertions on
// the result. Run drives a real engine.Session over a fresh in-memory SQLite
// store, which serves as both the draft backend and the decision log.
// A deterministic clock and intent IDs make the trace byte-identical across
// runs, so it can be compared against a golden file.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/formguard/internal/engine"
	"github.com/roach88/formguard/internal/ir"
	"github.com/roach88/formguard/internal/schema"
	"github.com/roach88/formguard/internal/store"
	"github.com/roach88/formguard/internal/testutil"
)

// Harness is the test execution engine for one scenario.
type Harness struct {
	store   *store.Store
	session *engine.Session
	trace   *engine.TraceRecorder
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and store the setup drafts
// 2. Load the form catalog
// 3. Apply flow steps, checking expected errors
// 4. Evaluate assertions
// 5. Return result with pass/fail, trace, and errors
//
// Step and assertion failures are reported in the Result; an error return
// means the scenario could not run at all.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	for i, d := range scenario.Drafts {
		data, err := ir.ObjectFromGo(d.Data)
		if err != nil {
			return nil, fmt.Errorf("drafts[%d]: %w", i, err)
		}
		if _, err := st.Save(ctx, d.Key, data); err != nil {
			return nil, fmt.Errorf("drafts[%d]: %w", i, err)
		}
	}

	catalog, err := loadCatalog(scenario.Schema)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:  st,
		trace:  &engine.TraceRecorder{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.session = engine.NewSession(catalog, st,
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithIDGenerator(testutil.NewSequenceIDGenerator("")),
		engine.WithRecorder(st),
		engine.WithObserver(h.trace),
		engine.WithLogger(h.logger),
		engine.WithStartURL(scenario.Start),
	)
	defer h.session.Close()

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, ev := range h.trace.Events() {
		result.AddTrace(ev)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Session: h.session,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func loadCatalog(dir string) (*schema.Catalog, error) {
	if dir == "" {
		return schema.Default()
	}
	catalog, err := schema.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return catalog, nil
}

// executeFlow applies every step. A step that fails unexpectedly, or
// succeeds when an error was expected, is recorded and the flow goes on.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		ev, err := step.toEvent()
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		err = h.session.Dispatch(ctx, ev)
		switch {
		case step.ExpectError != "":
			got := engine.ErrorCode(err)
			if string(got) != step.ExpectError {
				result.AddError(fmt.Sprintf("flow[%d] %s: expected error %s, got %v", i, step.Event, step.ExpectError, err))
			}
		case err != nil:
			result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, step.Event, err))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"event", step.Event,
			"form", step.Form,
			"error", err,
		)
	}
	return nil
}
