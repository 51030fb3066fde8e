// Package engine runs a browser tab's form session.
//
// A Session wires the pieces together the way a single page does: forms
// mount (edit forms through a binding, new forms through a draft autosaver),
// every route change goes through the guard's router, and the user's answer
// to a confirmation dialog feeds back into the guard.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// UI events are applied one at a time, either synchronously through Dispatch
// or posted with Enqueue from any goroutine and drained by Run. This mirrors
// the browser's cooperative event loop: no two events interleave, and a
// handler that reads dirty state sees the result of every earlier event.
//
// Event Processing Flow:
// 1. Events arrive (mount, change, save, restore, unmount, navigate,
// popstate, decide, unload, reload)
// 2. The handler validates form data against the schema catalog
// 3. Bindings and autosavers update the registry
// 4. Navigation asks the guard; a blocked navigation opens a dialog
// 5. Every observable effect is reported to the Observer
//
// Navigating away unmounts every open form, as a route change does. Reload
// closes the forms (flushing pending drafts) and starts a fresh registry and
// guard; stored drafts survive it.
//
// Logical Clock:
// Trace events and recorded decisions are stamped from one monotonic
// Sequencer. Wall-clock time never orders anything.
package engine
