// Package dialog builds the two confirmation dialogs from guard state.
//
// Dialogs are pure presentation: Edit and Draft return a View only while the
// guard awaits the matching decision, and every action maps to one guard
// choice. Hosts render the View however they like; Render writes a plain-text
// form used by the CLI and golden traces.
package dialog

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/formguard/internal/guard"
)

// defaultLabel names the form when the registration carries no entity label.
const defaultLabel = "form"

// Action is one dialog button.
type Action struct {
	Key    string // Single-letter shortcut
	Label  string
	Choice guard.Choice
}

// View is the text model of a dialog.
type View struct {
	Kind     string // "edit" or "draft"
	Title    string
	Body     string
	Actions  []Action
	IntentID string
}

// Choice returns the choice bound to key.
func (v View) Choice(key string) (guard.Choice, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, a := range v.Actions {
		if a.Key == key {
			return a.Choice, true
		}
	}
	return "", false
}

// Edit returns the "leave without saving" dialog. ok is false unless the
// guard awaits an edit decision.
func Edit(p guard.Prompt) (View, bool) {
	if p.State != guard.StateAwaitingEdit {
		return View{}, false
	}
	label := labelOf(p)
	return View{
		Kind:  "edit",
		Title: "Unsaved Changes",
		Body:  fmt.Sprintf("You have unsaved changes to this %s. If you leave now, they will be lost.", label),
		Actions: []Action{
			{Key: "s", Label: "Stay", Choice: guard.ChoiceStay},
			{Key: "l", Label: "Leave without saving", Choice: guard.ChoiceLeave},
		},
		IntentID: p.IntentID,
	}, true
}

// Draft returns the save/discard/stay dialog. ok is false unless the guard
// awaits a draft decision.
func Draft(p guard.Prompt) (View, bool) {
	if p.State != guard.StateAwaitingDraft {
		return View{}, false
	}
	label := labelOf(p)
	return View{
		Kind:  "draft",
		Title: fmt.Sprintf("Save %s Draft?", titleCase(label)),
		Body:  fmt.Sprintf("Your new %s has not been submitted. Save it as a draft to finish later, or discard it.", label),
		Actions: []Action{
			{Key: "s", Label: "Stay", Choice: guard.ChoiceStay},
			{Key: "d", Label: "Discard", Choice: guard.ChoiceDiscard},
			{Key: "a", Label: "Save and leave", Choice: guard.ChoiceSaveAndLeave},
		},
		IntentID: p.IntentID,
	}, true
}

// Active returns whichever dialog the prompt calls for.
func Active(p guard.Prompt) (View, bool) {
	if v, ok := Draft(p); ok {
		return v, true
	}
	return Edit(p)
}

// Render writes v as plain text. A zero View renders nothing.
func Render(w io.Writer, v View) error {
	if v.Title == "" {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", v.Title)
	fmt.Fprintf(&b, "%s\n", v.Body)
	for _, a := range v.Actions {
		fmt.Fprintf(&b, "  [%s] %s\n", a.Key, a.Label)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func labelOf(p guard.Prompt) string {
	label := strings.TrimSpace(p.EntityLabel)
	if label == "" {
		return defaultLabel
	}
	return strings.ToLower(label)
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}
