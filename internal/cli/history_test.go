package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formguard/internal/ir"
	"github.com/roach88/formguard/internal/store"
)

func seedDecisions(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formguard.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	for _, d := range []ir.Decision{
		{IntentID: "intent-1", Dialog: "edit", Choice: "stay", Forms: []string{"job-5"}, Seq: 3},
		{IntentID: "intent-2", Dialog: "draft", Choice: "save_and_leave", Forms: []string{"job-5", "new-quote"}, Seq: 7},
		{IntentID: "intent-3", Dialog: "draft", Choice: "discard", Forms: []string{"new-lead"}, Seq: 12},
	} {
		require.NoError(t, st.RecordDecision(context.Background(), d))
	}
	return path
}

func runHistoryCmd(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewHistoryCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestHistoryText(t *testing.T) {
	opts := &RootOptions{Format: "text", Database: seedDecisions(t)}

	out, err := runHistoryCmd(t, opts)
	require.NoError(t, err)

	want := "SEQ  DIALOG  CHOICE          FORMS            INTENT\n" +
		"3    edit    stay            job-5            intent-1\n" +
		"7    draft   save_and_leave  job-5,new-quote  intent-2\n" +
		"12   draft   discard         new-lead         intent-3\n"
	assert.Equal(t, want, out)
}

func TestHistoryFilters(t *testing.T) {
	opts := &RootOptions{Format: "json", Database: seedDecisions(t)}

	tests := []struct {
		name    string
		args    []string
		intents []string
	}{
		{"all", nil, []string{"intent-1", "intent-2", "intent-3"}},
		{"by form", []string{"--form", "job-5"}, []string{"intent-1", "intent-2"}},
		{"by choice", []string{"--choice", "discard"}, []string{"intent-3"}},
		{"limit keeps newest", []string{"--limit", "2"}, []string{"intent-2", "intent-3"}},
		{"no match", []string{"--form", "invoice-1"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runHistoryCmd(t, opts, tt.args...)
			require.NoError(t, err)

			var response struct {
				Data HistoryResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &response))
			intents := []string{}
			for _, d := range response.Data.Decisions {
				intents = append(intents, d.IntentID)
			}
			assert.Equal(t, tt.intents, intents)
			assert.Len(t, response.Data.Counts, len(uniqueChoices(response.Data.Decisions)))
		})
	}
}

func uniqueChoices(ds []ir.Decision) map[string]bool {
	out := map[string]bool{}
	for _, d := range ds {
		out[d.Choice] = true
	}
	return out
}

func TestHistoryEmpty(t *testing.T) {
	opts := &RootOptions{Format: "text", Database: filepath.Join(t.TempDir(), "fresh.db")}

	out, err := runHistoryCmd(t, opts)
	require.NoError(t, err)
	assert.Equal(t, "No decisions recorded.\n", out)
}
