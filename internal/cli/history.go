package cli

import (
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/formguard/internal/ir"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Form   string // only decisions that involved this form ID
	Choice string
	Limit  int // most recent N; zero means all
}

// HistoryResult holds the history output.
type HistoryResult struct {
	Decisions []ir.Decision  `json:"decisions"`
	Counts    map[string]int `json:"counts"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded navigation decisions",
		Long: `Show the decisions users made in unsaved-changes dialogs, oldest first.

Each row is one resolved dialog: which dialog was shown, the choice, and the
dirty forms at the time.

Examples:
  formguard history --db ./formguard.db
  formguard history --form new-quote
  formguard history --choice discard --limit 20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Form, "form", "", "only decisions involving this form ID")
	cmd.Flags().StringVar(&opts.Choice, "choice", "", "only decisions with this choice")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show only the most recent N decisions")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	all, err := st.ReadDecisions(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read decisions", err)
	}

	decisions := filterDecisions(all, opts)
	result := HistoryResult{Decisions: decisions, Counts: map[string]int{}}
	for _, d := range decisions {
		result.Counts[d.Choice]++
	}

	out := newFormatter(opts.RootOptions, cmd)
	if out.JSON() {
		return out.Success(result)
	}
	if len(decisions) == 0 {
		return out.Success("No decisions recorded.")
	}
	rows := make([][]string, len(decisions))
	for i, d := range decisions {
		rows[i] = []string{strconv.FormatInt(d.Seq, 10), d.Dialog, d.Choice, strings.Join(d.Forms, ","), d.IntentID}
	}
	return out.Table([]string{"seq", "dialog", "choice", "forms", "intent"}, rows)
}

func filterDecisions(all []ir.Decision, opts *HistoryOptions) []ir.Decision {
	out := []ir.Decision{}
	for _, d := range all {
		if opts.Form != "" && !slices.Contains(d.Forms, opts.Form) {
			continue
		}
		if opts.Choice != "" && d.Choice != opts.Choice {
			continue
		}
		out = append(out, d)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[len(out)-opts.Limit:]
	}
	return out
}
