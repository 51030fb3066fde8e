package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	fgdiff "github.com/roach88/formguard/internal/diff"
	"github.com/roach88/formguard/internal/ir"
)

// DiffResult is the output of the diff command.
type DiffResult struct {
	Dirty   bool                 `json:"dirty"`
	Changes []fgdiff.FieldChange `json:"changes"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	var exitCode bool

	cmd := &cobra.Command{
		Use:   "diff <baseline.json> <current.json>",
		Short: "Compare two form snapshots",
		Long: `Compare two form snapshots the way the guard decides dirtiness.

Empty strings and nulls are the same as a missing field, and arrays are
compared without regard to order. Each changed top-level field is listed
as added, removed or modified.

Examples:
  formguard diff saved.json edited.json
  formguard diff saved.json edited.json --exit-code
  formguard diff saved.json edited.json --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			current, err := readSnapshot(args[1])
			if err != nil {
				return err
			}

			changes := fgdiff.Changes(current, baseline)
			result := DiffResult{Dirty: len(changes) > 0, Changes: changes}
			if result.Changes == nil {
				result.Changes = []fgdiff.FieldChange{}
			}

			out := newFormatter(rootOpts, cmd)
			if out.JSON() {
				if err := out.Success(result); err != nil {
					return err
				}
			} else if err := writeChanges(cmd, changes); err != nil {
				return err
			}

			if exitCode && result.Dirty {
				return NewExitError(ExitFailure, fmt.Sprintf("%d field(s) changed", len(changes)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "exit with status 1 when the snapshots differ")

	return cmd
}

func readSnapshot(path string) (ir.IRObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}
	obj, err := ir.ParseObject(data)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid snapshot %s", path), err)
	}
	return obj, nil
}

func writeChanges(cmd *cobra.Command, changes []fgdiff.FieldChange) error {
	w := cmd.OutOrStdout()
	if len(changes) == 0 {
		fmt.Fprintln(w, "No changes.")
		return nil
	}
	for _, c := range changes {
		switch c.Type {
		case fgdiff.Added:
			fmt.Fprintf(w, "+ %s: %s\n", c.Field, renderValue(c.After))
		case fgdiff.Removed:
			fmt.Fprintf(w, "- %s: %s\n", c.Field, renderValue(c.Before))
		default:
			fmt.Fprintf(w, "~ %s: %s -> %s\n", c.Field, renderValue(c.Before), renderValue(c.After))
		}
	}
	return nil
}

// renderValue prints a value as canonical JSON.
func renderValue(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
