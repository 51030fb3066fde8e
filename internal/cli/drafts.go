package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/formguard/internal/diff"
	"github.com/roach88/formguard/internal/draft"
	"github.com/roach88/formguard/internal/ir"
)

// DraftSummary is one stored draft in list output.
type DraftSummary struct {
	Key     string   `json:"key"`
	Version int64    `json:"version"`
	Digest  string   `json:"digest"`
	Fields  []string `json:"fields"`
}

// NewDraftsCommand creates the drafts command group.
func NewDraftsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Inspect and clear autosaved drafts",
		Long: `Inspect and clear the drafts autosaved for new forms.

Drafts are read from the configured backend (--backend, default sqlite).

Examples:
  formguard drafts list --db ./formguard.db
  formguard drafts show new-client
  formguard drafts clear new-quote
  formguard drafts clear --all --backend redis`,
	}

	cmd.AddCommand(newDraftsListCommand(rootOpts))
	cmd.AddCommand(newDraftsShowCommand(rootOpts))
	cmd.AddCommand(newDraftsClearCommand(rootOpts))

	return cmd
}

func newDraftsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored drafts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, closeFn, err := openDrafts(rootOpts)
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := backend.List(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list drafts", err)
			}

			summaries := make([]DraftSummary, len(records))
			for i, rec := range records {
				summaries[i] = DraftSummary{
					Key:     rec.Key,
					Version: rec.Version,
					Digest:  rec.Digest,
					Fields:  filledFields(rec.Data),
				}
			}

			out := newFormatter(rootOpts, cmd)
			if out.JSON() {
				return out.Success(summaries)
			}
			if len(summaries) == 0 {
				return out.Success("No drafts stored.")
			}
			rows := make([][]string, len(summaries))
			for i, s := range summaries {
				rows[i] = []string{s.Key, strconv.FormatInt(s.Version, 10), strings.Join(s.Fields, ",")}
			}
			return out.Table([]string{"key", "version", "fields"}, rows)
		},
	}
}

func newDraftsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <key>",
		Short:         "Print a stored draft",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, closeFn, err := openDrafts(rootOpts)
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := backend.Load(cmd.Context(), args[0])
			if errors.Is(err, draft.ErrNotFound) {
				return NewExitError(ExitFailure, fmt.Sprintf("no draft stored under %s", args[0]))
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load draft", err)
			}

			if out := newFormatter(rootOpts, cmd); out.JSON() {
				return out.Success(rec)
			}

			data, err := ir.MarshalCanonical(rec.Data)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "key:     %s\n", rec.Key)
			fmt.Fprintf(w, "version: %d\n", rec.Version)
			fmt.Fprintf(w, "digest:  %s\n", rec.Digest)
			fmt.Fprintf(w, "data:    %s\n", data)
			return nil
		},
	}
}

func newDraftsClearCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:           "clear [key...]",
		Short:         "Delete stored drafts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return NewExitError(ExitCommandError, "give draft keys or --all, not both")
			}

			backend, closeFn, err := openDrafts(rootOpts)
			if err != nil {
				return err
			}
			defer closeFn()

			keys := args
			if all {
				keys, err = draftKeys(cmd.Context(), backend)
				if err != nil {
					return err
				}
			}

			for _, key := range keys {
				if err := backend.Delete(cmd.Context(), key); err != nil {
					return WrapExitError(ExitCommandError, fmt.Sprintf("failed to delete %s", key), err)
				}
				rootOpts.logger().Info("draft cleared", "key", key)
			}

			out := newFormatter(rootOpts, cmd)
			if out.JSON() {
				return out.Success(map[string]any{"cleared": keys})
			}
			return out.Success(fmt.Sprintf("Cleared %d draft(s).", len(keys)))
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "delete every stored draft")

	return cmd
}

func draftKeys(ctx context.Context, lister draft.Lister) ([]string, error) {
	records, err := lister.List(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list drafts", err)
	}
	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = rec.Key
	}
	return keys, nil
}

// filledFields lists the fields a draft actually holds, ignoring blanks.
func filledFields(data ir.IRObject) []string {
	normalized, _ := diff.Normalize(data).(ir.IRObject)
	return normalized.SortedKeys()
}
