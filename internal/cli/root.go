package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/formguard/internal/config"
	"github.com/roach88/formguard/internal/ir"
)

// RootOptions holds global flags for all commands. Config is filled from
// the environment before any subcommand runs; flags override it.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string
	Backend  string
	RedisURL string

	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the formguard CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "formguard",
		Short:   "formguard - unsaved changes protection for CRM forms",
		Long:    "Inspect form drafts and navigation decisions, and run scripted form sessions against the guard.",
		Version: ir.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $FORMGUARD_DB)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "draft backend: sqlite, redis or memory (default $FORMGUARD_DRAFT_BACKEND)")
	cmd.PersistentFlags().StringVar(&opts.RedisURL, "redis-url", "", "Redis URL for the redis backend (default $FORMGUARD_REDIS_URL)")

	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewDraftsCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

// resolve loads the environment config, applies flag overrides and builds
// the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg := config.Load()
	if o.Database != "" {
		cfg.DBPath = o.Database
	}
	if o.Backend != "" {
		cfg.DraftBackend = o.Backend
	}
	if o.RedisURL != "" {
		cfg.RedisURL = o.RedisURL
	}
	if err := cfg.Validate(); err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}
	o.Config = cfg

	level := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// logger returns the configured logger, or one that discards everything
// when a subcommand runs without the root.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
