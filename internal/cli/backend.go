package cli

import (
	"github.com/roach88/formguard/internal/config"
	"github.com/roach88/formguard/internal/draft"
	"github.com/roach88/formguard/internal/store"
)

// draftStore is a backend that can also enumerate its drafts. All three
// backends qualify.
type draftStore interface {
	draft.Backend
	draft.Lister
}

// openDrafts opens the configured draft backend. The returned func releases
// it.
func openDrafts(opts *RootOptions) (draftStore, func() error, error) {
	cfg := opts.Config
	switch cfg.DraftBackend {
	case config.BackendRedis:
		b, err := draft.NewRedisBackend(cfg.RedisURL, draft.WithTTL(cfg.DraftTTL))
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		return b, b.Close, nil
	case config.BackendMemory:
		return draft.NewMemoryBackend(), func() error { return nil }, nil
	default:
		st, err := openStore(opts)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
}

// openStore opens the SQLite database that holds drafts and the decision
// log.
func openStore(opts *RootOptions) (*store.Store, error) {
	path := opts.Config.DBPath
	if opts.Database != "" {
		path = opts.Database
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database: set --db or FORMGUARD_DB")
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
