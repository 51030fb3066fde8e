package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/formguard/internal/draft"
	"github.com/roach88/formguard/internal/ir"
)

// Load returns the draft stored under key, or draft.ErrNotFound.
func (s *Store) Load(ctx context.Context, key string) (ir.DraftRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, data, digest, version
		FROM drafts
		WHERE key = ?
	`, key)

	rec, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.DraftRecord{}, draft.ErrNotFound
	}
	if err != nil {
		return ir.DraftRecord{}, fmt.Errorf("load draft %q: %w", key, err)
	}
	return rec, nil
}

// List returns every stored draft ordered by key.
// Returns an empty slice (not nil) when there are none.
func (s *Store) List(ctx context.Context) ([]ir.DraftRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, data, digest, version
		FROM drafts
		ORDER BY key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query drafts: %w", err)
	}
	defer rows.Close()

	drafts := []ir.DraftRecord{}
	for rows.Next() {
		rec, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}
	return drafts, nil
}

// ReadDecisions returns the decision log ordered by seq, then id.
// Returns an empty slice (not nil) when the log is empty.
func (s *Store) ReadDecisions(ctx context.Context) ([]ir.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT intent_id, dialog, choice, forms, seq
		FROM navigation_decisions
		ORDER BY seq ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	decisions := []ir.Decision{}
	for rows.Next() {
		var (
			d         ir.Decision
			formsJSON string
		)
		if err := rows.Scan(&d.IntentID, &d.Dialog, &d.Choice, &formsJSON, &d.Seq); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if d.Forms, err = unmarshalForms(formsJSON); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return decisions, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (ir.DraftRecord, error) {
	var (
		rec      ir.DraftRecord
		dataJSON string
	)
	if err := row.Scan(&rec.Key, &dataJSON, &rec.Digest, &rec.Version); err != nil {
		return ir.DraftRecord{}, err
	}
	data, err := unmarshalData(dataJSON)
	if err != nil {
		return ir.DraftRecord{}, err
	}
	rec.Data = data
	return rec, nil
}
