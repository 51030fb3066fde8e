package store

import (
	"context"
	"fmt"

	"github.com/roach88/formguard/internal/ir"
	"github.com/roach88/formguard/internal/registry"
)

// Save writes the draft stored under key, overwriting any previous
// snapshot. The version starts at 1 and is incremented on every write.
//
// Data is serialized to canonical JSON per RFC 8785.
func (s *Store) Save(ctx context.Context, key string, data ir.IRObject) (ir.DraftRecord, error) {
	dataJSON, err := marshalData(data)
	if err != nil {
		return ir.DraftRecord{}, fmt.Errorf("save draft: %w", err)
	}
	digest, err := ir.DraftDigest(key, data)
	if err != nil {
		return ir.DraftRecord{}, fmt.Errorf("save draft: %w", err)
	}

	var version int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO drafts (key, data, digest, version)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			digest = excluded.digest,
			version = drafts.version + 1
		RETURNING version
	`, key, dataJSON, digest).Scan(&version)
	if err != nil {
		return ir.DraftRecord{}, fmt.Errorf("save draft: %w", err)
	}

	stored := ir.CloneObject(data)
	if stored == nil {
		stored = ir.IRObject{}
	}
	return ir.DraftRecord{
		Key:     key,
		Data:    stored,
		Digest:  digest,
		Version: version,
	}, nil
}

// Delete removes the draft stored under key. Deleting a missing key is not
// an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// RecordDecision appends a resolved dialog to the decision log. The dialog
// must name a form kind ("edit" or "draft").
func (s *Store) RecordDecision(ctx context.Context, d ir.Decision) error {
	if _, ok := registry.ParseKind(d.Dialog); !ok {
		return fmt.Errorf("record decision: unknown dialog %q", d.Dialog)
	}
	formsJSON, err := marshalForms(d.Forms)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO navigation_decisions (intent_id, dialog, choice, forms, seq)
		VALUES (?, ?, ?, ?, ?)
	`,
		d.IntentID,
		d.Dialog,
		d.Choice,
		formsJSON,
		d.Seq,
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}
