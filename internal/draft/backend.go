package draft

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/roach88/formguard/internal/ir"
)

// ErrNotFound is returned by Backend.Load when no draft is stored under key.
var ErrNotFound = errors.New("draft: not found")

// Backend persists one snapshot per key. Writes overwrite (last write wins)
// and bump the record's Version.
type Backend interface {
	Load(ctx context.Context, key string) (ir.DraftRecord, error)
	Save(ctx context.Context, key string, data ir.IRObject) (ir.DraftRecord, error)
	Delete(ctx context.Context, key string) error
}

// Lister is implemented by backends that can enumerate stored drafts.
type Lister interface {
	List(ctx context.Context) ([]ir.DraftRecord, error)
}

// MemoryBackend keeps drafts in process memory. Safe for concurrent use.
type MemoryBackend struct {
	mu     sync.Mutex
	drafts map[string]ir.DraftRecord
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{drafts: make(map[string]ir.DraftRecord)}
}

func (m *MemoryBackend) Load(_ context.Context, key string) (ir.DraftRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.drafts[key]
	if !ok {
		return ir.DraftRecord{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m *MemoryBackend) Save(_ context.Context, key string, data ir.IRObject) (ir.DraftRecord, error) {
	digest, err := ir.DraftDigest(key, data)
	if err != nil {
		return ir.DraftRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := ir.DraftRecord{
		Key:     key,
		Data:    ir.CloneObject(data),
		Digest:  digest,
		Version: m.drafts[key].Version + 1,
	}
	if rec.Data == nil {
		rec.Data = ir.IRObject{}
	}
	m.drafts[key] = rec
	return copyRecord(rec), nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, key)
	return nil
}

// List returns every stored draft ordered by key.
func (m *MemoryBackend) List(_ context.Context) ([]ir.DraftRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ir.DraftRecord, 0, len(m.drafts))
	for _, rec := range m.drafts {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func copyRecord(rec ir.DraftRecord) ir.DraftRecord {
	rec.Data = ir.CloneObject(rec.Data)
	return rec
}
