package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/roach88/formguard/internal/draft"
	"github.com/roach88/formguard/internal/ir"
)

// Store satisfies the draft backend interfaces.
var (
	_ draft.Backend = (*Store)(nil)
	_ draft.Lister  = (*Store)(nil)
)

func TestLoad_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Load(context.Background(), "new-quote")
	if !errors.Is(err, draft.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestLoad_NestedData(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	data := ir.IRObject{
		"client": ir.IRString("rec42"),
		"lineItems": ir.IRArray{
			ir.IRObject{"description": ir.IRString("Deep clean"), "amountCents": ir.IRInt(18000)},
		},
		"notes": ir.IRNull{},
	}
	if _, err := s.Save(ctx, "new-quote", data); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := s.Load(ctx, "new-quote")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !reflect.DeepEqual(got.Data, data) {
		t.Errorf("Load() data = %#v, want %#v", got.Data, data)
	}
	if got.Key != "new-quote" || got.Version != 1 {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestList_OrderedByKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List() on empty store = %#v, want empty slice", empty)
	}

	for _, key := range []string{"new-lead", "new-client", "new-job"} {
		if _, err := s.Save(ctx, key, ir.IRObject{}); err != nil {
			t.Fatalf("Save(%s) failed: %v", key, err)
		}
	}

	drafts, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	var keys []string
	for _, d := range drafts {
		keys = append(keys, d.Key)
	}
	want := []string{"new-client", "new-job", "new-lead"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}

func TestReadDecisions_DeterministicOrdering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Insert out of seq order; same seq falls back to insertion order.
	decisions := []ir.Decision{
		{IntentID: "c", Dialog: "edit", Choice: "leave", Forms: []string{"job-1"}, Seq: 9},
		{IntentID: "a", Dialog: "draft", Choice: "stay", Forms: []string{"new-client"}, Seq: 3},
		{IntentID: "b", Dialog: "draft", Choice: "discard", Forms: []string{}, Seq: 3},
	}
	for _, d := range decisions {
		if err := s.RecordDecision(ctx, d); err != nil {
			t.Fatalf("RecordDecision() failed: %v", err)
		}
	}

	got, err := s.ReadDecisions(ctx)
	if err != nil {
		t.Fatalf("ReadDecisions() failed: %v", err)
	}
	var ids []string
	for _, d := range got {
		ids = append(ids, d.IntentID)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Errorf("order = %v", ids)
	}
	if !reflect.DeepEqual(got[1].Forms, []string{}) {
		t.Errorf("empty forms should decode to empty slice, got %#v", got[1].Forms)
	}
}
