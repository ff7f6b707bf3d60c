package learning

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldlens/fieldlens/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestRecordCorrectionUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := Correction{
		DocumentID:     "doc-1",
		TemplateID:     "tpl-1",
		FieldID:        "field-1",
		OriginalValue:  "1.234,00",
		CorrectedValue: "1.234,56",
	}

	inserted, err := store.RecordCorrection(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Error("first submission should insert")
	}

	// Same triple again: update, not duplicate.
	inserted, err = store.RecordCorrection(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("resubmission should update, not insert")
	}

	count, err := store.CorrectionCount(ctx, "field-1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	// Different corrected value is a new row.
	c.CorrectedValue = "1.235,00"
	if _, err := store.RecordCorrection(ctx, c); err != nil {
		t.Fatal(err)
	}
	count, _ = store.CorrectionCount(ctx, "field-1")
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestRecordCorrectionValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.RecordCorrection(ctx, Correction{FieldID: "f", CorrectedValue: "v"}); err == nil {
		t.Error("missing document_id accepted")
	}
	if _, err := store.RecordCorrection(ctx, Correction{DocumentID: "d", FieldID: "f", CorrectedValue: "   "}); err == nil {
		t.Error("blank corrected value accepted")
	}
}

func TestCorrectedValuesNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, v := range []string{"oldest", "middle", "newest"} {
		if _, err := store.RecordCorrection(ctx, Correction{
			DocumentID:     "doc-" + v,
			FieldID:        "field-1",
			CorrectedValue: v,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatal(err)
		}
	}

	values, err := store.CorrectedValues(ctx, "field-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 3 || values[0] != "newest" || values[2] != "oldest" {
		t.Fatalf("values = %v, want newest first", values)
	}
}

func TestCorrectedValuesSampleLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		if _, err := store.RecordCorrection(ctx, Correction{
			DocumentID:     fmt.Sprintf("doc-%02d", i),
			FieldID:        "field-1",
			CorrectedValue: fmt.Sprintf("value-%02d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatal(err)
		}
	}

	values, err := store.CorrectedValues(ctx, "field-1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 50 {
		t.Fatalf("len(values) = %d, want the 50 most recent", len(values))
	}
	if values[0] != "value-59" || values[49] != "value-10" {
		t.Errorf("window = [%s .. %s], want [value-59 .. value-10]", values[0], values[49])
	}
}

func TestMarkApplied(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"A100", "B200"} {
		if _, err := store.RecordCorrection(ctx, Correction{
			DocumentID:     "doc-" + v,
			FieldID:        "field-1",
			CorrectedValue: v,
			ActorID:        "reviewer-7",
		}); err != nil {
			t.Fatal(err)
		}
	}

	marked, err := store.MarkApplied(ctx, "field-1")
	if err != nil {
		t.Fatal(err)
	}
	if marked != 2 {
		t.Errorf("marked = %d, want 2", marked)
	}

	// Already applied rows are not marked again.
	marked, err = store.MarkApplied(ctx, "field-1")
	if err != nil {
		t.Fatal(err)
	}
	if marked != 0 {
		t.Errorf("second pass marked = %d, want 0", marked)
	}
}

func TestUpsertHintIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	h := Hint{
		TemplateID: "tpl-1",
		FieldID:    "field-1",
		HintType:   HintTypeAutoLearning,
		Payload:    []byte(`{"type_hint":"date"}`),
	}

	if err := store.UpsertHint(ctx, h); err != nil {
		t.Fatal(err)
	}
	h.Payload = []byte(`{"type_hint":"number"}`)
	if err := store.UpsertHint(ctx, h); err != nil {
		t.Fatal(err)
	}

	rows, err := store.HintsForTemplate(ctx, "tpl-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("hints = %d, want single upserted row", len(rows))
	}
	if string(rows[0].Payload) != `{"type_hint":"number"}` {
		t.Errorf("payload = %s, want latest value", rows[0].Payload)
	}

	got, err := store.HintForField(ctx, "field-1", HintTypeAutoLearning)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.FieldID != "field-1" {
		t.Errorf("HintForField = %+v", got)
	}
}

func TestLearningStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if st, err := store.LearningStateFor(ctx, "nope"); err != nil || st != nil {
		t.Fatalf("missing state = %+v, %v", st, err)
	}

	if err := store.SaveLearningState(ctx, LearningState{
		FieldID:         "field-1",
		TemplateID:      "tpl-1",
		CorrectionCount: 4,
		InferredType:    "date",
	}); err != nil {
		t.Fatal(err)
	}

	st, err := store.LearningStateFor(ctx, "field-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.CorrectionCount != 4 || st.InferredType != "date" {
		t.Errorf("state = %+v", st)
	}
}
