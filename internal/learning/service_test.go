package learning

import (
	"context"
	"reflect"
	"testing"

	"github.com/fieldlens/fieldlens/internal/template"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(ServiceConfig{Store: newTestStore(t)})
}

func seedCorrections(t *testing.T, svc *Service, fieldID string, values []string) {
	t.Helper()
	for i, v := range values {
		if _, err := svc.RecordCorrection(context.Background(), Correction{
			DocumentID:     "doc-" + string(rune('a'+i)),
			TemplateID:     "tpl-1",
			FieldID:        fieldID,
			CorrectedValue: v,
		}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGenerateFieldHintFromDates(t *testing.T) {
	svc := newTestService(t)
	seedCorrections(t, svc, "field-date", []string{"12.03.2024", "05.11.2023", "01.01.2022"})

	payload, err := svc.GenerateFieldHint(context.Background(), "tpl-1", template.Field{ID: "field-date", Name: "invoice_date"})
	if err != nil {
		t.Fatal(err)
	}
	if payload == nil {
		t.Fatal("expected a generated hint")
	}
	if payload.TypeHint != string(template.TypeDate) {
		t.Errorf("type_hint = %q, want date", payload.TypeHint)
	}
	if payload.Source != SourceAutoLearning {
		t.Errorf("source = %q, want %q", payload.Source, SourceAutoLearning)
	}
	if len(payload.RegexPatterns) != 1 || payload.RegexPatterns[0].Source != SourceAutoLearning {
		t.Errorf("regex patterns = %+v", payload.RegexPatterns)
	}
	if len(payload.Examples) != 3 {
		t.Errorf("examples = %v", payload.Examples)
	}

	st, err := svc.Store().LearningStateFor(context.Background(), "field-date")
	if err != nil {
		t.Fatal(err)
	}
	if st == nil || st.CorrectionCount != 3 || st.InferredType != "date" {
		t.Errorf("learning state = %+v", st)
	}
}

func TestGenerateFieldHintFromSingleCorrection(t *testing.T) {
	svc := newTestService(t)
	seedCorrections(t, svc, "field-1", []string{"ACME Corp."})

	payload, err := svc.GenerateFieldHint(context.Background(), "tpl-1", template.Field{ID: "field-1", Name: "vendor"})
	if err != nil {
		t.Fatal(err)
	}
	if payload == nil {
		t.Fatal("one correction is enough to learn from")
	}
	if len(payload.RegexPatterns) != 1 {
		t.Errorf("regex patterns = %+v, want one exact pattern", payload.RegexPatterns)
	}
}

func TestGenerateFieldHintNeedsHistory(t *testing.T) {
	svc := newTestService(t)

	payload, err := svc.GenerateFieldHint(context.Background(), "tpl-1", template.Field{ID: "field-1", Name: "vendor"})
	if err != nil {
		t.Fatal(err)
	}
	if payload != nil {
		t.Errorf("payload = %+v, want nil without correction history", payload)
	}
}

func TestGenerateFieldHintHonorsThreshold(t *testing.T) {
	svc := NewService(ServiceConfig{Store: newTestStore(t), MinCorrections: 3})
	seedCorrections(t, svc, "field-1", []string{"only", "two"})

	payload, err := svc.GenerateFieldHint(context.Background(), "tpl-1", template.Field{ID: "field-1", Name: "vendor"})
	if err != nil {
		t.Fatal(err)
	}
	if payload != nil {
		t.Errorf("payload = %+v, want nil below the configured threshold", payload)
	}
}

func TestGenerateFieldHintSkipsDisabledLearning(t *testing.T) {
	svc := newTestService(t)
	seedCorrections(t, svc, "field-1", []string{"12.03.2024", "05.11.2023", "01.01.2022"})

	off := false
	payload, err := svc.GenerateFieldHint(context.Background(), "tpl-1",
		template.Field{ID: "field-1", Name: "invoice_date", LearningEnabled: &off})
	if err != nil {
		t.Fatal(err)
	}
	if payload != nil {
		t.Errorf("payload = %+v, want nil for a field with learning disabled", payload)
	}

	hint, err := svc.Store().HintForField(context.Background(), "field-1", HintTypeAutoLearning)
	if err != nil {
		t.Fatal(err)
	}
	if hint != nil {
		t.Errorf("stored hint = %+v, want none", hint)
	}
}

func TestGenerateFieldHintIdempotent(t *testing.T) {
	svc := newTestService(t)
	seedCorrections(t, svc, "field-1", []string{"1234", "5678", "9012"})
	ctx := context.Background()
	field := template.Field{ID: "field-1", Name: "amount"}

	first, err := svc.GenerateFieldHint(ctx, "tpl-1", field)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.GenerateFieldHint(ctx, "tpl-1", field)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("regeneration diverged:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	rows, err := svc.Store().HintsForTemplate(ctx, "tpl-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("hint rows = %d, want 1 after regeneration", len(rows))
	}
}

func TestGenerateTemplateHints(t *testing.T) {
	svc := newTestService(t)
	seedCorrections(t, svc, "field-a", []string{"12.03.2024", "05.11.2023", "01.01.2022"})
	seedCorrections(t, svc, "field-b", []string{"AB12C", "XY34Z"})

	off := false
	fields := []template.Field{
		{ID: "field-a", Name: "invoice_date"},
		{ID: "field-b", Name: "batch_code", LearningEnabled: &off},
		{ID: "field-c", Name: "untouched"},
	}

	generated, err := svc.GenerateTemplateHints(context.Background(), "tpl-1", fields)
	if err != nil {
		t.Fatal(err)
	}
	if len(generated) != 1 {
		t.Fatalf("generated = %v, want only the learnable field with history", generated)
	}
	if _, ok := generated["field-a"]; !ok {
		t.Error("field-a hint missing")
	}
}

func TestHintsForFields(t *testing.T) {
	svc := newTestService(t)
	seedCorrections(t, svc, "field-a", []string{"AB12C", "XY34Z", "QR56T"})
	ctx := context.Background()

	if _, err := svc.GenerateFieldHint(ctx, "tpl-1", template.Field{ID: "field-a", Name: "batch_code"}); err != nil {
		t.Fatal(err)
	}

	fields := []template.Field{{ID: "field-a", Name: "batch_code"}}
	hints, err := svc.HintsForFields(ctx, "tpl-1", fields)
	if err != nil {
		t.Fatal(err)
	}

	payload, ok := hints["batch_code"]
	if !ok {
		t.Fatalf("hints = %v, want entry keyed by field name", hints)
	}
	if payload.TypeHint != string(template.TypeText) {
		t.Errorf("type_hint = %q", payload.TypeHint)
	}
	if len(payload.RegexPatterns) == 0 {
		t.Error("expected a learned alphanumeric pattern")
	}
}
