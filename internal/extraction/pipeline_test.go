package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/fieldlens/fieldlens/internal/ocr"
	"github.com/fieldlens/fieldlens/internal/providers"
	"github.com/fieldlens/fieldlens/internal/template"
)

func newTestPipeline(primary, vision, specialist *providers.MockClient) *Pipeline {
	cfg := PipelineConfig{
		Detector: NewEvidenceDetector(nil),
		Quality:  NewQualityAnalyzer(DefaultQualityAnalyzerConfig()),
		Primary:  newTestPrimary(primary),
	}
	if vision != nil {
		cfg.Vision = NewVisionFallback(VisionFallbackConfig{Client: vision, Model: "test-vision"})
	}
	if specialist != nil {
		cfg.Router = NewRouter(RouterConfig{})
		cfg.Specialist = NewMapper(MapperConfig{Client: specialist, Model: "test-specialist"})
	}
	return NewPipeline(cfg)
}

func TestPipelineRejectsEmptyDocuments(t *testing.T) {
	pipeline := newTestPipeline(providers.NewMockClient(), nil, nil)

	_, err := pipeline.Run(context.Background(), Document{ID: "doc-1"},
		[]template.Field{{Name: "total"}}, nil)

	if !errors.Is(err, ErrNoInput) {
		t.Fatalf("err = %v, want ErrNoInput", err)
	}
}

func TestPipelineFallsBackToVision(t *testing.T) {
	primary := providers.NewMockClient()
	vision := providers.NewMockClient()
	vision.ResponseText = `{"field_mappings":{"total":{"value":"98,50","confidence":0.75}}}`
	pipeline := newTestPipeline(primary, vision, nil)

	outcome, err := pipeline.Run(context.Background(), Document{
		ID:    "doc-1",
		OCR:   &ocr.Result{Text: ""},
		Image: []byte("fake-png"),
	}, []template.Field{{Name: "total", Type: template.TypeNumber}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !outcome.UsedVision {
		t.Error("vision fallback did not run")
	}
	if primary.RequestCount() != 0 {
		t.Error("primary ran without OCR text")
	}
	got := outcome.Result.FieldMappings["total"]
	if got.Value != "98,50" || got.Source != SourceVision {
		t.Errorf("mapping = %+v, want vision value", got)
	}
}

func TestPipelineRoutesToSpecialistAndMerges(t *testing.T) {
	primary := providers.NewMockClient()
	primary.ResponseText = `{"mappings":{"signature":{"value":"M Y1lmaz","confidence":0.55},"total":{"value":"1.200,00","confidence":0.9}},"overall_confidence":0.7}`
	specialist := providers.NewMockClient()
	specialist.ResponseText = `{"field_mappings":{"signature":{"value":"M. Yilmaz","confidence":0.8}}}`
	pipeline := newTestPipeline(primary, nil, specialist)

	fields := []template.Field{
		{Name: "signature", Tier: template.TierHandwriting},
		{Name: "total", Type: template.TypeNumber},
	}
	outcome, err := pipeline.Run(context.Background(), Document{
		ID:  "doc-1",
		OCR: &ocr.Result{Text: "signed M Y1lmaz, total 1.200,00", AverageConfidence: 0.9, WordCount: 6},
	}, fields, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(outcome.Routed) != 1 || outcome.Routed[0].Field != "signature" {
		t.Fatalf("routed = %+v, want signature only", outcome.Routed)
	}

	sig := outcome.Result.FieldMappings["signature"]
	if sig.Value != "M. Yilmaz" || sig.Source != SourceSpecialist {
		t.Fatalf("signature = %+v, want specialist winner", sig)
	}
	hasAlternate := false
	for _, alt := range sig.Alternates {
		if alt.Value == "M Y1lmaz" {
			hasAlternate = true
		}
	}
	if !hasAlternate {
		t.Errorf("primary value not retained as alternate: %+v", sig.Alternates)
	}

	if total := outcome.Result.FieldMappings["total"]; total.Value != "1.200,00" {
		t.Errorf("total = %+v, want primary value kept", total)
	}
	if specialist.RequestCount() != 1 {
		t.Errorf("specialist requests = %d, want 1", specialist.RequestCount())
	}
}

func TestPipelineCompletesMissingFields(t *testing.T) {
	primary := providers.NewMockClient()
	primary.ResponseText = `{"mappings":{},"overall_confidence":0}`
	pipeline := newTestPipeline(primary, nil, nil)

	outcome, err := pipeline.Run(context.Background(), Document{
		ID:  "doc-1",
		OCR: &ocr.Result{Text: "plenty of clean words in this scan today", AverageConfidence: 0.9},
	}, []template.Field{{Name: "a"}, {Name: "b"}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(outcome.Result.FieldMappings) != 2 {
		t.Fatalf("mappings = %d, want one per template field", len(outcome.Result.FieldMappings))
	}
	for name, m := range outcome.Result.FieldMappings {
		if m.Source != SourceUnmapped {
			t.Errorf("%s = %+v, want unmapped", name, m)
		}
	}
}

func TestPipelineRunBatch(t *testing.T) {
	primary := providers.NewMockClient()
	primary.ResponseText = `{"mappings":{"total":{"value":"10","confidence":0.9}},"overall_confidence":0.9}`
	pipeline := newTestPipeline(primary, nil, nil)

	docs := []Document{
		{ID: "doc-1", OCR: &ocr.Result{Text: "a perfectly fine scan with total 10 on it", AverageConfidence: 0.9}},
		{ID: "doc-2"}, // no input, must fail without sinking the batch
	}
	outcomes, failures := pipeline.RunBatch(context.Background(), docs,
		[]template.Field{{Name: "total", Type: template.TypeNumber}}, nil)

	if len(outcomes) != 1 || outcomes["doc-1"] == nil {
		t.Fatalf("outcomes = %v", outcomes)
	}
	if !errors.Is(failures["doc-2"], ErrNoInput) {
		t.Errorf("failures = %v, want ErrNoInput for doc-2", failures)
	}
}
