package extraction

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fieldlens/fieldlens/internal/ocr"
	"github.com/fieldlens/fieldlens/internal/template"
)

// ErrNoInput is returned when a document has neither OCR text nor a page
// image, so no extraction path can run.
var ErrNoInput = errors.New("document has no OCR text and no page image")

// Document is one unit of extraction work.
type Document struct {
	ID    string
	OCR   *ocr.Result
	Image []byte
}

// Outcome bundles the merged mapping result with the routing and quality
// trace for one document.
type Outcome struct {
	Result     *Result         `json:"result"`
	Quality    *QualityReport  `json:"quality,omitempty"`
	Routed     []RouteDecision `json:"routed,omitempty"`
	UsedVision bool            `json:"used_vision,omitempty"`
}

// PipelineConfig wires the extraction stages together.
type PipelineConfig struct {
	Detector   *EvidenceDetector
	Quality    *QualityAnalyzer
	Primary    *PrimaryMapper
	Vision     *VisionFallback
	Router     *Router
	Specialist *Mapper
	// Workers bounds concurrent documents in batch runs.
	Workers int
	Logger  *slog.Logger
}

// Pipeline runs the full extraction flow for a document: evidence and
// quality analysis, the primary pass, the vision fallback, and the
// specialist pass, merged into one mapping per field.
type Pipeline struct {
	cfg    PipelineConfig
	logger *slog.Logger
}

// NewPipeline creates the extraction pipeline. Vision and Specialist are
// optional; their stages are skipped when nil.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	return &Pipeline{cfg: cfg, logger: cfg.Logger.With("component", "pipeline")}
}

// Run extracts all template fields from one document.
func (p *Pipeline) Run(
	ctx context.Context,
	doc Document,
	fields []template.Field,
	hints template.HintsMap,
) (*Outcome, error) {
	hasText := doc.OCR.HasText()
	if !hasText && len(doc.Image) == 0 {
		return nil, ErrNoInput
	}

	text := ""
	if doc.OCR != nil {
		text = doc.OCR.Text
	}
	evidence := p.cfg.Detector.Detect(text, fields, hints)
	quality := p.cfg.Quality.Evaluate(doc.OCR)

	outcome := &Outcome{Quality: &quality}

	var merged *Result
	if hasText {
		merged = p.cfg.Primary.MapFields(ctx, doc.ID, doc.OCR, fields, hints, evidence)
	}

	if quality.ShouldFallback && p.cfg.Vision != nil && len(doc.Image) > 0 {
		p.logger.Info("ocr quality below threshold, running vision fallback",
			"document", doc.ID, "score", quality.Score, "reasons", quality.Reasons)
		visionResult := p.cfg.Vision.MapFromImage(ctx, doc.ID, doc.Image, text, fields)
		outcome.UsedVision = true
		if merged == nil {
			merged = visionResult
		} else {
			merged.FieldMappings = Merge(merged.FieldMappings, visionResult.FieldMappings)
			if merged.Error == "" {
				merged.Error = visionResult.Error
			}
		}
	}
	if merged == nil {
		merged = EmptyResult(fields, SourceUnmapped, "no extraction path produced mappings")
	}

	if p.cfg.Router != nil && p.cfg.Specialist != nil {
		routed, decisions := p.cfg.Router.Select(fields, merged)
		outcome.Routed = decisions
		if len(routed) > 0 {
			p.logger.Info("routing fields to specialist",
				"document", doc.ID, "count", len(routed))
			specialistResult := p.cfg.Specialist.MapFields(ctx, doc.ID, doc.OCR, routed, merged)
			merged.FieldMappings = Merge(merged.FieldMappings, specialistResult.FieldMappings)
		}
	}

	merged.FieldMappings = Complete(merged.FieldMappings, fields)
	merged.RecomputeOverall()
	outcome.Result = merged
	return outcome, nil
}

// RunBatch extracts a set of documents concurrently. Per-document failures
// are collected, not fatal; the returned map carries an Outcome for every
// document that produced one.
func (p *Pipeline) RunBatch(
	ctx context.Context,
	docs []Document,
	fields []template.Field,
	hints template.HintsMap,
) (map[string]*Outcome, map[string]error) {
	outcomes := make(map[string]*Outcome, len(docs))
	failures := make(map[string]error)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, doc := range docs {
		g.Go(func() error {
			outcome, err := p.Run(gctx, doc, fields, hints)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[doc.ID] = err
				return nil
			}
			outcomes[doc.ID] = outcome
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, failures
}
