package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldlens/fieldlens/internal/template"
)

const (
	// HintTypeAutoLearning tags hints derived from correction history.
	HintTypeAutoLearning = "auto_learning"

	// SourceAutoLearning is the provenance written into generated payloads.
	SourceAutoLearning = "auto-learning"
)

// ServiceConfig configures the learning service.
type ServiceConfig struct {
	Store *Store
	// MinCorrections is how many corrections a field needs before a hint is
	// generated for it. A single correction is enough by default.
	MinCorrections int
	// MaxExamples caps the distinct example values embedded in a hint.
	MaxExamples int
	// SampleLimit caps how many recent corrections feed one hint.
	SampleLimit int
	Logger      *slog.Logger
}

// Service records corrections and distills their history into field hints.
type Service struct {
	store          *Store
	minCorrections int
	maxExamples    int
	sampleLimit    int
	logger         *slog.Logger
}

// NewService creates a learning service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MinCorrections <= 0 {
		cfg.MinCorrections = 1
	}
	if cfg.MaxExamples <= 0 {
		cfg.MaxExamples = 5
	}
	if cfg.SampleLimit <= 0 {
		cfg.SampleLimit = 50
	}
	return &Service{
		store:          cfg.Store,
		minCorrections: cfg.MinCorrections,
		maxExamples:    cfg.MaxExamples,
		sampleLimit:    cfg.SampleLimit,
		logger:         cfg.Logger.With("component", "learning"),
	}
}

// Store exposes the underlying store for direct queries.
func (s *Service) Store() *Store {
	return s.store
}

// RecordCorrection persists a correction. Resubmitting the same correction
// updates the existing row instead of growing the history.
func (s *Service) RecordCorrection(ctx context.Context, c Correction) (bool, error) {
	inserted, err := s.store.RecordCorrection(ctx, c)
	if err != nil {
		return false, err
	}
	s.logger.Info("correction recorded",
		"document", c.DocumentID, "field", c.FieldID, "new", inserted)
	return inserted, nil
}

// GenerateFieldHint distills a field's recent correction history into a
// hint payload and stores it. It returns nil without error when the field
// disables learning or has no usable corrections. Regeneration over the
// same history produces the same payload, so the stored hint converges
// instead of accumulating.
func (s *Service) GenerateFieldHint(ctx context.Context, templateID string, field template.Field) (*template.HintPayload, error) {
	fieldID := fieldKey(field)
	if fieldID == "" {
		return nil, fmt.Errorf("field has neither id nor name")
	}
	if !field.LearnsFromCorrections() {
		s.logger.Info("learning disabled for field; skipping hint generation",
			"field", fieldID)
		return nil, nil
	}

	values, err := s.store.CorrectedValues(ctx, fieldID, s.sampleLimit)
	if err != nil {
		return nil, err
	}
	if len(values) < s.minCorrections {
		s.logger.Debug("not enough corrections to learn from",
			"field", fieldID, "have", len(values), "need", s.minCorrections)
		return nil, nil
	}

	inferredType := InferType(values)
	patterns := InferPatterns(values, inferredType)

	payload := template.HintPayload{
		TypeHint: string(inferredType),
		Examples: firstN(distinctTrimmed(values), s.maxExamples),
		Source:   SourceAutoLearning,
	}
	for _, p := range patterns {
		payload.RegexPatterns = append(payload.RegexPatterns, template.RegexHint{
			Pattern: p,
			Source:  SourceAutoLearning,
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serializing hint payload: %w", err)
	}
	if err := s.store.UpsertHint(ctx, Hint{
		TemplateID: templateID,
		FieldID:    fieldID,
		HintType:   HintTypeAutoLearning,
		Payload:    raw,
	}); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.store.SaveLearningState(ctx, LearningState{
		FieldID:         fieldID,
		TemplateID:      templateID,
		CorrectionCount: len(values),
		InferredType:    string(inferredType),
		LastLearnedAt:   &now,
	}); err != nil {
		return nil, err
	}

	marked, err := s.store.MarkApplied(ctx, fieldID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("field hint generated",
		"field", fieldID, "type", inferredType, "patterns", len(patterns),
		"corrections", len(values), "newly_applied", marked)
	return &payload, nil
}

// GenerateTemplateHints regenerates hints for every field of a template.
// Fields that disable learning or have no history are skipped, not failed.
func (s *Service) GenerateTemplateHints(ctx context.Context, templateID string, fields []template.Field) (map[string]*template.HintPayload, error) {
	generated := make(map[string]*template.HintPayload)
	for _, f := range fields {
		payload, err := s.GenerateFieldHint(ctx, templateID, f)
		if err != nil {
			return nil, fmt.Errorf("generating hint for field %s: %w", fieldKey(f), err)
		}
		if payload != nil {
			generated[fieldKey(f)] = payload
		}
	}
	return generated, nil
}

// HintsForFields loads the stored hints for a template and keys them by
// field name, ready for the extraction pipeline. Rows whose payload fails
// validation are skipped with a warning.
func (s *Service) HintsForFields(ctx context.Context, templateID string, fields []template.Field) (template.HintsMap, error) {
	rows, err := s.store.HintsForTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return template.HintsMap{}, nil
	}

	nameByID := make(map[string]string, len(fields))
	for _, f := range fields {
		id := f.ID
		if id == "" {
			id = f.Name
		}
		nameByID[id] = f.Name
	}

	hints := make(template.HintsMap, len(rows))
	for _, row := range rows {
		name, ok := nameByID[row.FieldID]
		if !ok || name == "" {
			continue
		}
		payload, err := template.ParseHintPayload(row.Payload)
		if err != nil {
			s.logger.Warn("skipping malformed hint payload",
				"field", row.FieldID, "hint_type", row.HintType, "error", err)
			continue
		}
		hints[name] = payload
	}
	return hints, nil
}

// fieldKey is the identifier corrections and hints are stored under: the
// field id when the template declares one, the name otherwise.
func fieldKey(f template.Field) string {
	if f.ID != "" {
		return f.ID
	}
	return f.Name
}

func firstN(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
}
