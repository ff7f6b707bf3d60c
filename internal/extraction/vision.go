package extraction

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fieldlens/fieldlens/internal/prompts/vision"
	"github.com/fieldlens/fieldlens/internal/providers"
	"github.com/fieldlens/fieldlens/internal/template"
)

// VisionFallbackConfig configures the vision extraction path.
type VisionFallbackConfig struct {
	Client      providers.LLMClient
	Model       string
	Temperature *float64
	MaxTokens   int
	Logger      *slog.Logger
	Recorder    CallRecorder
	Timeout     time.Duration
}

// VisionFallback sends the page image to a multimodal model when the OCR
// result is too poor to map from text alone.
type VisionFallback struct {
	cfg    VisionFallbackConfig
	logger *slog.Logger
}

// NewVisionFallback creates a vision fallback mapper.
func NewVisionFallback(cfg VisionFallbackConfig) *VisionFallback {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	return &VisionFallback{cfg: cfg, logger: cfg.Logger.With("component", "vision-fallback")}
}

// visionAnswer tolerates the key variants multimodal models actually emit.
type visionAnswer struct {
	FieldMappings map[string]modelFieldAnswer `json:"field_mappings"`
	Mappings      map[string]modelFieldAnswer `json:"mappings"`
	Fields        map[string]modelFieldAnswer `json:"fields"`
}

func (v visionAnswer) entries() map[string]modelFieldAnswer {
	switch {
	case len(v.FieldMappings) > 0:
		return v.FieldMappings
	case len(v.Mappings) > 0:
		return v.Mappings
	default:
		return v.Fields
	}
}

// MapFromImage extracts field values from a raw page image. ocrText, when
// non-empty, is passed as a hint alongside the image. Failures degrade into
// an empty mapping set carrying the error.
func (v *VisionFallback) MapFromImage(
	ctx context.Context,
	documentID string,
	image []byte,
	ocrText string,
	fields []template.Field,
) *Result {
	if len(image) == 0 {
		return EmptyResult(fields, SourceUnmapped, "no page image available for vision fallback")
	}

	data := vision.UserPromptData{
		FieldBlock: vision.FieldBlock(fields),
		OCRHint:    ocrText,
	}
	req := &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: vision.SystemPrompt()},
			{Role: "user", Content: vision.UserPrompt(data), Images: [][]byte{image}},
		},
		Model:          v.cfg.Model,
		Temperature:    v.cfg.Temperature,
		MaxTokens:      v.cfg.MaxTokens,
		Timeout:        v.cfg.Timeout,
		ResponseFormat: &providers.ResponseFormat{Type: "json_object"},
	}

	chatResult, err := v.cfg.Client.Chat(ctx, req)
	if v.cfg.Recorder != nil && chatResult != nil {
		v.cfg.Recorder.Record(ctx, "vision", documentID, chatResult)
	}
	if err != nil || chatResult == nil || !chatResult.Success {
		msg := "vision model call failed"
		if err != nil {
			msg = err.Error()
		} else if chatResult != nil {
			msg = chatResult.ErrorMessage
		}
		v.logger.Warn("vision fallback unavailable", "document", documentID, "error", msg)
		return EmptyResult(fields, SourceError, msg)
	}

	return v.parseAnswer(chatResult.Content, fields)
}

func (v *VisionFallback) parseAnswer(content string, fields []template.Field) *Result {
	outcome := providers.ParseModelJSON(content)
	if outcome.Status == providers.ParseFailed {
		v.logger.Warn("vision response unparseable", "note", outcome.Note)
		return EmptyResult(fields, SourceError, "vision response parse failure")
	}

	var answer visionAnswer
	if err := json.Unmarshal(outcome.Raw, &answer); err != nil {
		v.logger.Warn("vision response undecodable", "error", err)
		return EmptyResult(fields, SourceError, "vision response parse failure")
	}
	entries := answer.entries()

	result := &Result{FieldMappings: make(map[string]Mapping, len(fields))}
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		entry, ok := entries[f.Name]
		if !ok {
			result.FieldMappings[f.Name] = Unmapped()
			continue
		}
		source := entry.Source
		if source == "" {
			source = SourceVision
		}
		result.FieldMappings[f.Name] = Mapping{
			Value:      entry.Value,
			Confidence: clamp01(entry.Confidence),
			Source:     source,
			Notes:      entry.Notes,
		}
	}
	if outcome.Status == providers.ParseRecovered {
		result.Error = outcome.Note
	}
	result.RecomputeOverall()
	return result
}
