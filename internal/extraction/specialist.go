package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fieldlens/fieldlens/internal/ocr"
	"github.com/fieldlens/fieldlens/internal/prompts/specialist"
	"github.com/fieldlens/fieldlens/internal/providers"
	"github.com/fieldlens/fieldlens/internal/template"
)

const (
	snippetLimitField = 500
	snippetLimitPage  = 1000
)

// RouterConfig configures specialist routing.
type RouterConfig struct {
	// Tiers routed to the specialist regardless of confidence.
	Tiers []template.Tier
	// GlobalFloor is the confidence floor for fields without their own.
	GlobalFloor float64
	Logger      *slog.Logger
}

// Router decides which fields get a second pass through the specialist
// model.
type Router struct {
	tiers  map[template.Tier]bool
	floor  float64
	logger *slog.Logger
}

// NewRouter creates a specialist router.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	tiers := cfg.Tiers
	if len(tiers) == 0 {
		tiers = []template.Tier{template.TierHandwriting, template.TierGuided}
	}
	set := make(map[template.Tier]bool, len(tiers))
	for _, t := range tiers {
		set[t] = true
	}
	floor := cfg.GlobalFloor
	if floor <= 0 {
		floor = 0.6
	}
	return &Router{tiers: set, floor: floor, logger: cfg.Logger.With("component", "specialist-router")}
}

// RouteDecision records why one field was routed.
type RouteDecision struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Select returns the fields that need specialist interpretation, given the
// upstream mappings, with one decision per routed field. Selection order
// follows the template field order.
func (r *Router) Select(fields []template.Field, upstream *Result) ([]template.Field, []RouteDecision) {
	var selected []template.Field
	var decisions []RouteDecision
	for _, f := range fields {
		if !f.IsEnabled() || f.Name == "" {
			continue
		}
		reason := r.reason(&f, upstream)
		if reason == "" {
			continue
		}
		selected = append(selected, f)
		decisions = append(decisions, RouteDecision{Field: f.Name, Reason: reason})
	}
	return selected, decisions
}

func (r *Router) reason(f *template.Field, upstream *Result) string {
	tier := f.EffectiveTier()
	if r.tiers[tier] && tier != template.TierStandard {
		return "tier:" + string(tier)
	}
	if f.AutoHandwriting {
		return "auto-handwriting"
	}
	if upstream != nil {
		if m, ok := upstream.FieldMappings[f.Name]; ok {
			if floor := f.FloorOr(r.floor); m.Confidence < floor {
				return fmt.Sprintf("confidence %.2f below floor %.2f", m.Confidence, floor)
			}
		}
	}
	return ""
}

// MapperConfig configures the specialist mapper.
type MapperConfig struct {
	Client      providers.LLMClient
	Model       string
	Temperature *float64
	MaxTokens   int
	// LowConfidenceLine is the threshold under which OCR lines are quoted
	// as context snippets.
	LowConfidenceLine float64
	// FieldsPerCall bounds how many fields share one specialist call.
	FieldsPerCall int
	// Workers bounds concurrent specialist calls.
	Workers  int
	Logger   *slog.Logger
	Recorder CallRecorder
	Timeout  time.Duration
}

// Mapper re-reads selected fields with a stronger model, feeding it focused
// OCR context instead of the whole document.
type Mapper struct {
	cfg    MapperConfig
	logger *slog.Logger
}

// NewMapper creates a specialist mapper.
func NewMapper(cfg MapperConfig) *Mapper {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LowConfidenceLine <= 0 {
		cfg.LowConfidenceLine = 0.55
	}
	if cfg.FieldsPerCall <= 0 {
		cfg.FieldsPerCall = 4
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}
	return &Mapper{cfg: cfg, logger: cfg.Logger.With("component", "specialist-mapper")}
}

type specialistAnswer struct {
	FieldMappings map[string]modelFieldAnswer `json:"field_mappings"`
	Mappings      map[string]modelFieldAnswer `json:"mappings"`
}

// MapFields runs the specialist pass over the routed fields. Calls are
// chunked and dispatched with bounded concurrency. Fields from a failed
// chunk are left out of the result entirely so the merge keeps whatever the
// upstream stages produced for them.
func (m *Mapper) MapFields(
	ctx context.Context,
	documentID string,
	ocrResult *ocr.Result,
	fields []template.Field,
	upstream *Result,
) *Result {
	result := &Result{FieldMappings: make(map[string]Mapping, len(fields))}
	if len(fields) == 0 {
		return result
	}

	summary := documentSummary(ocrResult)
	chunks := chunkFields(fields, m.cfg.FieldsPerCall)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for _, chunk := range chunks {
		g.Go(func() error {
			partial := m.mapChunk(gctx, documentID, summary, ocrResult, chunk, upstream)
			mu.Lock()
			for name, mapping := range partial {
				result.FieldMappings[name] = mapping
			}
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only propagates ctx cancellation.
	if err := g.Wait(); err != nil {
		result.Error = err.Error()
	}

	result.RecomputeOverall()
	return result
}

func (m *Mapper) mapChunk(
	ctx context.Context,
	documentID, summary string,
	ocrResult *ocr.Result,
	fields []template.Field,
	upstream *Result,
) map[string]Mapping {
	sections := make([]specialist.FieldSection, 0, len(fields))
	for i := range fields {
		sections = append(sections, specialist.FieldSection{
			Name:    fields[i].Name,
			Context: fieldContextBlock(&fields[i], ocrResult, upstream),
		})
	}
	data := specialist.UserPromptData{
		DocumentSummary: summary,
		Segments:        lowConfidenceSnippets(ocrResult, m.cfg.LowConfidenceLine),
		Fields:          sections,
	}

	req := &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: specialist.SystemPrompt()},
			{Role: "user", Content: specialist.UserPrompt(data)},
		},
		Model:          m.cfg.Model,
		Temperature:    m.cfg.Temperature,
		MaxTokens:      m.cfg.MaxTokens,
		Timeout:        m.cfg.Timeout,
		ResponseFormat: &providers.ResponseFormat{Type: "json_object"},
	}

	chatResult, err := m.cfg.Client.Chat(ctx, req)
	if m.cfg.Recorder != nil && chatResult != nil {
		m.cfg.Recorder.Record(ctx, "specialist", documentID, chatResult)
	}
	if err != nil || chatResult == nil || !chatResult.Success {
		msg := "specialist call failed"
		if err != nil {
			msg = err.Error()
		} else if chatResult != nil {
			msg = chatResult.ErrorMessage
		}
		m.logger.Warn("specialist chunk failed", "document", documentID,
			"fields", len(fields), "error", msg)
		return nil
	}

	outcome := providers.ParseModelJSON(chatResult.Content)
	if outcome.Status == providers.ParseFailed {
		m.logger.Warn("specialist response unparseable", "document", documentID, "note", outcome.Note)
		return nil
	}
	var answer specialistAnswer
	if err := json.Unmarshal(outcome.Raw, &answer); err != nil {
		m.logger.Warn("specialist response undecodable", "document", documentID, "error", err)
		return nil
	}
	entries := answer.FieldMappings
	if len(entries) == 0 {
		entries = answer.Mappings
	}

	out := make(map[string]Mapping, len(fields))
	for _, f := range fields {
		entry, ok := entries[f.Name]
		if !ok {
			continue
		}
		out[f.Name] = Mapping{
			Value:      entry.Value,
			Confidence: clamp01(entry.Confidence),
			Source:     SourceSpecialist,
			Notes:      entry.Notes,
		}
	}
	return out
}

// fieldContextBlock serializes the focused context for one field: its
// metadata, any field-level OCR crop, and the upstream suggestion.
func fieldContextBlock(f *template.Field, ocrResult *ocr.Result, upstream *Result) string {
	block := map[string]any{
		"type":     string(f.Type),
		"required": f.Required,
	}
	if f.Pattern != "" {
		block["pattern"] = f.Pattern
	}
	if len(f.Examples) > 0 {
		block["examples"] = f.Examples
	}
	if ocrResult != nil {
		if fr, ok := ocrResult.FieldResults[f.Name]; ok {
			crop := map[string]any{
				"text":       truncate(fr.Text, snippetLimitField),
				"confidence": fr.Confidence,
			}
			if fr.Page > 0 {
				crop["page"] = fr.Page
			}
			block["ocr_crop"] = crop
		}
	}
	if upstream != nil {
		if m, ok := upstream.FieldMappings[f.Name]; ok && m.ValueString() != "" {
			block["current_suggestion"] = map[string]any{
				"value":      m.ValueString(),
				"confidence": m.Confidence,
				"source":     m.Source,
			}
		}
	}
	return marshalIndent(block)
}

// documentSummary serializes coarse OCR stats for the prompt header.
func documentSummary(r *ocr.Result) string {
	if r == nil {
		return "{}"
	}
	summary := map[string]any{
		"word_count":     r.EffectiveWordCount(),
		"avg_confidence": r.AverageConfidence,
		"source":         r.Source,
		"pages":          len(r.Pages),
	}
	if r.Text != "" {
		summary["text_preview"] = truncate(r.Text, snippetLimitPage)
	}
	return marshalIndent(summary)
}

// lowConfidenceSnippets quotes OCR lines under the threshold so the
// specialist sees exactly the passages the OCR engine struggled with.
func lowConfidenceSnippets(r *ocr.Result, threshold float64) string {
	if r == nil {
		return ""
	}
	type snippet struct {
		Page       int     `json:"page"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	var snippets []snippet
	for _, page := range r.Pages {
		for _, line := range page.Lines {
			if line.Confidence >= threshold || strings.TrimSpace(line.Text) == "" {
				continue
			}
			snippets = append(snippets, snippet{
				Page:       page.Number,
				Text:       truncate(line.Text, snippetLimitField),
				Confidence: line.Confidence,
			})
		}
	}
	if len(snippets) == 0 {
		return ""
	}
	sort.SliceStable(snippets, func(i, j int) bool {
		return snippets[i].Confidence < snippets[j].Confidence
	})
	if len(snippets) > 10 {
		snippets = snippets[:10]
	}
	return marshalIndent(snippets)
}

func chunkFields(fields []template.Field, size int) [][]template.Field {
	if size <= 0 {
		size = len(fields)
	}
	var chunks [][]template.Field
	for start := 0; start < len(fields); start += size {
		end := start + size
		if end > len(fields) {
			end = len(fields)
		}
		chunks = append(chunks, fields[start:end])
	}
	return chunks
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
