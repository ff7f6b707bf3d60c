package extraction

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/fieldlens/fieldlens/internal/ocr"
	"github.com/fieldlens/fieldlens/internal/prompts/primary"
	"github.com/fieldlens/fieldlens/internal/providers"
	"github.com/fieldlens/fieldlens/internal/template"
)

// CallRecorder receives a record of every model call for cost/latency
// accounting. Implementations must be safe for concurrent use.
type CallRecorder interface {
	Record(ctx context.Context, stage, documentID string, result *providers.ChatResult)
}

// BlendWeights are the tunable constants combining model confidence with
// OCR token confidence. They are not calibrated against ground truth;
// treat them as configuration, not as proven-optimal.
type BlendWeights struct {
	Model float64
	OCR   float64
}

// DefaultBlendWeights returns the stock 0.6/0.4 split.
func DefaultBlendWeights() BlendWeights {
	return BlendWeights{Model: 0.6, OCR: 0.4}
}

// Evidence-synthesis confidences by provenance, used when the model answer
// cannot be parsed and regex hits must stand in for it.
const (
	evidenceConfExplicit  = 0.9  // template or hint regex
	evidenceConfHeuristic = 0.75 // auto_date / auto_number
	evidenceConfDefault   = 0.6
	evidenceConfOther     = 0.8
	evidenceConfCap       = 0.95
)

// PrimaryMapperConfig configures the primary mapper.
type PrimaryMapperConfig struct {
	Client      providers.LLMClient
	Model       string
	Temperature *float64
	MaxTokens   int
	Weights     BlendWeights
	Logger      *slog.Logger
	Recorder    CallRecorder
	Timeout     time.Duration
}

// PrimaryMapper builds the deterministic mapping prompt, invokes the primary
// reasoning model, and blends the answer with OCR confidence and regex
// validity into one mapping per field.
type PrimaryMapper struct {
	cfg    PrimaryMapperConfig
	logger *slog.Logger
}

// NewPrimaryMapper creates a primary mapper.
func NewPrimaryMapper(cfg PrimaryMapperConfig) *PrimaryMapper {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Weights.Model <= 0 || cfg.Weights.OCR <= 0 {
		cfg.Weights = DefaultBlendWeights()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	return &PrimaryMapper{cfg: cfg, logger: cfg.Logger.With("component", "primary-mapper")}
}

// modelAnswer is the wire shape the primary model is asked for.
type modelAnswer struct {
	Mappings          map[string]modelFieldAnswer `json:"mappings"`
	FieldMappings     map[string]modelFieldAnswer `json:"field_mappings"`
	OverallConfidence float64                     `json:"overall_confidence"`
}

type modelFieldAnswer struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Notes      string  `json:"notes,omitempty"`
}

// MapFields runs the primary extraction for one document. It never returns
// an error: every failure mode degrades into a complete mapping set with an
// error note.
func (p *PrimaryMapper) MapFields(
	ctx context.Context,
	documentID string,
	ocrResult *ocr.Result,
	fields []template.Field,
	hints template.HintsMap,
	evidence EvidenceMap,
) *Result {
	text := ""
	if ocrResult != nil {
		text = ocrResult.Text
	}

	prompt := p.buildPrompt(text, fields, hints, evidence)
	req := &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: primary.SystemPrompt()},
			{Role: "user", Content: prompt},
		},
		Model:          p.cfg.Model,
		Temperature:    p.cfg.Temperature,
		MaxTokens:      p.cfg.MaxTokens,
		Timeout:        p.cfg.Timeout,
		ResponseFormat: &providers.ResponseFormat{Type: "json_object"},
	}

	chatResult, err := p.cfg.Client.Chat(ctx, req)
	if p.cfg.Recorder != nil && chatResult != nil {
		p.cfg.Recorder.Record(ctx, "primary", documentID, chatResult)
	}
	if err != nil || chatResult == nil || !chatResult.Success {
		msg := "primary model call failed"
		if err != nil {
			msg = err.Error()
		} else if chatResult != nil {
			msg = chatResult.ErrorMessage
		}
		p.logger.Warn("primary model unavailable", "document", documentID, "error", msg)
		return EmptyResult(fields, SourceError, msg)
	}

	result := p.parseAnswer(chatResult.Content, fields, evidence)
	if ocrResult != nil {
		p.blendOCRConfidence(result, ocrResult, fields)
	}
	result.RecomputeOverall()
	return result
}

// buildPrompt assembles the deterministic mapping prompt.
func (p *PrimaryMapper) buildPrompt(text string, fields []template.Field, hints template.HintsMap, evidence EvidenceMap) string {
	contexts := make([]map[string]any, 0, len(fields))
	for i := range fields {
		if !fields[i].IsEnabled() {
			continue
		}
		var hint *template.HintPayload
		if h, ok := hints[fields[i].Name]; ok {
			hint = &h
		}
		contexts = append(contexts, buildFieldContext(&fields[i], hint))
	}

	data := primary.UserPromptData{
		FieldMetadata: marshalIndent(contexts),
		OCRText:       text,
	}
	if sanitized := hints.Sanitize(); len(sanitized) > 0 {
		data.Hints = marshalIndent(sanitized)
	}
	if len(evidence) > 0 {
		data.Evidence = marshalIndent(evidence)
	}
	return primary.UserPrompt(data)
}

// buildFieldContext normalizes one field's metadata for prompting, folding
// in its hint payload.
func buildFieldContext(field *template.Field, hint *template.HintPayload) map[string]any {
	ctx := map[string]any{
		"name":          field.Name,
		"type":          string(field.Type),
		"required":      field.Required,
		"normalization": normalizationHint(field.Type),
	}
	if len(field.Metadata) > 0 {
		ctx["metadata"] = field.Metadata
	}
	if field.Pattern != "" {
		ctx["pattern"] = field.Pattern
	}
	examples := field.Examples
	if len(examples) == 0 {
		examples = defaultExamples(field.Type)
	}
	if len(examples) > 0 {
		ctx["examples"] = examples
	}
	if field.OCRMode != 0 {
		ctx["ocr_mode"] = field.OCRMode
	}
	if field.ROI != nil {
		ctx["roi"] = field.ROI
	}

	if hint != nil {
		if hint.TypeHint != "" {
			ctx["type_hint"] = hint.TypeHint
		}
		if hint.FallbackValue != nil {
			ctx["fallback_value"] = hint.FallbackValue
		}
		if len(hint.RegexPatterns) > 0 {
			ctx["pattern_overrides"] = hint.RegexPatterns
		}
		if hint.ROI != nil {
			if _, has := ctx["roi"]; !has {
				ctx["roi"] = hint.ROI
			}
		}
		if len(hint.OCR) > 0 {
			ctx["ocr_overrides"] = hint.OCR
		}
		if len(hint.Preprocessing) > 0 {
			ctx["preprocessing"] = hint.Preprocessing
		}
		if len(hint.Metadata) > 0 {
			merged := map[string]any{}
			if existing, ok := ctx["metadata"].(map[string]any); ok {
				for k, v := range existing {
					merged[k] = v
				}
			}
			for k, v := range hint.Metadata {
				merged[k] = v
			}
			ctx["metadata"] = merged
		}
	}
	return ctx
}

func normalizationHint(t template.DataType) string {
	switch t {
	case template.TypeDate:
		return "Convert dates to DD.MM.YYYY or DD/MM/YYYY."
	case template.TypeNumber:
		return "Write numbers as 1.234,56 and drop stray characters."
	default:
		return "Copy the text as-is, trimming leading/trailing whitespace."
	}
}

func defaultExamples(t template.DataType) []string {
	switch t {
	case template.TypeDate:
		return []string{"31.12.2023", "01/01/2024"}
	case template.TypeNumber:
		return []string{"1.234,56", "12.345,00"}
	default:
		return nil
	}
}

// parseAnswer runs the recovery chain over the model content. A total parse
// failure synthesizes mappings from evidence instead of returning nothing.
func (p *PrimaryMapper) parseAnswer(content string, fields []template.Field, evidence EvidenceMap) *Result {
	outcome := providers.ParseModelJSON(content)
	if outcome.Status == providers.ParseFailed {
		p.logger.Warn("primary model response unparseable, falling back to evidence",
			"note", outcome.Note, "content_len", len(content))
		return SynthesizeFromEvidence(fields, evidence, "model response parse failure")
	}
	if err := providers.ValidateFieldMapJSON(outcome.Raw); err != nil {
		p.logger.Debug("primary response shape deviates from contract", "error", err)
	}

	var answer modelAnswer
	if err := json.Unmarshal(outcome.Raw, &answer); err != nil {
		p.logger.Warn("primary model response undecodable, falling back to evidence", "error", err)
		return SynthesizeFromEvidence(fields, evidence, "model response parse failure")
	}
	mappings := answer.Mappings
	if len(mappings) == 0 {
		mappings = answer.FieldMappings
	}

	result := &Result{
		FieldMappings:     make(map[string]Mapping, len(fields)),
		OverallConfidence: answer.OverallConfidence,
	}
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		entry, ok := mappings[f.Name]
		if !ok {
			result.FieldMappings[f.Name] = Unmapped()
			continue
		}
		source := entry.Source
		if source == "" {
			source = SourcePrimary
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
	return result
}

// SynthesizeFromEvidence builds a partial mapping set directly from regex
// and heuristic evidence, with confidence derived from provenance. Used when
// the model answer is unrecoverable so that regex-only matches still surface.
func SynthesizeFromEvidence(fields []template.Field, evidence EvidenceMap, errMsg string) *Result {
	result := &Result{
		FieldMappings: make(map[string]Mapping, len(fields)),
		Error:         errMsg,
	}
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		ev, ok := evidence[f.Name]
		value := ""
		if ok {
			value = ev.FirstMatch()
		}
		if value == "" {
			result.FieldMappings[f.Name] = Unmapped()
			continue
		}
		first := ev.Patterns[0]
		result.FieldMappings[f.Name] = Mapping{
			Value:      value,
			Confidence: evidenceConfidence(first),
			Source:     RegexSource(first.Source),
		}
	}
	result.RecomputeOverall()
	return result
}

// evidenceConfidence estimates confidence from evidence provenance.
func evidenceConfidence(ev PatternEvidence) float64 {
	conf := evidenceConfDefault
	switch strings.ToLower(ev.Source) {
	case "template", "regex", "hint", "auto-learning":
		conf = evidenceConfExplicit
	case "":
		conf = evidenceConfDefault
	default:
		conf = evidenceConfOther
	}
	switch ev.Pattern {
	case autoDateTag, autoNumberTag:
		if conf < evidenceConfHeuristic {
			conf = evidenceConfHeuristic
		}
	}
	if conf > evidenceConfCap {
		conf = evidenceConfCap
	}
	return conf
}

// blendOCRConfidence folds OCR token confidence and regex validity into each
// mapping's confidence. Applied only when the OCR result carries per-word
// confidences.
func (p *PrimaryMapper) blendOCRConfidence(result *Result, ocrResult *ocr.Result, fields []template.Field) {
	confMap := buildWordConfidenceMap(ocrResult)
	index := template.IndexByName(fields)

	for name, m := range result.FieldMappings {
		field := index[name]
		modelConf := clamp01(m.Confidence)
		value := m.ValueString()

		var ocrConf *float64
		if value != "" && len(confMap) > 0 {
			if c, ok := valueOCRConfidence(value, confMap); ok {
				ocrConf = &c
			}
		}

		regexOK := true
		if field != nil && field.Pattern != "" && value != "" {
			if re, err := regexp.Compile(field.Pattern); err == nil {
				regexOK = re.MatchString(value)
			}
		}

		combined := modelConf
		if ocrConf != nil {
			combined = modelConf*p.cfg.Weights.Model + *ocrConf*p.cfg.Weights.OCR
		}
		if !regexOK {
			if capped := modelConf * 0.5; combined > capped {
				combined = capped
			}
		}
		if field != nil && field.Required && value == "" {
			combined = 0
		}

		m.Confidence = clamp01(combined)
		m.Breakdown = &Breakdown{Model: modelConf, OCR: ocrConf, RegexValid: regexOK}
		result.FieldMappings[name] = m
	}
}

// buildWordConfidenceMap aggregates OCR confidences per normalized token.
func buildWordConfidenceMap(result *ocr.Result) map[string][]float64 {
	if result == nil || len(result.Words) == 0 {
		return nil
	}
	confs := make(map[string][]float64)
	add := func(token string, conf float64) {
		token = strings.TrimSpace(token)
		if token == "" {
			return
		}
		confs[token] = append(confs[token], clamp01(conf))
	}
	for _, w := range result.Words {
		if w.Text == "" {
			continue
		}
		lowered := strings.ToLower(w.Text)
		add(lowered, w.Confidence)
		if normalized := normalizeToken(w.Text); normalized != "" && normalized != lowered {
			add(normalized, w.Confidence)
		}
	}
	return confs
}

// valueOCRConfidence returns the OCR confidence aligned with a value:
// the average confidence of matched tokens scaled by token coverage.
func valueOCRConfidence(value string, confMap map[string][]float64) (float64, bool) {
	tokens := strings.Fields(value)
	if len(tokens) == 0 {
		tokens = []string{value}
	}

	var matched []float64
	for _, token := range tokens {
		candidates := confMap[strings.ToLower(strings.TrimSpace(token))]
		if len(candidates) == 0 {
			candidates = confMap[normalizeToken(token)]
		}
		if len(candidates) > 0 {
			matched = append(matched, mean(candidates))
		}
	}
	if len(matched) == 0 {
		return 0, false
	}

	coverage := float64(len(matched)) / float64(len(tokens))
	return clamp01(mean(matched) * coverage), true
}

// normalizeToken strips everything but letters and digits for fuzzy OCR
// comparison.
func normalizeToken(token string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(token) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') || r > 127 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func marshalIndent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
