// Package extraction implements the field extraction pipeline: regex
// evidence detection, OCR quality analysis, the primary and specialist
// model mappers, vision fallback, and the merge engine that reconciles
// their outputs into one result per document.
package extraction

import (
	"fmt"
	"strings"

	"github.com/fieldlens/fieldlens/internal/template"
)

// Provenance tags carried on mappings.
const (
	SourcePrimary    = "llm-primary"
	SourceSpecialist = "llm-specialist"
	SourceVision     = "vision"
	SourceUnmapped   = "unmapped"
	SourceError      = "error"
	SourceCorrection = "user-correction"

	regexSourcePrefix = "regex:"
)

// RegexSource builds a provenance tag for a regex-derived mapping.
func RegexSource(tag string) string {
	if tag == "" {
		tag = "hint"
	}
	return regexSourcePrefix + tag
}

// Alternate is a displaced candidate value retained on the winning mapping.
type Alternate struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Breakdown records the components that produced a blended confidence.
type Breakdown struct {
	Model      float64  `json:"model"`
	OCR        *float64 `json:"ocr,omitempty"`
	RegexValid bool     `json:"regex_valid"`
}

// Mapping is the value/confidence/provenance triple produced for one field
// by one pipeline stage.
type Mapping struct {
	Value      any         `json:"value"`
	Confidence float64     `json:"confidence"`
	Source     string      `json:"source"`
	Alternates []Alternate `json:"alternates,omitempty"`
	Notes      string      `json:"notes,omitempty"`
	Status     string      `json:"status,omitempty"`
	Breakdown  *Breakdown  `json:"confidence_breakdown,omitempty"`
}

// ValueString returns the mapping's value as a trimmed string, or "" for nil
// and empty values.
func (m Mapping) ValueString() string {
	if m.Value == nil {
		return ""
	}
	if s, ok := m.Value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(stringify(m.Value))
}

// Result is the pipeline output for one document: one mapping per template
// field plus the unweighted mean confidence.
type Result struct {
	FieldMappings     map[string]Mapping `json:"field_mappings"`
	OverallConfidence float64            `json:"overall_confidence"`
	Error             string             `json:"error,omitempty"`
}

// Unmapped returns the mapping used for fields no stage produced a value for.
func Unmapped() Mapping {
	return Mapping{Value: nil, Confidence: 0, Source: SourceUnmapped}
}

// EmptyResult returns a complete all-null result over the given fields,
// typically after a transport failure.
func EmptyResult(fields []template.Field, source, errMsg string) *Result {
	if source == "" {
		source = SourceUnmapped
	}
	r := &Result{
		FieldMappings: make(map[string]Mapping, len(fields)),
		Error:         errMsg,
	}
	for _, f := range fields {
		r.FieldMappings[f.Name] = Mapping{Value: nil, Confidence: 0, Source: source}
	}
	return r
}

// RecomputeOverall sets OverallConfidence to the unweighted mean of all
// per-field confidences and refreshes each mapping's status band.
func (r *Result) RecomputeOverall() {
	if len(r.FieldMappings) == 0 {
		r.OverallConfidence = 0
		return
	}
	var sum float64
	for name, m := range r.FieldMappings {
		m.Confidence = clamp01(m.Confidence)
		m.Status = StatusForConfidence(m.Confidence)
		r.FieldMappings[name] = m
		sum += m.Confidence
	}
	r.OverallConfidence = sum / float64(len(r.FieldMappings))
}

// StatusForConfidence bands a confidence for display.
func StatusForConfidence(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "high"
	case confidence >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// ApplyCorrections overwrites mappings with confirmed user corrections.
// Corrected fields get confidence 1.0 and a user-correction provenance.
func (r *Result) ApplyCorrections(corrections map[string]string) {
	for name, corrected := range corrections {
		m, ok := r.FieldMappings[name]
		if !ok {
			continue
		}
		if m.Value != nil {
			m.Alternates = append(m.Alternates, Alternate{
				Value: m.Value, Confidence: m.Confidence, Source: m.Source,
			})
		}
		m.Value = corrected
		m.Confidence = 1.0
		m.Source = SourceCorrection
		r.FieldMappings[name] = m
	}
	r.RecomputeOverall()
}

func stringify(v any) string {
	return fmt.Sprint(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
