// Package template models the field definitions a document template declares
// and the learned/explicit hints attached to them.
package template

import (
	"strings"
	"time"
)

// DataType is a field's declared value type.
type DataType string

const (
	TypeText   DataType = "text"
	TypeNumber DataType = "number"
	TypeDate   DataType = "date"
)

// Tier routes a field to a processing path. Standard fields are handled by
// the primary mapper alone; specialist tiers force a specialist model call
// regardless of primary confidence.
type Tier string

const (
	TierStandard    Tier = "standard"
	TierHandwriting Tier = "handwriting"
	TierGuided      Tier = "guided"
)

// ROI is a field's region of interest on the document image.
type ROI struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// Field is one extraction target within a template.
type Field struct {
	ID       string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string   `json:"name" yaml:"name"`
	Type     DataType `json:"type" yaml:"type"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Enabled  *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Pattern is an explicit regex hint authored with the template.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// ROI and OCRMode override how the OCR stage reads this field.
	ROI     *ROI `json:"roi,omitempty" yaml:"roi,omitempty"`
	OCRMode int  `json:"ocr_mode,omitempty" yaml:"ocr_mode,omitempty"`

	Tier Tier `json:"tier,omitempty" yaml:"tier,omitempty"`

	// ConfidenceFloor overrides the global low-confidence floor for
	// specialist routing. Nil means use the global value.
	ConfidenceFloor *float64 `json:"confidence_floor,omitempty" yaml:"confidence_floor,omitempty"`

	// AutoHandwriting is set by upstream detection when the field's region
	// looks handwritten.
	AutoHandwriting bool `json:"auto_handwriting,omitempty" yaml:"auto_handwriting,omitempty"`

	Examples []string       `json:"examples,omitempty" yaml:"examples,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Learning state, mutated only by the learning service.
	LearningEnabled *bool      `json:"learning_enabled,omitempty" yaml:"learning_enabled,omitempty"`
	InferredType    DataType   `json:"inferred_type,omitempty" yaml:"inferred_type,omitempty"`
	LastLearnedAt   *time.Time `json:"last_learned_at,omitempty" yaml:"last_learned_at,omitempty"`
}

// IsEnabled reports whether the field participates in extraction.
// Fields default to enabled when the flag is unset.
func (f *Field) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// LearnsFromCorrections reports whether the learning service may derive hints
// for this field. Defaults to true.
func (f *Field) LearnsFromCorrections() bool {
	return f.LearningEnabled == nil || *f.LearningEnabled
}

// EffectiveTier normalizes the declared tier, defaulting to standard.
func (f *Field) EffectiveTier() Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(string(f.Tier))))
	if t == "" {
		return TierStandard
	}
	return t
}

// FloorOr returns the field's confidence floor, or the supplied global floor
// when the field does not declare one.
func (f *Field) FloorOr(global float64) float64 {
	if f.ConfidenceFloor != nil {
		return *f.ConfidenceFloor
	}
	return global
}

// IndexByName returns the fields keyed by name. Later duplicates win, which
// matches how template editors resolve accidental name collisions.
func IndexByName(fields []Field) map[string]*Field {
	idx := make(map[string]*Field, len(fields))
	for i := range fields {
		if fields[i].Name == "" {
			continue
		}
		idx[fields[i].Name] = &fields[i]
	}
	return idx
}
