// Package ocr defines the data shapes handed to the extraction pipeline by an
// OCR backend. The backend itself (engine selection, image preprocessing,
// language packs) lives outside this module; extraction only consumes these
// records.
package ocr

import "strings"

// BoundingBox is a sub-rectangle of the document image in pixel coordinates.
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Word is a single recognized token with its confidence and position.
type Word struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Box        *BoundingBox `json:"box,omitempty"`
	Page       int          `json:"page,omitempty"`
}

// Line is a recognized text line. Low-confidence lines are surfaced to the
// specialist mapper as focus snippets.
type Line struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Box        *BoundingBox `json:"box,omitempty"`
	Page       int          `json:"page,omitempty"`
}

// FieldResult is an OCR sub-result scoped to one field's region of interest.
type FieldResult struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Box        *BoundingBox `json:"box,omitempty"`
	Page       int          `json:"page,omitempty"`
	Lines      []Line       `json:"lines,omitempty"`
}

// Page is a page-level slice of the OCR output.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	Lines  []Line `json:"lines,omitempty"`
}

// Result is the OCR output for one document.
type Result struct {
	Text              string                 `json:"text"`
	AverageConfidence float64                `json:"average_confidence"`
	WordCount         int                    `json:"word_count"`
	Source            string                 `json:"source,omitempty"`
	Error             string                 `json:"error,omitempty"`
	Words             []Word                 `json:"words,omitempty"`
	Pages             []Page                 `json:"pages,omitempty"`
	LowConfidence     []Line                 `json:"low_confidence_lines,omitempty"`
	FieldResults      map[string]FieldResult `json:"field_results,omitempty"`
}

// EffectiveWordCount returns the reported word count, falling back to a
// whitespace split of the text when the backend did not report one.
func (r *Result) EffectiveWordCount() int {
	if r == nil {
		return 0
	}
	if r.WordCount > 0 {
		return r.WordCount
	}
	if t := strings.TrimSpace(r.Text); t != "" {
		return len(strings.Fields(t))
	}
	return 0
}

// HasText reports whether the OCR produced any non-blank text.
func (r *Result) HasText() bool {
	return r != nil && strings.TrimSpace(r.Text) != ""
}
