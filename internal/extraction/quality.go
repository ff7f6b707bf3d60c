package extraction

import (
	"math"

	"github.com/fieldlens/fieldlens/internal/ocr"
)

// Quality report flags.
const (
	ReasonEmptyResult  = "empty_result"
	ReasonEmptyText    = "empty_text"
	ReasonLowWordCount = "low_word_count"
	ReasonLowConf      = "low_confidence"
	ReasonOCRError     = "ocr_error"
)

// QualityReport scores one OCR attempt. The score is observability only;
// the fallback decision is driven by the reason flags.
type QualityReport struct {
	Score          float64  `json:"score"`
	Reasons        []string `json:"reasons"`
	ShouldFallback bool     `json:"should_fallback"`
}

// HasReason reports whether the given flag was raised.
func (r QualityReport) HasReason(reason string) bool {
	for _, got := range r.Reasons {
		if got == reason {
			return true
		}
	}
	return false
}

// QualityAnalyzerConfig holds the analyzer thresholds.
type QualityAnalyzerConfig struct {
	MinAverageConfidence float64
	MinWordCount         int
	AllowEmptyText       bool

	// Score weights, tunable, defaults 0.7/0.3.
	ConfidenceWeight float64
	DensityWeight    float64
}

// DefaultQualityAnalyzerConfig returns the stock thresholds.
func DefaultQualityAnalyzerConfig() QualityAnalyzerConfig {
	return QualityAnalyzerConfig{
		MinAverageConfidence: 0.55,
		MinWordCount:         5,
		ConfidenceWeight:     0.7,
		DensityWeight:        0.3,
	}
}

// QualityAnalyzer decides whether a document needs image-based vision
// fallback instead of (or in addition to) its OCR text.
type QualityAnalyzer struct {
	cfg QualityAnalyzerConfig
}

// NewQualityAnalyzer creates an analyzer, filling zero weights with the
// defaults.
func NewQualityAnalyzer(cfg QualityAnalyzerConfig) *QualityAnalyzer {
	def := DefaultQualityAnalyzerConfig()
	if cfg.MinAverageConfidence <= 0 {
		cfg.MinAverageConfidence = def.MinAverageConfidence
	}
	if cfg.MinWordCount <= 0 {
		cfg.MinWordCount = def.MinWordCount
	}
	if cfg.ConfidenceWeight <= 0 {
		cfg.ConfidenceWeight = def.ConfidenceWeight
	}
	if cfg.DensityWeight <= 0 {
		cfg.DensityWeight = def.DensityWeight
	}
	return &QualityAnalyzer{cfg: cfg}
}

// Evaluate scores an OCR result and raises fallback flags.
func (a *QualityAnalyzer) Evaluate(result *ocr.Result) QualityReport {
	if result == nil {
		return QualityReport{Score: 0, Reasons: []string{ReasonEmptyResult}, ShouldFallback: true}
	}

	wordCount := result.EffectiveWordCount()
	var reasons []string

	if result.Error != "" {
		reasons = append(reasons, ReasonOCRError)
	}

	switch {
	case !result.HasText():
		if !a.cfg.AllowEmptyText {
			reasons = append(reasons, ReasonEmptyText)
		}
	case wordCount < a.cfg.MinWordCount:
		reasons = append(reasons, ReasonLowWordCount)
	}

	if result.AverageConfidence < a.cfg.MinAverageConfidence {
		reasons = append(reasons, ReasonLowConf)
	}

	confidence := clamp01(result.AverageConfidence)
	density := 1.0
	if a.cfg.MinWordCount > 0 {
		density = math.Min(float64(wordCount)/float64(a.cfg.MinWordCount), 1.0)
	}
	score := round3(confidence*a.cfg.ConfidenceWeight + density*a.cfg.DensityWeight)

	return QualityReport{
		Score:          score,
		Reasons:        reasons,
		ShouldFallback: len(reasons) > 0,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
