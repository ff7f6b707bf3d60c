package config

// DefaultConfig returns the stock configuration. File and environment
// settings override these values.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			APIKey:          "${OPENAI_API_KEY}",
			PrimaryModel:    "gpt-4o",
			VisionModel:     "gpt-4o",
			SpecialistModel: "gpt-4o",
			RateLimit:       5.0,
			TimeoutSeconds:  120,
		},
		Extraction: ExtractionConfig{
			ModelWeight: 0.6,
			OCRWeight:   0.4,
			MaxTokens:   2000,
			Workers:     2,
		},
		Quality: QualityConfig{
			MinAverageConfidence: 0.55,
			MinWordCount:         5,
			AllowEmptyText:       false,
		},
		Specialist: SpecialistConfig{
			Enabled:           true,
			Tiers:             []string{"handwriting", "guided"},
			ConfidenceFloor:   0.6,
			LowConfidenceLine: 0.55,
			FieldsPerCall:     4,
			Workers:           2,
			MaxTokens:         1500,
		},
		Learning: LearningConfig{
			MinCorrections: 1,
			MaxExamples:    5,
			SampleLimit:    50,
		},
		Database: DatabaseConfig{
			Path: "$HOME/.fieldlens/fieldlens.db",
		},
		LogLevel: "info",
	}
}
