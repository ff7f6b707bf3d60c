package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Extraction.ModelWeight != 0.6 || cfg.Extraction.OCRWeight != 0.4 {
		t.Errorf("blend weights = %v/%v, want 0.6/0.4",
			cfg.Extraction.ModelWeight, cfg.Extraction.OCRWeight)
	}
	if cfg.Quality.MinAverageConfidence != 0.55 || cfg.Quality.MinWordCount != 5 {
		t.Errorf("quality thresholds = %+v", cfg.Quality)
	}
	if !cfg.Specialist.Enabled {
		t.Error("specialist should be enabled by default")
	}
	if len(cfg.Specialist.Tiers) != 2 {
		t.Errorf("specialist tiers = %v", cfg.Specialist.Tiers)
	}
	if cfg.Learning.MinCorrections != 1 || cfg.Learning.MaxExamples != 5 || cfg.Learning.SampleLimit != 50 {
		t.Errorf("learning defaults = %+v", cfg.Learning)
	}
	if !strings.Contains(cfg.Provider.APIKey, "${") {
		t.Errorf("api key default = %q, want env reference", cfg.Provider.APIKey)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("FIELDLENS_TEST_KEY", "sk-12345")

	tests := []struct {
		in   string
		want string
	}{
		{"${FIELDLENS_TEST_KEY}", "sk-12345"},
		{"prefix-${FIELDLENS_TEST_KEY}", "prefix-sk-12345"},
		{"no-refs", "no-refs"},
		{"", ""},
		{"${FIELDLENS_UNSET_VAR}", ""},
	}
	for _, tt := range tests {
		if got := ResolveEnvVars(tt.in); got != tt.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "primary_model") {
		t.Error("written config missing provider section")
	}
	if !strings.Contains(content, "min_corrections") {
		t.Error("written config missing learning section")
	}
}
