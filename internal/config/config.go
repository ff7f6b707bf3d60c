// Package config handles loading and hot-reloading the fieldlens
// configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Provider   ProviderConfig   `mapstructure:"provider" yaml:"provider"`
	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction"`
	Quality    QualityConfig    `mapstructure:"quality" yaml:"quality"`
	Specialist SpecialistConfig `mapstructure:"specialist" yaml:"specialist"`
	Learning   LearningConfig   `mapstructure:"learning" yaml:"learning"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	LogLevel   string           `mapstructure:"log_level" yaml:"log_level"`
}

// ProviderConfig configures the model provider.
type ProviderConfig struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL         string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	PrimaryModel    string  `mapstructure:"primary_model" yaml:"primary_model"`
	VisionModel     string  `mapstructure:"vision_model" yaml:"vision_model"`
	SpecialistModel string  `mapstructure:"specialist_model" yaml:"specialist_model"`
	RateLimit       float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// ExtractionConfig tunes the primary mapping pass.
type ExtractionConfig struct {
	ModelWeight float64 `mapstructure:"model_weight" yaml:"model_weight"`
	OCRWeight   float64 `mapstructure:"ocr_weight" yaml:"ocr_weight"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Workers     int     `mapstructure:"workers" yaml:"workers"`
}

// QualityConfig tunes the OCR quality analyzer.
type QualityConfig struct {
	MinAverageConfidence float64 `mapstructure:"min_average_confidence" yaml:"min_average_confidence"`
	MinWordCount         int     `mapstructure:"min_word_count" yaml:"min_word_count"`
	AllowEmptyText       bool    `mapstructure:"allow_empty_text" yaml:"allow_empty_text"`
}

// SpecialistConfig tunes specialist routing and dispatch.
type SpecialistConfig struct {
	Enabled           bool     `mapstructure:"enabled" yaml:"enabled"`
	Tiers             []string `mapstructure:"tiers" yaml:"tiers"`
	ConfidenceFloor   float64  `mapstructure:"confidence_floor" yaml:"confidence_floor"`
	LowConfidenceLine float64  `mapstructure:"low_confidence_line" yaml:"low_confidence_line"`
	FieldsPerCall     int      `mapstructure:"fields_per_call" yaml:"fields_per_call"`
	Workers           int      `mapstructure:"workers" yaml:"workers"`
	MaxTokens         int      `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// LearningConfig tunes hint generation from corrections.
type LearningConfig struct {
	MinCorrections int `mapstructure:"min_corrections" yaml:"min_corrections"`
	MaxExamples    int `mapstructure:"max_examples" yaml:"max_examples"`
	SampleLimit    int `mapstructure:"sample_limit" yaml:"sample_limit"`
}

// DatabaseConfig locates the sqlite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a config manager and loads the initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("provider", defaults.Provider)
	viper.SetDefault("extraction", defaults.Extraction)
	viper.SetDefault("quality", defaults.Quality)
	viper.SetDefault("specialist", defaults.Specialist)
	viper.SetDefault("learning", defaults.Learning)
	viper.SetDefault("database", defaults.Database)
	viper.SetDefault("log_level", defaults.LogLevel)

	// Environment variables with FIELDLENS_ prefix
	viper.SetEnvPrefix("FIELDLENS")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.fieldlens")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ResolvedAPIKey returns the provider API key with ${ENV_VAR} references
// expanded.
func (c *Config) ResolvedAPIKey() string {
	return ResolveEnvVars(c.Provider.APIKey)
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# fieldlens configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
