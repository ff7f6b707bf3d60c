package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fieldlens/fieldlens/internal/config"
	"github.com/fieldlens/fieldlens/internal/extraction"
	"github.com/fieldlens/fieldlens/internal/home"
	"github.com/fieldlens/fieldlens/internal/learning"
	"github.com/fieldlens/fieldlens/internal/llmcall"
	"github.com/fieldlens/fieldlens/internal/providers"
	"github.com/fieldlens/fieldlens/internal/storage"
	"github.com/fieldlens/fieldlens/internal/template"
)

// app holds the wired application services for one command invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db        *sql.DB
	learning  *learning.Service
	callStore *llmcall.Store
	recorder  *llmcall.Recorder
}

// newApp loads config, opens the database, and wires the stores.
func newApp() (*app, error) {
	manager, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := manager.Get()

	logger := newLogger(cfg.LogLevel)

	hd, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := hd.EnsureExists(); err != nil {
		return nil, err
	}
	dbPath := os.ExpandEnv(cfg.Database.Path)
	if dbPath == "" || homeDir != "" {
		dbPath = hd.DatabasePath()
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}

	learningStore, err := learning.NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	callStore, err := llmcall.NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		learning: learning.NewService(learning.ServiceConfig{
			Store:          learningStore,
			MinCorrections: cfg.Learning.MinCorrections,
			MaxExamples:    cfg.Learning.MaxExamples,
			SampleLimit:    cfg.Learning.SampleLimit,
			Logger:         logger,
		}),
		callStore: callStore,
		recorder:  llmcall.NewRecorder(callStore, logger),
	}, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// buildPipeline wires the extraction stages from config.
func (a *app) buildPipeline() *extraction.Pipeline {
	cfg := a.cfg
	timeout := time.Duration(cfg.Provider.TimeoutSeconds) * time.Second

	newClient := func(model string) providers.LLMClient {
		return providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:    cfg.ResolvedAPIKey(),
			Model:     model,
			RateLimit: cfg.Provider.RateLimit,
			Timeout:   timeout,
			BaseURL:   cfg.Provider.BaseURL,
		})
	}

	primary := extraction.NewPrimaryMapper(extraction.PrimaryMapperConfig{
		Client:    newClient(cfg.Provider.PrimaryModel),
		Model:     cfg.Provider.PrimaryModel,
		MaxTokens: cfg.Extraction.MaxTokens,
		Weights: extraction.BlendWeights{
			Model: cfg.Extraction.ModelWeight,
			OCR:   cfg.Extraction.OCRWeight,
		},
		Logger:   a.logger,
		Recorder: a.recorder,
		Timeout:  timeout,
	})

	visionFallback := extraction.NewVisionFallback(extraction.VisionFallbackConfig{
		Client:   newClient(cfg.Provider.VisionModel),
		Model:    cfg.Provider.VisionModel,
		Logger:   a.logger,
		Recorder: a.recorder,
		Timeout:  timeout,
	})

	var router *extraction.Router
	var specialist *extraction.Mapper
	if cfg.Specialist.Enabled {
		tiers := make([]template.Tier, 0, len(cfg.Specialist.Tiers))
		for _, t := range cfg.Specialist.Tiers {
			tiers = append(tiers, template.Tier(t))
		}
		router = extraction.NewRouter(extraction.RouterConfig{
			Tiers:       tiers,
			GlobalFloor: cfg.Specialist.ConfidenceFloor,
			Logger:      a.logger,
		})
		specialist = extraction.NewMapper(extraction.MapperConfig{
			Client:            newClient(cfg.Provider.SpecialistModel),
			Model:             cfg.Provider.SpecialistModel,
			MaxTokens:         cfg.Specialist.MaxTokens,
			LowConfidenceLine: cfg.Specialist.LowConfidenceLine,
			FieldsPerCall:     cfg.Specialist.FieldsPerCall,
			Workers:           cfg.Specialist.Workers,
			Logger:            a.logger,
			Recorder:          a.recorder,
			Timeout:           timeout,
		})
	}

	return extraction.NewPipeline(extraction.PipelineConfig{
		Detector: extraction.NewEvidenceDetector(a.logger),
		Quality: extraction.NewQualityAnalyzer(extraction.QualityAnalyzerConfig{
			MinAverageConfidence: cfg.Quality.MinAverageConfidence,
			MinWordCount:         cfg.Quality.MinWordCount,
			AllowEmptyText:       cfg.Quality.AllowEmptyText,
		}),
		Primary:    primary,
		Vision:     visionFallback,
		Router:     router,
		Specialist: specialist,
		Workers:    cfg.Extraction.Workers,
		Logger:     a.logger,
	})
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
