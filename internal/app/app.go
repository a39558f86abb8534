// Package app wires configuration into the extraction pipeline shared by the
// HTTP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/draftlens/backend/config"
	"github.com/draftlens/backend/internal/domain"
	"github.com/draftlens/backend/internal/infrastructure/cache"
	"github.com/draftlens/backend/internal/infrastructure/drafts"
	"github.com/draftlens/backend/internal/infrastructure/extraction"
	"github.com/draftlens/backend/internal/infrastructure/imagesource"
	"github.com/draftlens/backend/internal/infrastructure/storage/sqlite"
	"github.com/draftlens/backend/internal/usecase"
)

// App is the assembled pipeline plus the resources it holds open
type App struct {
	Service *usecase.AnalysisService

	closers []func() error
}

// Options adjusts the assembly for short-lived callers
type Options struct {
	// WithoutStorage skips opening the sqlite variant store
	WithoutStorage bool
	// OperatorImages lets image refs name remote URLs and local files
	// regardless of the images config, for callers that supply refs themselves
	OperatorImages bool
}

// New builds every component from cfg
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	a := &App{}

	hintCache, err := newCache(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, hintCache.Close)

	var store domain.VariantRepository
	if !opts.WithoutStorage {
		s, err := sqlite.NewStore(cfg.Storage.DataDir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open variant store: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		store = s
		logger.Info().Str("path", s.Path()).Msg("variant store ready")
	}

	loader := imagesource.NewLoader(imagesource.Config{
		MaxBytes:        cfg.Images.MaxBytes,
		Timeout:         cfg.Images.Timeout,
		AllowRemote:     cfg.Images.AllowRemote || opts.OperatorImages,
		AllowedHosts:    cfg.Images.AllowedHosts,
		AllowLocalFiles: cfg.Images.AllowLocalFiles || opts.OperatorImages,
		BaseDir:         cfg.Images.BaseDir,
	}, logger)

	normalizer := usecase.NewTextNormalizer(logger)
	a.Service = usecase.NewAnalysisService(usecase.AnalysisDeps{
		Normalizer: normalizer,
		Extractor:  usecase.NewFieldExtractor(normalizer, logger),
		Sampler: usecase.NewColorSampler(loader, usecase.ColorSamplerConfig{
			SampleSize:     cfg.Extraction.SampleSize,
			MaxConcurrency: cfg.Extraction.SampleConcurrency,
		}, logger),
		Merger: usecase.NewMergeEngine(usecase.MergeConfig{
			NameMinWords:      cfg.Extraction.NameMinWords,
			MinRuleConfidence: cfg.Extraction.MinRuleConfidence,
		}, logger),
		Variants: usecase.NewVariantGenerator(usecase.VariantConfig{
			SeedLength:       cfg.Variants.SeedLength,
			TokenLength:      cfg.Variants.TokenLength,
			EnsureUniqueSKUs: cfg.Variants.EnsureUniqueSKUs,
		}, logger),
		Hints: usecase.NewHintStore(hintCache, usecase.HintConfig{
			TTL:     cfg.Cache.TTL,
			TextCap: cfg.Cache.TextCap,
		}, logger),
		Drafts:    drafts.NewMemoryStore(cfg.Storage.MaxDrafts),
		Store:     store,
		Providers: Providers(cfg.Providers, logger),
	}, usecase.AnalysisServiceConfig{
		DefaultMode:     domain.Mode(cfg.Extraction.DefaultMode),
		DefaultProvider: cfg.Extraction.DefaultProvider,
		ExternalTimeout: cfg.Extraction.ExternalTimeout,
	}, logger)

	return a, nil
}

// Close releases every resource in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type closableCache interface {
	domain.CacheRepository
	Close() error
}

func newCache(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (closableCache, error) {
	if cfg.Type != "redis" {
		logger.Info().Int("max_entries", cfg.MaxEntries).Dur("ttl", cfg.TTL).Msg("using memory hint cache")
		return cache.NewMemoryCache(cache.MemoryConfig{MaxEntries: cfg.MaxEntries}), nil
	}

	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.RedisPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("connect hint cache: %w", err)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis hint cache")
	return rc, nil
}

// Providers builds the external backends that are configured
func Providers(cfg config.ProvidersConfig, logger zerolog.Logger) []domain.ExtractionProvider {
	var providers []domain.ExtractionProvider

	if cfg.FieldMap.Enabled() {
		providers = append(providers, extraction.NewFieldMapProvider(extraction.FieldMapConfig{
			BaseURL:           cfg.FieldMap.BaseURL,
			Path:              cfg.FieldMap.Path,
			LegacyPath:        cfg.FieldMap.LegacyPath,
			APIKey:            cfg.FieldMap.APIKey,
			Timeout:           cfg.FieldMap.Timeout,
			RequestsPerSecond: cfg.FieldMap.RequestsPerSecond,
			Burst:             cfg.FieldMap.Burst,
			Retry:             extraction.RetryConfig{MaxRetries: retries(cfg.FieldMap.MaxRetries)},
		}, logger))
	}

	if cfg.OpenRouter.Enabled() {
		providers = append(providers, extraction.NewOpenRouterProvider(extraction.OpenRouterConfig{
			URL:               cfg.OpenRouter.URL,
			APIKey:            cfg.OpenRouter.APIKey,
			Model:             cfg.OpenRouter.Model,
			Timeout:           cfg.OpenRouter.Timeout,
			RequestsPerSecond: cfg.OpenRouter.RequestsPerSecond,
			Burst:             cfg.OpenRouter.Burst,
			Retry:             extraction.RetryConfig{MaxRetries: retries(cfg.OpenRouter.MaxRetries)},
		}, logger))
	}

	for _, p := range providers {
		logger.Info().Str("provider", p.Name()).Msg("external provider registered")
	}
	return providers
}

// retries maps a configured 0 to "no retries"; RetryConfig reads 0 as default
func retries(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}
