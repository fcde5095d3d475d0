package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"coverscan/internal/catalog"
	"coverscan/internal/config"
	"coverscan/internal/correctioncache"
	"coverscan/internal/match"
	"coverscan/internal/vision"
)

// pipeline bundles the wired scanner components behind a single Close.
type pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *match.Service
	store   *correctioncache.Store
}

func newPipeline(ctx *commandContext, component string) (*pipeline, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.newLogger(cfg, component)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	catalogClient, err := newCatalogClient(cfg)
	if err != nil {
		return nil, err
	}

	visionClient := vision.NewClient(vision.Config{
		APIKey:         cfg.Vision.APIKey,
		BaseURL:        cfg.Vision.BaseURL,
		Model:          cfg.Vision.Model,
		TimeoutSeconds: cfg.Vision.TimeoutSeconds,
	})
	if err := visionClient.HealthCheck(); err != nil {
		return nil, err
	}

	searcher := match.NewSearcher(catalogClient, cfg.Scanner.ReprintPublishers, logger)
	matcher := match.NewMatcher(visionClient, searcher, cfg.Scanner, logger)
	policy := match.NewPolicy(cfg.Scanner)

	var store *correctioncache.Store
	var corrections match.CorrectionStore
	if cfg.CorrectionCache.Enabled {
		store, err = correctioncache.Open(cfg.CorrectionCache, logger)
		if err != nil {
			return nil, fmt.Errorf("open correction cache: %w", err)
		}
		corrections = store
	}

	return &pipeline{
		cfg:     cfg,
		logger:  logger,
		service: match.NewService(policy, matcher, corrections, logger),
		store:   store,
	}, nil
}

func (p *pipeline) Close() error {
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

func newCatalogClient(cfg *config.Config) (*catalog.Client, error) {
	client, err := catalog.New(cfg.Catalog.APIKey, cfg.Catalog.BaseURL, cfg.Catalog.RequestsPerSec,
		catalog.WithCacheTTL(time.Duration(cfg.Catalog.CacheTTLMinutes)*time.Minute),
		catalog.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Catalog.TimeoutSeconds) * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("create catalog client: %w", err)
	}
	return client, nil
}

func openCorrectionCache(ctx *commandContext) (*correctioncache.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.CorrectionCache.Enabled {
		return nil, errors.New("correction cache is disabled in configuration")
	}
	logger, err := ctx.newLogger(cfg, "cli-cache")
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	return correctioncache.Open(cfg.CorrectionCache, logger)
}
