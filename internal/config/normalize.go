package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	if err := c.normalizeVision(); err != nil {
		return err
	}
	c.normalizeScanner()
	if err := c.normalizeCorrectionCache(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() error {
	if c.Catalog.APIKey == "" {
		if value, ok := os.LookupEnv("COMICVINE_API_KEY"); ok {
			c.Catalog.APIKey = strings.TrimSpace(value)
		}
	}
	c.Catalog.BaseURL = strings.TrimSpace(c.Catalog.BaseURL)
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = defaultCatalogBaseURL
	}
	if c.Catalog.RequestsPerSec <= 0 {
		c.Catalog.RequestsPerSec = defaultCatalogRequestsPerSec
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		c.Catalog.TimeoutSeconds = defaultCatalogTimeoutSeconds
	}
	if c.Catalog.CacheTTLMinutes <= 0 {
		c.Catalog.CacheTTLMinutes = defaultCatalogCacheTTLMinutes
	}
	return nil
}

func (c *Config) normalizeVision() error {
	if c.Vision.APIKey == "" {
		if value, ok := os.LookupEnv("COVERSCAN_VISION_API_KEY"); ok {
			c.Vision.APIKey = strings.TrimSpace(value)
		}
	}
	c.Vision.BaseURL = strings.TrimSpace(c.Vision.BaseURL)
	if c.Vision.BaseURL == "" {
		c.Vision.BaseURL = defaultVisionBaseURL
	}
	c.Vision.Model = strings.TrimSpace(c.Vision.Model)
	if c.Vision.Model == "" {
		c.Vision.Model = defaultVisionModel
	}
	if c.Vision.TimeoutSeconds <= 0 {
		c.Vision.TimeoutSeconds = defaultVisionTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeScanner() {
	if c.Scanner.MaxComparisonCandidates <= 0 {
		c.Scanner.MaxComparisonCandidates = DefaultMaxComparisonCandidates
	}
	if len(c.Scanner.PublisherNames) == 0 {
		c.Scanner.PublisherNames = DefaultPublisherNames()
	}
	if len(c.Scanner.ReprintPublishers) == 0 {
		c.Scanner.ReprintPublishers = DefaultReprintPublishers()
	}
	c.Scanner.PublisherNames = lowerTrimAll(c.Scanner.PublisherNames)
	c.Scanner.ReprintPublishers = lowerTrimAll(c.Scanner.ReprintPublishers)
}

func (c *Config) normalizeCorrectionCache() error {
	c.CorrectionCache.OnConflict = strings.ToLower(strings.TrimSpace(c.CorrectionCache.OnConflict))
	if c.CorrectionCache.OnConflict == "" {
		c.CorrectionCache.OnConflict = defaultCorrectionCacheOnConflict
	}
	if c.CorrectionCache.MinConfidence == 0 {
		c.CorrectionCache.MinConfidence = defaultCorrectionCacheConfidence
	}
	if strings.TrimSpace(c.CorrectionCache.Path) == "" {
		c.CorrectionCache.Path = filepath.Join(c.Paths.CacheDir, defaultCorrectionCacheFilename)
	}
	var err error
	if c.CorrectionCache.Path, err = expandPath(c.CorrectionCache.Path); err != nil {
		return fmt.Errorf("correction_cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lowerTrimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
