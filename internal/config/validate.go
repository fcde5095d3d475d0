package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateVision(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateCorrectionCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCatalog() error {
	if c.Catalog.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/coverscan/config.toml"
		}
		return fmt.Errorf("catalog.api_key is required. Set COMICVINE_API_KEY env var or edit %s (create with 'coverscan config new')", defaultPath)
	}
	return nil
}

func (c *Config) validateVision() error {
	if c.Vision.APIKey == "" {
		return errors.New("vision.api_key is required. Set COVERSCAN_VISION_API_KEY env var or edit the config file")
	}
	return nil
}

func (c *Config) validateScanner() error {
	unit := map[string]float64{
		"scanner.confidence_threshold":         c.Scanner.ConfidenceThreshold,
		"scanner.candidate_gap":                c.Scanner.CandidateGap,
		"scanner.vision_override_threshold":    c.Scanner.VisionOverrideThreshold,
		"scanner.identification_threshold":     c.Scanner.IdentificationThreshold,
		"scanner.prefill_confidence_threshold": c.Scanner.PrefillConfidenceThreshold,
	}
	for key, value := range unit {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", key)
		}
	}
	if c.Scanner.MaxComparisonCandidates <= 0 {
		return errors.New("scanner.max_comparison_candidates must be positive")
	}
	return nil
}

func (c *Config) validateCorrectionCache() error {
	if c.CorrectionCache.MinConfidence < 0 || c.CorrectionCache.MinConfidence > 1 {
		return errors.New("correction_cache.min_confidence must be between 0 and 1")
	}
	switch c.CorrectionCache.OnConflict {
	case "keep", "replace":
		return nil
	default:
		return fmt.Errorf("correction_cache.on_conflict must be %q or %q", "keep", "replace")
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be %q or %q", "console", "json")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return errors.New("logging.level must be one of debug, info, warn, error")
	}
}
