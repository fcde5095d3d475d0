package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
}

// Catalog contains configuration for the comic catalog search service.
type Catalog struct {
	BaseURL         string  `toml:"base_url"`
	APIKey          string  `toml:"api_key"`
	RequestsPerSec  float64 `toml:"requests_per_sec"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	CacheTTLMinutes int     `toml:"cache_ttl_minutes"`
}

// Vision contains configuration for the vision analyzer service.
type Vision struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Scanner contains trigger-policy and matching thresholds.
type Scanner struct {
	// VisionFirst makes image analysis the primary identification path;
	// OCR candidates become corroboration only.
	VisionFirst bool `toml:"vision_first"`
	// ConfidenceThreshold is the OCR confidence below which vision triggers
	// in legacy mode. Default: 0.80
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	// CandidateGap is the top-2 score gap below which the result is treated
	// as ambiguous in legacy mode. Default: 0.10
	CandidateGap float64 `toml:"candidate_gap"`
	// VisionOverrideThreshold is the comparison similarity at or above which
	// the vision pick overrides OCR candidates. Default: 0.85
	VisionOverrideThreshold float64 `toml:"vision_override_threshold"`
	// IdentificationThreshold is the max candidate score below which the
	// matcher skips comparison and identifies from the image alone.
	// Default: 0.50
	IdentificationThreshold float64 `toml:"identification_threshold"`
	// PrefillConfidenceThreshold is the identification confidence at or above
	// which an unsearchable identification still prefills manual search.
	// Default: 0.70
	PrefillConfidenceThreshold float64 `toml:"prefill_confidence_threshold"`
	// MaxComparisonCandidates caps the candidate list sent to comparison
	// mode. Default: 15
	MaxComparisonCandidates int `toml:"max_comparison_candidates"`
	// PublisherNames is the set of publisher names used by the trigger
	// policy's logo-misread sanity check.
	PublisherNames []string `toml:"publisher_names"`
	// ReprintPublishers is the set of foreign/reprint publishers penalized
	// during re-ranking.
	ReprintPublishers []string `toml:"reprint_publishers"`
}

// CorrectionCache contains configuration for the learned OCR-to-match cache.
type CorrectionCache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	// MinConfidence gates cache writes; vision results below it are not
	// durable enough to trust for future auto-matching. Default: 0.70
	MinConfidence float64 `toml:"min_confidence"`
	// OnConflict selects the policy when a row already exists for a
	// normalized input: "keep" (first write wins) or "replace" (higher
	// confidence wins).
	OnConflict string `toml:"on_conflict"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for coverscan.
//
// Configuration sections by subsystem:
//   - Paths: cache and log directories
//   - Catalog: comic catalog search service connection
//   - Vision: vision analyzer service connection
//   - Scanner: trigger policy thresholds and publisher lists
//   - CorrectionCache: learned OCR-to-match cache
//   - Logging: log format and level
type Config struct {
	Paths           Paths           `toml:"paths"`
	Catalog         Catalog         `toml:"catalog"`
	Vision          Vision          `toml:"vision"`
	Scanner         Scanner         `toml:"scanner"`
	CorrectionCache CorrectionCache `toml:"correction_cache"`
	Logging         Logging         `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/coverscan/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("coverscan.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
