package config

const (
	defaultCacheDir                  = "~/.cache/coverscan"
	defaultLogDir                    = "~/.local/share/coverscan/logs"
	defaultCatalogBaseURL            = "https://comicvine.gamespot.com/api"
	defaultCatalogRequestsPerSec     = 1.0
	defaultCatalogTimeoutSeconds     = 10
	defaultCatalogCacheTTLMinutes    = 10
	defaultVisionBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultVisionModel               = "google/gemini-3-flash-preview"
	defaultVisionTimeoutSeconds      = 60
	defaultCorrectionCacheConfidence = 0.70
	defaultCorrectionCacheOnConflict = "keep"
	defaultCorrectionCacheFilename   = "corrections.db"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
)

// Scanner threshold defaults, shared with the matching pipeline so policy
// construction from a partial configuration stays well-defined.
const (
	DefaultConfidenceThreshold     = 0.80
	DefaultCandidateGap            = 0.10
	DefaultVisionOverrideThreshold = 0.85
	DefaultIdentificationThreshold = 0.50
	DefaultPrefillConfidence       = 0.70
	DefaultMaxComparisonCandidates = 15
)

// DefaultPublisherNames lists publishers whose names commonly appear as
// misread OCR titles when the cover logo dominates the frame.
func DefaultPublisherNames() []string {
	return []string{
		"marvel", "dc", "image", "dark horse", "idw", "boom", "valiant",
		"dynamite", "archie", "vertigo", "wildstorm", "top cow", "oni",
		"aftershock", "scout", "titan", "vault", "mad cave", "ablaze",
	}
}

// DefaultReprintPublishers lists foreign/reprint publishers whose catalog
// entries visually resemble US originals but are the wrong match for a
// US-market listing.
func DefaultReprintPublishers() []string {
	return []string{
		"panini", "panini comics", "panini france", "panini espana",
		"panini brasil", "panini mexico", "editorial vid", "televisa",
		"planeta deagostini", "semic", "egmont", "marvel italia",
		"marvel france", "hachette", "ediciones zinco", "comics usa",
		"juniorpress", "atlantic forlag", "condor", "williams",
		"bsv williams verlag",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
		},
		Catalog: Catalog{
			BaseURL:         defaultCatalogBaseURL,
			RequestsPerSec:  defaultCatalogRequestsPerSec,
			TimeoutSeconds:  defaultCatalogTimeoutSeconds,
			CacheTTLMinutes: defaultCatalogCacheTTLMinutes,
		},
		Vision: Vision{
			BaseURL:        defaultVisionBaseURL,
			Model:          defaultVisionModel,
			TimeoutSeconds: defaultVisionTimeoutSeconds,
		},
		Scanner: Scanner{
			VisionFirst:                true,
			ConfidenceThreshold:        DefaultConfidenceThreshold,
			CandidateGap:               DefaultCandidateGap,
			VisionOverrideThreshold:    DefaultVisionOverrideThreshold,
			IdentificationThreshold:    DefaultIdentificationThreshold,
			PrefillConfidenceThreshold: DefaultPrefillConfidence,
			MaxComparisonCandidates:    DefaultMaxComparisonCandidates,
			PublisherNames:             DefaultPublisherNames(),
			ReprintPublishers:          DefaultReprintPublishers(),
		},
		CorrectionCache: CorrectionCache{
			Enabled:       true,
			MinConfidence: defaultCorrectionCacheConfidence,
			OnConflict:    defaultCorrectionCacheOnConflict,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
