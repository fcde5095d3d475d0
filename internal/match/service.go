package match

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"coverscan/internal/correctioncache"
	"coverscan/internal/logging"
	"coverscan/internal/services"
)

// CorrectionStore is the subset of the correction cache used by the
// service.
type CorrectionStore interface {
	Contains(ctx context.Context, ocrText string) (bool, error)
	Save(ctx context.Context, ocrText string, pick correctioncache.Entry, visionConfidence float64) (bool, error)
}

// Service is the surface the presentation layer consumes: a trigger
// decision, a vision match run, a direct identification search, and a
// confirmed-selection save. All returns are plain data.
type Service struct {
	policy  *Policy
	matcher *Matcher
	store   CorrectionStore
	logger  *slog.Logger
}

// NewService assembles the pipeline facade. store may be nil when the
// correction cache is disabled.
func NewService(policy *Policy, matcher *Matcher, store CorrectionStore, logger *slog.Logger) *Service {
	return &Service{
		policy:  policy,
		matcher: matcher,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "scanner"),
	}
}

// ScanInput carries one scan attempt: the captured image plus the OCR
// extraction and candidate fetch results from the external services.
type ScanInput struct {
	Image         string
	OCRText       string
	OCRConfidence float64
	OCRTitle      string
	OCRIssue      string
	Candidates    []Candidate
	UserTriggered bool
}

// ScanOutcome is the result of one pipeline run.
type ScanOutcome struct {
	ScanEventID string
	CacheHit    bool
	Decision    Decision
	Match       *MatchResult
}

// Scan runs the full pipeline: cache lookup, trigger decision, and, when
// the decision asks for it, the vision match flow.
func (s *Service) Scan(ctx context.Context, in ScanInput) *ScanOutcome {
	scanEventID := uuid.NewString()
	ctx = services.WithScanEventID(ctx, scanEventID)
	logger := logging.WithContext(ctx, s.logger)

	cacheHit := s.cacheHit(ctx, in.OCRText, logger)
	decision := s.policy.Decide(TriggerInput{
		OCRConfidence: in.OCRConfidence,
		Candidates:    in.Candidates,
		UserTriggered: in.UserTriggered,
		OCRTitle:      in.OCRTitle,
		OCRIssue:      in.OCRIssue,
		CacheHit:      cacheHit,
	})
	logger.Info("trigger decision",
		logging.Args(logging.DecisionAttrs("vision_trigger", strconv.FormatBool(decision.Should), string(decision.Reason))...)...)

	outcome := &ScanOutcome{
		ScanEventID: scanEventID,
		CacheHit:    cacheHit,
		Decision:    decision,
	}
	if !decision.Should {
		return outcome
	}
	outcome.Match = s.matcher.RunVisionMatch(ctx, in.Image, in.Candidates, decision.Reason, scanEventID)
	return outcome
}

// Decide exposes the trigger policy directly, with the cache consulted for
// the hit flag.
func (s *Service) Decide(ctx context.Context, in ScanInput) Decision {
	logger := logging.WithContext(ctx, s.logger)
	return s.policy.Decide(TriggerInput{
		OCRConfidence: in.OCRConfidence,
		Candidates:    in.Candidates,
		UserTriggered: in.UserTriggered,
		OCRTitle:      in.OCRTitle,
		OCRIssue:      in.OCRIssue,
		CacheHit:      s.cacheHit(ctx, in.OCRText, logger),
	})
}

// RunIdentification runs the identification search directly from already
// identified fields.
func (s *Service) RunIdentification(ctx context.Context, ident Identification) []Candidate {
	return s.matcher.RunIdentificationSearch(ctx, ident)
}

// ConfirmSelection records a user-confirmed pick in the correction cache.
// The write is gated and normalized by the store; a disabled cache is a
// silent no-op.
func (s *Service) ConfirmSelection(ctx context.Context, ocrText string, pick Candidate, visionConfidence float64) error {
	if s.store == nil {
		return nil
	}
	saved, err := s.store.Save(ctx, ocrText, correctioncache.Entry{
		ComicID:   pick.ID,
		VolumeID:  pick.VolumeID,
		Title:     pick.DisplayTitle(),
		Issue:     pick.Issue,
		Year:      pick.Year,
		Publisher: pick.Publisher,
		CoverURL:  pick.CoverURL,
	}, visionConfidence)
	if err != nil {
		return services.Wrap(services.ErrTransient, "scanner", "confirm selection", "persist correction", err)
	}
	if saved {
		s.logger.Info("correction learned",
			logging.Int64("comic_id", pick.ID),
			logging.Float64("confidence", visionConfidence))
	}
	return nil
}

// cacheHit consults the correction cache, treating a missing or failing
// store as a miss so the pipeline never blocks on the cache.
func (s *Service) cacheHit(ctx context.Context, ocrText string, logger *slog.Logger) bool {
	if s.store == nil {
		return false
	}
	hit, err := s.store.Contains(ctx, ocrText)
	if err != nil {
		logger.Warn("correction cache lookup failed, treating as miss",
			logging.Error(err))
		return false
	}
	return hit
}
