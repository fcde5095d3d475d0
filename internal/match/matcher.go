package match

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"coverscan/internal/config"
	"coverscan/internal/logging"
	"coverscan/internal/services"
	"coverscan/internal/vision"
)

// Identification-derived matches report this fixed similarity. A model
// naming the comic outright is stronger evidence than a fuzzy text score.
const identificationSimilarity = 0.85

// MatchResult is the normalized outcome of a vision match attempt. Either
// the best-match fields or the identification fields are meaningful, never
// both from a single analyzer response.
type MatchResult struct {
	BestMatchComicID      int64
	BestMatchTitle        string
	BestMatchIssue        string
	BestMatchPublisher    string
	BestMatchYear         int
	BestMatchCoverURL     string
	SimilarityScore       float64
	VisionOverrideApplied bool
	CandidatesCompared    int

	IdentificationMode       bool
	IdentifiedTitle          string
	IdentifiedIssue          string
	IdentifiedPublisher      string
	IdentifiedCharacter      string
	IdentificationConfidence float64

	// Candidates carries the re-ranked identification search results when
	// identification mode produced them.
	Candidates []Candidate

	// LimitReached reports that a usage quota blocked the call entirely.
	// All other fields are zero in that case and the attempt is terminal.
	LimitReached bool
}

// VisionAnalyzer is the subset of the vision client used by the matcher.
type VisionAnalyzer interface {
	Compare(ctx context.Context, req vision.CompareRequest) (*vision.Result, error)
	Identify(ctx context.Context, req vision.IdentifyRequest) (*vision.Result, error)
}

// Matcher orchestrates comparison and identification calls and normalizes
// their results. Transport failures are absorbed and surface as nil.
type Matcher struct {
	analyzer VisionAnalyzer
	searcher *Searcher
	logger   *slog.Logger

	identificationThreshold float64
	overrideThreshold       float64
	prefillThreshold        float64
	maxComparisonCandidates int
}

// NewMatcher builds a matcher from scanner configuration.
func NewMatcher(analyzer VisionAnalyzer, searcher *Searcher, cfg config.Scanner, logger *slog.Logger) *Matcher {
	identification := cfg.IdentificationThreshold
	if identification <= 0 {
		identification = config.DefaultIdentificationThreshold
	}
	override := cfg.VisionOverrideThreshold
	if override <= 0 {
		override = config.DefaultVisionOverrideThreshold
	}
	prefill := cfg.PrefillConfidenceThreshold
	if prefill <= 0 {
		prefill = config.DefaultPrefillConfidence
	}
	maxCandidates := cfg.MaxComparisonCandidates
	if maxCandidates <= 0 {
		maxCandidates = config.DefaultMaxComparisonCandidates
	}
	return &Matcher{
		analyzer:                analyzer,
		searcher:                searcher,
		logger:                  logging.NewComponentLogger(logger, "matcher"),
		identificationThreshold: identification,
		overrideThreshold:       override,
		prefillThreshold:        prefill,
		maxComparisonCandidates: maxCandidates,
	}
}

// RunVisionMatch runs the full vision match flow for one scan attempt.
// A nil return means the attempt failed or produced nothing usable and the
// caller should fall through to manual search.
func (m *Matcher) RunVisionMatch(ctx context.Context, image string, candidates []Candidate, reason Reason, scanEventID string) *MatchResult {
	maxScore := 0.0
	for _, cand := range candidates {
		if cand.Score > maxScore {
			maxScore = cand.Score
		}
	}

	if len(candidates) == 0 || maxScore < m.identificationThreshold {
		m.logger.Info("delegating to identification mode",
			logging.Int("candidates", len(candidates)),
			logging.Float64("max_score", maxScore),
			logging.Float64("threshold", m.identificationThreshold))
		result := m.runIdentification(ctx, image, "", scanEventID)
		if result != nil {
			return result
		}
		if len(candidates) == 0 {
			return nil
		}
		// Degraded path: identification produced nothing, compare against
		// the original candidates anyway.
	}
	return m.runComparison(ctx, image, candidates, reason, scanEventID)
}

// RunIdentificationSearch exposes the identification search directly so a
// caller holding identified fields can re-run the catalog side alone.
func (m *Matcher) RunIdentificationSearch(ctx context.Context, ident Identification) []Candidate {
	return m.searcher.SearchFromIdentification(ctx, ident)
}

func (m *Matcher) runComparison(ctx context.Context, image string, candidates []Candidate, reason Reason, scanEventID string) *MatchResult {
	hint := ""
	if len(candidates) > 0 {
		hint = candidates[0].DisplayTitle()
	}
	result, err := m.analyzer.Compare(ctx, vision.CompareRequest{
		Image:       image,
		Candidates:  m.reduceCandidates(candidates),
		TriggeredBy: string(reason),
		ScanEventID: scanEventID,
		Hint:        hint,
	})
	if err != nil {
		return m.absorb(err, "comparison")
	}

	if result.IdentificationMode {
		// The analyzer fell back internally; turn its identification into
		// concrete candidates, keeping the prefill path when search fails.
		return m.resultFromIdentification(ctx, result, true)
	}

	out := &MatchResult{
		SimilarityScore:    result.SimilarityScore,
		CandidatesCompared: result.CandidatesCompared,
	}
	if result.BestMatchIndex > 0 && result.BestMatchIndex <= len(candidates) {
		best := candidates[result.BestMatchIndex-1]
		out.BestMatchComicID = best.ID
		out.BestMatchTitle = best.DisplayTitle()
		out.BestMatchIssue = best.Issue
		out.BestMatchPublisher = best.Publisher
		out.BestMatchYear = best.Year
		out.BestMatchCoverURL = best.CoverURL
		out.VisionOverrideApplied = result.SimilarityScore >= m.overrideThreshold
	}
	return out
}

func (m *Matcher) runIdentification(ctx context.Context, image, hint, scanEventID string) *MatchResult {
	result, err := m.analyzer.Identify(ctx, vision.IdentifyRequest{
		Image:       image,
		Hint:        hint,
		ScanEventID: scanEventID,
	})
	if err != nil {
		return m.absorb(err, "identification")
	}
	return m.resultFromIdentification(ctx, result, false)
}

// resultFromIdentification reshapes an identification-mode analyzer result
// into a comparison-style MatchResult backed by catalog candidates.
func (m *Matcher) resultFromIdentification(ctx context.Context, result *vision.Result, allowPrefill bool) *MatchResult {
	ident := Identification{
		Title:      strings.TrimSpace(result.IdentifiedTitle),
		Issue:      strings.TrimSpace(result.IdentifiedIssue),
		Publisher:  strings.TrimSpace(result.IdentifiedPublisher),
		Character:  strings.TrimSpace(result.IdentifiedCharacter),
		Confidence: result.IdentificationConfidence,
	}
	if ident.Title == "" && ident.Character == "" {
		m.logger.Info("identification returned no title or character")
		return nil
	}

	candidates := m.searcher.SearchFromIdentification(ctx, ident)
	if len(candidates) == 0 {
		if allowPrefill && ident.Confidence >= m.prefillThreshold {
			// No catalog entry, but the naming itself is confident enough
			// to prefill a manual search form.
			return &MatchResult{
				IdentificationMode:       true,
				IdentifiedTitle:          ident.Title,
				IdentifiedIssue:          ident.Issue,
				IdentifiedPublisher:      ident.Publisher,
				IdentifiedCharacter:      ident.Character,
				IdentificationConfidence: ident.Confidence,
			}
		}
		return nil
	}

	top := candidates[0]
	return &MatchResult{
		BestMatchComicID:         top.ID,
		BestMatchTitle:           top.DisplayTitle(),
		BestMatchIssue:           top.Issue,
		BestMatchPublisher:       top.Publisher,
		BestMatchYear:            top.Year,
		BestMatchCoverURL:        top.CoverURL,
		SimilarityScore:          identificationSimilarity,
		VisionOverrideApplied:    true,
		IdentificationMode:       true,
		IdentifiedTitle:          ident.Title,
		IdentifiedIssue:          ident.Issue,
		IdentifiedPublisher:      ident.Publisher,
		IdentifiedCharacter:      ident.Character,
		IdentificationConfidence: ident.Confidence,
		Candidates:               candidates,
	}
}

// absorb converts analyzer failures into the caller-visible signals: quota
// exhaustion becomes a terminal LimitReached result, everything else
// becomes nil after logging.
func (m *Matcher) absorb(err error, mode string) *MatchResult {
	if errors.Is(err, services.ErrQuota) {
		m.logger.Warn("vision usage limit reached",
			logging.String("mode", mode))
		return &MatchResult{LimitReached: true}
	}
	m.logger.Warn("vision call failed, falling through to manual search",
		logging.String("mode", mode),
		logging.Error(err))
	return nil
}

func (m *Matcher) reduceCandidates(candidates []Candidate) []vision.ReducedCandidate {
	limit := m.maxComparisonCandidates
	if len(candidates) < limit {
		limit = len(candidates)
	}
	reduced := make([]vision.ReducedCandidate, 0, limit)
	for _, cand := range candidates[:limit] {
		reduced = append(reduced, vision.ReducedCandidate{
			ID:        cand.ID,
			Title:     cand.DisplayTitle(),
			Issue:     cand.Issue,
			Publisher: cand.Publisher,
			Year:      cand.Year,
			CoverURL:  cand.CoverURL,
			Score:     cand.Score,
		})
	}
	return reduced
}
