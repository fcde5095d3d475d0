package match

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"coverscan/internal/catalog"
	"coverscan/internal/config"
	"coverscan/internal/logging"
)

const (
	searchResultCap  = 20
	minBaseTitleLen  = 3
	defaultIssueHint = "1"
)

// Identification is a free-form naming of a comic produced by the vision
// analyzer.
type Identification struct {
	Title      string
	Issue      string
	Publisher  string
	Character  string
	Confidence float64
}

// Searcher turns an identification into a ranked, trustworthy candidate
// list by querying the catalog and re-scoring the results.
type Searcher struct {
	catalog           catalog.Searcher
	reprintPublishers map[string]struct{}
	logger            *slog.Logger
}

// NewSearcher builds a searcher over the supplied catalog client. An empty
// reprint list falls back to the built-in set.
func NewSearcher(client catalog.Searcher, reprintPublishers []string, logger *slog.Logger) *Searcher {
	names := reprintPublishers
	if len(names) == 0 {
		names = config.DefaultReprintPublishers()
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return &Searcher{
		catalog:           client,
		reprintPublishers: set,
		logger:            logging.NewComponentLogger(logger, "search"),
	}
}

// SearchFromIdentification executes the fallback query chain and returns
// the re-ranked candidates of the first query that survives filtering.
// Failures during a single query attempt are absorbed and the next variant
// is tried; total failure yields an empty list.
func (s *Searcher) SearchFromIdentification(ctx context.Context, ident Identification) []Candidate {
	primary := strings.TrimSpace(ident.Title)
	if primary == "" {
		primary = strings.TrimSpace(ident.Character)
	}
	if primary == "" {
		return nil
	}

	queries := []string{primary}
	if base, ok := baseTitle(ident.Title); ok {
		queries = append(queries, base)
	}

	for _, query := range queries {
		candidates, err := s.searchOnce(ctx, query, ident)
		if err != nil {
			s.logger.Warn("catalog query failed, trying next variant",
				logging.String("query", query),
				logging.Error(err))
			continue
		}
		if len(candidates) == 0 {
			s.logger.Info("query yielded no usable candidates",
				logging.String("query", query))
			continue
		}
		return s.backfillCover(ctx, candidates, ident.Issue)
	}
	return nil
}

// baseTitle extracts the portion before a subtitle colon when it is long
// enough to stand alone as a looser query.
func baseTitle(title string) (string, bool) {
	idx := strings.Index(title, ":")
	if idx < 0 {
		return "", false
	}
	base := strings.TrimSpace(title[:idx])
	if utf8.RuneCountInString(base) < minBaseTitleLen {
		return "", false
	}
	return base, true
}

func (s *Searcher) searchOnce(ctx context.Context, query string, ident Identification) ([]Candidate, error) {
	resp, err := s.catalog.SearchIssues(ctx, query, catalog.SearchOptions{
		Publisher:   strings.TrimSpace(ident.Publisher),
		IssueNumber: strings.TrimSpace(ident.Issue),
		Limit:       searchResultCap,
	})
	if err != nil {
		return nil, err
	}

	results := resp.Results
	if len(results) > searchResultCap {
		results = results[:searchResultCap]
	}
	candidates := make([]Candidate, 0, len(results))
	for _, res := range results {
		candidates = append(candidates, candidateFromResult(res, ident.Issue))
	}
	return s.rerank(candidates, ident.Title, query), nil
}

// rerank applies the publisher and title adjustments, sorts by adjusted
// score descending, and drops everything at or below zero.
func (s *Searcher) rerank(candidates []Candidate, identifiedTitle, query string) []Candidate {
	fullTitle := strings.ToLower(strings.TrimSpace(identifiedTitle))
	queryTitle := strings.ToLower(strings.TrimSpace(query))

	ranked := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		adjusted := cand
		adjusted.AdjustedScore = cand.Score

		publisher := strings.ToLower(strings.TrimSpace(cand.Publisher))
		if _, ok := s.reprintPublishers[publisher]; ok {
			adjusted.AdjustedScore -= 1.0
			adjusted.IsReprint = true
		}

		// The reprint penalty is disqualifying; title boosts must not
		// rescue a penalized candidate back over the drop threshold.
		if !adjusted.IsReprint {
			title := strings.ToLower(strings.TrimSpace(cand.DisplayTitle()))
			switch {
			case fullTitle != "" && title == fullTitle:
				adjusted.AdjustedScore += 0.7
			case title == queryTitle:
				adjusted.AdjustedScore += 0.5
			case queryTitle != "" && strings.Contains(title, queryTitle):
				adjusted.AdjustedScore -= 0.3
			}
		}

		ranked = append(ranked, adjusted)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AdjustedScore > ranked[j].AdjustedScore
	})

	filtered := ranked[:0:0]
	for _, cand := range ranked {
		if cand.AdjustedScore > 0 {
			filtered = append(filtered, cand)
		}
	}
	return filtered
}

// backfillCover replaces a coverless top candidate with the concrete issue
// record from its volume. A failed lookup leaves the candidate unchanged.
func (s *Searcher) backfillCover(ctx context.Context, candidates []Candidate, issue string) []Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	top := candidates[0]
	if strings.TrimSpace(top.CoverURL) != "" {
		return candidates
	}
	volumeID := top.VolumeID
	if volumeID == 0 {
		volumeID = top.ID
	}
	if volumeID == 0 {
		return candidates
	}

	issueNumber := strings.TrimSpace(issue)
	if issueNumber == "" {
		issueNumber = defaultIssueHint
	}
	result, err := s.catalog.IssueByVolume(ctx, volumeID, issueNumber)
	if err != nil {
		s.logger.Info("cover backfill lookup failed, keeping volume candidate",
			logging.Int64("volume_id", volumeID),
			logging.String("issue_number", issueNumber),
			logging.Error(err))
		return candidates
	}

	if result.Image == nil || strings.TrimSpace(result.Image.OriginalURL) == "" {
		s.logger.Info("cover backfill returned no art, keeping volume candidate",
			logging.Int64("volume_id", volumeID),
			logging.String("issue_number", issueNumber))
		return candidates
	}

	top.ID = result.ID
	top.Resource = "issue"
	top.CoverURL = result.Image.OriginalURL
	top.ThumbURL = result.Image.ThumbURL
	if top.Issue == "" {
		top.Issue = strings.TrimSpace(result.IssueNumber)
	}
	candidates[0] = top
	return candidates
}
