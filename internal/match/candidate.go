package match

import (
	"strconv"
	"strings"

	"coverscan/internal/catalog"
)

// Candidate provenance tags.
const (
	SourceCatalogSearch        = "catalog-search"
	SourceVisionComparison     = "vision-comparison"
	SourceVisionIdentification = "vision-identification"
)

// Base relevance assigned to identification-derived candidates before
// re-ranking adjustments.
const identificationBaseScore = 0.8

// Candidate is a single catalog entry proposed as a match for a scanned
// cover. Values are never mutated in place; adjustments produce copies with
// an updated AdjustedScore.
type Candidate struct {
	ID         int64
	Resource   string // "issue" or "volume"
	Title      string
	VolumeName string
	VolumeID   int64
	Issue      string
	Year       int
	Publisher  string
	CoverURL   string
	ThumbURL   string
	Source     string

	// Score is the normalized relevance reported by the candidate source,
	// conventionally within [0,1].
	Score float64
	// AdjustedScore is Score after re-ranking adjustments and may leave the
	// unit range. Only AdjustedScore is thresholded against zero.
	AdjustedScore float64

	IsReprint bool
}

// DisplayTitle prefers the volume name when present.
func (c Candidate) DisplayTitle() string {
	if strings.TrimSpace(c.VolumeName) != "" {
		return c.VolumeName
	}
	return c.Title
}

func candidateFromResult(res catalog.Result, fallbackIssue string) Candidate {
	cand := Candidate{
		ID:       res.ID,
		Resource: res.ResourceType,
		Title:    res.Name,
		Issue:    strings.TrimSpace(res.IssueNumber),
		Source:   SourceVisionIdentification,
		Score:    identificationBaseScore,
	}
	if res.Volume != nil {
		cand.VolumeID = res.Volume.ID
		cand.VolumeName = res.Volume.Name
	}
	if res.Publisher != nil {
		cand.Publisher = res.Publisher.Name
	}
	if res.Image != nil {
		cand.CoverURL = res.Image.OriginalURL
		cand.ThumbURL = res.Image.ThumbURL
	}
	if cand.Resource == "" {
		cand.Resource = "issue"
	}
	if cand.Issue == "" {
		cand.Issue = strings.TrimSpace(fallbackIssue)
	}
	if cand.Title == "" {
		cand.Title = cand.VolumeName
	}
	if len(res.CoverDate) >= 4 {
		if year, err := strconv.Atoi(res.CoverDate[:4]); err == nil {
			cand.Year = year
		}
	}
	return cand
}
