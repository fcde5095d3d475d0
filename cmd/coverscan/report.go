package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"coverscan/internal/match"
)

// writeJSON encodes v as indented JSON to the command's stdout, the
// machine-readable counterpart of the render* helpers below.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// candidateReport is the stable JSON shape for a ranked candidate.
type candidateReport struct {
	ID            int64   `json:"id"`
	Resource      string  `json:"resource"`
	Title         string  `json:"title"`
	VolumeName    string  `json:"volumeName,omitempty"`
	VolumeID      int64   `json:"volumeId,omitempty"`
	Issue         string  `json:"issue,omitempty"`
	Year          int     `json:"year,omitempty"`
	Publisher     string  `json:"publisher,omitempty"`
	CoverURL      string  `json:"coverUrl,omitempty"`
	ThumbURL      string  `json:"thumbUrl,omitempty"`
	Source        string  `json:"source"`
	Score         float64 `json:"score"`
	AdjustedScore float64 `json:"adjustedScore"`
	IsReprint     bool    `json:"isReprint,omitempty"`
}

func candidateReports(candidates []match.Candidate) []candidateReport {
	reports := make([]candidateReport, 0, len(candidates))
	for _, cand := range candidates {
		reports = append(reports, candidateReport{
			ID:            cand.ID,
			Resource:      cand.Resource,
			Title:         cand.Title,
			VolumeName:    cand.VolumeName,
			VolumeID:      cand.VolumeID,
			Issue:         cand.Issue,
			Year:          cand.Year,
			Publisher:     cand.Publisher,
			CoverURL:      cand.CoverURL,
			ThumbURL:      cand.ThumbURL,
			Source:        cand.Source,
			Score:         cand.Score,
			AdjustedScore: cand.AdjustedScore,
			IsReprint:     cand.IsReprint,
		})
	}
	return reports
}

type matchReport struct {
	LimitReached          bool              `json:"limitReached,omitempty"`
	BestMatchComicID      int64             `json:"bestMatchComicId,omitempty"`
	BestMatchTitle        string            `json:"bestMatchTitle,omitempty"`
	BestMatchIssue        string            `json:"bestMatchIssue,omitempty"`
	BestMatchPublisher    string            `json:"bestMatchPublisher,omitempty"`
	BestMatchYear         int               `json:"bestMatchYear,omitempty"`
	BestMatchCoverURL     string            `json:"bestMatchCoverUrl,omitempty"`
	SimilarityScore       float64           `json:"similarityScore"`
	VisionOverrideApplied bool              `json:"visionOverrideApplied"`
	CandidatesCompared    int               `json:"candidatesCompared"`
	IdentificationMode    bool              `json:"identificationMode"`
	IdentifiedTitle       string            `json:"identifiedTitle,omitempty"`
	IdentifiedIssue       string            `json:"identifiedIssue,omitempty"`
	IdentifiedPublisher   string            `json:"identifiedPublisher,omitempty"`
	IdentifiedCharacter   string            `json:"identifiedCharacter,omitempty"`
	IdentificationScore   float64           `json:"identificationConfidence,omitempty"`
	Candidates            []candidateReport `json:"candidates,omitempty"`
}

type scanReport struct {
	ScanEventID     string       `json:"scanEventId"`
	CacheHit        bool         `json:"cacheHit"`
	VisionTriggered bool         `json:"visionTriggered"`
	TriggerReason   string       `json:"triggerReason,omitempty"`
	Match           *matchReport `json:"match,omitempty"`
}

func newScanReport(outcome *match.ScanOutcome) scanReport {
	report := scanReport{
		ScanEventID:     outcome.ScanEventID,
		CacheHit:        outcome.CacheHit,
		VisionTriggered: outcome.Decision.Should,
		TriggerReason:   string(outcome.Decision.Reason),
	}
	if m := outcome.Match; m != nil {
		report.Match = &matchReport{
			LimitReached:          m.LimitReached,
			BestMatchComicID:      m.BestMatchComicID,
			BestMatchTitle:        m.BestMatchTitle,
			BestMatchIssue:        m.BestMatchIssue,
			BestMatchPublisher:    m.BestMatchPublisher,
			BestMatchYear:         m.BestMatchYear,
			BestMatchCoverURL:     m.BestMatchCoverURL,
			SimilarityScore:       m.SimilarityScore,
			VisionOverrideApplied: m.VisionOverrideApplied,
			CandidatesCompared:    m.CandidatesCompared,
			IdentificationMode:    m.IdentificationMode,
			IdentifiedTitle:       m.IdentifiedTitle,
			IdentifiedIssue:       m.IdentifiedIssue,
			IdentifiedPublisher:   m.IdentifiedPublisher,
			IdentifiedCharacter:   m.IdentifiedCharacter,
			IdentificationScore:   m.IdentificationConfidence,
			Candidates:            candidateReports(m.Candidates),
		}
	}
	return report
}

func renderCandidateTable(candidates []match.Candidate) string {
	headers := []string{"#", "ID", "Title", "Issue", "Year", "Publisher", "Score"}
	aligns := []columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
	rows := make([][]string, 0, len(candidates))
	for i, cand := range candidates {
		year := ""
		if cand.Year > 0 {
			year = fmt.Sprintf("%d", cand.Year)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", cand.ID),
			truncateText(cand.DisplayTitle(), 40),
			cand.Issue,
			year,
			truncateText(cand.Publisher, 24),
			formatScore(cand.AdjustedScore),
		})
	}
	return renderTable(headers, rows, aligns)
}

func renderScanOutcome(out io.Writer, outcome *match.ScanOutcome) {
	colorize := shouldColorize(out)

	fmt.Fprintf(out, "Scan event %s\n", outcome.ScanEventID)
	cacheKind := statusInfo
	if outcome.CacheHit {
		cacheKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Cache hit", cacheKind, yesNo(outcome.CacheHit), colorize))

	if outcome.Decision.Should {
		fmt.Fprintln(out, renderStatusLine("Vision", statusOK, fmt.Sprintf("triggered (%s)", outcome.Decision.Reason), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Vision", statusInfo, "not triggered", colorize))
	}

	if outcome.Match == nil {
		if outcome.Decision.Should {
			fmt.Fprintln(out, renderStatusLine("Match", statusWarn, "no usable result; search manually", colorize))
		}
		return
	}

	m := outcome.Match
	if m.LimitReached {
		fmt.Fprintln(out, renderStatusLine("Match", statusError, "vision usage limit reached", colorize))
		return
	}

	if m.IdentificationMode {
		fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, "identification", colorize))
		identified := m.IdentifiedTitle
		if identified == "" {
			identified = m.IdentifiedCharacter
		}
		if m.IdentifiedIssue != "" {
			identified += " #" + m.IdentifiedIssue
		}
		fmt.Fprintln(out, renderStatusLine("Identified", statusOK,
			fmt.Sprintf("%s (confidence %s)", identified, formatScore(m.IdentificationConfidence)), colorize))
		if len(m.Candidates) == 0 {
			fmt.Fprintln(out, renderStatusLine("Catalog", statusWarn, "no matches; fields prefill manual search", colorize))
			return
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderCandidateTable(m.Candidates))
		return
	}

	fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, "comparison", colorize))
	best := m.BestMatchTitle
	if m.BestMatchIssue != "" {
		best += " #" + m.BestMatchIssue
	}
	fmt.Fprintln(out, renderStatusLine("Best match", statusOK,
		fmt.Sprintf("%s (similarity %s)", best, formatScore(m.SimilarityScore)), colorize))
	fmt.Fprintln(out, renderStatusLine("Override", statusInfo, yesNo(m.VisionOverrideApplied), colorize))
}
