package main

import (
	"encoding/json"
	"fmt"
	"os"

	"coverscan/internal/config"
	"coverscan/internal/match"
)

// ocrPayload mirrors the JSON the capture front end produces for one scan:
// the extracted text plus the catalog candidates fetched for it.
type ocrPayload struct {
	Text       string         `json:"text"`
	Confidence float64        `json:"confidence"`
	Title      string         `json:"title"`
	Issue      string         `json:"issue"`
	Candidates []ocrCandidate `json:"candidates"`
}

type ocrCandidate struct {
	ID         int64   `json:"id"`
	Resource   string  `json:"resource,omitempty"`
	Title      string  `json:"title"`
	VolumeName string  `json:"volumeName,omitempty"`
	VolumeID   int64   `json:"volumeId,omitempty"`
	Issue      string  `json:"issue,omitempty"`
	Year       int     `json:"year,omitempty"`
	Publisher  string  `json:"publisher,omitempty"`
	CoverURL   string  `json:"coverUrl,omitempty"`
	ThumbURL   string  `json:"thumbUrl,omitempty"`
	Score      float64 `json:"score"`
}

func loadOCRPayload(path string) (*ocrPayload, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve OCR payload path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read OCR payload: %w", err)
	}
	var payload ocrPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse OCR payload %s: %w", path, err)
	}
	return &payload, nil
}

func (p *ocrPayload) candidates() []match.Candidate {
	if p == nil || len(p.Candidates) == 0 {
		return nil
	}
	out := make([]match.Candidate, 0, len(p.Candidates))
	for _, cand := range p.Candidates {
		resource := cand.Resource
		if resource == "" {
			resource = "issue"
		}
		out = append(out, match.Candidate{
			ID:            cand.ID,
			Resource:      resource,
			Title:         cand.Title,
			VolumeName:    cand.VolumeName,
			VolumeID:      cand.VolumeID,
			Issue:         cand.Issue,
			Year:          cand.Year,
			Publisher:     cand.Publisher,
			CoverURL:      cand.CoverURL,
			ThumbURL:      cand.ThumbURL,
			Source:        match.SourceCatalogSearch,
			Score:         cand.Score,
			AdjustedScore: cand.Score,
		})
	}
	return out
}

func (p *ocrPayload) scanInput(image string, userTriggered bool) match.ScanInput {
	in := match.ScanInput{Image: image, UserTriggered: userTriggered}
	if p == nil {
		return in
	}
	in.OCRText = p.Text
	in.OCRConfidence = p.Confidence
	in.OCRTitle = p.Title
	in.OCRIssue = p.Issue
	in.Candidates = p.candidates()
	return in
}

func (p *ocrPayload) triggerInput(userTriggered, cacheHit bool) match.TriggerInput {
	in := match.TriggerInput{UserTriggered: userTriggered, CacheHit: cacheHit}
	if p == nil {
		return in
	}
	in.OCRConfidence = p.Confidence
	in.OCRTitle = p.Title
	in.OCRIssue = p.Issue
	in.Candidates = p.candidates()
	return in
}
