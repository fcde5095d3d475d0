package match

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"coverscan/internal/config"
)

// Reason tags why the trigger policy asked for vision analysis.
type Reason string

const (
	ReasonAutoLowConfidence  Reason = "auto_low_confidence"
	ReasonMultipleCandidates Reason = "multiple_candidates"
	ReasonUserCorrection     Reason = "user_correction"
	ReasonSanityCheck        Reason = "sanity_check"
	ReasonVisionFirst        Reason = "vision_first"
)

// scoreEpsilon absorbs float64 rounding in the gap comparison. The gap rule
// is strict: a gap of exactly candidateGap must not fire.
const scoreEpsilon = 1e-9

// Decision is the trigger policy output. Reason is empty when Should is
// false.
type Decision struct {
	Should bool
	Reason Reason
}

// TriggerInput carries everything the policy needs for one scan attempt.
type TriggerInput struct {
	OCRConfidence float64
	Candidates    []Candidate
	UserTriggered bool
	OCRTitle      string
	OCRIssue      string
	CacheHit      bool
}

// Policy decides, without any network call, whether the expensive vision
// analyzer should run. Decide is pure; identical inputs always yield an
// identical decision.
type Policy struct {
	visionFirst         bool
	confidenceThreshold float64
	candidateGap        float64
	publisherNames      map[string]struct{}
}

// NewPolicy builds a trigger policy from scanner configuration. Unset
// thresholds fall back to defaults and an empty publisher list falls back
// to the built-in set.
func NewPolicy(cfg config.Scanner) *Policy {
	confidence := cfg.ConfidenceThreshold
	if confidence <= 0 {
		confidence = config.DefaultConfidenceThreshold
	}
	gap := cfg.CandidateGap
	if gap <= 0 {
		gap = config.DefaultCandidateGap
	}
	names := cfg.PublisherNames
	if len(names) == 0 {
		names = config.DefaultPublisherNames()
	}
	publisherNames := make(map[string]struct{}, len(names))
	for _, name := range names {
		publisherNames[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return &Policy{
		visionFirst:         cfg.VisionFirst,
		confidenceThreshold: confidence,
		candidateGap:        gap,
		publisherNames:      publisherNames,
	}
}

// Decide evaluates the trigger rules in order, first match wins.
func (p *Policy) Decide(in TriggerInput) Decision {
	if in.UserTriggered {
		return Decision{Should: true, Reason: ReasonUserCorrection}
	}
	if in.CacheHit {
		return Decision{}
	}
	if p.visionFirst {
		return Decision{Should: true, Reason: ReasonVisionFirst}
	}

	// Legacy path, active only when vision-first is disabled.
	if len(in.Candidates) == 0 {
		return Decision{Should: true, Reason: ReasonAutoLowConfidence}
	}
	if p.titleLooksMisread(in.OCRTitle, in.OCRIssue) {
		return Decision{Should: true, Reason: ReasonSanityCheck}
	}
	if strings.TrimSpace(in.OCRIssue) == "" && strings.TrimSpace(in.Candidates[0].Issue) != "" {
		return Decision{Should: true, Reason: ReasonSanityCheck}
	}
	if in.OCRConfidence < p.confidenceThreshold {
		return Decision{Should: true, Reason: ReasonAutoLowConfidence}
	}
	if len(in.Candidates) >= 2 && in.Candidates[0].Score-in.Candidates[1].Score < p.candidateGap-scoreEpsilon {
		return Decision{Should: true, Reason: ReasonMultipleCandidates}
	}
	return Decision{}
}

// titleLooksMisread applies the OCR title sanity checks: publisher logos
// read as titles, implausibly short titles, and stylized single-word logos
// with no issue number.
func (p *Policy) titleLooksMisread(title, issue string) bool {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return false
	}
	normalized := strings.ToLower(trimmed)
	if _, ok := p.publisherNames[normalized]; ok {
		return true
	}
	words := strings.Fields(normalized)
	if len(words) == 1 {
		if _, ok := p.publisherNames[words[0]]; ok {
			return true
		}
	}
	if utf8.RuneCountInString(normalized) <= 2 {
		return true
	}
	if len(strings.Fields(trimmed)) == 1 && isAllUpper(trimmed) && strings.TrimSpace(issue) == "" {
		return true
	}
	return false
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
