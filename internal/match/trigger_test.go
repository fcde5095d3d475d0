package match

import (
	"testing"

	"coverscan/internal/config"
)

func legacyPolicy() *Policy {
	return NewPolicy(config.Scanner{VisionFirst: false})
}

func TestDecideUserTriggeredAlwaysWins(t *testing.T) {
	policy := NewPolicy(config.Scanner{VisionFirst: true})
	decision := policy.Decide(TriggerInput{
		UserTriggered: true,
		CacheHit:      true,
		OCRConfidence: 1.0,
	})
	if !decision.Should || decision.Reason != ReasonUserCorrection {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestDecideCacheHitShortCircuits(t *testing.T) {
	// A confirmed cache entry wins over everything but a user override,
	// including vision-first mode and zero confidence.
	policy := NewPolicy(config.Scanner{VisionFirst: true})
	decision := policy.Decide(TriggerInput{
		CacheHit:      true,
		OCRConfidence: 0,
	})
	if decision.Should || decision.Reason != "" {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestDecideVisionFirstIgnoresCandidates(t *testing.T) {
	policy := NewPolicy(config.Scanner{VisionFirst: true})
	inputs := []TriggerInput{
		{OCRConfidence: 1.0, Candidates: []Candidate{{Score: 0.99, Issue: "1"}, {Score: 0.2}}, OCRTitle: "Saga", OCRIssue: "1"},
		{OCRConfidence: 0},
	}
	for _, in := range inputs {
		decision := policy.Decide(in)
		if !decision.Should || decision.Reason != ReasonVisionFirst {
			t.Fatalf("unexpected decision for %+v: %+v", in, decision)
		}
		// Pure function: a repeat call yields the identical decision.
		if again := policy.Decide(in); again != decision {
			t.Fatalf("decision not deterministic: %+v vs %+v", decision, again)
		}
	}
}

func TestDecideLegacyRules(t *testing.T) {
	strong := []Candidate{{Score: 0.95, Issue: "3"}, {Score: 0.70, Issue: "4"}}

	tests := []struct {
		name   string
		in     TriggerInput
		should bool
		reason Reason
	}{
		{
			name:   "zero candidates fires before sanity checks",
			in:     TriggerInput{OCRTitle: "MARVEL", OCRConfidence: 0.9},
			should: true,
			reason: ReasonAutoLowConfidence,
		},
		{
			name:   "publisher name as title",
			in:     TriggerInput{OCRTitle: "Marvel", OCRIssue: "1", OCRConfidence: 0.95, Candidates: strong},
			should: true,
			reason: ReasonSanityCheck,
		},
		{
			name:   "sole word is a publisher name",
			in:     TriggerInput{OCRTitle: " dc ", OCRIssue: "12", OCRConfidence: 0.95, Candidates: strong},
			should: true,
			reason: ReasonSanityCheck,
		},
		{
			name:   "title too short",
			in:     TriggerInput{OCRTitle: "Xo", OCRIssue: "5", OCRConfidence: 0.95, Candidates: strong},
			should: true,
			reason: ReasonSanityCheck,
		},
		{
			name:   "single uppercase word without issue",
			in:     TriggerInput{OCRTitle: "HULK", OCRConfidence: 0.95, Candidates: []Candidate{{Score: 0.95}, {Score: 0.70}}},
			should: true,
			reason: ReasonSanityCheck,
		},
		{
			name:   "single uppercase word with issue passes",
			in:     TriggerInput{OCRTitle: "HULK", OCRIssue: "181", OCRConfidence: 0.95, Candidates: []Candidate{{Score: 0.95}, {Score: 0.70}}},
			should: false,
		},
		{
			name:   "candidate has issue the scan missed",
			in:     TriggerInput{OCRTitle: "Incredible Hulk", OCRConfidence: 0.95, Candidates: strong},
			should: true,
			reason: ReasonSanityCheck,
		},
		{
			name:   "low confidence",
			in:     TriggerInput{OCRTitle: "Incredible Hulk", OCRIssue: "181", OCRConfidence: 0.79, Candidates: strong},
			should: true,
			reason: ReasonAutoLowConfidence,
		},
		{
			name:   "ambiguous top two",
			in:     TriggerInput{OCRTitle: "Incredible Hulk", OCRIssue: "181", OCRConfidence: 0.95, Candidates: []Candidate{{Score: 0.90, Issue: "181"}, {Score: 0.81, Issue: "182"}}},
			should: true,
			reason: ReasonMultipleCandidates,
		},
		{
			name:   "confident unambiguous result passes",
			in:     TriggerInput{OCRTitle: "Incredible Hulk", OCRIssue: "181", OCRConfidence: 0.95, Candidates: strong},
			should: false,
		},
	}

	policy := legacyPolicy()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := policy.Decide(tc.in)
			if decision.Should != tc.should || decision.Reason != tc.reason {
				t.Fatalf("got %+v, want should=%v reason=%q", decision, tc.should, tc.reason)
			}
		})
	}
}

func TestDecideGapBoundaryIsStrict(t *testing.T) {
	policy := legacyPolicy()
	base := TriggerInput{OCRTitle: "Incredible Hulk", OCRIssue: "181", OCRConfidence: 0.95}

	exact := base
	exact.Candidates = []Candidate{{Score: 0.90, Issue: "181"}, {Score: 0.80, Issue: "182"}}
	if decision := policy.Decide(exact); decision.Should {
		t.Fatalf("gap of exactly 0.10 must not trigger, got %+v", decision)
	}

	inside := base
	inside.Candidates = []Candidate{{Score: 0.90, Issue: "181"}, {Score: 0.801, Issue: "182"}}
	decision := policy.Decide(inside)
	if !decision.Should || decision.Reason != ReasonMultipleCandidates {
		t.Fatalf("gap below 0.10 must trigger, got %+v", decision)
	}
}
