package match

import (
	"context"
	"errors"
	"testing"

	"coverscan/internal/catalog"
	"coverscan/internal/config"
	"coverscan/internal/correctioncache"
	"coverscan/internal/logging"
	"coverscan/internal/vision"
)

type fakeStore struct {
	hits    map[string]bool
	failure error
	saves   []fakeSave
}

type fakeSave struct {
	text       string
	entry      correctioncache.Entry
	confidence float64
}

func (f *fakeStore) Contains(ctx context.Context, ocrText string) (bool, error) {
	if f.failure != nil {
		return false, f.failure
	}
	return f.hits[correctioncache.Normalize(ocrText)], nil
}

func (f *fakeStore) Save(ctx context.Context, ocrText string, pick correctioncache.Entry, visionConfidence float64) (bool, error) {
	if f.failure != nil {
		return false, f.failure
	}
	f.saves = append(f.saves, fakeSave{text: ocrText, entry: pick, confidence: visionConfidence})
	return true, nil
}

func newTestService(scanner config.Scanner, analyzer *fakeAnalyzer, cat catalog.Searcher, store CorrectionStore) *Service {
	if cat == nil {
		cat = &fakeCatalog{}
	}
	searcher := NewSearcher(cat, scanner.ReprintPublishers, logging.NewNop())
	matcher := NewMatcher(analyzer, searcher, scanner, logging.NewNop())
	return NewService(NewPolicy(scanner), matcher, store, logging.NewNop())
}

func TestScanCacheHitSkipsVision(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	store := &fakeStore{hits: map[string]bool{"incredible hulk": true}}
	service := newTestService(config.Scanner{VisionFirst: true}, analyzer, nil, store)

	outcome := service.Scan(context.Background(), ScanInput{
		Image:   "img",
		OCRText: "  Incredible HULK ",
	})
	if !outcome.CacheHit {
		t.Fatal("expected cache hit")
	}
	if outcome.Decision.Should || outcome.Match != nil {
		t.Fatalf("cache hit must skip vision entirely: %+v", outcome)
	}
	if analyzer.compareCalls != 0 || analyzer.identifyCall != 0 {
		t.Fatal("analyzer must not be called on a cache hit")
	}
	if outcome.ScanEventID == "" {
		t.Fatal("expected a scan event id")
	}
}

func TestScanCacheFailureTreatedAsMiss(t *testing.T) {
	store := &fakeStore{failure: errors.New("db locked")}
	analyzer := &fakeAnalyzer{
		identify: func(req vision.IdentifyRequest) (*vision.Result, error) {
			return &vision.Result{IdentificationMode: true}, nil
		},
	}
	service := newTestService(config.Scanner{VisionFirst: true}, analyzer, nil, store)

	outcome := service.Scan(context.Background(), ScanInput{Image: "img", OCRText: "hulk"})
	if outcome.CacheHit {
		t.Fatal("failing store must read as a miss")
	}
	if !outcome.Decision.Should || outcome.Decision.Reason != ReasonVisionFirst {
		t.Fatalf("unexpected decision: %+v", outcome.Decision)
	}
}

func TestConfirmSelectionForwardsPick(t *testing.T) {
	store := &fakeStore{}
	service := newTestService(config.Scanner{}, &fakeAnalyzer{}, nil, store)

	pick := Candidate{ID: 42, VolumeID: 7, VolumeName: "Incredible Hulk", Title: "The Incredible Hulk #181", Issue: "181", Year: 1974, Publisher: "Marvel", CoverURL: "https://img/181.jpg"}
	if err := service.ConfirmSelection(context.Background(), "HULK 181", pick, 0.9); err != nil {
		t.Fatalf("ConfirmSelection returned error: %v", err)
	}
	if len(store.saves) != 1 {
		t.Fatalf("expected one save, got %d", len(store.saves))
	}
	saved := store.saves[0]
	if saved.entry.ComicID != 42 || saved.entry.Title != "Incredible Hulk" {
		t.Fatalf("unexpected entry: %+v", saved.entry)
	}
	if saved.confidence != 0.9 || saved.text != "HULK 181" {
		t.Fatalf("unexpected save args: %+v", saved)
	}
}

func TestConfirmSelectionWithoutStoreIsNoop(t *testing.T) {
	service := newTestService(config.Scanner{}, &fakeAnalyzer{}, nil, nil)
	if err := service.ConfirmSelection(context.Background(), "hulk", Candidate{ID: 1}, 0.9); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

// Full legacy-mode pipeline: a stylized single-word OCR read triggers the
// sanity check, low candidate scores route to identification, and the
// exact-title match comes out on top.
func TestScanSingleWordLogoEndToEnd(t *testing.T) {
	cat := &fakeCatalog{
		search: func(query string, opts catalog.SearchOptions) (*catalog.Response, error) {
			if query != "Incredible Hulk" {
				return &catalog.Response{StatusCode: 1}, nil
			}
			return &catalog.Response{StatusCode: 1, Results: []catalog.Result{
				issueResult(2, "Hulk and the Agents of S.M.A.S.H.", "Marvel"),
				issueResult(1, "Incredible Hulk", "Marvel"),
			}}, nil
		},
	}
	analyzer := &fakeAnalyzer{
		identify: func(req vision.IdentifyRequest) (*vision.Result, error) {
			return &vision.Result{
				IdentificationMode:       true,
				IdentifiedTitle:          "Incredible Hulk",
				IdentifiedCharacter:      "Hulk",
				IdentificationConfidence: 0.9,
			}, nil
		},
	}
	service := newTestService(config.Scanner{VisionFirst: false}, analyzer, cat, &fakeStore{})

	outcome := service.Scan(context.Background(), ScanInput{
		Image:         "img",
		OCRText:       "HULK",
		OCRTitle:      "HULK",
		OCRConfidence: 0.95,
		Candidates:    []Candidate{{ID: 500, Title: "Hulk?", Score: 0.4}},
	})

	if outcome.Decision.Reason != ReasonSanityCheck {
		t.Fatalf("expected sanity_check trigger, got %+v", outcome.Decision)
	}
	match := outcome.Match
	if match == nil {
		t.Fatal("expected a match result")
	}
	if !match.IdentificationMode || match.BestMatchComicID != 1 {
		t.Fatalf("unexpected match: %+v", match)
	}
	if match.BestMatchTitle != "Incredible Hulk" {
		t.Fatalf("expected exact title on top, got %q", match.BestMatchTitle)
	}
	if len(match.Candidates) == 0 || match.Candidates[0].Source != SourceVisionIdentification {
		t.Fatalf("expected vision-identification provenance: %+v", match.Candidates)
	}
	if analyzer.compareCalls != 0 {
		t.Fatal("comparison must not run for weak candidates")
	}
}
