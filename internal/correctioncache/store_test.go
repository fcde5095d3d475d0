package correctioncache

import (
	"context"
	"path/filepath"
	"testing"

	"coverscan/internal/config"
	"coverscan/internal/logging"
)

func openTestStore(t *testing.T, onConflict string) *Store {
	t.Helper()
	cfg := config.CorrectionCache{
		Enabled:       true,
		Path:          filepath.Join(t.TempDir(), "corrections.db"),
		MinConfidence: 0.70,
		OnConflict:    onConflict,
	}
	store, err := Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndContains(t *testing.T) {
	store := openTestStore(t, OnConflictKeep)
	ctx := context.Background()

	saved, err := store.Save(ctx, "  The Incredible HULK  ", Entry{
		ComicID:   42,
		VolumeID:  7,
		Title:     "Incredible Hulk",
		Issue:     "181",
		Year:      1974,
		Publisher: "Marvel",
		CoverURL:  "https://img/181.jpg",
	}, 0.9)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !saved {
		t.Fatal("expected save to write a row")
	}

	// Lookup normalizes the same way the write path does.
	hit, err := store.Contains(ctx, "the incredible hulk")
	if err != nil {
		t.Fatalf("Contains returned error: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit for normalized text")
	}

	entry, err := store.Get(ctx, "THE INCREDIBLE HULK")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if entry == nil {
		t.Fatal("expected stored entry")
	}
	if entry.ComicID != 42 || entry.Title != "Incredible Hulk" || entry.Issue != "181" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Confidence != 90 {
		t.Fatalf("expected confidence stored as 90, got %d", entry.Confidence)
	}
	if entry.NormalizedInput != "the incredible hulk" {
		t.Fatalf("unexpected key %q", entry.NormalizedInput)
	}
}

func TestSaveConfidenceBoundary(t *testing.T) {
	store := openTestStore(t, OnConflictKeep)
	ctx := context.Background()

	saved, err := store.Save(ctx, "venom", Entry{ComicID: 1, Title: "Venom"}, 0.69)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if saved {
		t.Fatal("expected 0.69 confidence to be rejected")
	}

	saved, err = store.Save(ctx, "venom", Entry{ComicID: 1, Title: "Venom"}, 0.70)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !saved {
		t.Fatal("expected 0.70 confidence to be accepted")
	}
}

func TestSaveIgnoresInvalidInput(t *testing.T) {
	store := openTestStore(t, OnConflictKeep)
	ctx := context.Background()

	if saved, err := store.Save(ctx, "   ", Entry{ComicID: 1, Title: "Venom"}, 0.9); err != nil || saved {
		t.Fatalf("expected empty-text save to no-op, got saved=%v err=%v", saved, err)
	}
	if saved, err := store.Save(ctx, "venom", Entry{Title: "Venom"}, 0.9); err != nil || saved {
		t.Fatalf("expected missing-id save to no-op, got saved=%v err=%v", saved, err)
	}
	if count, err := store.Count(ctx); err != nil || count != 0 {
		t.Fatalf("expected empty store, got count=%d err=%v", count, err)
	}
}

func TestKeepPolicyFirstWriteWins(t *testing.T) {
	store := openTestStore(t, OnConflictKeep)
	ctx := context.Background()

	if _, err := store.Save(ctx, "spawn", Entry{ComicID: 1, Title: "Spawn"}, 0.80); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	saved, err := store.Save(ctx, "SPAWN", Entry{ComicID: 2, Title: "Spawn Annual"}, 0.99)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if saved {
		t.Fatal("expected conflicting save to no-op under keep policy")
	}

	entry, err := store.Get(ctx, "spawn")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if entry.ComicID != 1 {
		t.Fatalf("expected first write to win, got comic id %d", entry.ComicID)
	}
}

func TestReplacePolicyHigherConfidenceWins(t *testing.T) {
	store := openTestStore(t, OnConflictReplace)
	ctx := context.Background()

	if _, err := store.Save(ctx, "spawn", Entry{ComicID: 1, Title: "Spawn"}, 0.80); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	// Lower confidence must not displace the stored row.
	if _, err := store.Save(ctx, "spawn", Entry{ComicID: 2, Title: "Spawn Annual"}, 0.75); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	entry, err := store.Get(ctx, "spawn")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if entry.ComicID != 1 {
		t.Fatalf("expected lower confidence to keep original, got comic id %d", entry.ComicID)
	}

	saved, err := store.Save(ctx, "spawn", Entry{ComicID: 3, Title: "Spawn"}, 0.95)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !saved {
		t.Fatal("expected higher confidence to replace under replace policy")
	}
	entry, err = store.Get(ctx, "spawn")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if entry.ComicID != 3 || entry.Confidence != 95 {
		t.Fatalf("unexpected replacement: %+v", entry)
	}
}

func TestRemoveAndClear(t *testing.T) {
	store := openTestStore(t, OnConflictKeep)
	ctx := context.Background()

	for _, text := range []string{"hulk", "venom", "spawn"} {
		if _, err := store.Save(ctx, text, Entry{ComicID: 1, Title: text}, 0.9); err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
	}

	if err := store.Remove(ctx, "Venom"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if err := store.Remove(ctx, "venom"); err == nil {
		t.Fatal("expected error removing missing entry")
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty store after clear, got %d", count)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrections.db")
	cfg := config.CorrectionCache{Enabled: true, Path: path, MinConfidence: 0.70, OnConflict: OnConflictKeep}

	store, err := Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if _, err := store.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump schema version: %v", err)
	}
	_ = store.Close()

	if _, err := Open(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected schema mismatch error")
	}
}
