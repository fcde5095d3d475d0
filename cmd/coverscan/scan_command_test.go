package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coverscan/internal/correctioncache"
)

func writeFakeImage(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "cover.jpg")
	if err := os.WriteFile(path, []byte("not-a-real-jpeg"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestScanCacheHitSkipsVision(t *testing.T) {
	env := setupCLITestEnv(t)
	seedCorrection(t, env, "UNCANNY X-MEN 141", correctioncache.Entry{
		ComicID: 19094,
		Title:   "Uncanny X-Men",
		Issue:   "141",
	})

	image := writeFakeImage(t, env.baseDir)
	payload := writeOCRPayload(t, env.baseDir, ocrPayload{
		Text:       "UNCANNY X-MEN 141",
		Confidence: 0.55,
	})

	out, _, err := runCLI(t, []string{"scan", image, "--ocr", payload, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, `"cacheHit": true`)
	requireContains(t, out, `"visionTriggered": false`)
}

func TestScanMissingImageErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"scan", filepath.Join(env.baseDir, "missing.jpg")}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "read image") {
		t.Fatalf("expected read image error, got %v", err)
	}
}

func TestEncodeImageFileBuildsDataURI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cover.png")
	if err := os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	uri, err := encodeImageFile(path)
	if err != nil {
		t.Fatalf("encodeImageFile: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("unexpected data URI prefix: %s", uri)
	}
}
