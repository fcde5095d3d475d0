package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"coverscan/internal/services"
)

func modelResponse(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"content": content},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}
}

func TestCompareParsesModelAnswer(t *testing.T) {
	server := httptest.NewServer(modelResponse(t, `{"bestMatchIndex":2,"similarityScore":0.91}`))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	result, err := client.Compare(context.Background(), CompareRequest{
		Image: "data:image/jpeg;base64,xxx",
		Candidates: []ReducedCandidate{
			{ID: 1, Title: "Venom", Issue: "1"},
			{ID: 2, Title: "Venom", Issue: "3"},
		},
	})
	if err != nil {
		t.Fatalf("Compare returned error: %v", err)
	}
	if result.BestMatchIndex != 2 || result.SimilarityScore != 0.91 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if result.CandidatesCompared != 2 {
		t.Fatalf("expected 2 candidates compared, got %d", result.CandidatesCompared)
	}
}

func TestCompareFallsBackToIdentification(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := `{"bestMatchIndex":0,"similarityScore":0.2}`
		if calls > 1 {
			content = `{"title":"Spawn","issue":"1","publisher":"Image","character":"Spawn","confidence":0.85}`
		}
		modelResponse(t, content)(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	result, err := client.Compare(context.Background(), CompareRequest{
		Image:      "data:image/jpeg;base64,xxx",
		Candidates: []ReducedCandidate{{ID: 1, Title: "Venom"}},
		Hint:       "Venom",
	})
	if err != nil {
		t.Fatalf("Compare returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected identification fallback call, got %d calls", calls)
	}
	if !result.IdentificationMode || result.IdentifiedTitle != "Spawn" {
		t.Fatalf("unexpected fallback result: %#v", result)
	}
	if result.CandidatesCompared != 1 {
		t.Fatalf("expected candidatesCompared preserved, got %d", result.CandidatesCompared)
	}
}

func TestIdentifyHandlesCodeFence(t *testing.T) {
	server := httptest.NewServer(modelResponse(t,
		"```json\n{\"title\":\"Incredible Hulk\",\"issue\":\"181\",\"publisher\":\"Marvel\",\"character\":\"Hulk\",\"confidence\":0.9}\n```"))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	result, err := client.Identify(context.Background(), IdentifyRequest{Image: "data:image/jpeg;base64,xxx"})
	if err != nil {
		t.Fatalf("Identify returned error: %v", err)
	}
	if !result.IdentificationMode {
		t.Fatal("expected identification mode result")
	}
	if result.IdentifiedTitle != "Incredible Hulk" || result.IdentifiedCharacter != "Hulk" {
		t.Fatalf("unexpected identification: %#v", result)
	}
	if result.IdentificationConfidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", result.IdentificationConfidence)
	}
}

func TestQuotaStatusMapsToErrQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "limit"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	_, err := client.Identify(context.Background(), IdentifyRequest{Image: "data:image/jpeg;base64,xxx"})
	if !errors.Is(err, services.ErrQuota) {
		t.Fatalf("expected ErrQuota, got %v", err)
	}
}

func TestIdentifyRejectsMissingImage(t *testing.T) {
	client := NewClient(Config{APIKey: "test", Model: "demo-model"})
	if _, err := client.Identify(context.Background(), IdentifyRequest{}); err == nil {
		t.Fatal("expected error for missing image")
	}
}

func TestDecodeVisionJSONExtractsEmbeddedObject(t *testing.T) {
	var parsed struct {
		Title string `json:"title"`
	}
	content := "The comic appears to be: {\"title\":\"Spawn\"} based on the logo."
	if err := DecodeVisionJSON(content, &parsed); err != nil {
		t.Fatalf("DecodeVisionJSON returned error: %v", err)
	}
	if parsed.Title != "Spawn" {
		t.Fatalf("expected Spawn, got %q", parsed.Title)
	}
}

func TestDecodeVisionJSONRejectsProse(t *testing.T) {
	var parsed struct{}
	if err := DecodeVisionJSON("I cannot identify this cover.", &parsed); err == nil {
		t.Fatal("expected error for non-JSON payload")
	}
}

func TestHealthCheckRequiresKeyAndModel(t *testing.T) {
	client := NewClient(Config{})
	if err := client.HealthCheck(); err == nil {
		t.Fatal("expected health check to fail without api key")
	}
	client = NewClient(Config{APIKey: "key"})
	if err := client.HealthCheck(); err == nil {
		t.Fatal("expected health check to fail without model")
	}
	client = NewClient(Config{APIKey: "key", Model: "demo"})
	if err := client.HealthCheck(); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}
