package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"coverscan/internal/catalog"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := catalog.New("", "https://example.com", 4); err == nil {
		t.Fatal("expected error when api key missing")
	}
}

func TestSearchIssuesSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "key" {
			t.Fatalf("expected api_key query parameter, got %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("resources") != "issue" {
			t.Fatalf("expected issue resource filter, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status_code":1,"error":"OK","number_of_total_results":1,"results":[{"id":42,"name":"Venom","issue_number":"3","volume":{"id":7,"name":"Venom"},"image":{"original_url":"https://img/cover.jpg","thumb_url":"https://img/thumb.jpg"}}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := catalog.New("key", server.URL, 100)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	resp, err := client.SearchIssues(context.Background(), "Venom", catalog.SearchOptions{})
	if err != nil {
		t.Fatalf("SearchIssues returned error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Name != "Venom" {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if resp.Results[0].Volume == nil || resp.Results[0].Volume.ID != 7 {
		t.Fatalf("unexpected volume: %#v", resp.Results[0].Volume)
	}
}

func TestSearchIssuesMemoizesResponses(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status_code":1,"error":"OK","results":[{"id":1,"name":"Hulk"}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := catalog.New("key", server.URL, 100)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := client.SearchIssues(context.Background(), "Hulk", catalog.SearchOptions{}); err != nil {
			t.Fatalf("SearchIssues returned error: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 upstream call, got %d", got)
	}
}

func TestSearchIssuesAPIStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status_code":100,"error":"Invalid API Key","results":[]}`))
	}))
	t.Cleanup(server.Close)

	client, err := catalog.New("key", server.URL, 100)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.SearchIssues(context.Background(), "Hulk", catalog.SearchOptions{}); err == nil {
		t.Fatal("expected error when catalog rejects the request")
	}
}

func TestSearchIssuesEmptyQuery(t *testing.T) {
	client, err := catalog.New("key", "https://example.com", 4)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.SearchIssues(context.Background(), "  ", catalog.SearchOptions{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestIssueByVolumeDefaultsIssueNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter"); got != "volume:7,issue_number:1" {
			t.Fatalf("unexpected filter %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status_code":1,"error":"OK","results":[{"id":99,"issue_number":"1","image":{"original_url":"https://img/99.jpg"}}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := catalog.New("key", server.URL, 100)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	issue, err := client.IssueByVolume(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("IssueByVolume returned error: %v", err)
	}
	if issue.ID != 99 || issue.Image == nil || issue.Image.OriginalURL != "https://img/99.jpg" {
		t.Fatalf("unexpected issue: %#v", issue)
	}
}

func TestIssueByVolumeNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status_code":1,"error":"OK","results":[]}`))
	}))
	t.Cleanup(server.Close)

	client, err := catalog.New("key", server.URL, 100)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.IssueByVolume(context.Background(), 7, "5"); err == nil {
		t.Fatal("expected error when no issue matches")
	}
}
