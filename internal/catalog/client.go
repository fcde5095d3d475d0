package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result represents a single catalog search match.
type Result struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	IssueNumber  string     `json:"issue_number"`
	CoverDate    string     `json:"cover_date"`
	ResourceType string     `json:"resource_type"`
	Volume       *Volume    `json:"volume"`
	Publisher    *Publisher `json:"publisher"`
	Image        *Image     `json:"image"`
}

// Volume identifies the series a result belongs to.
type Volume struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Publisher names the imprint that released a result.
type Publisher struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Image carries the cover artwork URLs for a result.
type Image struct {
	OriginalURL string `json:"original_url"`
	ThumbURL    string `json:"thumb_url"`
}

// Response models the catalog's paginated envelope.
type Response struct {
	StatusCode           int      `json:"status_code"`
	Error                string   `json:"error"`
	NumberOfTotalResults int      `json:"number_of_total_results"`
	Results              []Result `json:"results"`
}

const statusOK = 1

// SearchOptions contains optional filters for a catalog issue search.
type SearchOptions struct {
	Publisher   string `json:"publisher,omitempty"`
	IssueNumber string `json:"issue_number,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// CacheKey returns a stable string representation for caching.
func (o SearchOptions) CacheKey() string {
	var builder strings.Builder
	builder.WriteString("p=")
	builder.WriteString(strings.ToLower(strings.TrimSpace(o.Publisher)))
	builder.WriteString("|i=")
	builder.WriteString(strings.TrimSpace(o.IssueNumber))
	builder.WriteString("|l=")
	builder.WriteString(strconv.Itoa(o.Limit))
	return builder.String()
}

// Searcher defines the catalog operations used by the matching pipeline.
type Searcher interface {
	SearchIssues(ctx context.Context, query string, opts SearchOptions) (*Response, error)
	IssueByVolume(ctx context.Context, volumeID int64, issueNumber string) (*Result, error)
}

type cacheEntry struct {
	resp    *Response
	expires time.Time
}

// Client provides access to the comic catalog API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu       sync.Mutex
	cache    map[string]cacheEntry
	cacheTTL time.Duration
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCacheTTL overrides how long search responses are memoized.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// New creates a catalog client. requestsPerSec bounds the outbound request
// rate; values at or below zero fall back to a conservative default.
func New(apiKey, baseURL string, requestsPerSec float64, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("catalog api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("catalog base url required")
	}
	if requestsPerSec <= 0 {
		requestsPerSec = 4
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		cache:      make(map[string]cacheEntry),
		cacheTTL:   10 * time.Minute,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// HealthCheck verifies the client holds a usable configuration.
func (c *Client) HealthCheck() error {
	if c == nil {
		return errors.New("catalog client not configured")
	}
	if c.apiKey == "" {
		return errors.New("catalog api key missing")
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return fmt.Errorf("catalog base url invalid: %w", err)
	}
	return nil
}

// SearchIssues performs an issue search against the catalog. Responses are
// memoized for a short TTL so repeat fallback queries stay cheap.
func (c *Client) SearchIssues(ctx context.Context, query string, opts SearchOptions) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}

	key := "search|" + strings.ToLower(query) + "|" + opts.CacheKey()
	now := time.Now()
	c.mu.Lock()
	if entry, ok := c.cache[key]; ok && now.Before(entry.expires) {
		resp := entry.resp
		c.mu.Unlock()
		return resp, nil
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint, err := url.Parse(c.baseURL + "/search/")
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	params.Set("resources", "issue")
	params.Set("query", query)
	if opts.Publisher != "" {
		params.Set("publisher", opts.Publisher)
	}
	if opts.IssueNumber != "" {
		params.Set("issue_number", opts.IssueNumber)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	endpoint.RawQuery = params.Encode()

	payload, err := c.get(ctx, endpoint.String(), "catalog search")
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{resp: payload, expires: time.Now().Add(c.cacheTTL)}
	c.mu.Unlock()
	return payload, nil
}

// IssueByVolume resolves a single issue of a volume, used to backfill cover
// artwork for identification-derived candidates. Returns the first match.
func (c *Client) IssueByVolume(ctx context.Context, volumeID int64, issueNumber string) (*Result, error) {
	if volumeID <= 0 {
		return nil, errors.New("volume id must be positive")
	}
	issueNumber = strings.TrimSpace(issueNumber)
	if issueNumber == "" {
		issueNumber = "1"
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint, err := url.Parse(c.baseURL + "/issues/")
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	params.Set("filter", fmt.Sprintf("volume:%d,issue_number:%s", volumeID, issueNumber))
	params.Set("limit", "1")
	endpoint.RawQuery = params.Encode()

	payload, err := c.get(ctx, endpoint.String(), "catalog issue lookup")
	if err != nil {
		return nil, err
	}
	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("no issue %s found for volume %d", issueNumber, volumeID)
	}
	result := payload.Results[0]
	return &result, nil
}

func (c *Client) get(ctx context.Context, rawURL, operation string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d (latency=%v)", operation, resp.StatusCode, latency)
	}

	var payload Response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	if payload.StatusCode != statusOK {
		return nil, fmt.Errorf("%s rejected: %s (status %d)", operation, payload.Error, payload.StatusCode)
	}
	return &payload, nil
}
