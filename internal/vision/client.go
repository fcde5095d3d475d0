package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coverscan/internal/services"
)

const (
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 30 * time.Second

	// A comparison below this similarity is not trustworthy; the call falls
	// back to open identification. The matching layer applies the same
	// threshold when choosing the initial mode.
	identificationFallbackThreshold = 0.50
)

// Config captures the runtime settings required to talk to the vision model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// ReducedCandidate is the trimmed candidate shape sent with comparison
// requests. At most fifteen are included per call.
type ReducedCandidate struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Issue     string  `json:"issue"`
	Publisher string  `json:"publisher"`
	Year      int     `json:"year,omitempty"`
	CoverURL  string  `json:"coverUrl"`
	Score     float64 `json:"score"`
}

// Result is the normalized model output. Comparison calls populate the
// index/similarity fields; identification calls populate the identified
// fields. The two are never combined in a single response.
type Result struct {
	BestMatchIndex     int     `json:"bestMatchIndex"`
	SimilarityScore    float64 `json:"similarityScore"`
	CandidatesCompared int     `json:"candidatesCompared"`

	IdentificationMode       bool    `json:"identificationMode"`
	IdentifiedTitle          string  `json:"identifiedTitle"`
	IdentifiedIssue          string  `json:"identifiedIssue"`
	IdentifiedPublisher      string  `json:"identifiedPublisher"`
	IdentifiedCharacter      string  `json:"identifiedCharacter"`
	IdentificationConfidence float64 `json:"identificationConfidence"`

	Raw string `json:"-"`
}

// CompareRequest carries a comparison-mode call. Hint, when present, is
// forwarded to the identification fallback that fires on a weak comparison.
type CompareRequest struct {
	Image       string
	Candidates  []ReducedCandidate
	TriggeredBy string
	ScanEventID string
	Hint        string
}

// IdentifyRequest carries an identification-mode call. Hint is an optional
// nudge (best OCR guess) appended to the prompt when comparison fell back.
type IdentifyRequest struct {
	Image       string
	Hint        string
	ScanEventID string
}

// Client wraps the OpenRouter chat completion API for cover analysis. Calls
// are single-attempt; quota and transport handling belong to the caller.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a vision client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://openrouter.ai/api/v1/chat/completions"
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// HealthCheck verifies the client holds a usable configuration.
func (c *Client) HealthCheck() error {
	if c == nil {
		return errors.New("vision client not configured")
	}
	if c.cfg.APIKey == "" {
		return errors.New("vision api key required")
	}
	if c.cfg.Model == "" {
		return errors.New("vision model required")
	}
	if _, err := url.Parse(c.cfg.BaseURL); err != nil {
		return fmt.Errorf("vision base url invalid: %w", err)
	}
	return nil
}

// Compare scores the image against the supplied candidates. The model
// answers with a 1-based best-match index (0 meaning none) and a similarity
// score in [0,1].
func (c *Client) Compare(ctx context.Context, req CompareRequest) (*Result, error) {
	if strings.TrimSpace(req.Image) == "" {
		return nil, errors.New("vision compare: image required")
	}
	if len(req.Candidates) == 0 {
		return nil, errors.New("vision compare: candidates required")
	}
	if c.cfg.APIKey == "" {
		return nil, errors.New("vision compare: api key required")
	}

	listing, err := json.Marshal(req.Candidates)
	if err != nil {
		return nil, fmt.Errorf("vision compare: encode candidates: %w", err)
	}
	userText := fmt.Sprintf("Candidates:\n%s", listing)

	content, err := c.complete(ctx, comparisonPrompt, userText, req.Image, "vision compare")
	if err != nil {
		return nil, err
	}

	var result Result
	if err := DecodeVisionJSON(content, &result); err != nil {
		return nil, fmt.Errorf("vision compare: parse payload: %w", err)
	}
	result.Raw = content
	result.CandidatesCompared = len(req.Candidates)
	if result.BestMatchIndex < 0 || result.BestMatchIndex > len(req.Candidates) {
		result.BestMatchIndex = 0
	}
	result.SimilarityScore = clampUnit(result.SimilarityScore)

	if result.BestMatchIndex == 0 || result.SimilarityScore < identificationFallbackThreshold {
		identified, err := c.Identify(ctx, IdentifyRequest{
			Image:       req.Image,
			Hint:        req.Hint,
			ScanEventID: req.ScanEventID,
		})
		if err != nil {
			return nil, err
		}
		identified.CandidatesCompared = len(req.Candidates)
		return identified, nil
	}
	return &result, nil
}

// Identify asks the model to name the comic from the image alone.
func (c *Client) Identify(ctx context.Context, req IdentifyRequest) (*Result, error) {
	if strings.TrimSpace(req.Image) == "" {
		return nil, errors.New("vision identify: image required")
	}
	if c.cfg.APIKey == "" {
		return nil, errors.New("vision identify: api key required")
	}

	userText := "Identify this comic cover."
	if hint := strings.TrimSpace(req.Hint); hint != "" {
		userText += " A text scan suggested it may be related to: " + hint + "."
	}

	content, err := c.complete(ctx, identificationPrompt, userText, req.Image, "vision identify")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Title      string  `json:"title"`
		Issue      string  `json:"issue"`
		Publisher  string  `json:"publisher"`
		Character  string  `json:"character"`
		Confidence float64 `json:"confidence"`
	}
	if err := DecodeVisionJSON(content, &parsed); err != nil {
		return nil, fmt.Errorf("vision identify: parse payload: %w", err)
	}
	return &Result{
		IdentificationMode:       true,
		IdentifiedTitle:          strings.TrimSpace(parsed.Title),
		IdentifiedIssue:          strings.TrimSpace(parsed.Issue),
		IdentifiedPublisher:      strings.TrimSpace(parsed.Publisher),
		IdentifiedCharacter:      strings.TrimSpace(parsed.Character),
		IdentificationConfidence: clampUnit(parsed.Confidence),
		Raw:                      content,
	}, nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, systemPrompt, userText, image, op string) (string, error) {
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: systemPrompt}}},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: userText},
				{Type: "image_url", ImageURL: &imageURL{URL: image}},
			}},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: http error (timeout=%s): %w", op, c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusPaymentRequired {
		return "", services.Wrap(services.ErrQuota, "vision", op,
			fmt.Sprintf("usage limit reached (http %d)", resp.StatusCode), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%s: http %d: %s", op, resp.StatusCode, summarizePayloadSnippet(string(body)))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", op, err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("%s: api error: %s", op, strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", fmt.Errorf("%s: empty content (response_snippet=%s)", op, summarizePayloadSnippet(string(body)))
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func clampUnit(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
