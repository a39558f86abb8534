package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/draftlens/backend/internal/domain"
)

const (
	defaultOpenRouterURL   = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel = "google/gemini-2.5-flash"
	maxPromptImages        = 4
)

// OpenRouterConfig configures the chat-completions provider
type OpenRouterConfig struct {
	Name              string
	URL               string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Retry             RetryConfig
}

// OpenRouterProvider asks a chat model for the field-map JSON
type OpenRouterProvider struct {
	name        string
	url         string
	apiKey      string
	model       string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	retry       RetryConfig
	logger      zerolog.Logger
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenRouterProvider creates an OpenRouter-backed provider
func NewOpenRouterProvider(config OpenRouterConfig, logger zerolog.Logger) *OpenRouterProvider {
	name := config.Name
	if name == "" {
		name = "openrouter"
	}
	url := config.URL
	if url == "" {
		url = defaultOpenRouterURL
	}
	model := config.Model
	if model == "" {
		model = defaultOpenRouterModel
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &OpenRouterProvider{
		name:        name,
		url:         url,
		apiKey:      config.APIKey,
		model:       model,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: newLimiter(config.RequestsPerSecond, config.Burst),
		retry:       config.Retry.withDefaults(),
		logger:      logger.With().Str("provider", name).Logger(),
	}
}

// Name returns the provider selector
func (p *OpenRouterProvider) Name() string {
	return p.name
}

// Extract prompts the model with the listing and its photos
func (p *OpenRouterProvider) Extract(ctx context.Context, req *domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	if req == nil {
		return nil, domain.ErrInvalidRequest
	}

	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := doWithRetry(ctx, p.rateLimiter, p.retry, p.logger, func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
		httpReq.Header.Set("X-Title", "DraftLens")
		return p.httpClient.Do(httpReq)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, p.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, p.name, err)
	}
	if !isSuccess(resp.StatusCode) {
		p.logger.Warn().Int("status", resp.StatusCode).Str("body", truncate(string(data), 200)).Msg("chat completion failed")
		return nil, fmt.Errorf("%w: %s: status %d", domain.ErrProviderUnavailable, p.name, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil || len(chat.Choices) == 0 {
		return malformed(), nil
	}

	content := stripFences(chat.Choices[0].Message.Content)
	if fm, err := ParseFieldMap([]byte(content)); err == nil {
		return MapFieldMap(fm), nil
	}
	// Models sometimes answer with the flat shape
	if result, err := MapLegacy([]byte(content)); err == nil && result.FoundCount() > 0 {
		return result, nil
	}

	p.logger.Warn().Str("content", truncate(content, 200)).Msg("model answer is not field-map JSON")
	return malformed(), nil
}

func (p *OpenRouterProvider) buildRequest(req *domain.ExtractionRequest) chatRequest {
	parts := []ContentPart{{Type: "text", Text: buildPrompt(req)}}
	for _, img := range req.Images {
		if len(parts) > maxPromptImages {
			break
		}
		if url := imageURL(img); url != "" {
			parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url}})
		}
	}

	return chatRequest{
		Model:          p.model,
		Messages:       []Message{{Role: "user", Content: parts}},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
}

// imageURL returns something the model can fetch: inline bytes become a data
// URI, remote and data references pass through, anything else is skipped
func imageURL(img domain.ImageInput) string {
	if len(img.Data) > 0 {
		mime := http.DetectContentType(img.Data)
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	}
	ref := strings.TrimSpace(img.Ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:") {
		return ref
	}
	return ""
}

func buildPrompt(req *domain.ExtractionRequest) string {
	text := req.RawText
	if text == "" {
		text = req.Text
	}

	var b strings.Builder
	b.WriteString(`You extract structured product data from a marketplace listing written in Arabic and/or English.

Return ONLY a JSON object of this shape:
{"fields": {"<field>": {"value": <value>, "confidence": <0..1>, "reason": "<optional>"}}, "warnings": []}

Fields:
- name (string), shortDescription (string), longDescription (string)
- purchasePrice (number, the current selling price, not an old or crossed-out price, not shipping)
- stock (integer)
- sizes, letterSizes, numericSizes, colors, keywords (arrays of strings)
- measurements (array of {"label", "value", "unit"})
- material, model, brand, careInstructions, packageContents (strings)
- detailRows (array of {"label", "value"})

Omit a field or set its value to null when the listing does not state it. Never guess.
Use colour names in English.
`)
	if req.Flags.Strict {
		b.WriteString("Ignore promotional phrases and calls to action.\n")
	}
	b.WriteString("\nListing:\n")
	b.WriteString(text)
	return b.String()
}

// stripFences removes a ```json ... ``` wrapper if present
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func malformed() *domain.ExtractionResult {
	result := emptyResult(reasonNotReturned)
	result.Errors = append(result.Errors, errorMalformedResponse)
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
