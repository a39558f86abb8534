package extraction

import (
	"bytes"
	"context"
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
	defaultFieldMapPath   = "/v1/extract"
	defaultLegacyPath     = "/v1/extract/legacy"
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 4 << 20
)

// FieldMapConfig configures a field-map HTTP backend
type FieldMapConfig struct {
	Name              string
	BaseURL           string
	Path              string
	LegacyPath        string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Retry             RetryConfig
}

// FieldMapProvider calls a backend that speaks the field-map contract and
// falls back to the flat legacy contract when the answer is unusable
type FieldMapProvider struct {
	name        string
	baseURL     string
	path        string
	legacyPath  string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	retry       RetryConfig
	logger      zerolog.Logger
}

type fieldMapRequest struct {
	Text    string               `json:"text"`
	RawText string               `json:"rawText,omitempty"`
	Images  []domain.ImageInput  `json:"images,omitempty"`
	Flags   domain.AnalysisFlags `json:"flags"`
}

type legacyRequest struct {
	Text string `json:"text"`
}

// NewFieldMapProvider creates a field-map provider
func NewFieldMapProvider(config FieldMapConfig, logger zerolog.Logger) *FieldMapProvider {
	name := config.Name
	if name == "" {
		name = "fieldmap"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	path := config.Path
	if path == "" {
		path = defaultFieldMapPath
	}
	legacyPath := config.LegacyPath
	if legacyPath == "" {
		legacyPath = defaultLegacyPath
	}

	return &FieldMapProvider{
		name:        name,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		path:        path,
		legacyPath:  legacyPath,
		apiKey:      config.APIKey,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: newLimiter(config.RequestsPerSecond, config.Burst),
		retry:       config.Retry.withDefaults(),
		logger:      logger.With().Str("provider", name).Logger(),
	}
}

// Name returns the provider selector
func (p *FieldMapProvider) Name() string {
	return p.name
}

// Extract sends the text and images to the backend. Only a transport failure
// on both contracts is an error.
func (p *FieldMapProvider) Extract(ctx context.Context, req *domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	if req == nil {
		return nil, domain.ErrInvalidRequest
	}

	status, body, err := p.post(ctx, p.path, fieldMapRequest{
		Text:    req.Text,
		RawText: req.RawText,
		Images:  req.Images,
		Flags:   req.Flags,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, p.name, err)
	}

	if isSuccess(status) {
		resp, err := ParseFieldMap(body)
		if err == nil {
			result := MapFieldMap(resp)
			p.logger.Debug().Int("fields_found", result.FoundCount()).Msg("field-map extraction complete")
			return result, nil
		}
		p.logger.Warn().Err(err).Msg("malformed field-map response, using legacy contract")
	} else {
		p.logger.Warn().Int("status", status).Msg("field-map request failed, using legacy contract")
	}

	return p.extractLegacy(ctx, req)
}

func (p *FieldMapProvider) extractLegacy(ctx context.Context, req *domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	text := req.RawText
	if text == "" {
		text = req.Text
	}

	status, body, err := p.post(ctx, p.legacyPath, legacyRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("%w: %s legacy: %v", domain.ErrProviderUnavailable, p.name, err)
	}
	if !isSuccess(status) {
		return nil, fmt.Errorf("%w: %s legacy: status %d", domain.ErrProviderUnavailable, p.name, status)
	}

	result, err := MapLegacy(body)
	if err != nil {
		p.logger.Warn().Err(err).Msg("malformed legacy response")
		result = emptyResult(reasonNotReturned)
		result.Warnings = append(result.Warnings, warningLegacyFallback)
		result.Errors = append(result.Errors, errorMalformedResponse)
	}
	return result, nil
}

// post marshals payload, sends it with retry and returns status and body
func (p *FieldMapProvider) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := doWithRetry(ctx, p.rateLimiter, p.retry, p.logger, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "DraftLens/1.0")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}
		return p.httpClient.Do(req)
	})
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// emptyResult is a result where every field is absent for the same reason
func emptyResult(reason string) *domain.ExtractionResult {
	return mapFields(func(string) (json.RawMessage, float64, string, bool) {
		return nil, 0, reason, false
	})
}
