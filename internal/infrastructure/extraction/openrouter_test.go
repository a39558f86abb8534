package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftlens/backend/internal/domain"
)

func newTestOpenRouter(url string) *OpenRouterProvider {
	return NewOpenRouterProvider(OpenRouterConfig{
		URL:    url,
		APIKey: "or-key",
		Model:  "test/model",
		Retry:  fastRetry,
	}, zerolog.Nop())
}

func chatReply(content string) []byte {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return data
}

func TestNewOpenRouterProvider_Defaults(t *testing.T) {
	p := NewOpenRouterProvider(OpenRouterConfig{}, zerolog.Nop())

	assert.Equal(t, "openrouter", p.Name())
	assert.Equal(t, defaultOpenRouterURL, p.url)
	assert.Equal(t, defaultOpenRouterModel, p.model)
}

func TestOpenRouterProvider_Extract(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, result *domain.ExtractionResult)
	}{
		{
			name:    "field map",
			content: `{"fields": {"name": {"value": "Linen shirt", "confidence": 0.9}}}`,
			check: func(t *testing.T, result *domain.ExtractionResult) {
				assert.Equal(t, "Linen shirt", result.Name.Value)
				assert.InDelta(t, 0.9, result.Name.Confidence, 1e-9)
			},
		},
		{
			name:    "fenced field map",
			content: "```json\n{\"fields\": {\"brand\": {\"value\": \"Zara\"}}}\n```",
			check: func(t *testing.T, result *domain.ExtractionResult) {
				assert.Equal(t, "Zara", result.Brand.Value)
			},
		},
		{
			name:    "flat answer",
			content: `{"name": "Linen shirt", "colors": ["White"]}`,
			check: func(t *testing.T, result *domain.ExtractionResult) {
				assert.Equal(t, []string{"White"}, result.Colors.Value)
				assert.Contains(t, result.Warnings, warningLegacyFallback)
			},
		},
		{
			name:    "prose answer",
			content: `I could not find anything.`,
			check: func(t *testing.T, result *domain.ExtractionResult) {
				assert.Equal(t, 0, result.FoundCount())
				assert.Contains(t, result.Errors, errorMalformedResponse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
				_, _ = w.Write(chatReply(tt.content))
			}))
			defer server.Close()

			result, err := newTestOpenRouter(server.URL).Extract(context.Background(), testRequest())

			require.NoError(t, err)
			tt.check(t, result)
		})
	}
}

func TestOpenRouterProvider_RequestShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		assert.Equal(t, "test/model", req.Model)
		if assert.Len(t, req.Messages, 1) {
			parts := req.Messages[0].Content
			if assert.Len(t, parts, 3) {
				assert.Equal(t, "text", parts[0].Type)
				assert.Contains(t, parts[0].Text, "فستان سهرة 😍 مقاس M L")
				assert.Contains(t, parts[0].Text, "calls to action")
				assert.Equal(t, "https://cdn.example.com/a.jpg", parts[1].ImageURL.URL)
				assert.True(t, strings.HasPrefix(parts[2].ImageURL.URL, "data:image/png;base64,"))
			}
		}
		_, _ = w.Write(chatReply(`{"fields": {}}`))
	}))
	defer server.Close()

	req := testRequest()
	req.Images = append(req.Images,
		domain.ImageInput{Ref: "local/path.jpg"},
		domain.ImageInput{Ref: "upload-1", Data: []byte("\x89PNG\r\n\x1a\n0000")},
	)

	_, err := newTestOpenRouter(server.URL).Extract(context.Background(), req)
	require.NoError(t, err)
}

func TestOpenRouterProvider_Unavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestOpenRouter(server.URL).Extract(context.Background(), testRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, int32(fastRetry.MaxRetries+1), calls.Load())
}

func TestOpenRouterProvider_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	result, err := newTestOpenRouter(server.URL).Extract(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Contains(t, result.Errors, errorMalformedResponse)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1} `))
}
