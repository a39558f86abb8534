package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/draftlens/backend/config"
	"github.com/draftlens/backend/internal/domain"
	"github.com/draftlens/backend/internal/infrastructure/cache"
	"github.com/draftlens/backend/internal/infrastructure/drafts"
	"github.com/draftlens/backend/internal/infrastructure/storage/sqlite"
	"github.com/draftlens/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

const (
	// fills name, price, sizes, colours and stock from rules alone
	coveredListing = "فستان سهرة طويل مقاس M L باللون الأحمر السعر 250 ريال المخزون 5"
	sparseListing  = "قميص قطن رجالي"
	providerName   = "Classic Cotton Shirt For Men With Long Sleeves"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"https://studio.draftlens.app", "http://localhost:3000"},
			MaxBodyBytes:   1 << 20,
		},
		Cache: config.CacheConfig{Type: "memory"},
	}
}

// stubProvider answers with a fixed result and counts calls
type stubProvider struct {
	mu     sync.Mutex
	result *domain.ExtractionResult
	err    error
	calls  int
}

func (p *stubProvider) Name() string { return "fieldmap" }

func (p *stubProvider) Extract(ctx context.Context, req *domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	copied := *p.result
	return &copied, nil
}

func newStubProvider() *stubProvider {
	return &stubProvider{result: &domain.ExtractionResult{
		Name:          domain.FoundField(providerName, domain.SourceAI, 0.9),
		PurchasePrice: domain.FoundField(99.0, domain.SourceAI, 0.8),
		Sizes:         domain.FoundField([]string{"M", "L"}, domain.SourceAI, 0.8),
	}}
}

// setupTestRouter creates a router without a draft service
func setupTestRouter() *gin.Engine {
	return SetupRouter(testConfig(), NewHandler(nil, zerolog.Nop()), zerolog.Nop())
}

// setupTestRouterWithService wires the real pipeline over in-memory stores
// and a sqlite variant store in a temporary directory
func setupTestRouterWithService(t *testing.T, provider domain.ExtractionProvider) *gin.Engine {
	t.Helper()

	logger := zerolog.Nop()
	memCache := cache.NewMemoryCache(cache.MemoryConfig{})
	t.Cleanup(func() { memCache.Close() })

	store, err := sqlite.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	var providers []domain.ExtractionProvider
	if provider != nil {
		providers = append(providers, provider)
	}

	normalizer := usecase.NewTextNormalizer(logger)
	service := usecase.NewAnalysisService(usecase.AnalysisDeps{
		Normalizer: normalizer,
		Extractor:  usecase.NewFieldExtractor(normalizer, logger),
		Sampler:    usecase.NewColorSampler(nil, usecase.ColorSamplerConfig{}, logger),
		Merger:     usecase.NewMergeEngine(usecase.MergeConfig{}, logger),
		Variants:   usecase.NewVariantGenerator(usecase.VariantConfig{}, logger),
		Hints:      usecase.NewHintStore(memCache, usecase.HintConfig{}, logger),
		Drafts:     drafts.NewMemoryStore(0),
		Store:      store,
		Providers:  providers,
	}, usecase.AnalysisServiceConfig{DefaultProvider: "fieldmap"}, logger)

	return SetupRouter(testConfig(), NewHandler(service, logger), logger)
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (%s)", err, w.Body.String())
	}
	return v
}

func analyze(t *testing.T, router *gin.Engine, payload any) domain.DraftSession {
	t.Helper()
	body, _ := json.Marshal(payload)
	w := doJSON(router, http.MethodPost, "/api/v1/drafts/analyze", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("analyze status = %d, body %s", w.Code, w.Body.String())
	}
	return decode[domain.DraftSession](t, w)
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		w := doJSON(setupTestRouter(), http.MethodGet, "/health", "")

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		response := decode[map[string]any](t, w)
		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "draftlens-backend" {
			t.Errorf("service = %v, want draftlens-backend", response["service"])
		}
		if w.Header().Get(requestIDHeader) == "" {
			t.Error("expected X-Request-ID header")
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter()
		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := doJSON(router, method, "/health", "")
			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

func TestDraftEndpoints_NotConfigured(t *testing.T) {
	router := setupTestRouter()

	endpoints := []struct{ method, path, body string }{
		{http.MethodPost, "/api/v1/drafts/analyze", `{"text":"x"}`},
		{http.MethodGet, "/api/v1/drafts/abc", ""},
		{http.MethodPost, "/api/v1/variants/generate", `{}`},
		{http.MethodGet, "/api/v1/products/p1/variants", ""},
	}
	for _, ep := range endpoints {
		w := doJSON(router, ep.method, ep.path, ep.body)
		if w.Code != http.StatusNotImplemented {
			t.Errorf("%s %s: Status = %d, want 501", ep.method, ep.path, w.Code)
		}
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	t.Run("rules cover the listing", func(t *testing.T) {
		provider := newStubProvider()
		router := setupTestRouterWithService(t, provider)

		session := analyze(t, router, usecase.AnalyzeRequest{Text: coveredListing})

		if session.ID == "" || session.Version != 1 {
			t.Errorf("unexpected session id=%q version=%d", session.ID, session.Version)
		}
		if session.Draft == nil || !session.Draft.PurchasePrice.Found || session.Draft.PurchasePrice.Value != 250 {
			t.Errorf("expected rule price 250, got %+v", session.Draft)
		}
		if provider.calls != 0 {
			t.Errorf("provider calls = %d, want 0", provider.calls)
		}
	})

	t.Run("sparse listing consults the provider", func(t *testing.T) {
		provider := newStubProvider()
		router := setupTestRouterWithService(t, provider)

		session := analyze(t, router, usecase.AnalyzeRequest{Text: sparseListing})

		if provider.calls != 1 {
			t.Errorf("provider calls = %d, want 1", provider.calls)
		}
		if session.Draft.PurchasePrice.Source != domain.SourceAI {
			t.Errorf("price source = %q, want ai", session.Draft.PurchasePrice.Source)
		}
	})

	t.Run("nothing extracted answers 422 with the session", func(t *testing.T) {
		router := setupTestRouterWithService(t, nil)

		w := doJSON(router, http.MethodPost, "/api/v1/drafts/analyze", `{"text":"!!! ???","flags":{"rulesOnly":true}}`)

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("Status = %d, want 422 (%s)", w.Code, w.Body.String())
		}
		response := decode[struct {
			Error   string               `json:"error"`
			Session *domain.DraftSession `json:"session"`
		}](t, w)
		if response.Session == nil || response.Session.ID == "" {
			t.Error("expected the session in the 422 body")
		}
	})

	t.Run("provider down in ai mode answers 502 when rules find nothing", func(t *testing.T) {
		provider := newStubProvider()
		provider.err = domain.ErrProviderUnavailable
		router := setupTestRouterWithService(t, provider)

		w := doJSON(router, http.MethodPost, "/api/v1/drafts/analyze", `{"text":"!!! ???","flags":{"externalOnly":true}}`)
		if w.Code != http.StatusBadGateway {
			t.Errorf("Status = %d, want 502", w.Code)
		}
	})

	t.Run("provider down in ai mode keeps the rules draft", func(t *testing.T) {
		provider := newStubProvider()
		provider.err = domain.ErrProviderUnavailable
		router := setupTestRouterWithService(t, provider)

		session := analyze(t, router, usecase.AnalyzeRequest{Text: coveredListing, Flags: domain.AnalysisFlags{ExternalOnly: true}})
		if session.Draft == nil || session.Draft.PurchasePrice.Value != 250 {
			t.Errorf("expected rule price 250, got %+v", session.Draft)
		}
	})

	t.Run("invalid requests answer 400", func(t *testing.T) {
		router := setupTestRouterWithService(t, nil)

		bodies := []string{
			`not json`,
			`{"text":"   "}`,
			`{"text":"x","flags":{"rulesOnly":true,"externalOnly":true}}`,
		}
		for _, body := range bodies {
			w := doJSON(router, http.MethodPost, "/api/v1/drafts/analyze", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("body %q: Status = %d, want 400", body, w.Code)
			}
		}
	})
}

func TestDraftLifecycle(t *testing.T) {
	provider := newStubProvider()
	router := setupTestRouterWithService(t, provider)

	session := analyze(t, router, usecase.AnalyzeRequest{Text: coveredListing, Flags: domain.AnalysisFlags{RulesOnly: true}})

	t.Run("get returns the stored session", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/drafts/"+session.ID, "")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d", w.Code)
		}
		if got := decode[domain.DraftSession](t, w); got.ID != session.ID {
			t.Errorf("id = %q, want %q", got.ID, session.ID)
		}
	})

	t.Run("unknown draft answers 404", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/drafts/missing", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want 404", w.Code)
		}
	})

	t.Run("text update bumps the version", func(t *testing.T) {
		w := doJSON(router, http.MethodPut, "/api/v1/drafts/"+session.ID+"/text", `{"text":"فستان سهرة طويل مقاس S السعر 300 ريال"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d (%s)", w.Code, w.Body.String())
		}
		updated := decode[domain.DraftSession](t, w)
		if updated.Version != session.Version+1 {
			t.Errorf("version = %d, want %d", updated.Version, session.Version+1)
		}
	})

	t.Run("text update without text answers 400", func(t *testing.T) {
		w := doJSON(router, http.MethodPut, "/api/v1/drafts/"+session.ID+"/text", `{}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", w.Code)
		}
	})

	t.Run("enrich merges the provider result", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/drafts/"+session.ID+"/enrich", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d (%s)", w.Code, w.Body.String())
		}
		enriched := decode[domain.DraftSession](t, w)
		if enriched.External == nil {
			t.Error("expected the external result on the session")
		}
	})

	t.Run("enrich with an unknown provider answers 400", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/drafts/"+session.ID+"/enrich", `{"provider":"nope"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", w.Code)
		}
	})

	t.Run("variant request is seeded from the draft", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/drafts/"+session.ID+"/variant-request", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d", w.Code)
		}
		req := decode[domain.VariantRequest](t, w)
		if req.SKUSeed == "" {
			t.Error("expected a SKU seed")
		}
	})
}

func TestVariantEndpoints(t *testing.T) {
	router := setupTestRouterWithService(t, nil)

	generateBody := `{
		"dimensions": [{"dimensionId":"letter","dimensionName":"Letter","selectedSizes":["S","M"]}],
		"colors": [{"colorName":"Red"},{"colorName":"Blue"}],
		"price": 120,
		"stockQuantity": 3,
		"skuSeed": "Evening Dress"
	}`

	w := doJSON(router, http.MethodPost, "/api/v1/variants/generate", generateBody)
	if w.Code != http.StatusOK {
		t.Fatalf("generate Status = %d (%s)", w.Code, w.Body.String())
	}
	generated := decode[variantsResponse](t, w)
	if generated.Count != 4 || len(generated.Variants) != 4 {
		t.Fatalf("count = %d, want 4", generated.Count)
	}

	payload, _ := json.Marshal(persistVariantsRequest{Variants: generated.Variants})
	w = doJSON(router, http.MethodPut, "/api/v1/products/p-1/variants", string(payload))
	if w.Code != http.StatusOK {
		t.Fatalf("persist Status = %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(router, http.MethodGet, "/api/v1/products/p-1/variants", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list Status = %d", w.Code)
	}
	listed := decode[variantsResponse](t, w)
	if listed.Count != 4 {
		t.Errorf("listed count = %d, want 4", listed.Count)
	}
	for i, v := range listed.Variants {
		if v.SKU != generated.Variants[i].SKU {
			t.Errorf("variant %d sku = %q, want %q", i, v.SKU, generated.Variants[i].SKU)
		}
	}

	w = doJSON(router, http.MethodGet, "/api/v1/products/unknown/variants", "")
	if got := decode[variantsResponse](t, w); w.Code != http.StatusOK || got.Count != 0 {
		t.Errorf("unknown product: Status = %d count = %d", w.Code, got.Count)
	}
}

func TestGenerateVariants_Invalid(t *testing.T) {
	router := setupTestRouterWithService(t, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/variants/generate", `{"dimensions":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", w.Code)
	}
}

func TestCORSIntegration(t *testing.T) {
	router := setupTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/drafts/analyze", nil)
	req.Header.Set("Origin", "https://studio.draftlens.app")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Preflight status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://studio.draftlens.app" {
		t.Errorf("Access-Control-Allow-Origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidRequest, http.StatusBadRequest},
		{domain.ErrTooManyDimensions, http.StatusBadRequest},
		{domain.ErrProviderNotConfigured, http.StatusBadRequest},
		{domain.ErrDraftNotFound, http.StatusNotFound},
		{domain.ErrStaleResult, http.StatusConflict},
		{domain.ErrNothingExtracted, http.StatusUnprocessableEntity},
		{domain.ErrNoSourceAvailable, http.StatusBadGateway},
		{domain.ErrProviderUnavailable, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
