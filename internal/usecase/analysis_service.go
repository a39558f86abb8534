package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/draftlens/backend/internal/domain"
)

// Warnings attached to drafts
const (
	warningProviderNotConfigured = "provider_not_configured"
	warningNothingExtracted      = "nothing_extracted"
)

// AnalysisServiceConfig holds configuration for the analysis service
type AnalysisServiceConfig struct {
	DefaultMode     domain.Mode
	DefaultProvider string
	ExternalTimeout time.Duration
}

// AnalyzeRequest is one operator paste plus caller switches
type AnalyzeRequest struct {
	Text   string               `json:"text"`
	Images []domain.ImageInput  `json:"images,omitempty"`
	Flags  domain.AnalysisFlags `json:"flags"`
}

// AnalysisService runs the extraction pipeline and owns draft sessions
type AnalysisService struct {
	normalizer *TextNormalizer
	extractor  *FieldExtractor
	sampler    *ColorSampler
	merger     *MergeEngine
	variants   *VariantGenerator
	hints      *HintStore
	drafts     domain.DraftRepository
	store      domain.VariantRepository
	providers  map[string]domain.ExtractionProvider

	defaultMode     domain.Mode
	defaultProvider string
	externalTimeout time.Duration
	logger          zerolog.Logger

	// mu serializes read-modify-write cycles on draft sessions
	mu  sync.Mutex
	now func() time.Time
}

// AnalysisDeps groups the collaborators of the analysis service
type AnalysisDeps struct {
	Normalizer *TextNormalizer
	Extractor  *FieldExtractor
	Sampler    *ColorSampler
	Merger     *MergeEngine
	Variants   *VariantGenerator
	Hints      *HintStore
	Drafts     domain.DraftRepository
	Store      domain.VariantRepository
	Providers  []domain.ExtractionProvider
}

// NewAnalysisService creates the pipeline orchestrator
func NewAnalysisService(deps AnalysisDeps, config AnalysisServiceConfig, logger zerolog.Logger) *AnalysisService {
	mode := config.DefaultMode
	if !mode.Valid() {
		mode = domain.ModeAssist
	}
	timeout := config.ExternalTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	providers := make(map[string]domain.ExtractionProvider, len(deps.Providers))
	for _, p := range deps.Providers {
		if p != nil {
			providers[p.Name()] = p
		}
	}

	return &AnalysisService{
		normalizer:      deps.Normalizer,
		extractor:       deps.Extractor,
		sampler:         deps.Sampler,
		merger:          deps.Merger,
		variants:        deps.Variants,
		hints:           deps.Hints,
		drafts:          deps.Drafts,
		store:           deps.Store,
		providers:       providers,
		defaultMode:     mode,
		defaultProvider: config.DefaultProvider,
		externalTimeout: timeout,
		logger:          logger,
		now:             time.Now,
	}
}

// Analyze runs normalize → {rules ∥ sampling ∥ external} → merge and stores
// the result as a new draft session.
// When no source produced a single field the session is still returned
// together with ErrNothingExtracted.
func (s *AnalysisService) Analyze(ctx context.Context, req *AnalyzeRequest) (*domain.DraftSession, error) {
	if req == nil || (strings.TrimSpace(req.Text) == "" && len(req.Images) == 0) {
		return nil, domain.ErrInvalidRequest
	}
	if req.Flags.RulesOnly && req.Flags.ExternalOnly {
		return nil, fmt.Errorf("%w: rulesOnly and externalOnly are exclusive", domain.ErrInvalidRequest)
	}

	mode := req.Flags.Mode(s.defaultMode)
	severity := SeverityFor(req.Flags.Strict)
	normalized := s.normalizer.Normalize(req.Text, severity)
	hash := InputHash(normalized)
	hintKey := s.hints.Key(normalized)
	hint := s.hints.Load(ctx, hintKey)

	rules := s.extractor.Extract(normalized, req.Text, severity)
	rules.InputHash = hash

	var (
		samples  []domain.ColorSample
		external *domain.ExtractionResult
		extErr   error
	)
	callExternal := mode == domain.ModeAI || req.Flags.ForceExternal ||
		(mode == domain.ModeAssist && !coreFieldsCovered(rules, hint))

	var g errgroup.Group
	g.Go(func() error {
		samples = s.sampler.SampleAll(ctx, req.Images)
		return nil
	})
	if callExternal {
		g.Go(func() error {
			external, extErr = s.callProvider(ctx, req.Flags.Provider, &domain.ExtractionRequest{
				Text:      normalized,
				RawText:   req.Text,
				Images:    req.Images,
				Flags:     req.Flags,
				InputHash: hash,
			})
			return nil
		})
	}
	_ = g.Wait()

	var warnings []string
	if extErr != nil {
		warnings = append(warnings, s.providerWarning(req.Flags.Provider, extErr))
		// A provider outage only fails the request when no other source has anything
		if mode == domain.ModeAI && hint == nil && rules.FoundCount() == 0 {
			return nil, fmt.Errorf("%w: %v", domain.ErrNoSourceAvailable, extErr)
		}
	}

	draft := s.merger.Merge(MergeInput{
		Mode:      mode,
		InputHash: hash,
		Rules:     rules,
		External:  external,
		Hint:      hint,
		Samples:   samples,
	})
	if draft.FoundCount() == 0 {
		warnings = append(warnings, warningNothingExtracted)
	}
	draft.Warnings = unionStrings(draft.Warnings, warnings)

	if external != nil {
		if err := s.hints.Store(ctx, hintKey, external); err != nil {
			s.logger.Warn().Err(err).Msg("failed to store hint")
		}
	}

	now := s.now()
	session := &domain.DraftSession{
		ID:             uuid.NewString(),
		Version:        1,
		RawText:        req.Text,
		NormalizedText: normalized,
		InputHash:      hash,
		Images:         req.Images,
		Flags:          req.Flags,
		Rules:          rules,
		External:       external,
		ColorSamples:   samples,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.attachDraft(session, draft)

	if err := s.drafts.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	s.logger.Info().
		Str("draft_id", session.ID).
		Str("mode", string(mode)).
		Bool("external", callExternal).
		Bool("hint", hint != nil).
		Int("fields_found", draft.FoundCount()).
		Msg("analysis complete")

	if draft.FoundCount() == 0 {
		return session, domain.ErrNothingExtracted
	}
	return session, nil
}

// GetDraft returns a stored draft session
func (s *AnalysisService) GetDraft(ctx context.Context, id string) (*domain.DraftSession, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidRequest
	}
	return s.drafts.Get(ctx, id)
}

// UpdateText re-runs the rules on edited text. A changed text invalidates
// the external result and bumps the draft version.
func (s *AnalysisService) UpdateText(ctx context.Context, id, text string) (*domain.DraftSession, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(text) == "" {
		return nil, domain.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	severity := SeverityFor(session.Flags.Strict)
	normalized := s.normalizer.Normalize(text, severity)
	hash := InputHash(normalized)

	if hash != session.InputHash {
		session.External = nil
	}
	session.RawText = text
	session.NormalizedText = normalized
	session.InputHash = hash
	session.Rules = s.extractor.Extract(normalized, text, severity)
	session.Rules.InputHash = hash
	session.Version++
	session.UpdatedAt = s.now()

	draft := s.merger.Merge(MergeInput{
		Mode:      session.Flags.Mode(s.defaultMode),
		InputHash: hash,
		Rules:     session.Rules,
		External:  session.External,
		Hint:      s.hints.Load(ctx, s.hints.Key(normalized)),
		Samples:   session.ColorSamples,
	})
	s.attachDraft(session, draft)

	if err := s.drafts.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return session, nil
}

// Enrich runs an external provider against the draft's current text and
// merges the late result. If the text changed while the provider was
// running, the result is discarded with ErrStaleResult.
func (s *AnalysisService) Enrich(ctx context.Context, id, providerName string) (*domain.DraftSession, error) {
	snapshot, err := s.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.callProvider(ctx, providerName, &domain.ExtractionRequest{
		Text:      snapshot.NormalizedText,
		RawText:   snapshot.RawText,
		Images:    snapshot.Images,
		Flags:     snapshot.Flags,
		InputHash: snapshot.InputHash,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	hintKey := s.hints.Key(current.NormalizedText)
	draft, err := s.merger.ApplyLateResult(current, current.Flags.Mode(s.defaultMode), result, s.hints.Load(ctx, hintKey))
	if err != nil {
		s.logger.Info().Err(err).Str("draft_id", id).Msg("discarding late external result")
		return nil, err
	}

	current.External = result
	current.Version++
	current.UpdatedAt = s.now()
	s.attachDraft(current, draft)

	if err := s.drafts.Save(ctx, current); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	if err := s.hints.Store(ctx, hintKey, result); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store hint")
	}
	return current, nil
}

// GenerateVariants expands the operator's selections into variant records
func (s *AnalysisService) GenerateVariants(ctx context.Context, req *domain.VariantRequest) ([]domain.VariantRecord, error) {
	return s.variants.Generate(req)
}

// PersistVariants normalizes and stores the finalized variant set of a product
func (s *AnalysisService) PersistVariants(ctx context.Context, productID string, records []domain.VariantRecord) ([]domain.VariantRecord, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, domain.ErrInvalidRequest
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: variant storage not configured", domain.ErrInvalidRequest)
	}
	normalized := NormalizeVariants(records)
	if err := s.store.ReplaceVariants(ctx, productID, normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

// ListVariants returns the persisted variant set of a product
func (s *AnalysisService) ListVariants(ctx context.Context, productID string) ([]domain.VariantRecord, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, domain.ErrInvalidRequest
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: variant storage not configured", domain.ErrInvalidRequest)
	}
	return s.store.ListVariants(ctx, productID)
}

// SuggestVariantRequest seeds a variant request from a merged draft: letter
// and numeric sizes become separate dimensions, extracted colours the colour axis
func SuggestVariantRequest(draft *domain.ProductDraft) *domain.VariantRequest {
	req := &domain.VariantRequest{}
	if draft == nil {
		return req
	}

	switch {
	case draft.LetterSizes.Found || draft.NumericSizes.Found:
		if draft.LetterSizes.Found {
			req.Dimensions = append(req.Dimensions, domain.SizeDimensionSelection{
				DimensionID: "letter", DimensionName: "Letter",
				AvailableSizes: draft.LetterSizes.Value, SelectedSizes: draft.LetterSizes.Value,
			})
		}
		if draft.NumericSizes.Found {
			req.Dimensions = append(req.Dimensions, domain.SizeDimensionSelection{
				DimensionID: "numeric", DimensionName: "Numeric",
				AvailableSizes: draft.NumericSizes.Value, SelectedSizes: draft.NumericSizes.Value,
			})
		}
	case draft.Sizes.Found:
		req.Dimensions = append(req.Dimensions, domain.SizeDimensionSelection{
			DimensionID: defaultSizeDimension, DimensionName: "Size",
			AvailableSizes: draft.Sizes.Value, SelectedSizes: draft.Sizes.Value,
		})
	}

	for i, c := range draft.Colors.Value {
		sel := domain.ColorSelection{ColorName: c, IsPrimary: i == 0}
		if ref, ok := draft.ColorImageMap[c]; ok {
			sel.LinkedImageRefs = []string{ref}
		}
		req.Colors = append(req.Colors, sel)
	}

	if draft.PurchasePrice.Found {
		price := draft.PurchasePrice.Value
		req.PurchasePrice = &price
	}
	if draft.Stock.Found {
		req.StockQuantity = draft.Stock.Value
	}
	req.SKUSeed = draft.Model.Value
	if req.SKUSeed == "" {
		req.SKUSeed = draft.Name.Value
	}
	return req
}

func (s *AnalysisService) callProvider(ctx context.Context, name string, req *domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	provider, err := s.provider(name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.externalTimeout)
	defer cancel()

	result, err := provider.Extract(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("external extraction failed")
		return nil, err
	}
	result.InputHash = req.InputHash
	return result, nil
}

func (s *AnalysisService) provider(name string) (domain.ExtractionProvider, error) {
	if name == "" {
		name = s.defaultProvider
	}
	if p, ok := s.providers[name]; ok {
		return p, nil
	}
	if name == "" && len(s.providers) == 1 {
		for _, p := range s.providers {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrProviderNotConfigured, name)
}

func (s *AnalysisService) providerWarning(name string, err error) string {
	if errors.Is(err, domain.ErrProviderNotConfigured) {
		return warningProviderNotConfigured
	}
	if name == "" {
		name = s.defaultProvider
	}
	if name == "" {
		name = "external"
	}
	return name + "_unavailable"
}

func (s *AnalysisService) attachDraft(session *domain.DraftSession, draft *domain.ProductDraft) {
	draft.ID = session.ID
	draft.Version = session.Version
	draft.UpdatedAt = session.UpdatedAt
	session.Draft = draft
}

// coreFieldsCovered reports whether rules, helped by the hint, already fill
// name, price, sizes, colours and stock
func coreFieldsCovered(rules, hint *domain.ExtractionResult) bool {
	h := orEmpty(hint)
	return (rules.Name.Found || h.Name.Found) &&
		(rules.PurchasePrice.Found || h.PurchasePrice.Found) &&
		(rules.Sizes.Found || h.Sizes.Found) &&
		(rules.Colors.Found || h.Colors.Found) &&
		(rules.Stock.Found || h.Stock.Found)
}
