package usecase

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/draftlens/backend/internal/domain"
)

// Merge defaults
const (
	defaultNameMinWords      = 6
	defaultMinRuleConfidence = 0.6
)

// Decision reasons recorded in field provenance
const (
	reasonNoSource       = "no source produced a value"
	reasonOnlyRules      = "only rules produced a value"
	reasonOnlyExternal   = "only external extraction produced a value"
	reasonModeRules      = "rules mode keeps the rules value"
	reasonModeExternal   = "ai mode prefers the external value"
	reasonRulesAdequate  = "rules value meets the quality bar"
	reasonRulesWeak      = "rules value below the quality bar"
	reasonHintBackfilled = "backfilled from hint cache"
)

// MergeConfig holds the quality bars used in assist mode
type MergeConfig struct {
	NameMinWords      int
	MinRuleConfidence float64
}

// MergeInput is everything one merge pass looks at
type MergeInput struct {
	Mode      domain.Mode
	InputHash string
	Rules     *domain.ExtractionResult
	External  *domain.ExtractionResult
	Hint      *domain.ExtractionResult
	Samples   []domain.ColorSample
}

// MergeEngine combines rule and external results field by field, keeping
// provenance for every value. Merge is pure: equal inputs give equal drafts.
type MergeEngine struct {
	nameMinWords      int
	minRuleConfidence float64
	logger            zerolog.Logger
}

// NewMergeEngine creates a merge engine with the given quality bars
func NewMergeEngine(config MergeConfig, logger zerolog.Logger) *MergeEngine {
	words := config.NameMinWords
	if words <= 0 {
		words = defaultNameMinWords
	}
	conf := config.MinRuleConfidence
	if conf <= 0 {
		conf = defaultMinRuleConfidence
	}
	return &MergeEngine{
		nameMinWords:      words,
		minRuleConfidence: conf,
		logger:            logger,
	}
}

// Merge builds a draft from the available sources. The draft carries no ID or
// version; the caller owns the session.
func (m *MergeEngine) Merge(in MergeInput) *domain.ProductDraft {
	mode := in.Mode
	if !mode.Valid() {
		mode = domain.ModeAssist
	}
	rules := orEmpty(in.Rules)
	ext := orEmpty(in.External)
	hint := orEmpty(in.Hint)

	// External colours must be recognisable or already extracted by rules
	extColors := ext.Colors
	if extColors.Found {
		if cleaned := SanitizeColors(extColors.Value, rules.Colors.Value); len(cleaned) > 0 {
			extColors.Value = cleaned
		} else {
			extColors = domain.MissingField[[]string](extColors.Source, "external colours not recognised")
		}
	}

	floatBar := confidenceBar[float64](m.minRuleConfidence)
	intBar := confidenceBar[int](m.minRuleConfidence)
	stringBar := confidenceBar[string](m.minRuleConfidence)

	d := &draftBuilder{mode: mode}
	out := &d.result
	out.Name = mergeField(d, "name", rules.Name, ext.Name, hint.Name, m.nameAdequate)
	out.ShortDescription = mergeField(d, "shortDescription", rules.ShortDescription, ext.ShortDescription, hint.ShortDescription, m.stringAdequate)
	out.LongDescription = mergeField(d, "longDescription", rules.LongDescription, ext.LongDescription, hint.LongDescription, m.stringAdequate)
	out.PurchasePrice = mergeField(d, "purchasePrice", rules.PurchasePrice, ext.PurchasePrice, hint.PurchasePrice, floatBar)
	out.Stock = mergeField(d, "stock", rules.Stock, ext.Stock, hint.Stock, intBar)
	out.Sizes = mergeField(d, "sizes", rules.Sizes, ext.Sizes, hint.Sizes, listAdequate[string])
	out.LetterSizes = mergeField(d, "letterSizes", rules.LetterSizes, ext.LetterSizes, hint.LetterSizes, listAdequate[string])
	out.NumericSizes = mergeField(d, "numericSizes", rules.NumericSizes, ext.NumericSizes, hint.NumericSizes, listAdequate[string])
	out.Colors = mergeField(d, "colors", rules.Colors, extColors, hint.Colors, listAdequate[string])
	out.Keywords = mergeField(d, "keywords", rules.Keywords, ext.Keywords, hint.Keywords, listAdequate[string])
	out.Measurements = mergeField(d, "measurements", rules.Measurements, ext.Measurements, hint.Measurements, listAdequate[domain.Measurement])
	out.Material = mergeField(d, "material", rules.Material, ext.Material, hint.Material, stringBar)
	out.Model = mergeField(d, "model", rules.Model, ext.Model, hint.Model, stringBar)
	out.Brand = mergeField(d, "brand", rules.Brand, ext.Brand, hint.Brand, stringBar)
	out.CareInstructions = mergeField(d, "careInstructions", rules.CareInstructions, ext.CareInstructions, hint.CareInstructions, stringBar)
	out.PackageContents = mergeField(d, "packageContents", rules.PackageContents, ext.PackageContents, hint.PackageContents, stringBar)
	out.DetailRows = mergeField(d, "detailRows", rules.DetailRows, ext.DetailRows, hint.DetailRows, listAdequate[domain.DetailRow])

	out.PriceCandidates = rules.PriceCandidates
	out.InputHash = in.InputHash
	out.Warnings = unionStrings(rules.Warnings, ext.Warnings)
	out.Errors = unionStrings(rules.Errors, ext.Errors)

	draft := &domain.ProductDraft{
		ExtractionResult: *out,
		Mode:             mode,
		ColorSamples:     in.Samples,
		ColorImageMap:    LinkColors(out.Colors.Value, in.Samples),
		Decisions:        d.decisions,
	}

	m.logger.Debug().
		Str("mode", string(mode)).
		Int("fields_found", out.FoundCount()).
		Int("hint_backfills", d.backfills).
		Msg("merged draft")

	return draft
}

// ApplyLateResult merges an external result that arrived after the draft was
// built. Results computed for input other than the session's current input
// are rejected with ErrStaleResult.
func (m *MergeEngine) ApplyLateResult(session *domain.DraftSession, mode domain.Mode, late, hint *domain.ExtractionResult) (*domain.ProductDraft, error) {
	if session == nil || late == nil {
		return nil, domain.ErrInvalidRequest
	}
	if late.InputHash != session.InputHash {
		return nil, fmt.Errorf("%w: result for %s, draft is at %s", domain.ErrStaleResult, shortHash(late.InputHash), shortHash(session.InputHash))
	}
	return m.Merge(MergeInput{
		Mode:      mode,
		InputHash: session.InputHash,
		Rules:     session.Rules,
		External:  late,
		Hint:      hint,
		Samples:   session.ColorSamples,
	}), nil
}

// LinkColors maps each colour to the first non-fallback sample whose nearest
// named colour matches the colour's family. Unmatched colours stay unlinked.
func LinkColors(colors []string, samples []domain.ColorSample) map[string]string {
	links := make(map[string]string)
	for _, c := range colors {
		family := ColorFamily(c)
		for _, s := range samples {
			if s.Fallback {
				continue
			}
			if sameColorName(s.NearestColorName, family) {
				links[c] = s.ImageRef
				break
			}
		}
	}
	return links
}

func (m *MergeEngine) nameAdequate(f domain.ExtractedField[string]) bool {
	return countWords(f.Value) >= m.nameMinWords
}

func (m *MergeEngine) stringAdequate(f domain.ExtractedField[string]) bool {
	return strings.TrimSpace(f.Value) != "" && f.Confidence >= m.minRuleConfidence
}

// confidenceBar accepts rules values scored at or above threshold
func confidenceBar[T any](threshold float64) func(domain.ExtractedField[T]) bool {
	return func(f domain.ExtractedField[T]) bool {
		return f.Confidence >= threshold
	}
}

func listAdequate[T any](f domain.ExtractedField[[]T]) bool {
	return len(f.Value) > 0
}

// draftBuilder accumulates the merged result and its provenance
type draftBuilder struct {
	mode      domain.Mode
	result    domain.ExtractionResult
	decisions []domain.FieldDecision
	backfills int
}

func (d *draftBuilder) decide(field string, winner domain.Source, confidence float64, reason string) {
	d.decisions = append(d.decisions, domain.FieldDecision{
		Field:      field,
		Winner:     winner,
		Confidence: confidence,
		Reason:     reason,
	})
}

// mergeField picks the winning value for one field and records why
func mergeField[T any](
	d *draftBuilder,
	field string,
	rules, ext, hint domain.ExtractedField[T],
	rulesAdequate func(domain.ExtractedField[T]) bool,
) domain.ExtractedField[T] {
	var (
		winner domain.ExtractedField[T]
		reason string
	)

	switch {
	case rules.Found && ext.Found:
		switch d.mode {
		case domain.ModeRules:
			winner, reason = rules, reasonModeRules
		case domain.ModeAI:
			winner, reason = ext, reasonModeExternal
		default:
			if rulesAdequate(rules) {
				winner, reason = rules, reasonRulesAdequate
			} else {
				winner, reason = ext, reasonRulesWeak
			}
		}
	case rules.Found:
		winner, reason = rules, reasonOnlyRules
	case ext.Found:
		winner, reason = ext, reasonOnlyExternal
	case hint.Found:
		winner = hint
		winner.Reason = reasonHintBackfilled
		reason = reasonHintBackfilled
		d.backfills++
	default:
		winner = rules
		if winner.Reason == "" {
			winner.Reason = ext.Reason
		}
		if winner.Reason == "" {
			winner.Reason = reasonNoSource
		}
		d.decide(field, "", 0, reasonNoSource)
		return winner
	}

	d.decide(field, winner.Source, winner.Confidence, reason)
	return winner
}

func orEmpty(r *domain.ExtractionResult) *domain.ExtractionResult {
	if r == nil {
		return &domain.ExtractionResult{}
	}
	return r
}

func unionStrings(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
