package usecase

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/draftlens/backend/internal/domain"
)

func newTestMergeEngine() *MergeEngine {
	return NewMergeEngine(MergeConfig{}, zerolog.Nop())
}

func findDecision(t *testing.T, draft *domain.ProductDraft, field string) domain.FieldDecision {
	t.Helper()
	for _, d := range draft.Decisions {
		if d.Field == field {
			return d
		}
	}
	t.Fatalf("no decision recorded for %s", field)
	return domain.FieldDecision{}
}

func TestNewMergeEngine(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		m := NewMergeEngine(MergeConfig{}, zerolog.Nop())
		if m.nameMinWords != 6 {
			t.Errorf("nameMinWords = %d, want 6", m.nameMinWords)
		}
		if m.minRuleConfidence != 0.6 {
			t.Errorf("minRuleConfidence = %v, want 0.6", m.minRuleConfidence)
		}
	})

	t.Run("keeps custom values", func(t *testing.T) {
		m := NewMergeEngine(MergeConfig{NameMinWords: 3, MinRuleConfidence: 0.8}, zerolog.Nop())
		if m.nameMinWords != 3 || m.minRuleConfidence != 0.8 {
			t.Errorf("got (%d, %v), want (3, 0.8)", m.nameMinWords, m.minRuleConfidence)
		}
	})
}

func TestMerge_NameQualityBar(t *testing.T) {
	m := newTestMergeEngine()
	external := &domain.ExtractionResult{
		Name: domain.FoundField("فستان سهرة طويل بأكمام دانتيل فاخر", domain.SourceAI, 0.9),
	}

	t.Run("short rules name loses in assist", func(t *testing.T) {
		rules := &domain.ExtractionResult{
			Name: domain.FoundField("فستان سهرة طويل", domain.SourceRules, 0.75),
		}
		draft := m.Merge(MergeInput{Mode: domain.ModeAssist, Rules: rules, External: external})

		if draft.Name.Value != external.Name.Value || draft.Name.Source != domain.SourceAI {
			t.Errorf("Name = %+v, want external name", draft.Name)
		}
		if d := findDecision(t, draft, "name"); d.Reason != reasonRulesWeak {
			t.Errorf("decision reason = %q, want %q", d.Reason, reasonRulesWeak)
		}
	})

	t.Run("descriptive rules name is kept in assist", func(t *testing.T) {
		rules := &domain.ExtractionResult{
			Name: domain.FoundField("فستان سهرة طويل مطرز بالخرز الفضي", domain.SourceRules, 0.75),
		}
		draft := m.Merge(MergeInput{Mode: domain.ModeAssist, Rules: rules, External: external})

		if draft.Name.Source != domain.SourceRules {
			t.Errorf("Name.Source = %q, want rules", draft.Name.Source)
		}
	})
}

func TestMerge_Modes(t *testing.T) {
	m := newTestMergeEngine()

	testCases := []struct {
		name      string
		mode      domain.Mode
		ruleConf  float64
		wantPrice float64
		wantSrc   domain.Source
	}{
		{"rules mode keeps rules", domain.ModeRules, 0.3, 100, domain.SourceRules},
		{"ai mode prefers external", domain.ModeAI, 0.9, 120, domain.SourceAI},
		{"assist keeps confident rules", domain.ModeAssist, 0.85, 100, domain.SourceRules},
		{"assist replaces weak rules", domain.ModeAssist, 0.5, 120, domain.SourceAI},
		{"unknown mode behaves as assist", domain.Mode("bogus"), 0.5, 120, domain.SourceAI},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rules := &domain.ExtractionResult{PurchasePrice: domain.FoundField(100.0, domain.SourceRules, tc.ruleConf)}
			external := &domain.ExtractionResult{PurchasePrice: domain.FoundField(120.0, domain.SourceAI, 0.8)}

			draft := m.Merge(MergeInput{Mode: tc.mode, Rules: rules, External: external})

			if draft.PurchasePrice.Value != tc.wantPrice {
				t.Errorf("PurchasePrice = %v, want %v", draft.PurchasePrice.Value, tc.wantPrice)
			}
			if draft.PurchasePrice.Source != tc.wantSrc {
				t.Errorf("Source = %q, want %q", draft.PurchasePrice.Source, tc.wantSrc)
			}
		})
	}
}

func TestMerge_SingleSource(t *testing.T) {
	m := newTestMergeEngine()
	rules := &domain.ExtractionResult{Stock: domain.FoundField(5, domain.SourceRules, 0.2)}
	external := &domain.ExtractionResult{Brand: domain.FoundField("Zara", domain.SourceAI, 0.9)}

	draft := m.Merge(MergeInput{Mode: domain.ModeAI, Rules: rules, External: external})

	if !draft.Stock.Found || draft.Stock.Value != 5 {
		t.Errorf("Stock = %+v, want rules value 5", draft.Stock)
	}
	if d := findDecision(t, draft, "stock"); d.Reason != reasonOnlyRules {
		t.Errorf("stock reason = %q, want %q", d.Reason, reasonOnlyRules)
	}
	if draft.Brand.Value != "Zara" {
		t.Errorf("Brand = %q, want Zara", draft.Brand.Value)
	}
}

func TestMerge_HintBackfill(t *testing.T) {
	m := newTestMergeEngine()
	rules := &domain.ExtractionResult{
		Brand: domain.MissingField[string](domain.SourceRules, "no brand label found"),
		Model: domain.FoundField("AB-1", domain.SourceRules, 0.85),
	}
	hint := &domain.ExtractionResult{
		Brand: domain.FoundField("Zara", domain.SourceAI, 0.8),
		Model: domain.FoundField("ZZ-9", domain.SourceAI, 0.8),
	}

	draft := m.Merge(MergeInput{Mode: domain.ModeRules, Rules: rules, Hint: hint})

	if !draft.Brand.Found || draft.Brand.Value != "Zara" {
		t.Fatalf("Brand = %+v, want backfilled Zara", draft.Brand)
	}
	if draft.Brand.Reason != reasonHintBackfilled {
		t.Errorf("Brand.Reason = %q, want %q", draft.Brand.Reason, reasonHintBackfilled)
	}
	if draft.Brand.Source != domain.SourceAI {
		t.Errorf("Brand.Source = %q, want ai", draft.Brand.Source)
	}
	if draft.Model.Value != "AB-1" {
		t.Errorf("Model = %q, hint must not override a found value", draft.Model.Value)
	}
}

func TestMerge_EmptyHintChangesNothing(t *testing.T) {
	m := newTestMergeEngine()
	rules := &domain.ExtractionResult{
		Name:   domain.FoundField("قميص قطن", domain.SourceRules, 0.55),
		Colors: domain.FoundField([]string{"أبيض"}, domain.SourceRules, 0.8),
	}
	external := &domain.ExtractionResult{
		Name: domain.FoundField("قميص قطن رجالي بأكمام طويلة كلاسيكي", domain.SourceAI, 0.9),
	}

	withoutHint := m.Merge(MergeInput{Mode: domain.ModeAssist, InputHash: "h", Rules: rules, External: external})
	withEmptyHint := m.Merge(MergeInput{Mode: domain.ModeAssist, InputHash: "h", Rules: rules, External: external, Hint: &domain.ExtractionResult{}})

	if !reflect.DeepEqual(withoutHint, withEmptyHint) {
		t.Errorf("empty hint changed the draft:\n%+v\n%+v", withoutHint, withEmptyHint)
	}
}

func TestMerge_Deterministic(t *testing.T) {
	m := newTestMergeEngine()
	in := MergeInput{
		Mode:      domain.ModeAssist,
		InputHash: "abc",
		Rules: &domain.ExtractionResult{
			Sizes:    domain.FoundField([]string{"M", "L"}, domain.SourceRules, 0.8),
			Warnings: []string{"price_out_of_range"},
		},
		External: &domain.ExtractionResult{
			Colors:   domain.FoundField([]string{"Red"}, domain.SourceAI, 0.9),
			Warnings: []string{"low_confidence"},
		},
		Samples: []domain.ColorSample{{ImageRef: "a", RGBHex: "#FF0000", NearestColorName: "Red"}},
	}

	first := m.Merge(in)
	second := m.Merge(in)

	if !reflect.DeepEqual(first, second) {
		t.Error("Merge is not deterministic")
	}
	if len(first.Decisions) != 17 {
		t.Errorf("len(Decisions) = %d, want one per field (17)", len(first.Decisions))
	}
	if want := []string{"price_out_of_range", "low_confidence"}; !reflect.DeepEqual(first.Warnings, want) {
		t.Errorf("Warnings = %v, want %v", first.Warnings, want)
	}
	if first.ColorImageMap["Red"] != "a" {
		t.Errorf("ColorImageMap = %v, want Red linked to a", first.ColorImageMap)
	}
}

func TestMerge_ExternalColorsSanitized(t *testing.T) {
	m := newTestMergeEngine()
	rules := &domain.ExtractionResult{Colors: domain.FoundField([]string{"أحمر"}, domain.SourceRules, 0.8)}

	t.Run("unknown names dropped", func(t *testing.T) {
		external := &domain.ExtractionResult{
			Colors: domain.FoundField([]string{"crimson glow", "Blue", "blue"}, domain.SourceAI, 0.9),
		}
		draft := m.Merge(MergeInput{Mode: domain.ModeAI, Rules: rules, External: external})

		if want := []string{"Blue"}; !reflect.DeepEqual(draft.Colors.Value, want) {
			t.Errorf("Colors = %v, want %v", draft.Colors.Value, want)
		}
	})

	t.Run("nothing recognisable falls back to rules", func(t *testing.T) {
		external := &domain.ExtractionResult{
			Colors: domain.FoundField([]string{"sparkly"}, domain.SourceAI, 0.9),
		}
		draft := m.Merge(MergeInput{Mode: domain.ModeAI, Rules: rules, External: external})

		if want := []string{"أحمر"}; !reflect.DeepEqual(draft.Colors.Value, want) {
			t.Errorf("Colors = %v, want %v", draft.Colors.Value, want)
		}
	})
}

func TestMerge_NoSourceKeepsReason(t *testing.T) {
	m := newTestMergeEngine()
	rules := &domain.ExtractionResult{
		Brand: domain.MissingField[string](domain.SourceRules, "no brand label found"),
	}

	draft := m.Merge(MergeInput{Mode: domain.ModeAssist, Rules: rules})

	if draft.Brand.Found {
		t.Fatal("Brand should be missing")
	}
	if draft.Brand.Reason != "no brand label found" {
		t.Errorf("Brand.Reason = %q", draft.Brand.Reason)
	}
	if draft.Name.Reason != reasonNoSource {
		t.Errorf("Name.Reason = %q, want %q", draft.Name.Reason, reasonNoSource)
	}
	if d := findDecision(t, draft, "brand"); d.Winner != "" {
		t.Errorf("winner = %q, want none", d.Winner)
	}
}

func TestApplyLateResult(t *testing.T) {
	m := newTestMergeEngine()
	session := &domain.DraftSession{
		ID:        "d1",
		InputHash: "hash-current",
		Rules: &domain.ExtractionResult{
			Name: domain.FoundField("قميص", domain.SourceRules, 0.35),
		},
	}

	t.Run("rejects results for superseded input", func(t *testing.T) {
		late := &domain.ExtractionResult{
			InputHash: "hash-old",
			Name:      domain.FoundField("قميص قطن رجالي بأكمام طويلة كلاسيكي", domain.SourceAI, 0.9),
		}
		_, err := m.ApplyLateResult(session, domain.ModeAssist, late, nil)
		if !errors.Is(err, domain.ErrStaleResult) {
			t.Errorf("error = %v, want ErrStaleResult", err)
		}
	})

	t.Run("merges results for current input", func(t *testing.T) {
		late := &domain.ExtractionResult{
			InputHash: "hash-current",
			Name:      domain.FoundField("قميص قطن رجالي بأكمام طويلة كلاسيكي", domain.SourceAI, 0.9),
		}
		draft, err := m.ApplyLateResult(session, domain.ModeAssist, late, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if draft.Name.Source != domain.SourceAI {
			t.Errorf("Name.Source = %q, want ai", draft.Name.Source)
		}
		if draft.InputHash != "hash-current" {
			t.Errorf("InputHash = %q", draft.InputHash)
		}
	})

	t.Run("nil result is invalid", func(t *testing.T) {
		if _, err := m.ApplyLateResult(session, domain.ModeAssist, nil, nil); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})
}

func TestLinkColors(t *testing.T) {
	samples := []domain.ColorSample{
		{ImageRef: "a", RGBHex: "#FF0000", NearestColorName: "Red"},
		{ImageRef: "b", RGBHex: "#0000FF", NearestColorName: "Blue"},
		FallbackSample("c"),
	}

	got := LinkColors([]string{"أحمر", "Blue", "Green", "رمادي"}, samples)

	want := map[string]string{"أحمر": "a", "Blue": "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LinkColors() = %v, want %v", got, want)
	}
}
