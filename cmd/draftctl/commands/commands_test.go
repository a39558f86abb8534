package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftlens/backend/internal/domain"
)

const coveredListing = "فستان سهرة طويل مقاس M L باللون الأحمر السعر 250 ريال المخزون 5"

// run executes draftctl in an empty working directory so no config file or
// .env is picked up
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var out, errOut bytes.Buffer
	root := NewRootCmd(strings.NewReader(stdin), &out, &errOut)
	root.SetArgs(append([]string{"--no-color"}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestVariantsCmd_Table(t *testing.T) {
	out, _, err := run(t, "",
		"variants",
		"--dimension", "Letter=M,L",
		"--colors", "Red,Blue",
		"--seed", "Evening Dress",
		"--price", "120",
		"--stock", "5",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "EVENINGD-M-RED")
	assert.Contains(t, out, "EVENINGD-L-BLU")
	assert.Contains(t, out, "4 variants")
	assert.Contains(t, out, "120")
}

func TestVariantsCmd_JSON(t *testing.T) {
	out, _, err := run(t, "",
		"variants",
		"-d", "Letter=S,M",
		"-d", "Waist=30",
		"--seed", "Jeans",
		"--purchase-price", "80.5",
		"--json",
	)
	require.NoError(t, err)

	var records []domain.VariantRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)

	assert.Equal(t, "S/30", records[0].Size)
	assert.Equal(t, "Letter:S|Waist:30", records[0].CompositeSize)
	assert.Nil(t, records[0].Price)
	require.NotNil(t, records[0].PurchasePrice)
	assert.Equal(t, 80.5, *records[0].PurchasePrice)
}

func TestVariantsCmd_Empty(t *testing.T) {
	out, _, err := run(t, "", "variants", "--seed", "Dress")
	require.NoError(t, err)
	assert.Contains(t, out, "no variants")
}

func TestVariantsCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"malformed dimension", []string{"--dimension", "Letter"}, domain.ErrInvalidRequest},
		{"dimension without sizes", []string{"--dimension", "Letter= , "}, domain.ErrInvalidRequest},
		{"negative stock", []string{"--colors", "Red", "--stock", "-1"}, domain.ErrInvalidRequest},
		{"three dimensions", []string{"-d", "A=1", "-d", "B=2", "-d", "C=3"}, domain.ErrTooManyDimensions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, "", append([]string{"variants"}, tt.args...)...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAnalyzeCmd_Text(t *testing.T) {
	out, errOut, err := run(t, "", "analyze", "--mode", "rules", "--text", coveredListing)
	require.NoError(t, err)

	var draft domain.ProductDraft
	require.NoError(t, json.Unmarshal([]byte(out), &draft))
	assert.True(t, draft.PurchasePrice.Found)
	assert.Equal(t, 250.0, draft.PurchasePrice.Value)
	assert.Equal(t, domain.ModeRules, draft.Mode)
	assert.Contains(t, errOut, "fields found")
}

func TestAnalyzeCmd_StdinWithVariants(t *testing.T) {
	out, _, err := run(t, coveredListing, "analyze", "--mode", "rules", "--file", "-", "--variants")
	require.NoError(t, err)

	assert.Contains(t, out, `"purchasePrice"`)
	assert.Contains(t, out, "SKU")
	assert.Contains(t, out, "variants")
}

func TestAnalyzeCmd_ProviderMissingWarns(t *testing.T) {
	_, errOut, err := run(t, "", "analyze", "--text", "قميص قطن رجالي")
	require.NoError(t, err)
	assert.Contains(t, errOut, "provider_not_configured")
}

func TestAnalyzeCmd_NothingExtracted(t *testing.T) {
	out, errOut, err := run(t, "", "analyze", "--mode", "rules", "--text", "!!! ???")

	assert.ErrorIs(t, err, domain.ErrNothingExtracted)
	assert.NotEmpty(t, out, "the empty draft is still printed")
	assert.Contains(t, errOut, "nothing_extracted")
}

func TestAnalyzeCmd_InputErrors(t *testing.T) {
	_, _, err := run(t, "", "analyze")
	assert.ErrorContains(t, err, "no input")

	_, _, err = run(t, "", "analyze", "--text", "x", "--mode", "turbo")
	assert.ErrorContains(t, err, "unknown mode")

	_, _, err = run(t, "", "analyze", "--file", "missing.txt")
	assert.ErrorContains(t, err, "missing.txt")

	_, _, err = run(t, "", "analyze", "--file", "a.txt", "--text", "x")
	assert.Error(t, err)
}

func TestAnalysisFlags(t *testing.T) {
	tests := []struct {
		mode string
		want domain.AnalysisFlags
	}{
		{"", domain.AnalysisFlags{}},
		{"assist", domain.AnalysisFlags{}},
		{"RULES", domain.AnalysisFlags{RulesOnly: true}},
		{"ai", domain.AnalysisFlags{ExternalOnly: true}},
	}
	for _, tt := range tests {
		got, err := analysisFlags(&analyzeOptions{mode: tt.mode})
		require.NoError(t, err, tt.mode)
		assert.Equal(t, tt.want, got, tt.mode)
	}

	got, err := analysisFlags(&analyzeOptions{strict: true, provider: "openrouter", forceExternal: true})
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisFlags{Strict: true, Provider: "openrouter", ForceExternal: true}, got)
}

func TestParseDimension(t *testing.T) {
	dim, err := parseDimension(" Waist = 30, 32 ,34 ")
	require.NoError(t, err)
	assert.Equal(t, domain.SizeDimensionSelection{
		DimensionID:    "waist",
		DimensionName:  "Waist",
		AvailableSizes: []string{"30", "32", "34"},
		SelectedSizes:  []string{"30", "32", "34"},
	}, dim)

	_, err = parseDimension("=M,L")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
