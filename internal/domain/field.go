package domain

// Source identifies which extraction path produced a field value
type Source string

const (
	SourceRules Source = "rules"
	SourceAI    Source = "ai"
)

// ExtractedField wraps every structured output value with its provenance.
// When Found is false, Confidence describes absence (always 0) and Reason
// explains the gap so the UI can render it.
type ExtractedField[T any] struct {
	Value      T       `json:"value"`
	Found      bool    `json:"found"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// FoundField builds a populated field
func FoundField[T any](value T, source Source, confidence float64) ExtractedField[T] {
	return ExtractedField[T]{
		Value:      value,
		Found:      true,
		Source:     source,
		Confidence: ClampConfidence(confidence),
	}
}

// MissingField builds an empty field carrying a human-readable reason
func MissingField[T any](source Source, reason string) ExtractedField[T] {
	return ExtractedField[T]{
		Source: source,
		Reason: reason,
	}
}

// ClampConfidence bounds a score to [0,1]
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// PriceTag ranks price mentions; lower values win
type PriceTag int

const (
	PriceTagOld PriceTag = iota + 1
	PriceTagRegionalA
	PriceTagRegionalB
	PriceTagGeneric
)

func (t PriceTag) String() string {
	switch t {
	case PriceTagOld:
		return "old_price"
	case PriceTagRegionalA:
		return "regional_a"
	case PriceTagRegionalB:
		return "regional_b"
	case PriceTagGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// PriceCandidate is one price mention found in the raw text
type PriceCandidate struct {
	Tag      PriceTag `json:"tag"`
	Label    string   `json:"label"`
	Value    float64  `json:"value"`
	Position int      `json:"position"`
}

// Measurement is a label-keyed dimension such as "chest: 96 cm"
type Measurement struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// DetailRow is a residual label:value pair
type DetailRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ExtractionResult is the field map produced by the rule extractor and by
// external providers. Both sources share this shape so merging is field-wise.
type ExtractionResult struct {
	Name             ExtractedField[string]        `json:"name"`
	ShortDescription ExtractedField[string]        `json:"shortDescription"`
	LongDescription  ExtractedField[string]        `json:"longDescription"`
	PurchasePrice    ExtractedField[float64]       `json:"purchasePrice"`
	PriceCandidates  []PriceCandidate              `json:"priceCandidates,omitempty"`
	Stock            ExtractedField[int]           `json:"stock"`
	Sizes            ExtractedField[[]string]      `json:"sizes"`
	LetterSizes      ExtractedField[[]string]      `json:"letterSizes"`
	NumericSizes     ExtractedField[[]string]      `json:"numericSizes"`
	Colors           ExtractedField[[]string]      `json:"colors"`
	Keywords         ExtractedField[[]string]      `json:"keywords"`
	Measurements     ExtractedField[[]Measurement] `json:"measurements"`
	Material         ExtractedField[string]        `json:"material"`
	Model            ExtractedField[string]        `json:"model"`
	Brand            ExtractedField[string]        `json:"brand"`
	CareInstructions ExtractedField[string]        `json:"careInstructions"`
	PackageContents  ExtractedField[string]        `json:"packageContents"`
	DetailRows       ExtractedField[[]DetailRow]   `json:"detailRows"`

	InputHash string   `json:"inputHash,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// FoundCount reports how many fields carry a value
func (r *ExtractionResult) FoundCount() int {
	if r == nil {
		return 0
	}
	flags := []bool{
		r.Name.Found, r.ShortDescription.Found, r.LongDescription.Found,
		r.PurchasePrice.Found, r.Stock.Found, r.Sizes.Found, r.LetterSizes.Found,
		r.NumericSizes.Found, r.Colors.Found, r.Keywords.Found, r.Measurements.Found,
		r.Material.Found, r.Model.Found, r.Brand.Found, r.CareInstructions.Found,
		r.PackageContents.Found, r.DetailRows.Found,
	}
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
