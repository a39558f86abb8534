package usecase

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/draftlens/backend/internal/domain"
)

// SKU synthesis defaults
const (
	defaultSKUSeedLength  = 8
	defaultSKUTokenLength = 3
	defaultSKUSeparator   = "-"
	defaultSKUSeed        = "SKU"
	maxSizeDimensions     = 2
)

// Separators used in composite size labels
const (
	compositePairSeparator  = "|"
	compositeValueSeparator = ":"
	sizeLabelSeparator      = "/"
	defaultSizeDimension    = "size"
)

// VariantConfig holds configuration for SKU synthesis
type VariantConfig struct {
	SeedLength       int
	TokenLength      int
	Separator        string
	EnsureUniqueSKUs bool
}

// VariantGenerator expands size and colour selections into sellable variants
type VariantGenerator struct {
	seedLength  int
	tokenLength int
	separator   string
	uniqueSKUs  bool
	logger      zerolog.Logger
}

// NewVariantGenerator creates a generator with the given SKU settings
func NewVariantGenerator(config VariantConfig, logger zerolog.Logger) *VariantGenerator {
	g := &VariantGenerator{
		seedLength:  config.SeedLength,
		tokenLength: config.TokenLength,
		separator:   config.Separator,
		uniqueSKUs:  config.EnsureUniqueSKUs,
		logger:      logger,
	}
	if g.seedLength <= 0 {
		g.seedLength = defaultSKUSeedLength
	}
	if g.tokenLength <= 0 {
		g.tokenLength = defaultSKUTokenLength
	}
	if g.separator == "" {
		g.separator = defaultSKUSeparator
	}
	return g
}

// axisValue is one value on one axis of the matrix
type axisValue struct {
	option domain.OptionValue
	token  string
	color  bool
}

// Generate returns the Cartesian product of the active size dimensions and
// the colours. Iteration order: first size dimension (outermost), second size
// dimension, colour (innermost). Nothing active yields an empty result.
func (g *VariantGenerator) Generate(req *domain.VariantRequest) ([]domain.VariantRecord, error) {
	if req == nil {
		return nil, domain.ErrInvalidRequest
	}

	var axes [][]axisValue
	for _, dim := range req.Dimensions {
		if len(dim.SelectedSizes) == 0 {
			continue
		}
		if len(axes) == maxSizeDimensions {
			return nil, fmt.Errorf("%w: got more than %d", domain.ErrTooManyDimensions, maxSizeDimensions)
		}
		name := dimensionName(dim)
		axis := make([]axisValue, len(dim.SelectedSizes))
		for i, size := range dim.SelectedSizes {
			axis[i] = axisValue{
				option: domain.OptionValue{Dimension: name, Value: size},
				token:  g.valueToken(size, "S", i),
			}
		}
		axes = append(axes, axis)
	}
	if len(req.Colors) > 0 {
		axis := make([]axisValue, len(req.Colors))
		for i, c := range req.Colors {
			axis[i] = axisValue{
				option: domain.OptionValue{Dimension: domain.ColorDimension, Value: c.ColorName},
				token:  g.valueToken(c.ColorName, "C", i),
				color:  true,
			}
		}
		axes = append(axes, axis)
	}
	if len(axes) == 0 {
		return []domain.VariantRecord{}, nil
	}

	seed := skuSegment(req.SKUSeed, g.seedLength)
	if seed == "" {
		seed = defaultSKUSeed
	}

	total := 1
	for _, axis := range axes {
		total *= len(axis)
	}
	records := make([]domain.VariantRecord, 0, total)

	// Odometer over the axes; the last axis turns fastest
	idx := make([]int, len(axes))
	for n := 0; n < total; n++ {
		combo := make([]axisValue, len(axes))
		for a := range axes {
			combo[a] = axes[a][idx[a]]
		}
		records = append(records, g.buildRecord(seed, combo, req))

		for a := len(axes) - 1; a >= 0; a-- {
			idx[a]++
			if idx[a] < len(axes[a]) {
				break
			}
			idx[a] = 0
		}
	}

	if g.uniqueSKUs {
		EnsureUniqueSKUs(records, g.separator)
	}

	g.logger.Debug().
		Int("axes", len(axes)).
		Int("variants", len(records)).
		Msg("generated variant matrix")

	return records, nil
}

func (g *VariantGenerator) buildRecord(seed string, combo []axisValue, req *domain.VariantRequest) domain.VariantRecord {
	rec := domain.VariantRecord{
		Price:         copyFloat(req.Price),
		PurchasePrice: copyFloat(req.PurchasePrice),
		StockQuantity: req.StockQuantity,
		OptionValues:  make([]domain.OptionValue, 0, len(combo)),
	}

	parts := []string{seed}
	var sizeValues, composite []string
	for _, v := range combo {
		rec.OptionValues = append(rec.OptionValues, v.option)
		parts = append(parts, v.token)
		if v.color {
			rec.Color = v.option.Value
			continue
		}
		sizeValues = append(sizeValues, v.option.Value)
		composite = append(composite, v.option.Dimension+compositeValueSeparator+v.option.Value)
	}
	rec.Size = strings.Join(sizeValues, sizeLabelSeparator)
	rec.CompositeSize = strings.Join(composite, compositePairSeparator)
	rec.SKU = strings.Join(parts, g.separator)
	return rec
}

// valueToken is the SKU fragment for one value, falling back to a
// positional token when the value has no Latin letters or digits
func (g *VariantGenerator) valueToken(value, prefix string, index int) string {
	if tok := skuSegment(value, g.tokenLength); tok != "" {
		return tok
	}
	return fmt.Sprintf("%s%d", prefix, index+1)
}

// skuSegment uppercases s, keeps only A-Z and 0-9 and truncates to n
func skuSegment(s string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == n {
				break
			}
		}
	}
	return b.String()
}

// EnsureUniqueSKUs suffixes repeated SKUs with -2, -3, ... in place
func EnsureUniqueSKUs(records []domain.VariantRecord, separator string) {
	if separator == "" {
		separator = defaultSKUSeparator
	}
	used := make(map[string]bool, len(records))
	for _, r := range records {
		used[r.SKU] = false
	}
	for i := range records {
		sku := records[i].SKU
		if !used[sku] {
			used[sku] = true
			continue
		}
		for n := 2; ; n++ {
			candidate := fmt.Sprintf("%s%s%d", sku, separator, n)
			if _, taken := used[candidate]; !taken {
				used[candidate] = true
				records[i].SKU = candidate
				break
			}
		}
	}
}

// NormalizeVariants repairs client-submitted records so each carries explicit
// size and colour tokens plus matching option values
func NormalizeVariants(records []domain.VariantRecord) []domain.VariantRecord {
	out := make([]domain.VariantRecord, len(records))
	for i, r := range records {
		r.OptionValues = append([]domain.OptionValue(nil), r.OptionValues...)

		var sizeOptions []domain.OptionValue
		colorValue, hasColor := "", false
		for _, o := range r.OptionValues {
			if o.Dimension == domain.ColorDimension {
				colorValue, hasColor = o.Value, true
			} else {
				sizeOptions = append(sizeOptions, o)
			}
		}

		if len(sizeOptions) == 0 {
			sizeOptions = parseCompositeSize(r.CompositeSize)
			if len(sizeOptions) == 0 && strings.TrimSpace(r.Size) != "" {
				sizeOptions = []domain.OptionValue{{Dimension: defaultSizeDimension, Value: strings.TrimSpace(r.Size)}}
			}
			r.OptionValues = append(sizeOptions, r.OptionValues...)
		}

		if !hasColor && strings.TrimSpace(r.Color) != "" {
			r.OptionValues = append(r.OptionValues, domain.OptionValue{Dimension: domain.ColorDimension, Value: strings.TrimSpace(r.Color)})
		} else if hasColor && r.Color == "" {
			r.Color = colorValue
		}

		if len(sizeOptions) > 0 {
			values := make([]string, len(sizeOptions))
			pairs := make([]string, len(sizeOptions))
			for j, o := range sizeOptions {
				values[j] = o.Value
				pairs[j] = o.Dimension + compositeValueSeparator + o.Value
			}
			if r.Size == "" {
				r.Size = strings.Join(values, sizeLabelSeparator)
			}
			if r.CompositeSize == "" {
				r.CompositeSize = strings.Join(pairs, compositePairSeparator)
			}
		}
		out[i] = r
	}
	return out
}

// parseCompositeSize splits "Letter:M|Waist:32" into option values
func parseCompositeSize(composite string) []domain.OptionValue {
	var options []domain.OptionValue
	for _, pair := range strings.Split(composite, compositePairSeparator) {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		dim, value, ok := strings.Cut(pair, compositeValueSeparator)
		if !ok {
			options = append(options, domain.OptionValue{Dimension: defaultSizeDimension, Value: pair})
			continue
		}
		dim, value = strings.TrimSpace(dim), strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if dim == "" {
			dim = defaultSizeDimension
		}
		options = append(options, domain.OptionValue{Dimension: dim, Value: value})
	}
	return options
}

func dimensionName(dim domain.SizeDimensionSelection) string {
	if name := strings.TrimSpace(dim.DimensionName); name != "" {
		return name
	}
	if id := strings.TrimSpace(dim.DimensionID); id != "" {
		return id
	}
	return defaultSizeDimension
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
