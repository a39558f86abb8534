package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/draftlens/backend/internal/domain"
)

// maxNameLength caps the extracted product name
const (
	maxNameLength             = 100
	maxShortDescriptionLength = 160
	minDescriptionWords       = 4
	minLongDescriptionWords   = 8
	maxCareLength             = 300
)

var (
	labelValueLine  = regexp.MustCompile(`^\s*([^:：]{1,40}?)\s*[:：]\s*(.{1,200})$`)
	sentenceSplit   = regexp.MustCompile(`[.!؟?؛;|\n]+`)
	nameBreakChars  = regexp.MustCompile(`[,،.|!؟?:：;؛(\[]`)
	explicitNameKey = map[string]bool{
		"الاسم": true, "اسم المنتج": true, "اسم": true, "المنتج": true,
		"name": true, "product name": true, "product": true, "title": true,
	}
)

// nameStopTokens end the product name: they introduce another field
var nameStopTokens = map[string]bool{
	"مقاس": true, "مقاسات": true, "المقاس": true, "المقاسات": true, "بمقاس": true, "بمقاسات": true,
	"size": true, "sizes": true,
	"لون": true, "اللون": true, "باللون": true, "الوان": true, "الالوان": true, "بالوان": true,
	"color": true, "colors": true, "colour": true, "colours": true,
	"السعر": true, "سعر": true, "بسعر": true, "price": true,
	"المخزون": true, "الكميه": true, "stock": true, "qty": true,
	"وزن": true, "الوزن": true, "weight": true,
	"متوفر": true, "متوفره": true, "available": true,
	"موديل": true, "الموديل": true, "model": true,
}

// priceLabelTerms mark label:value rows that carry prices or shipping terms
var priceLabelTerms = []string{
	"سعر", "price", "cost", "ريال", "درهم", "جنيه", "شحن", "توصيل", "shipping", "delivery", "خصم", "discount",
}

// consumedLabels are row labels already handled by a dedicated rule
var consumedLabels = map[string]bool{
	"مقاس": true, "المقاس": true, "المقاسات": true, "مقاسات": true, "size": true, "sizes": true,
	"لون": true, "اللون": true, "الالوان": true, "الوان": true, "color": true, "colors": true, "colour": true,
	"المخزون": true, "مخزون": true, "الكميه": true, "stock": true, "qty": true, "quantity": true,
	"الموديل": true, "موديل": true, "رقم الموديل": true, "كود": true, "الكود": true, "كود المنتج": true,
	"model": true, "model no": true, "sku": true,
	"الماركه": true, "ماركه": true, "البراند": true, "براند": true, "العلامه التجاريه": true, "brand": true,
	"الخامه": true, "خامه": true, "القماش": true, "نوع القماش": true, "الماده": true, "material": true, "fabric": true,
	"محتويات العبوه": true, "package contents": true, "package includes": true, "in the box": true,
	"طريقه الغسيل": true, "العنايه": true, "care": true, "care instructions": true,
	"الوزن": true, "وزن": true, "weight": true,
}

// careTokens and carePhrases mark a sentence as care instructions
var (
	careTokens = map[string]bool{
		"غسيل": true, "الغسيل": true, "يغسل": true, "تغسل": true, "غسل": true,
		"كي": true, "الكي": true, "يكوي": true, "تكوي": true,
		"مبيض": true, "المبيض": true, "تجفيف": true, "التجفيف": true, "العنايه": true,
		"wash": true, "washing": true, "washable": true, "iron": true, "ironing": true, "bleach": true,
	}
	carePhrases = []string{"dry clean", "hand wash", "machine wash", "tumble dry", "تنظيف جاف"}
)

// FieldExtractor runs the deterministic rule table against listing text
type FieldExtractor struct {
	normalizer *TextNormalizer
	keywords   *KeywordRanker
	logger     zerolog.Logger
}

// NewFieldExtractor creates a rule-based extractor
func NewFieldExtractor(normalizer *TextNormalizer, logger zerolog.Logger) *FieldExtractor {
	return &FieldExtractor{
		normalizer: normalizer,
		keywords:   NewKeywordRanker(),
		logger:     logger,
	}
}

// Extract produces a field map from the normalized text and the operator's
// raw text. It never fails: absent fields carry Found=false and a reason.
func (e *FieldExtractor) Extract(normalized, raw string, severity Severity) *domain.ExtractionResult {
	lines := e.normalizer.NormalizeLines(raw, severity)
	if len(lines) == 0 && normalized != "" {
		lines = []string{normalized}
	}
	doc := strings.Join(lines, "\n")
	prepared := e.normalizer.PrepareRaw(raw)

	result := &domain.ExtractionResult{}

	e.extractPrice(prepared, result)
	e.extractStock(doc, result)
	e.extractSizes(doc, result)

	if colors := matchColors(normalized); len(colors) > 0 {
		result.Colors = domain.FoundField(colors, domain.SourceRules, confidenceCuedPattern)
	} else {
		result.Colors = domain.MissingField[[]string](domain.SourceRules, "no colour term found")
	}

	result.Material = extractMaterial(doc, normalized)
	result.Measurements = extractMeasurements(doc)
	result.Model = firstRuleValue(modelRules, doc, "no model code found")
	result.Brand = firstRuleValue(brandRules, doc, "no brand label found")
	result.PackageContents = firstRuleValue(packageRules, doc, "no package contents listed")
	result.CareInstructions = extractCare(doc)
	result.Name = extractName(lines)
	result.ShortDescription, result.LongDescription = extractDescriptions(normalized, lines)
	result.DetailRows = extractDetailRows(lines)

	if kw := e.keywords.ExtractKeywords(result.Name.Value, normalized); len(kw) > 0 {
		result.Keywords = domain.FoundField(kw, domain.SourceRules, confidenceHeuristic)
	} else {
		result.Keywords = domain.MissingField[[]string](domain.SourceRules, "no keyword candidates in text")
	}

	e.logger.Debug().
		Int("fields_found", result.FoundCount()).
		Int("price_candidates", len(result.PriceCandidates)).
		Msg("rule extraction complete")

	return result
}

func (e *FieldExtractor) extractPrice(prepared string, result *domain.ExtractionResult) {
	outOfRange := false
	for _, m := range runRules(priceRules, prepared) {
		v, ok := parsePrice(m.value)
		if !ok {
			continue
		}
		result.PriceCandidates = append(result.PriceCandidates, domain.PriceCandidate{
			Tag:      m.rule.tag,
			Label:    m.rule.label,
			Value:    v,
			Position: m.start,
		})
		if v < minSanePrice || v > maxSanePrice {
			outOfRange = true
			continue
		}
		if !result.PurchasePrice.Found {
			result.PurchasePrice = domain.FoundField(v, domain.SourceRules, m.rule.confidence)
		}
	}
	if result.PurchasePrice.Found {
		return
	}
	if outOfRange {
		result.PurchasePrice = domain.MissingField[float64](domain.SourceRules, "price mentions found but none within a sane range")
		result.Warnings = append(result.Warnings, "price_out_of_range")
		return
	}
	result.PurchasePrice = domain.MissingField[float64](domain.SourceRules, "no price mention found")
}

func (e *FieldExtractor) extractStock(doc string, result *domain.ExtractionResult) {
	for _, m := range runRules(stockRules, doc) {
		n, err := strconv.Atoi(m.value)
		if err != nil {
			continue
		}
		result.Stock = domain.FoundField(n, domain.SourceRules, m.rule.confidence)
		return
	}
	result.Stock = domain.MissingField[int](domain.SourceRules, "no stock quantity found")
}

func (e *FieldExtractor) extractSizes(doc string, result *domain.ExtractionResult) {
	sizes := extractSizes(doc)

	if sizes.free {
		result.Sizes = domain.FoundField(sizes.all(), domain.SourceRules, confidenceExplicitLabel)
		result.LetterSizes = domain.MissingField[[]string](domain.SourceRules, "free size product")
		result.NumericSizes = domain.MissingField[[]string](domain.SourceRules, "free size product")
		return
	}

	if len(sizes.letters) > 0 {
		result.LetterSizes = domain.FoundField(sizes.letters, domain.SourceRules, confidenceCuedPattern)
	} else {
		result.LetterSizes = domain.MissingField[[]string](domain.SourceRules, "no letter size token found")
	}

	if len(sizes.numerics) > 0 {
		result.NumericSizes = domain.FoundField(sizes.numerics, domain.SourceRules, confidenceLexicon)
	} else if len(sizes.excluded) > 0 {
		result.NumericSizes = domain.MissingField[[]string](domain.SourceRules, "numbers near size cues belong to a weight range")
	} else {
		result.NumericSizes = domain.MissingField[[]string](domain.SourceRules, "no numeric size after a size cue")
	}

	if all := sizes.all(); len(all) > 0 {
		result.Sizes = domain.FoundField(all, domain.SourceRules, max(result.LetterSizes.Confidence, result.NumericSizes.Confidence))
	} else {
		result.Sizes = domain.MissingField[[]string](domain.SourceRules, "no explicit size token found")
	}
}

// firstRuleValue returns the best match of a rule set as a string field
func firstRuleValue(rules []fieldRule, text, reason string) domain.ExtractedField[string] {
	matches := runRules(rules, text)
	if len(matches) == 0 {
		return domain.MissingField[string](domain.SourceRules, reason)
	}
	m := matches[0]
	return domain.FoundField(strings.TrimSpace(m.value), domain.SourceRules, m.rule.confidence)
}

func extractMaterial(doc, normalized string) domain.ExtractedField[string] {
	if matches := runRules(materialLabelRules, doc); len(matches) > 0 {
		m := matches[0]
		return domain.FoundField(m.value, domain.SourceRules, m.rule.confidence)
	}
	if materials := matchMaterials(normalized); len(materials) > 0 {
		return domain.FoundField(strings.Join(materials, ", "), domain.SourceRules, confidenceLexicon)
	}
	return domain.MissingField[string](domain.SourceRules, "no material term found")
}

func extractMeasurements(doc string) domain.ExtractedField[[]domain.Measurement] {
	seen := make(map[string]bool)
	var out []domain.Measurement
	for _, m := range runRules(measurementRules, doc) {
		label, ok := measurementLabels[strings.ToLower(m.groups[0])]
		if !ok || seen[label] {
			continue
		}
		v, err := strconv.ParseFloat(m.groups[1], 64)
		if err != nil || v <= 0 {
			continue
		}
		seen[label] = true
		out = append(out, domain.Measurement{
			Label: label,
			Value: v,
			Unit:  measurementUnits[strings.ToLower(m.groups[2])],
		})
	}
	if len(out) == 0 {
		return domain.MissingField[[]domain.Measurement](domain.SourceRules, "no labelled measurement found")
	}
	return domain.FoundField(out, domain.SourceRules, confidenceCuedPattern)
}

func extractCare(doc string) domain.ExtractedField[string] {
	var sentences []string
	for _, s := range sentenceSplit.Split(doc, -1) {
		s = strings.TrimSpace(s)
		if s != "" && isCareSentence(s) {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return domain.MissingField[string](domain.SourceRules, "no care instructions found")
	}
	return domain.FoundField(truncateAtWord(strings.Join(sentences, "; "), maxCareLength), domain.SourceRules, confidenceLexicon)
}

func isCareSentence(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range carePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	for _, t := range wordTokens(s) {
		if careTokens[foldKey(t.text)] {
			return true
		}
	}
	return false
}

// extractName takes an explicit name label if present, otherwise the leading
// words of the first descriptive line, cut before the first field cue
func extractName(lines []string) domain.ExtractedField[string] {
	for _, line := range lines {
		if m := labelValueLine.FindStringSubmatch(line); m != nil && explicitNameKey[foldKey(m[1])] {
			return domain.FoundField(truncateAtWord(m[2], maxNameLength), domain.SourceRules, confidenceExplicitLabel)
		}
	}

	for _, line := range lines {
		if labelValueLine.MatchString(line) {
			continue
		}
		name := leadingName(line)
		if name == "" {
			continue
		}
		confidence := confidenceWeakHeuristic
		switch words := countWords(name); {
		case words >= 3:
			confidence = 0.75
		case words == 2:
			confidence = 0.55
		}
		return domain.FoundField(name, domain.SourceRules, confidence)
	}
	return domain.MissingField[string](domain.SourceRules, "no descriptive line to derive a name from")
}

func leadingName(line string) string {
	if loc := nameBreakChars.FindStringIndex(line); loc != nil {
		line = line[:loc[0]]
	}
	end := len(line)
	hasLetter := false
	for _, t := range wordTokens(line) {
		if nameStopTokens[foldKey(t.text)] {
			end = t.start
			break
		}
		if !isNumeric(t.text) {
			hasLetter = true
		}
	}
	if !hasLetter {
		return ""
	}
	return truncateAtWord(strings.TrimSpace(line[:end]), maxNameLength)
}

func extractDescriptions(normalized string, lines []string) (short, long domain.ExtractedField[string]) {
	first := strings.TrimSpace(sentenceSplit.Split(normalized, 2)[0])
	if countWords(first) >= minDescriptionWords {
		short = domain.FoundField(truncateAtWord(first, maxShortDescriptionLength), domain.SourceRules, confidenceHeuristic)
	} else if countWords(normalized) >= minDescriptionWords {
		short = domain.FoundField(truncateAtWord(normalized, maxShortDescriptionLength), domain.SourceRules, confidenceWeakHeuristic)
	} else {
		short = domain.MissingField[string](domain.SourceRules, "text too short for a description")
	}

	body := strings.Join(lines, "\n")
	if countWords(body) >= minLongDescriptionWords {
		long = domain.FoundField(body, domain.SourceRules, confidenceLooseCue)
	} else {
		long = domain.MissingField[string](domain.SourceRules, "text too short for a long description")
	}
	return short, long
}

// extractDetailRows keeps residual label:value lines
func extractDetailRows(lines []string) domain.ExtractedField[[]domain.DetailRow] {
	var rows []domain.DetailRow
	for _, line := range lines {
		m := labelValueLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label, value := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		key := foldKey(label)
		if value == "" || consumedLabels[key] || explicitNameKey[key] || isMeasurementLabel(label) || mentionsPrice(key) || mentionsPrice(foldKey(value)) {
			continue
		}
		rows = append(rows, domain.DetailRow{Label: label, Value: value})
	}
	if len(rows) == 0 {
		return domain.MissingField[[]domain.DetailRow](domain.SourceRules, "no additional label:value rows")
	}
	return domain.FoundField(rows, domain.SourceRules, confidenceLooseCue)
}

func isMeasurementLabel(label string) bool {
	_, ok := measurementLabels[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

func mentionsPrice(s string) bool {
	for _, term := range priceLabelTerms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
