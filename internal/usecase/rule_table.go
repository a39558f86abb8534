package usecase

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/draftlens/backend/internal/domain"
)

// fieldRule is one declarative extraction rule: pattern → field, with a
// priority (lower wins), the confidence assigned to its matches and an
// optional exclusion predicate.
type fieldRule struct {
	field      string
	label      string
	pattern    *regexp.Regexp
	priority   int
	confidence float64
	tag        domain.PriceTag
	exclude    func(text string, loc []int) bool
}

// ruleMatch is one accepted match of a rule
type ruleMatch struct {
	rule   *fieldRule
	value  string
	groups []string
	start  int
	end    int
}

// Rule confidence levels
const (
	confidenceExplicitLabel = 0.9
	confidenceCuedPattern   = 0.8
	confidenceLexicon       = 0.7
	confidenceLooseCue      = 0.6
	confidenceHeuristic     = 0.5
	confidenceWeakHeuristic = 0.35
)

// Sane purchase price bounds
const (
	minSanePrice = 1.0
	maxSanePrice = 1_000_000.0
)

// leftBoundary stands in for \b, which RE2 only applies to ASCII word characters
const leftBoundary = `(?:^|[^\p{L}\p{N}])`

// numberGroup captures 1,250.50 / 1250.5 / 3900
const numberGroup = `(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`

var (
	currencyRegionalA = `(?:ريال|ر\.س|sar|sr)`
	currencyRegionalB = `(?:درهم|د\.إ|aed|جنيه|ج\.م|egp)`
	currencyGeneric   = `(?:\$|usd|دولار)`
)

// priceRules run against digit-normalized raw text
var priceRules = []fieldRule{
	{
		field: "purchasePrice", label: "old price", tag: domain.PriceTagOld, priority: 1, confidence: 0.85,
		pattern: regexp.MustCompile(`(?i)` + leftBoundary + `(?:السعر القديم|سعر قديم|قبل الخصم|بدلا من|old price|original price|regular price|was)\s*[:：\-]?\s*(?:` + currencyRegionalA + `|` + currencyRegionalB + `|` + currencyGeneric + `)?\s*` + numberGroup),
	},
	{
		field: "purchasePrice", label: "SAR", tag: domain.PriceTagRegionalA, priority: 2, confidence: 0.85,
		pattern: regexp.MustCompile(`(?i)` + leftBoundary + currencyRegionalA + `\s*` + numberGroup + `|` + numberGroup + `\s*` + currencyRegionalA),
		exclude: excludeShippingCost,
	},
	{
		field: "purchasePrice", label: "AED/EGP", tag: domain.PriceTagRegionalB, priority: 3, confidence: 0.8,
		pattern: regexp.MustCompile(`(?i)` + leftBoundary + currencyRegionalB + `\s*` + numberGroup + `|` + numberGroup + `\s*` + currencyRegionalB),
		exclude: excludeShippingCost,
	},
	{
		field: "purchasePrice", label: "price", tag: domain.PriceTagGeneric, priority: 4, confidence: 0.7,
		pattern: regexp.MustCompile(`(?i)` + leftBoundary + `(?:السعر|سعر|بسعر|الثمن|ثمن|price|cost)\s*[:：\-]?\s*` + numberGroup + `|` + currencyGeneric + `\s*` + numberGroup + `|` + numberGroup + `\s*` + currencyGeneric),
		exclude: func(text string, loc []int) bool {
			return excludeShippingCost(text, loc) || followedBy(text, loc[1], "%")
		},
	},
}

var stockRules = []fieldRule{
	{
		field: "stock", priority: 1, confidence: 0.85,
		pattern: regexp.MustCompile(`(?i)` + leftBoundary + `(?:الكمية المتوفرة|الكمية المتاحة|العدد المتوفر|المخزون|مخزون|الكمية|الكميه|in stock|quantity|stock|qty)\s*[:：\-]?\s*(\d{1,6})`),
	},
	{
		field: "stock", priority: 2, confidence: 0.7,
		pattern: regexp.MustCompile(`(?i)(\d{1,6})\s*(?:قطعة|قطعه|قطع|حبة|حبه|حبات|pcs|pieces|units)\s*(?:متوفرة|متوفره|متوفر|في المخزون|in stock|available)`),
	},
	{
		field: "stock", priority: 3, confidence: confidenceLooseCue,
		pattern: regexp.MustCompile(`(?i)` + leftBoundary + `(?:متوفر|متوفرة|متوفره|available)\s*[:：\-]?\s*(\d{1,6})\s*(?:قطعة|قطعه|قطع|حبة|حبات|pcs|pieces|units)`),
	},
}

var modelRules = []fieldRule{
	{
		field: "model", priority: 1, confidence: 0.85,
		pattern: regexp.MustCompile(`(?i)` + leftBoundary + `(?:رقم الموديل|كود المنتج|الموديل|موديل|الكود|كود|model number|model no|style no|item no|model|sku|ref)\.?\s*[:：#\-]?\s*([A-Za-z0-9][A-Za-z0-9\-_/\.]{0,30}[A-Za-z0-9])`),
		exclude: func(text string, loc []int) bool {
			value := text[loc[2]:loc[3]]
			if strings.IndexFunc(value, unicode.IsDigit) >= 0 {
				return false
			}
			return len(value) < 3 || strings.ToUpper(value) != value
		},
	},
}

// genericBrandWords are adjectives that follow "brand" without naming one
var genericBrandWords = map[string]bool{
	"عالمية": true, "عالميه": true, "اصلية": true, "أصلية": true, "اصليه": true,
	"مميزة": true, "مميزه": true, "original": true, "premium": true, "new": true,
}

var brandRules = []fieldRule{
	{
		field: "brand", priority: 1, confidence: confidenceExplicitLabel,
		pattern: regexp.MustCompile(`(?im)^\s*(?:العلامة التجارية|الماركة|ماركة|البراند|براند|brand)\s*[:：\-]\s*(.{2,40})$`),
	},
	{
		field: "brand", priority: 2, confidence: 0.65,
		pattern: regexp.MustCompile(`(?i)` + leftBoundary + `(?:العلامة التجارية|الماركة|ماركة|البراند|براند|brand)\s*[:：\-]?\s*([\p{L}\p{N}&'\.]{2,})`),
		exclude: func(text string, loc []int) bool {
			return genericBrandWords[strings.ToLower(text[loc[2]:loc[3]])]
		},
	},
}

var packageRules = []fieldRule{
	{
		field: "packageContents", priority: 1, confidence: confidenceCuedPattern,
		pattern: regexp.MustCompile(`(?i)` + leftBoundary + `(?:محتويات العبوة|محتويات العلبة|محتويات الصندوق|العبوة تحتوي على|العلبة تحتوي على|تحتوي العبوة على|يحتوي الصندوق على|package includes|package contents|package content|what's in the box|in the box|box contents)\s*[:：\-]?\s*([^\n.|؛;]{2,160})`),
	},
	{
		field: "packageContents", priority: 2, confidence: confidenceLooseCue,
		pattern: regexp.MustCompile(`(?im)^\s*(?:includes|يشمل|يتضمن)\s*[:：]\s*([^\n]{2,160})$`),
	},
}

var materialLabelRules = []fieldRule{
	{
		field: "material", priority: 1, confidence: 0.85,
		pattern: regexp.MustCompile(`(?im)^\s*(?:نوع القماش|الخامة|الخامه|خامة|الخامات|القماش|المادة|الماده|material|fabric)\s*[:：\-]\s*(.{2,80})$`),
	},
}

// measurementLabels maps every accepted label spelling to its canonical key
var measurementLabels = map[string]string{
	"عرض الصدر": "chest", "صدر": "chest", "الصدر": "chest", "chest": "chest", "bust": "chest",
	"الطول الكلي": "length", "طول": "length", "الطول": "length", "length": "length",
	"عرض": "width", "العرض": "width", "width": "width",
	"خصر": "waist", "الخصر": "waist", "الوسط": "waist", "waist": "waist",
	"كتف": "shoulder", "الكتف": "shoulder", "اكتاف": "shoulder", "الاكتاف": "shoulder",
	"shoulder": "shoulder", "shoulders": "shoulder",
	"طول الكم": "sleeve", "كم": "sleeve", "الكم": "sleeve", "sleeve": "sleeve",
	"ورك": "hip", "الورك": "hip", "الارداف": "hip", "hip": "hip", "hips": "hip",
	"ارتفاع": "height", "الارتفاع": "height", "height": "height",
}

// measurementUnits maps unit spellings to a canonical unit
var measurementUnits = map[string]string{
	"cm": "cm", "سم": "cm", "سنتي": "cm", "سنتيمتر": "cm",
	"mm": "mm", "مم": "mm", "ملم": "mm",
	"inch": "inch", "inches": "inch", "انش": "inch", "إنش": "inch", "بوصة": "inch", "بوصه": "inch",
	"متر": "m",
}

var measurementRules = []fieldRule{
	{
		field: "measurements", priority: 1, confidence: confidenceCuedPattern,
		pattern: regexp.MustCompile(`(?i)` + leftBoundary + `(` + alternation(keysOf(measurementLabels)) + `)\s*[:：\-=]?\s*(\d+(?:\.\d+)?)(?:\s*(` + alternation(keysOf(measurementUnits)) + `))?`),
		exclude: func(text string, loc []int) bool {
			return followedBy(text, loc[1], "%", "ريال", "درهم", "جنيه", "sar", "aed", "kg", "كيلو", "$")
		},
	},
}

// runRules applies every rule and returns accepted matches ordered by
// priority, then by position
func runRules(rules []fieldRule, text string) []ruleMatch {
	var out []ruleMatch
	for i := range rules {
		r := &rules[i]
		for _, loc := range r.pattern.FindAllStringSubmatchIndex(text, -1) {
			if r.exclude != nil && r.exclude(text, loc) {
				continue
			}
			groups := submatches(text, loc)
			value := strings.TrimSpace(firstGroup(groups))
			if value == "" {
				continue
			}
			out = append(out, ruleMatch{rule: r, value: value, groups: groups, start: loc[0], end: loc[1]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].rule.priority != out[j].rule.priority {
			return out[i].rule.priority < out[j].rule.priority
		}
		return out[i].start < out[j].start
	})
	return out
}

// submatches returns capture groups; index 0 is the first capture group
func submatches(text string, loc []int) []string {
	groups := make([]string, 0, len(loc)/2-1)
	for i := 2; i+1 < len(loc); i += 2 {
		if loc[i] < 0 {
			groups = append(groups, "")
			continue
		}
		groups = append(groups, text[loc[i]:loc[i+1]])
	}
	return groups
}

func firstGroup(groups []string) string {
	for _, g := range groups {
		if g != "" {
			return g
		}
	}
	return ""
}

// excludeShippingCost rejects amounts introduced by a shipping/delivery term
func excludeShippingCost(text string, loc []int) bool {
	from := max(0, loc[0]-40)
	before := strings.ToLower(text[from:loc[0]])
	for _, term := range []string{"شحن", "توصيل", "shipping", "delivery"} {
		if strings.Contains(before, term) {
			return true
		}
	}
	return false
}

// followedBy reports whether the text after end starts with one of the terms
func followedBy(text string, end int, terms ...string) bool {
	rest := strings.ToLower(strings.TrimLeft(text[end:], " "))
	for _, term := range terms {
		if strings.HasPrefix(rest, term) {
			return true
		}
	}
	return false
}

// parsePrice converts a matched amount ("1,250.50") to a float
func parsePrice(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// alternation builds a regex alternation, longest alternative first
func alternation(words []string) string {
	sorted := append([]string(nil), words...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	quoted := make([]string, len(sorted))
	for i, w := range sorted {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

func keysOf(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
