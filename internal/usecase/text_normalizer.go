package usecase

import (
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
)

// Severity selects how aggressively promotional copy is removed
type Severity int

const (
	SeverityLenient Severity = iota
	SeverityStrict
)

// SeverityFor maps the caller's strict flag to a severity
func SeverityFor(strict bool) Severity {
	if strict {
		return SeverityStrict
	}
	return SeverityLenient
}

func (s Severity) String() string {
	if s == SeverityStrict {
		return "strict"
	}
	return "lenient"
}

// Compiled patterns for markup stripping
var (
	scriptTag     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockBoundary = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/tr|/h[1-6]|hr)\s*/?\s*>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)

	// Emoji, pictographs, dingbats, arrows, variation selectors, ZWJ, keycaps and tag characters
	emojiPattern = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}\x{2600}-\x{27BF}\x{2300}-\x{23FF}\x{2B00}-\x{2BFF}\x{2190}-\x{21FF}\x{FE00}-\x{FE0F}\x{200D}\x{20E3}\x{E0020}-\x{E007F}\x{3030}\x{303D}\x{3297}\x{3299}]`)

	// Arabic harakat, superscript alef and tatweel
	arabicMarks = regexp.MustCompile(`[\x{064B}-\x{065F}\x{0670}\x{0640}]`)

	// Zero-width and bidi control characters
	invisibleChars = regexp.MustCompile(`[\x{200B}\x{200C}\x{200E}\x{200F}\x{202A}-\x{202E}\x{2066}-\x{2069}\x{FEFF}]`)

	horizontalSpace = regexp.MustCompile(`[ \t\x{00A0}]+`)
)

// marketingNoise is removed under both severities
var marketingNoise = []string{
	"لا تفوتك", "لا يفوتك", "لا تفوتي", "جودة عالية", "جوده عاليه", "أفضل سعر", "افضل سعر",
	"الأكثر مبيعا", "الاكثر مبيعا", "وصل حديثا", "وصلنا حديثا", "جديد كليا", "ماركة مميزة",
	"best price", "high quality", "top quality", "hot sale", "best seller", "bestseller",
	"new arrival", "new arrivals", "trending now", "must have",
}

// promotionalNoise is additionally removed under SeverityStrict
var promotionalNoise = []string{
	"اطلب الآن", "اطلب الان", "اطلبي الآن", "اطلبي الان", "اطلبه الآن", "للطلب", "للتواصل",
	"تواصل معنا", "تواصلي معنا", "راسلنا", "راسلونا", "عرض محدود", "لفترة محدودة",
	"عرض خاص", "سارع", "سارعي", "الكمية محدودة", "الرابط في البايو", "واتساب", "واتس اب",
	"order now", "shop now", "buy now", "contact us", "dm us", "dm for price",
	"limited offer", "limited time", "limited stock", "special offer", "link in bio",
	"click the link", "whatsapp",
}

var (
	marketingNoisePattern   = phrasePattern(marketingNoise)
	promotionalNoisePattern = phrasePattern(promotionalNoise)
)

// phrasePattern compiles a case-insensitive alternation, longest phrase first
func phrasePattern(phrases []string) *regexp.Regexp {
	sorted := append([]string(nil), phrases...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	quoted := make([]string, len(sorted))
	for i, p := range sorted {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

// TextNormalizer cleans pasted marketing copy before field extraction
type TextNormalizer struct {
	logger zerolog.Logger
}

// NewTextNormalizer creates a normalizer; pass zerolog.Nop() to silence debug output
func NewTextNormalizer(logger zerolog.Logger) *TextNormalizer {
	return &TextNormalizer{logger: logger}
}

// Normalize returns single-line normalized text. The pipeline runs until the
// output stops changing, so Normalize(Normalize(x)) == Normalize(x).
func (n *TextNormalizer) Normalize(text string, severity Severity) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	out := text
	// Run to a fixed point. After the first pass every change removes bytes,
	// so the input length bounds the loop even if a rewrite ever cycles.
	for pass := 0; pass <= len(text); pass++ {
		next := n.normalizeOnce(out, severity)
		if next == out {
			break
		}
		out = next
	}

	n.logger.Debug().
		Str("severity", severity.String()).
		Int("in_len", len(text)).
		Int("out_len", len(out)).
		Msg("normalized text")

	return out
}

// NormalizeLines normalizes each line independently and drops empty ones.
// Line structure matters for the label:value scanner.
func (n *TextNormalizer) NormalizeLines(text string, severity Severity) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	stripped := stripHTML(text)
	var lines []string
	for _, line := range strings.Split(stripped, "\n") {
		if cleaned := n.Normalize(line, severity); cleaned != "" {
			lines = append(lines, cleaned)
		}
	}
	return lines
}

// PrepareRaw keeps every token (currency marks, promo context, line breaks)
// but removes markup and converts digits so numbers can be parsed.
func (n *TextNormalizer) PrepareRaw(text string) string {
	s := stripHTML(text)
	s = foldUnicode(s)
	s = ConvertDigits(s)
	return strings.TrimSpace(s)
}

func (n *TextNormalizer) normalizeOnce(s string, severity Severity) string {
	// Step 1: strip markup
	s = stripHTML(s)

	// Step 2: compatibility folding, Arabic marks, invisible characters
	s = foldUnicode(s)

	// Step 3: Arabic-Indic digits to ASCII
	s = ConvertDigits(s)

	// Step 4: emoji and pictographs
	s = emojiPattern.ReplaceAllString(s, " ")

	// Step 5: marketing noise
	s = marketingNoisePattern.ReplaceAllString(s, " ")

	// Step 6: promotional call-to-action phrases (strict only)
	if severity == SeverityStrict {
		s = promotionalNoisePattern.ReplaceAllString(s, " ")
	}

	// Step 7: collapse whitespace
	return strings.Join(strings.Fields(s), " ")
}

// stripHTML removes tags, turning block boundaries into line breaks
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	s = scriptTag.ReplaceAllString(s, " ")
	s = styleTag.ReplaceAllString(s, " ")
	s = htmlComments.ReplaceAllString(s, " ")
	s = blockBoundary.ReplaceAllString(s, "\n")
	s = allTags.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return horizontalSpace.ReplaceAllString(s, " ")
}

// foldUnicode applies NFKC (presentation forms, full-width digits) and drops
// Arabic diacritics, tatweel and zero-width characters
func foldUnicode(s string) string {
	s = norm.NFKC.String(s)
	s = arabicMarks.ReplaceAllString(s, "")
	return invisibleChars.ReplaceAllString(s, "")
}

// ConvertDigits maps Arabic-Indic and Extended Arabic-Indic digits and the
// Arabic decimal/thousands separators to ASCII
func ConvertDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r == '٫':
			return '.'
		case r == '٬':
			return ','
		}
		return r
	}, s)
}
