package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FreeSizeSentinel is the single size reported for one-size-fits-all products
const FreeSizeSentinel = "Free Size"

// sizeCueWindow bounds how far past a size cue numeric sizes are collected
const sizeCueWindow = 80

// numeric sizes outside this range are never sizes
const (
	minNumericSize = 1
	maxNumericSize = 60
	maxRangeSpan   = 12
)

var (
	freeSizePattern = regexp.MustCompile(`(?i)(?:free\s*size|one\s*size|فري\s*سايز|فري\s*سيز|فري\s*مقاس|مقاس\s*(?:حر|واحد|موحد|فري))`)

	sizeCuePattern = regexp.MustCompile(`(?i)` + leftBoundary + `(?:(?:و|ب|وب)?(?:ال)?(?:مقاسات|مقاس|قياسات|قياس|نمره|نمرة|نمر)|sizes|size|eu)\s*[:：\-]?`)

	sizeRunToken = regexp.MustCompile(`\d+[xX]+[lLsS]|\d+(?:\.\d+)?|\p{L}+|[-–/,،+&]`)

	asciiSizeToken = regexp.MustCompile(`[A-Za-z0-9]+`)

	letterSizeShape = regexp.MustCompile(`^(\d*)(X*)(S|M|L)$`)

	weightUnits = `(?:kg|كيلوجرام|كيلو|كجم|كغ)`
	rangeJoin   = `(?:-|–|الى|إلى|لين|حتى|to)`

	weightPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)` + leftBoundary + `(?:الوزن|وزن|weight|يلبس من|يلبس|تلبس من|يناسب من|يناسب|wear from|fits from|fits)\s*[:：]?\s*(?:من|from)?\s*(\d{1,3})\s*` + weightUnits + `?\s*` + rangeJoin + `\s*(\d{1,3})`),
		regexp.MustCompile(`(?i)(\d{1,3})\s*` + rangeJoin + `\s*(\d{1,3})\s*` + weightUnits),
		regexp.MustCompile(`(?i)` + leftBoundary + `(?:الوزن|وزن|weight)\s*[:：]?\s*(\d{1,3})`),
		regexp.MustCompile(`(?i)(\d{1,3})\s*` + weightUnits),
	}
)

// arabicLetterSizes maps transliterated letter sizes to the Latin enum
var arabicLetterSizes = map[string]string{
	"اكس اكس لارج": "XXL",
	"دبل اكس لارج": "XXL",
	"اكس لارج":     "XL",
	"اكس سمول":     "XS",
	"لارج":         "L",
	"ميديوم":       "M",
	"ميديم":        "M",
	"سمول":         "S",
	"سمال":         "S",
}

var arabicLetterSizePattern = regexp.MustCompile(`(?:` + alternation(keysOf(arabicLetterSizes)) + `)`)

// sizeRunWords may appear between sizes in a cue window without ending it
var sizeRunWords = map[string]bool{
	"من": true, "و": true, "او": true, "أو": true, "and": true, "or": true, "from": true,
	"eu": true, "us": true, "uk": true,
}

// rangeWords join two numbers into a range
var rangeWords = map[string]bool{
	"-": true, "–": true, "الى": true, "إلى": true, "لين": true, "حتى": true, "to": true,
}

// sizeExtraction is the outcome of the size sub-extractors
type sizeExtraction struct {
	free     bool
	letters  []string
	numerics []string
	excluded []float64
}

func (s sizeExtraction) all() []string {
	if s.free {
		return []string{FreeSizeSentinel}
	}
	out := make([]string, 0, len(s.letters)+len(s.numerics))
	out = append(out, s.letters...)
	return append(out, s.numerics...)
}

// extractSizes applies free-size precedence, the letter enum and the
// cue-window numeric scanner
func extractSizes(text string) sizeExtraction {
	if freeSizePattern.MatchString(text) {
		return sizeExtraction{free: true}
	}
	weights := collectWeightNumbers(text)
	result := sizeExtraction{
		letters:  extractLetterSizes(text),
		numerics: extractNumericSizes(text, weights),
	}
	for w := range weights {
		result.excluded = append(result.excluded, w)
	}
	sort.Float64s(result.excluded)
	return result
}

// collectWeightNumbers gathers every number that belongs to a weight mention
func collectWeightNumbers(text string) map[float64]bool {
	set := make(map[float64]bool)
	for _, p := range weightPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			for _, g := range m[1:] {
				if v, err := strconv.ParseFloat(g, 64); err == nil {
					set[v] = true
				}
			}
		}
	}
	return set
}

// extractLetterSizes returns canonical letter sizes ordered smallest first.
// A bare S, M or L only counts after a size cue or next to another size token,
// so brand initials like H&M or L'Occitane are not read as sizes.
func extractLetterSizes(text string) []string {
	seen := make(map[string]bool)
	var sizes []string
	add := func(canon string) {
		if !seen[canon] {
			seen[canon] = true
			sizes = append(sizes, canon)
		}
	}

	latin := arabicLetterSizePattern.ReplaceAllStringFunc(text, func(m string) string {
		canon := arabicLetterSizes[strings.Join(strings.Fields(m), " ")]
		add(canon)
		return " " + canon + " "
	})

	tokens := asciiSizeToken.FindAllStringIndex(latin, -1)
	cues := sizeCuePattern.FindAllStringIndex(latin, -1)
	for i, loc := range tokens {
		raw := latin[loc[0]:loc[1]]
		canon, ok := canonicalLetterSize(raw)
		if !ok {
			continue
		}
		if len(raw) == 1 {
			if !isBareLetterSize(latin, loc) {
				continue
			}
			if !inCueWindow(latin, cues, loc[0]) && !hasSizeNeighbour(latin, tokens, i) {
				continue
			}
		}
		add(canon)
	}
	sort.SliceStable(sizes, func(i, j int) bool {
		return letterSizeRank(sizes[i]) < letterSizeRank(sizes[j])
	})
	return sizes
}

// isBareLetterSize rejects lowercase letters and unit letters such as "10 L"
func isBareLetterSize(text string, loc []int) bool {
	raw := text[loc[0]:loc[1]]
	return raw == strings.ToUpper(raw) && !followsNumber(text, loc[0])
}

// inCueWindow reports whether pos lies within sizeCueWindow runes after a size cue
func inCueWindow(text string, cues [][]int, pos int) bool {
	for _, cue := range cues {
		if cue[1] <= pos && utf8.RuneCountInString(text[cue[1]:pos]) <= sizeCueWindow {
			return true
		}
	}
	return false
}

// hasSizeNeighbour reports whether the token at i sits in a run of letter sizes,
// separated from the previous or next size only by spaces or list punctuation
func hasSizeNeighbour(text string, tokens [][]int, i int) bool {
	isSize := func(j int) bool {
		loc := tokens[j]
		raw := text[loc[0]:loc[1]]
		if _, ok := canonicalLetterSize(raw); !ok {
			return false
		}
		return len(raw) > 1 || isBareLetterSize(text, loc)
	}
	if i > 0 && isSizeGap(text[tokens[i-1][1]:tokens[i][0]]) && isSize(i-1) {
		return true
	}
	return i+1 < len(tokens) && isSizeGap(text[tokens[i][1]:tokens[i+1][0]]) && isSize(i+1)
}

// isSizeGap accepts the separators found between sizes in a list
func isSizeGap(gap string) bool {
	return strings.Trim(gap, " \t,،/|-") == ""
}

// canonicalLetterSize normalizes repeated X's: XXXL→3XL, 2XL→XXL, xl→XL
func canonicalLetterSize(tok string) (string, bool) {
	m := letterSizeShape.FindStringSubmatch(strings.ToUpper(tok))
	if m == nil {
		return "", false
	}
	digits, xs, base := m[1], m[2], m[3]
	n := len(xs)
	if digits != "" {
		if n != 1 {
			return "", false
		}
		d, err := strconv.Atoi(digits)
		if err != nil || d < 1 {
			return "", false
		}
		n = d
	}
	if base == "M" {
		if n > 0 {
			return "", false
		}
		return "M", true
	}
	if n > 6 {
		return "", false
	}
	switch n {
	case 0:
		return base, true
	case 1:
		return "X" + base, true
	case 2:
		return "XX" + base, true
	default:
		return fmt.Sprintf("%dX%s", n, base), true
	}
}

// letterSizeRank orders ...XXS < XS < S < M < L < XL < XXL < 3XL...
func letterSizeRank(size string) int {
	m := letterSizeShape.FindStringSubmatch(size)
	if m == nil {
		return 1000
	}
	n := len(m[2])
	if m[1] != "" {
		n, _ = strconv.Atoi(m[1])
	}
	switch m[3] {
	case "S":
		return 20 - n
	case "M":
		return 30
	default:
		return 40 + n
	}
}

// followsNumber reports whether the nearest non-space character before pos is a digit
func followsNumber(text string, pos int) bool {
	before := strings.TrimRight(text[:pos], " \t")
	if before == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(before)
	return unicode.IsDigit(r)
}

// extractNumericSizes collects numbers that follow a size cue, stopping at the
// first token that is neither a size, a number nor a connector
func extractNumericSizes(text string, weights map[float64]bool) []string {
	seen := make(map[float64]bool)
	var values []float64
	add := func(v float64) {
		if v < minNumericSize || v > maxNumericSize || weights[v] || seen[v] {
			return
		}
		seen[v] = true
		values = append(values, v)
	}

	for _, cue := range sizeCuePattern.FindAllStringIndex(text, -1) {
		for _, item := range scanSizeRun(text[cue[1]:]) {
			if item.hi > item.lo && item.hi-item.lo <= maxRangeSpan && isWhole(item.lo) && isWhole(item.hi) {
				if weights[item.lo] || weights[item.hi] {
					// add skips whichever endpoint is a weight
					add(item.lo)
					add(item.hi)
					continue
				}
				for v := item.lo; v <= item.hi; v++ {
					add(v)
				}
				continue
			}
			add(item.lo)
			if item.hi != item.lo {
				add(item.hi)
			}
		}
	}

	sort.Float64s(values)
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}

// sizeRunItem is a single number (lo == hi) or a range
type sizeRunItem struct {
	lo, hi float64
}

func scanSizeRun(window string) []sizeRunItem {
	var items []sizeRunItem
	pendingRange := false
	prevEnd := 0
	for _, loc := range sizeRunToken.FindAllStringIndex(window, -1) {
		if utf8.RuneCountInString(window[:loc[0]]) > sizeCueWindow {
			break
		}
		if gap := window[prevEnd:loc[0]]; strings.TrimLeft(gap, " \t:：") != "" {
			break
		}
		prevEnd = loc[1]
		tok := window[loc[0]:loc[1]]
		lower := strings.ToLower(tok)

		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			if pendingRange && len(items) > 0 && items[len(items)-1].lo == items[len(items)-1].hi {
				items[len(items)-1].hi = v
			} else {
				items = append(items, sizeRunItem{lo: v, hi: v})
			}
			pendingRange = false
			continue
		}
		if rangeWords[lower] {
			pendingRange = true
			continue
		}
		if _, ok := canonicalLetterSize(tok); ok {
			pendingRange = false
			continue
		}
		if sizeRunWords[lower] || strings.ContainsAny(tok, "/,،+&") {
			pendingRange = false
			continue
		}
		if _, ok := arabicLetterSizes[tok]; ok || tok == "اكس" || tok == "دبل" {
			continue
		}
		break
	}
	return items
}

func isWhole(v float64) bool {
	return v == float64(int64(v))
}
