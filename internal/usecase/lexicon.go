package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// lexiconEntry maps spelling variants to one canonical name. Family is the
// English named-colour (or material group) used for cross-language linking.
type lexiconEntry struct {
	canonical string
	family    string
	variants  []string
}

// lexicon matches whole tokens (or short token runs) against known terms
type lexicon struct {
	byKey    map[string]*lexiconEntry
	maxWords int
}

// lexiconMatch is one term found in text, in order of appearance
type lexiconMatch struct {
	entry    *lexiconEntry
	position int
}

var caseFolder = cases.Fold()

// arabicPrefixes are clitics stripped from a token before lexicon lookup
// (and, with, the, with-the, ...). Longest first.
var arabicPrefixes = []string{"وبال", "وال", "بال", "فال", "كال", "لل", "ال", "و", "ب", "ف"}

// foldKey produces the comparison key used for lookups and deduplication:
// case-folded, alef/hamza and ya/ta-marbuta variants unified, spaces collapsed
func foldKey(s string) string {
	s = caseFolder.String(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch r {
		case 'أ', 'إ', 'آ', 'ٱ':
			return 'ا'
		case 'ى':
			return 'ي'
		case 'ة':
			return 'ه'
		case '-', '_':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func newLexicon(entries []lexiconEntry) *lexicon {
	l := &lexicon{byKey: make(map[string]*lexiconEntry), maxWords: 1}
	for i := range entries {
		e := &entries[i]
		for _, v := range append([]string{e.canonical}, e.variants...) {
			key := foldKey(v)
			l.byKey[key] = e
			if words := len(strings.Fields(key)); words > l.maxWords {
				l.maxWords = words
			}
		}
	}
	return l
}

// lookup resolves a single term, stripping Arabic clitics when the bare
// token is unknown
func (l *lexicon) lookup(term string) (*lexiconEntry, bool) {
	key := foldKey(term)
	if key == "" {
		return nil, false
	}
	if e, ok := l.byKey[key]; ok {
		return e, true
	}
	for _, prefix := range arabicPrefixes {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if utf8.RuneCountInString(rest) < 2 {
			continue
		}
		if e, ok := l.byKey[rest]; ok {
			return e, true
		}
	}
	return nil, false
}

// scan walks the text token by token, preferring the longest multi-word match
func (l *lexicon) scan(text string) []lexiconMatch {
	tokens := wordTokens(text)
	var matches []lexiconMatch
	for i := 0; i < len(tokens); {
		matched := false
		for width := min(l.maxWords, len(tokens)-i); width >= 1; width-- {
			words := make([]string, width)
			for k := 0; k < width; k++ {
				words[k] = tokens[i+k].text
			}
			if e, ok := l.lookup(strings.Join(words, " ")); ok {
				matches = append(matches, lexiconMatch{entry: e, position: tokens[i].start})
				i += width
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	return matches
}

// token is a run of letters/digits with its byte offset
type token struct {
	text  string
	start int
}

// wordTokens splits on anything that is not a letter or digit
func wordTokens(s string) []token {
	var tokens []token
	start := -1
	for i, r := range s {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r)
		if isWord && start < 0 {
			start = i
		}
		if !isWord && start >= 0 {
			tokens = append(tokens, token{text: s[start:i], start: start})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{text: s[start:], start: start})
	}
	return tokens
}

// colorLexicon is the bilingual colour vocabulary. Families match names in
// the sampler's named-colour table.
var colorLexicon = newLexicon([]lexiconEntry{
	{"أحمر", "Red", []string{"احمر", "حمراء", "حمرا"}},
	{"أزرق", "Blue", []string{"ازرق", "زرقاء", "زرقا"}},
	{"أسود", "Black", []string{"اسود", "سوداء", "سودا"}},
	{"أبيض", "White", []string{"ابيض", "بيضاء", "بيضا"}},
	{"أخضر", "Green", []string{"اخضر", "خضراء", "خضرا"}},
	{"أصفر", "Yellow", []string{"اصفر", "صفراء", "صفرا"}},
	{"رمادي", "Gray", []string{"رماديه", "رصاصي", "سكني"}},
	{"بني", "Brown", []string{"بنيه", "شوكولاتة"}},
	{"بيج", "Beige", []string{"بيجي"}},
	{"وردي", "Pink", []string{"ورديه", "زهري", "بمبي", "روز"}},
	{"بنفسجي", "Purple", []string{"موف", "ليلكي"}},
	{"برتقالي", "Orange", []string{"برتقاليه"}},
	{"كحلي", "Navy", []string{"كحليه"}},
	{"ذهبي", "Gold", []string{"ذهبيه"}},
	{"فضي", "Silver", []string{"فضيه"}},
	{"خمري", "Maroon", []string{"عنابي", "نبيتي"}},
	{"زيتي", "Olive", []string{"زيتوني"}},
	{"سماوي", "Sky Blue", []string{"لبني"}},
	{"فيروزي", "Turquoise", []string{"تركواز", "تركوازي"}},
	{"أوف وايت", "Cream", []string{"اوف وايت", "كريمي"}},
	{"كاكي", "Khaki", []string{"كاكى"}},
	{"Red", "Red", nil},
	{"Blue", "Blue", nil},
	{"Black", "Black", nil},
	{"White", "White", nil},
	{"Green", "Green", nil},
	{"Yellow", "Yellow", nil},
	{"Gray", "Gray", []string{"grey"}},
	{"Brown", "Brown", []string{"chocolate"}},
	{"Beige", "Beige", []string{"nude"}},
	{"Pink", "Pink", []string{"rose"}},
	{"Purple", "Purple", []string{"violet", "lilac", "mauve"}},
	{"Orange", "Orange", nil},
	{"Navy Blue", "Navy", []string{"navy", "dark blue"}},
	{"Gold", "Gold", []string{"golden"}},
	{"Silver", "Silver", nil},
	{"Maroon", "Maroon", []string{"burgundy", "wine"}},
	{"Olive", "Olive", nil},
	{"Sky Blue", "Sky Blue", []string{"light blue", "baby blue"}},
	{"Turquoise", "Turquoise", []string{"teal"}},
	{"Off White", "Cream", []string{"cream", "ivory"}},
	{"Khaki", "Khaki", nil},
})

// materialLexicon is the bilingual fabric/material vocabulary
var materialLexicon = newLexicon([]lexiconEntry{
	{"صوف", "Wool", []string{"صوفي", "wool", "woolen"}},
	{"قطن", "Cotton", []string{"قطني", "cotton"}},
	{"بوليستر", "Polyester", []string{"بوليستير", "polyester"}},
	{"حرير", "Silk", []string{"حريري", "silk"}},
	{"كتان", "Linen", []string{"linen"}},
	{"جلد", "Leather", []string{"جلدي", "leather"}},
	{"جينز", "Denim", []string{"دنيم", "denim"}},
	{"شيفون", "Chiffon", []string{"chiffon"}},
	{"ساتان", "Satin", []string{"satin"}},
	{"مخمل", "Velvet", []string{"قطيفه", "velvet"}},
	{"فيسكوز", "Viscose", []string{"viscose"}},
	{"نايلون", "Nylon", []string{"nylon"}},
	{"ليكرا", "Lycra", []string{"سباندكس", "lycra", "spandex", "elastane"}},
	{"كشمير", "Cashmere", []string{"cashmere"}},
	{"تريكو", "Knit", []string{"knit", "knitted"}},
})

// matchColors returns canonical colour names in order of first appearance,
// deduplicated case-insensitively
func matchColors(text string) []string {
	return uniqueCanonical(colorLexicon.scan(text))
}

// matchMaterials returns canonical material names in order of appearance
func matchMaterials(text string) []string {
	return uniqueCanonical(materialLexicon.scan(text))
}

func uniqueCanonical(matches []lexiconMatch) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		key := foldKey(m.entry.canonical)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m.entry.canonical)
	}
	return out
}

// SanitizeColors keeps candidates that are known colour names or that appear
// in the previously extracted list, deduplicated case-insensitively.
// Known names are returned in canonical form; previously extracted names keep
// the spelling from that list.
func SanitizeColors(candidates, previous []string) []string {
	prior := make(map[string]string, len(previous))
	for _, p := range previous {
		if key := foldKey(p); key != "" {
			prior[key] = strings.Join(strings.Fields(p), " ")
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, c := range candidates {
		var name string
		if e, ok := colorLexicon.lookup(c); ok {
			name = e.canonical
		} else if p, ok := prior[foldKey(c)]; ok {
			name = p
		} else {
			continue
		}
		key := foldKey(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// ColorFamily returns the named-colour family for a colour name, or the
// name itself when the lexicon does not know it
func ColorFamily(name string) string {
	if e, ok := colorLexicon.lookup(name); ok {
		return e.family
	}
	return strings.TrimSpace(name)
}
