package usecase

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// maxKeywords caps the SEO keyword list
const maxKeywords = 10

// Token weight categories for keyword ranking
const (
	weightProduct     = 3.0 // Product-type terms (dress, shirt, فستان)
	weightDescriptive = 2.0 // Audience, season, colour and material terms
	weightDefault     = 1.0 // Everything else
)

// productTerms contains high-importance product-type keywords (weight 3.0)
var productTerms = map[string]bool{
	// Arabic apparel
	"فستان": true, "فنيله": true, "فنيلة": true, "قميص": true, "بلوزه": true, "بلوزة": true,
	"تيشيرت": true, "تيشرت": true, "بنطلون": true, "بنطال": true, "جاكيت": true, "جاكت": true,
	"معطف": true, "كوت": true, "عبايه": true, "عباية": true, "عبايات": true, "تنوره": true, "تنورة": true,
	"هودي": true, "سويت": true, "شورت": true, "بيجامه": true, "بيجامة": true, "طقم": true,
	"جلابيه": true, "جلابية": true, "ثوب": true, "شماغ": true, "حجاب": true, "طرحه": true,
	// Arabic accessories and footwear
	"حذاء": true, "جزمه": true, "جزمة": true, "صندل": true, "شبشب": true, "كوتشي": true,
	"شنطه": true, "شنطة": true, "حقيبه": true, "حقيبة": true, "ساعه": true, "ساعة": true,
	"نظاره": true, "نظارة": true, "محفظه": true, "محفظة": true, "حزام": true, "قبعه": true,
	// English
	"dress": true, "shirt": true, "tshirt": true, "blouse": true, "pants": true, "trousers": true,
	"jeans": true, "jacket": true, "coat": true, "abaya": true, "skirt": true, "hoodie": true,
	"sweater": true, "sweatshirt": true, "shorts": true, "pajama": true, "set": true,
	"shoes": true, "sneakers": true, "sandals": true, "boots": true, "bag": true, "handbag": true,
	"watch": true, "sunglasses": true, "wallet": true, "belt": true, "cap": true, "hat": true,
}

// descriptiveTerms contains medium-importance descriptive keywords (weight 2.0)
var descriptiveTerms = map[string]bool{
	// Audience
	"نسائي": true, "نسائيه": true, "نسائية": true, "رجالي": true, "رجاليه": true, "رجالية": true,
	"اطفال": true, "أطفال": true, "بناتي": true, "ولادي": true, "حريمي": true,
	"women": true, "womens": true, "men": true, "mens": true, "kids": true, "girls": true, "boys": true,
	"unisex": true,
	// Season and style
	"شتوي": true, "شتويه": true, "شتوية": true, "صيفي": true, "صيفيه": true, "صيفية": true,
	"رياضي": true, "رياضيه": true, "رياضية": true, "كاجوال": true, "رسمي": true, "سهره": true, "سهرة": true,
	"winter": true, "summer": true, "sport": true, "sports": true, "casual": true, "formal": true,
	"oversize": true, "oversized": true, "slim": true, "fit": true, "classic": true,
}

// keywordStopWords includes basic English and Arabic stop words plus listing noise
var keywordStopWords = map[string]bool{
	// English
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "with": true, "by": true, "from": true,
	"is": true, "it": true, "as": true, "be": true, "are": true, "this": true, "very": true,
	// Arabic particles and pronouns
	"من": true, "في": true, "على": true, "الى": true, "إلى": true, "عن": true, "مع": true,
	"و": true, "او": true, "أو": true, "هذا": true, "هذه": true, "جدا": true, "كل": true,
	"لون": true, "اللون": true, "باللون": true, "الوان": true, "الألوان": true,
	// Listing labels
	"مقاس": true, "مقاسات": true, "المقاس": true, "المقاسات": true, "size": true, "sizes": true,
	"السعر": true, "سعر": true, "price": true, "ريال": true, "sar": true, "درهم": true,
	"المخزون": true, "الكمية": true, "stock": true, "qty": true, "color": true, "colors": true,
	"متوفر": true, "متوفرة": true, "available": true, "new": true, "جديد": true,
}

// KeywordRanker extracts ordered SEO keywords from listing text
type KeywordRanker struct{}

// NewKeywordRanker creates a keyword ranker
func NewKeywordRanker() *KeywordRanker {
	return &KeywordRanker{}
}

// ExtractKeywords returns up to maxKeywords unique keywords ordered by
// importance: product terms, then colours/materials/descriptive terms, then
// everything else. Ties keep text order.
func (k *KeywordRanker) ExtractKeywords(name, text string) []string {
	type scored struct {
		token string
		score float64
		order int
	}

	seen := make(map[string]int)
	var ranked []scored
	consider := func(tok string, boost float64) {
		key := foldKey(tok)
		if idx, ok := seen[key]; ok {
			ranked[idx].score += 0.1
			return
		}
		seen[key] = len(ranked)
		ranked = append(ranked, scored{token: tok, score: keywordWeight(tok) + boost, order: len(ranked)})
	}

	// Name tokens count a little more than body tokens
	for _, tok := range keywordTokens(name) {
		consider(tok, 0.5)
	}
	for _, tok := range keywordTokens(text) {
		consider(tok, 0)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].order < ranked[j].order
	})

	result := make([]string, 0, maxKeywords)
	for _, r := range ranked {
		if len(result) == maxKeywords {
			break
		}
		result = append(result, r.token)
	}
	return result
}

func keywordWeight(tok string) float64 {
	lower := strings.ToLower(tok)
	switch {
	case productTerms[lower]:
		return weightProduct
	case descriptiveTerms[lower]:
		return weightDescriptive
	}
	if _, ok := colorLexicon.lookup(tok); ok {
		return weightDescriptive
	}
	if _, ok := materialLexicon.lookup(tok); ok {
		return weightDescriptive
	}
	return weightDefault
}

// keywordTokens splits text into candidate keywords.
// Removes stop words, short tokens and pure numeric tokens.
func keywordTokens(s string) []string {
	var tokens []string
	for _, t := range wordTokens(s) {
		word := t.text
		if utf8.RuneCountInString(word) <= 1 {
			continue
		}
		if keywordStopWords[strings.ToLower(word)] {
			continue
		}
		if isNumeric(word) {
			continue
		}
		if _, ok := canonicalLetterSize(word); ok {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}
