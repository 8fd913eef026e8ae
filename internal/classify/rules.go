package classify

import (
	"sort"
	"strings"
)

// Tier labels which resolution path produced a classification.
const (
	TierKeyword    = "keyword"
	TierFuzzyAI    = "fuzzy_ai"
	TierRestricted = "restricted"
)

// Classification is the outcome of category resolution.
type Classification struct {
	Code string
	Type string
	Tier string
}

// Restricted reports whether the classification permanently blocks the
// product from listing.
func (c Classification) Restricted() bool {
	return c.Tier == TierRestricted
}

// rule binds one curated keyword to a category. Keywords are matched as
// prefixes of whole words so Russian inflections still hit.
type rule struct {
	keyword   string
	code      string
	category  string
	titleOnly bool
}

// restrictedTerms is the deny list of regulated-goods stems.
var restrictedTerms = []string{
	"оружие",
	"пистолет",
	"винтовк",
	"патрон",
	"боеприпас",
	"табак",
	"сигарет",
	"кальян",
	"вейп",
	"алкоголь",
	"феромон",
	"лекарств",
	"рецептурн",
}

// toleratedTypes are category types prone to restricted false positives.
// A restricted hit whose best candidate lands here is downgraded to a
// warning and classification proceeds.
var toleratedTypes = map[string]bool{
	"toys":      true,
	"cosmetics": true,
	"perfume":   true,
}

// titleOnlyTypes restricts matching to the product title. Descriptions for
// these verticals routinely mention unrelated goods.
var titleOnlyTypes = map[string]bool{
	"cases":   true,
	"posters": true,
}

// keywordRules is the curated keyword table. Order here does not matter;
// the engine sorts longest keyword first before matching.
var keywordRules = []rule{
	{keyword: "термокружк", code: "Master - Thermo mugs", category: "thermo_mugs"},
	{keyword: "кружк", code: "Master - Cups and saucers sets", category: "mugs"},
	{keyword: "чашк", code: "Master - Cups and saucers sets", category: "mugs"},
	{keyword: "термос", code: "Master - Thermoses", category: "thermo_mugs"},
	{keyword: "бутылк", code: "Master - Sports bottles", category: "bottles"},
	{keyword: "игрушк", code: "Master - Toys", category: "toys"},
	{keyword: "конструктор", code: "Master - Construction toys", category: "toys"},
	{keyword: "кукл", code: "Master - Dolls", category: "toys"},
	{keyword: "духи", code: "Master - Perfumes", category: "perfume"},
	{keyword: "парфюм", code: "Master - Perfumes", category: "perfume"},
	{keyword: "туалетная вода", code: "Master - Perfumes", category: "perfume"},
	{keyword: "помад", code: "Master - Lipsticks", category: "cosmetics"},
	{keyword: "тушь", code: "Master - Mascaras", category: "cosmetics"},
	{keyword: "крем", code: "Master - Face creams", category: "cosmetics"},
	{keyword: "футболк", code: "Master - T-shirts", category: "apparel"},
	{keyword: "толстовк", code: "Master - Hoodies", category: "apparel"},
	{keyword: "чехол", code: "Master - Phone cases", category: "cases", titleOnly: true},
	{keyword: "постер", code: "Master - Posters", category: "posters", titleOnly: true},
	{keyword: "брелок", code: "Master - Keychains", category: "accessories"},
	{keyword: "рюкзак", code: "Master - Backpacks", category: "bags"},
}

func sortedRules() []rule {
	rules := make([]rule, len(keywordRules))
	copy(rules, keywordRules)
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].keyword) > len(rules[j].keyword)
	})
	return rules
}

// categoryTypeFor maps a category code back to its curated type. Codes the
// rule table does not know yield the empty string and take the
// schema-driven attribute path.
func categoryTypeFor(code string) string {
	for _, r := range keywordRules {
		if r.code == code {
			return r.category
		}
	}
	return ""
}

// containsRestrictedTerm reports the first deny-list stem found as a whole
// word prefix in text, or the empty string.
func containsRestrictedTerm(text string) string {
	words := tokenize(text)
	for _, term := range restrictedTerms {
		if strings.Contains(term, " ") {
			if strings.Contains(normalizeText(text), term) {
				return term
			}
			continue
		}
		for _, word := range words {
			if strings.HasPrefix(word, term) {
				return term
			}
		}
	}
	return ""
}
