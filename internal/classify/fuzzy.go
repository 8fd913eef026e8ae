package classify

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"vitrine/internal/services/kaspi"
)

// stemLength bounds how many runes of a token participate in fuzzy
// comparison. Russian inflection lives in the suffix, so comparing stems
// lets "керамическая" meet "керамика".
const stemLength = 5

// minStemRunes drops short stop-word tokens from scoring.
const minStemRunes = 3

// candidate pairs a category with its fuzzy overlap score.
type candidate struct {
	category kaspi.Category
	score    int
}

// normalizeText lowercases, NFC-normalizes, and collapses punctuation to
// spaces so keyword and token matching see a uniform alphabet.
func normalizeText(text string) string {
	text = norm.NFC.String(strings.ToLower(text))
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func tokenize(text string) []string {
	return strings.Fields(normalizeText(text))
}

func stem(token string) string {
	runes := []rune(token)
	if len(runes) <= stemLength {
		return token
	}
	return string(runes[:stemLength])
}

func stemSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range tokenize(text) {
		if len([]rune(token)) < minStemRunes {
			continue
		}
		set[stem(token)] = true
	}
	return set
}

// rankCategories scores every category by stem overlap between its title
// and the product text, returning the top limit candidates with a positive
// score, best first. Ties break alphabetically by code so ranking is
// stable across runs.
func rankCategories(categories []kaspi.Category, text string, limit int) []candidate {
	if limit <= 0 {
		limit = 5
	}
	textStems := stemSet(text)
	candidates := make([]candidate, 0, len(categories))
	for _, category := range categories {
		score := 0
		for s := range stemSet(category.Title) {
			if textStems[s] {
				score += len(s)
			}
		}
		if score > 0 {
			candidates = append(candidates, candidate{category: category, score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].category.Code < candidates[j].category.Code
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
