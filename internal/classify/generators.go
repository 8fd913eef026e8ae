package classify

import (
	"regexp"
	"strconv"
	"strings"
)

// Generator produces the attribute map for one curated category type from
// the product text alone, without schema or assistant calls.
type Generator interface {
	Generate(name, description string) map[string]any
}

// Registry maps category types to their hand-authored generators.
type Registry struct {
	generators map[string]Generator
}

func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]Generator)}
}

// Register binds a generator to a category type, replacing any previous
// binding.
func (r *Registry) Register(categoryType string, generator Generator) {
	r.generators[categoryType] = generator
}

// Lookup returns the generator for a category type, if one is declared.
func (r *Registry) Lookup(categoryType string) (Generator, bool) {
	generator, ok := r.generators[categoryType]
	return generator, ok
}

// DefaultRegistry holds the curated generators for the verticals the
// conveyor handles most often.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register("mugs", mugGenerator{})
	registry.Register("thermo_mugs", thermoMugGenerator{})
	registry.Register("bottles", bottleGenerator{})
	registry.Register("apparel", apparelGenerator{})
	return registry
}

var volumePattern = regexp.MustCompile(`(\d+)\s*мл`)
var litrePattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*л\b`)
var sizePattern = regexp.MustCompile(`\b(xs|s|m|l|xl|xxl|3xl)\b`)

// materialStems maps word stems to canonical material names.
var materialStems = map[string]string{
	"керамич": "керамика",
	"керамик": "керамика",
	"фарфор":  "фарфор",
	"стекл":   "стекло",
	"металл":  "металл",
	"сталь":   "сталь",
	"стальн":  "сталь",
	"пластик": "пластик",
	"хлопок":  "хлопок",
	"хлопк":   "хлопок",
	"бамбук":  "бамбук",
}

// colorStems maps word stems to canonical colors.
var colorStems = map[string]string{
	"бел":     "белый",
	"черн":    "черный",
	"красн":   "красный",
	"син":     "синий",
	"голуб":   "голубой",
	"зелен":   "зеленый",
	"желт":    "желтый",
	"розов":   "розовый",
	"серый":   "серый",
	"сер":     "серый",
	"оранжев": "оранжевый",
	"фиолет":  "фиолетовый",
	"прозрач": "прозрачный",
}

func extractVolume(text string) (int, bool) {
	match := volumePattern.FindStringSubmatch(normalizeText(text))
	if match == nil {
		return 0, false
	}
	volume, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return volume, true
}

func extractLitres(text string) (float64, bool) {
	match := litrePattern.FindStringSubmatch(strings.ToLower(text))
	if match == nil {
		return 0, false
	}
	litres, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return litres, true
}

func extractByStems(text string, stems map[string]string) []string {
	seen := make(map[string]bool)
	var values []string
	for _, word := range tokenize(text) {
		for prefix, canonical := range stems {
			if strings.HasPrefix(word, prefix) && !seen[canonical] {
				seen[canonical] = true
				values = append(values, canonical)
			}
		}
	}
	return values
}

type mugGenerator struct{}

func (mugGenerator) Generate(name, description string) map[string]any {
	text := name + " " + description
	attrs := map[string]any{"Type": "кружка"}
	if volume, ok := extractVolume(text); ok {
		attrs["Volume"] = volume
	}
	if materials := extractByStems(text, materialStems); len(materials) > 0 {
		attrs["Material"] = materials
	}
	if colors := extractByStems(text, colorStems); len(colors) > 0 {
		attrs["Color"] = colors
	}
	return attrs
}

type thermoMugGenerator struct{}

func (thermoMugGenerator) Generate(name, description string) map[string]any {
	text := name + " " + description
	attrs := map[string]any{"Type": "термокружка"}
	if volume, ok := extractVolume(text); ok {
		attrs["Volume"] = volume
	} else if litres, ok := extractLitres(text); ok {
		attrs["Volume"] = int(litres * 1000)
	}
	if materials := extractByStems(text, materialStems); len(materials) > 0 {
		attrs["Material"] = materials
	}
	if colors := extractByStems(text, colorStems); len(colors) > 0 {
		attrs["Color"] = colors
	}
	return attrs
}

type bottleGenerator struct{}

func (bottleGenerator) Generate(name, description string) map[string]any {
	text := name + " " + description
	attrs := map[string]any{"Type": "бутылка"}
	if volume, ok := extractVolume(text); ok {
		attrs["Volume"] = volume
	} else if litres, ok := extractLitres(text); ok {
		attrs["Volume"] = int(litres * 1000)
	}
	if materials := extractByStems(text, materialStems); len(materials) > 0 {
		attrs["Material"] = materials
	}
	if colors := extractByStems(text, colorStems); len(colors) > 0 {
		attrs["Color"] = colors
	}
	return attrs
}

type apparelGenerator struct{}

func (apparelGenerator) Generate(name, description string) map[string]any {
	text := name + " " + description
	attrs := map[string]any{}
	if match := sizePattern.FindStringSubmatch(normalizeText(text)); match != nil {
		attrs["Size"] = strings.ToUpper(match[1])
	}
	if materials := extractByStems(text, materialStems); len(materials) > 0 {
		attrs["Material"] = materials
	}
	if colors := extractByStems(text, colorStems); len(colors) > 0 {
		attrs["Color"] = colors
	}
	return attrs
}
