package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"vitrine/internal/config"
	"vitrine/internal/logging"
	"vitrine/internal/services"
	"vitrine/internal/services/kaspi"
	"vitrine/internal/services/llm"
)

// SchemaService exposes the category tree and per-category attribute
// schema the engine classifies against.
type SchemaService interface {
	Categories(ctx context.Context) ([]kaspi.Category, error)
	CategoryAttributes(ctx context.Context, categoryCode string) ([]kaspi.Attribute, error)
	AttributeValues(ctx context.Context, categoryCode, attributeCode string) ([]string, error)
}

// Assistant resolves classification ties and fills schema attributes when
// no deterministic path applies.
type Assistant interface {
	Classify(ctx context.Context, text string, candidates []string) (string, error)
	FillAttributes(ctx context.Context, text string, specs []llm.AttributeSpec) (map[string]any, error)
}

// Engine runs tiered category resolution and attribute generation.
type Engine struct {
	schema         SchemaService
	assistant      Assistant
	logger         *slog.Logger
	candidateLimit int
	generators     *Registry

	mu         sync.Mutex
	categories []kaspi.Category
}

// NewEngine wires an engine with the default generator registry.
func NewEngine(schema SchemaService, assistant Assistant, cfg *config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	limit := 5
	if cfg != nil && cfg.LLM.CandidateLimit > 0 {
		limit = cfg.LLM.CandidateLimit
	}
	return &Engine{
		schema:         schema,
		assistant:      assistant,
		logger:         logging.NewComponentLogger(logger, "classify"),
		candidateLimit: limit,
		generators:     DefaultRegistry(),
	}
}

// Classify resolves (category code, category type) for the product text.
// A restricted result is terminal for the caller; every other failure mode
// returns an error so the record can retry later.
func (e *Engine) Classify(ctx context.Context, name, description string) (Classification, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Classification{}, services.Wrap(services.ErrValidation, "publish", "classify", "product name is empty", nil)
	}

	if term := containsRestrictedTerm(name + " " + description); term != "" {
		best := e.bestCandidate(ctx, name, description)
		if toleratedTypes[best.Type] {
			e.logger.Warn("restricted term tolerated",
				logging.String("term", term),
				logging.String("category_type", best.Type),
				logging.String("category_code", best.Code))
			return best, nil
		}
		e.logger.Info("restricted term blocked listing", logging.String("term", term))
		return Classification{Tier: TierRestricted}, nil
	}

	if match, ok := matchKeywordRules(name, description); ok {
		return match, nil
	}
	return e.fuzzyClassify(ctx, name, description)
}

// matchKeywordRules walks the curated table longest keyword first,
// checking the title before the description. Title-only verticals never
// match on description text.
func matchKeywordRules(name, description string) (Classification, bool) {
	title := normalizeText(name)
	body := normalizeText(description)
	titleWords := strings.Fields(title)
	bodyWords := strings.Fields(body)
	for _, r := range sortedRules() {
		if ruleMatches(r, title, titleWords) {
			return Classification{Code: r.code, Type: r.category, Tier: TierKeyword}, true
		}
	}
	for _, r := range sortedRules() {
		if r.titleOnly {
			continue
		}
		if ruleMatches(r, body, bodyWords) {
			return Classification{Code: r.code, Type: r.category, Tier: TierKeyword}, true
		}
	}
	return Classification{}, false
}

func ruleMatches(r rule, text string, words []string) bool {
	if strings.Contains(r.keyword, " ") {
		return strings.Contains(text, r.keyword)
	}
	for _, word := range words {
		if strings.HasPrefix(word, r.keyword) {
			return true
		}
	}
	return false
}

// fuzzyClassify ranks the category tree by stem overlap and lets the
// assistant choose among the top candidates. Assistant failure falls back
// to the best fuzzy score.
func (e *Engine) fuzzyClassify(ctx context.Context, name, description string) (Classification, error) {
	categories, err := e.loadCategories(ctx)
	if err != nil {
		return Classification{}, err
	}
	candidates := rankCategories(categories, name+" "+description, e.candidateLimit)
	if len(candidates) == 0 {
		return Classification{}, services.Wrap(services.ErrTransient, "publish", "classify",
			fmt.Sprintf("no category candidates for %q", name), nil)
	}

	codes := make([]string, len(candidates))
	for i, cand := range candidates {
		codes[i] = cand.category.Code
	}
	code, err := e.assistant.Classify(ctx, strings.TrimSpace(name+" "+description), codes)
	if err != nil || code == "" {
		if err != nil {
			e.logger.Warn("assistant classify failed, using fuzzy best",
				logging.Error(err), logging.String("fallback", codes[0]))
		}
		code = codes[0]
	}
	return Classification{Code: code, Type: categoryTypeFor(code), Tier: TierFuzzyAI}, nil
}

// bestCandidate finds the most plausible category for allow-list probing
// during the restricted guard. It must not hard-fail: the guard only needs
// a best effort to decide whether to tolerate the term.
func (e *Engine) bestCandidate(ctx context.Context, name, description string) Classification {
	if match, ok := matchKeywordRules(name, description); ok {
		return match
	}
	categories, err := e.loadCategories(ctx)
	if err != nil {
		return Classification{}
	}
	candidates := rankCategories(categories, name+" "+description, 1)
	if len(candidates) == 0 {
		return Classification{}
	}
	code := candidates[0].category.Code
	return Classification{Code: code, Type: categoryTypeFor(code), Tier: TierFuzzyAI}
}

func (e *Engine) loadCategories(ctx context.Context) ([]kaspi.Category, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.categories) > 0 {
		return e.categories, nil
	}
	categories, err := e.schema.Categories(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalAPI, "publish", "classify", "load category tree", err)
	}
	e.categories = categories
	return categories, nil
}
