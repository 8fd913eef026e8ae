package classify_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"vitrine/internal/classify"
	"vitrine/internal/services/kaspi"
	"vitrine/internal/services/llm"
	"vitrine/internal/testsupport"
)

type fakeSchema struct {
	categories []kaspi.Category
	attributes map[string][]kaspi.Attribute
	options    map[string][]string
}

func (f *fakeSchema) Categories(context.Context) ([]kaspi.Category, error) {
	return f.categories, nil
}

func (f *fakeSchema) CategoryAttributes(_ context.Context, code string) ([]kaspi.Attribute, error) {
	return f.attributes[code], nil
}

func (f *fakeSchema) AttributeValues(_ context.Context, code, attr string) ([]string, error) {
	return f.options[code+"/"+attr], nil
}

type fakeAssistant struct {
	classifyCalls int
	fillCalls     int
	classifyCode  string
	classifyErr   error
	fillValues    map[string]any
	fillErr       error
}

func (f *fakeAssistant) Classify(_ context.Context, _ string, candidates []string) (string, error) {
	f.classifyCalls++
	if f.classifyErr != nil {
		return "", f.classifyErr
	}
	if f.classifyCode != "" {
		return f.classifyCode, nil
	}
	if len(candidates) > 0 {
		return candidates[0], nil
	}
	return "", nil
}

func (f *fakeAssistant) FillAttributes(_ context.Context, _ string, _ []llm.AttributeSpec) (map[string]any, error) {
	f.fillCalls++
	if f.fillErr != nil {
		return nil, f.fillErr
	}
	return f.fillValues, nil
}

func newTestEngine(t *testing.T, schema *fakeSchema, assistant *fakeAssistant) *classify.Engine {
	t.Helper()
	if schema == nil {
		schema = &fakeSchema{}
	}
	if assistant == nil {
		assistant = &fakeAssistant{}
	}
	return classify.NewEngine(schema, assistant, testsupport.NewConfig(t), nil)
}

func TestClassifyMugByKeyword(t *testing.T) {
	assistant := &fakeAssistant{}
	engine := newTestEngine(t, nil, assistant)

	ctx := context.Background()
	classification, err := engine.Classify(ctx, "Кружка керамическая 350 мл белая", "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if classification.Code != "Master - Cups and saucers sets" || classification.Type != "mugs" {
		t.Fatalf("unexpected classification: %#v", classification)
	}
	if classification.Tier != classify.TierKeyword {
		t.Fatalf("expected keyword tier, got %s", classification.Tier)
	}
	if assistant.classifyCalls != 0 {
		t.Fatalf("expected zero assistant calls, got %d", assistant.classifyCalls)
	}

	attrs, err := engine.Attributes(ctx, classification, "Кружка керамическая 350 мл белая", "")
	if err != nil {
		t.Fatalf("Attributes failed: %v", err)
	}
	if attrs["Type"] != "кружка" {
		t.Fatalf("expected mug type, got %v", attrs["Type"])
	}
	if attrs["Volume"] != 350 {
		t.Fatalf("expected volume 350, got %v", attrs["Volume"])
	}
	if materials, ok := attrs["Material"].([]string); !ok || len(materials) != 1 || materials[0] != "керамика" {
		t.Fatalf("unexpected materials: %v", attrs["Material"])
	}
	if colors, ok := attrs["Color"].([]string); !ok || len(colors) != 1 || colors[0] != "белый" {
		t.Fatalf("unexpected colors: %v", attrs["Color"])
	}
}

func TestClassifyKeywordTierIsDeterministic(t *testing.T) {
	assistant := &fakeAssistant{}
	engine := newTestEngine(t, nil, assistant)

	ctx := context.Background()
	first, err := engine.Classify(ctx, "Футболка хлопок черная XL", "Подарочная упаковка")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	second, err := engine.Classify(ctx, "Футболка хлопок черная XL", "Подарочная упаковка")
	if err != nil {
		t.Fatalf("second Classify failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical classification, got %#v vs %#v", first, second)
	}
	if assistant.classifyCalls != 0 {
		t.Fatalf("expected zero assistant calls, got %d", assistant.classifyCalls)
	}
}

func TestClassifyTitleBeforeDescription(t *testing.T) {
	engine := newTestEngine(t, nil, nil)

	classification, err := engine.Classify(context.Background(),
		"Термос стальной 1 л", "Отличный подарок вместо кружки")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if classification.Type != "thermo_mugs" {
		t.Fatalf("expected title keyword to win, got %#v", classification)
	}
}

func TestClassifyRestrictedTermBlocks(t *testing.T) {
	assistant := &fakeAssistant{}
	engine := newTestEngine(t, nil, assistant)

	classification, err := engine.Classify(context.Background(), "Сигареты электронные", "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !classification.Restricted() {
		t.Fatalf("expected restricted outcome, got %#v", classification)
	}
	if assistant.classifyCalls != 0 {
		t.Fatalf("restricted guard must not reach the assistant, got %d calls", assistant.classifyCalls)
	}
}

func TestClassifyRestrictedTermToleratedForPerfume(t *testing.T) {
	engine := newTestEngine(t, nil, nil)

	classification, err := engine.Classify(context.Background(), "Духи женские с феромонами 50 мл", "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if classification.Restricted() {
		t.Fatal("expected perfume allow-list to downgrade the restriction")
	}
	if classification.Code != "Master - Perfumes" || classification.Type != "perfume" {
		t.Fatalf("unexpected classification: %#v", classification)
	}
}

func TestClassifyRestrictedTermToleratedForToys(t *testing.T) {
	engine := newTestEngine(t, nil, nil)

	classification, err := engine.Classify(context.Background(), "Игрушка пистолет водяной", "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if classification.Restricted() {
		t.Fatal("expected toy allow-list to downgrade the restriction")
	}
	if classification.Type != "toys" {
		t.Fatalf("unexpected classification: %#v", classification)
	}
}

func TestClassifyFuzzyFallsBackWhenAssistantFails(t *testing.T) {
	schema := &fakeSchema{
		categories: []kaspi.Category{
			{Code: "Master - Table lamps", Title: "Светильники настольные"},
			{Code: "Master - Chandeliers", Title: "Люстры подвесные"},
		},
	}
	assistant := &fakeAssistant{classifyErr: errors.New("model unavailable")}
	engine := newTestEngine(t, schema, assistant)

	classification, err := engine.Classify(context.Background(), "Светильник настольный декоративный", "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if classification.Code != "Master - Table lamps" {
		t.Fatalf("expected fuzzy best candidate, got %#v", classification)
	}
	if classification.Tier != classify.TierFuzzyAI {
		t.Fatalf("expected fuzzy tier, got %s", classification.Tier)
	}
	if assistant.classifyCalls != 1 {
		t.Fatalf("expected one assistant attempt, got %d", assistant.classifyCalls)
	}
}

func TestClassifyFuzzyUsesAssistantChoice(t *testing.T) {
	schema := &fakeSchema{
		categories: []kaspi.Category{
			{Code: "Master - Table lamps", Title: "Светильники настольные"},
			{Code: "Master - Night lights", Title: "Ночники светильники детские"},
		},
	}
	assistant := &fakeAssistant{classifyCode: "Master - Night lights"}
	engine := newTestEngine(t, schema, assistant)

	classification, err := engine.Classify(context.Background(), "Светильник детский ночник", "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if classification.Code != "Master - Night lights" {
		t.Fatalf("expected assistant choice, got %#v", classification)
	}
}

func TestSchemaAttributesAlwaysCoverMandatoryKeys(t *testing.T) {
	const category = "Master - Lunch boxes"
	schemaAttrs := []kaspi.Attribute{
		{Code: "Lunch boxes*material", Type: "enum", Mandatory: true},
		{Code: "Lunch boxes*dishwasher", Type: "boolean", Mandatory: true},
		{Code: "Lunch boxes*purpose", Type: "string", Mandatory: true},
		{Code: "Lunch boxes*volume", Type: "number", Mandatory: true},
		{Code: "Lunch boxes*note", Type: "string", Mandatory: false},
	}
	schema := &fakeSchema{
		attributes: map[string][]kaspi.Attribute{category: schemaAttrs},
		options: map[string][]string{
			category + "/Lunch boxes*material": {"пластик", "металл"},
		},
	}
	assistant := &fakeAssistant{fillValues: map[string]any{"Lunch boxes*purpose": "для обедов"}}
	engine := newTestEngine(t, schema, assistant)

	attrs, err := engine.Attributes(context.Background(),
		classify.Classification{Code: category, Tier: classify.TierFuzzyAI},
		"Ланч-бокс пластиковый", "")
	if err != nil {
		t.Fatalf("Attributes failed: %v", err)
	}

	expected := map[string]any{
		"Lunch boxes*material":   "пластик",
		"Lunch boxes*dishwasher": false,
		"Lunch boxes*purpose":    "для обедов",
		"Lunch boxes*volume":     0,
	}
	if !reflect.DeepEqual(attrs, expected) {
		t.Fatalf("unexpected attributes: %#v", attrs)
	}
	if missing := classify.MissingMandatory(attrs, schemaAttrs); len(missing) != 0 {
		t.Fatalf("expected complete mandatory set, missing %v", missing)
	}
}

func TestSchemaAttributesDefaultEverythingWhenAssistantFails(t *testing.T) {
	const category = "Master - Umbrellas"
	schema := &fakeSchema{
		attributes: map[string][]kaspi.Attribute{category: {
			{Code: "Umbrellas*type", Type: "enum", Mandatory: true},
			{Code: "Umbrellas*automatic", Type: "boolean", Mandatory: true},
		}},
		options: map[string][]string{
			category + "/Umbrellas*type": {"трость", "складной"},
		},
	}
	assistant := &fakeAssistant{fillErr: errors.New("timeout")}
	engine := newTestEngine(t, schema, assistant)

	attrs, err := engine.Attributes(context.Background(),
		classify.Classification{Code: category, Tier: classify.TierFuzzyAI},
		"Зонт", "")
	if err != nil {
		t.Fatalf("Attributes failed: %v", err)
	}
	if attrs["Umbrellas*type"] != "трость" {
		t.Fatalf("expected first enum option default, got %v", attrs["Umbrellas*type"])
	}
	if attrs["Umbrellas*automatic"] != false {
		t.Fatalf("expected boolean default, got %v", attrs["Umbrellas*automatic"])
	}
}
