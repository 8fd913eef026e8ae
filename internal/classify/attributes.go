package classify

import (
	"context"
	"sort"
	"strings"

	"vitrine/internal/logging"
	"vitrine/internal/services"
	"vitrine/internal/services/kaspi"
	"vitrine/internal/services/llm"
)

// placeholderValue fills required free-text attributes the assistant
// could not resolve.
const placeholderValue = "не указано"

// Attributes builds the attribute map for a classified product. Category
// types with a declared generator take the deterministic path; everything
// else is filled from the category schema with a completeness pass that
// guarantees every mandatory key is present.
func (e *Engine) Attributes(ctx context.Context, classification Classification, name, description string) (map[string]any, error) {
	if classification.Restricted() {
		return nil, services.Wrap(services.ErrRestricted, "publish", "attributes", "restricted products carry no attributes", nil)
	}
	if generator, ok := e.generators.Lookup(classification.Type); ok {
		return generator.Generate(name, description), nil
	}
	return e.schemaAttributes(ctx, classification.Code, name, description)
}

// schemaAttributes fetches the category's mandatory schema, delegates
// value selection to the assistant, then defaults whatever is still
// missing by attribute type.
func (e *Engine) schemaAttributes(ctx context.Context, categoryCode, name, description string) (map[string]any, error) {
	attrs, err := e.schema.CategoryAttributes(ctx, categoryCode)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalAPI, "publish", "attributes", "load category schema", err)
	}

	specs := make([]llm.AttributeSpec, 0, len(attrs))
	for _, attr := range attrs {
		if !attr.Mandatory {
			continue
		}
		spec := llm.AttributeSpec{Code: attr.Code, Type: attr.Type, Mandatory: true}
		if attr.Type == "enum" {
			options, err := e.schema.AttributeValues(ctx, categoryCode, attr.Code)
			if err != nil {
				return nil, services.Wrap(services.ErrExternalAPI, "publish", "attributes", "load attribute options", err)
			}
			spec.Options = options
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return map[string]any{}, nil
	}

	text := strings.TrimSpace(name + " " + description)
	values, err := e.assistant.FillAttributes(ctx, text, specs)
	if err != nil {
		e.logger.Warn("assistant attribute fill failed, defaulting all mandatory attributes", logging.Error(err))
		values = map[string]any{}
	}
	for _, spec := range specs {
		if _, ok := values[spec.Code]; ok {
			continue
		}
		values[spec.Code] = defaultFor(spec)
	}
	return values, nil
}

// defaultFor picks the type-driven fallback value for one attribute.
func defaultFor(spec llm.AttributeSpec) any {
	switch spec.Type {
	case "enum":
		if len(spec.Options) > 0 {
			return spec.Options[0]
		}
		return placeholderValue
	case "boolean":
		return false
	case "number", "numeric", "integer":
		return 0
	default:
		return placeholderValue
	}
}

// MissingMandatory diffs an attribute map against the category's declared
// mandatory keys. Diagnostic only; callers log gaps but never block on
// them.
func MissingMandatory(attrs map[string]any, schema []kaspi.Attribute) []string {
	var missing []string
	for _, attr := range schema {
		if !attr.Mandatory {
			continue
		}
		if _, ok := attrs[attr.Code]; !ok {
			missing = append(missing, attr.Code)
		}
	}
	sort.Strings(missing)
	return missing
}
