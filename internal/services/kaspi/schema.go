package kaspi

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// Category is one node of the marketplace category tree.
type Category struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

// Attribute describes one characteristic the category schema defines.
type Attribute struct {
	Code      string `json:"code"`
	Type      string `json:"type"`
	Mandatory bool   `json:"mandatory"`
	Multiple  bool   `json:"multiValued"`
}

// Categories lists the leaf categories available to the merchant.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.get(ctx, "/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CategoryAttributes returns the attribute schema for a category, mandatory
// entries first so callers can fill required fields before optional ones.
func (c *Client) CategoryAttributes(ctx context.Context, categoryCode string) ([]Attribute, error) {
	categoryCode = strings.TrimSpace(categoryCode)
	if categoryCode == "" {
		return nil, errors.New("kaspi: category code required")
	}
	var out []Attribute
	query := url.Values{"c": {categoryCode}}
	if err := c.get(ctx, "/attributes", query, &out); err != nil {
		return nil, err
	}
	ordered := make([]Attribute, 0, len(out))
	for _, attr := range out {
		if attr.Mandatory {
			ordered = append(ordered, attr)
		}
	}
	for _, attr := range out {
		if !attr.Mandatory {
			ordered = append(ordered, attr)
		}
	}
	return ordered, nil
}

// AttributeValues lists the permitted enum values for one attribute. Returns
// an empty slice for free-form attributes.
func (c *Client) AttributeValues(ctx context.Context, categoryCode, attributeCode string) ([]string, error) {
	categoryCode = strings.TrimSpace(categoryCode)
	attributeCode = strings.TrimSpace(attributeCode)
	if categoryCode == "" || attributeCode == "" {
		return nil, errors.New("kaspi: category and attribute codes required")
	}
	var out []struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	query := url.Values{"c": {categoryCode}, "a": {attributeCode}}
	if err := c.get(ctx, "/attribute/values", query, &out); err != nil {
		return nil, err
	}
	values := make([]string, 0, len(out))
	for _, value := range out {
		name := strings.TrimSpace(value.Name)
		if name == "" {
			name = strings.TrimSpace(value.Code)
		}
		if name != "" {
			values = append(values, name)
		}
	}
	return values, nil
}
