package kaspi

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// SearchResult is one product card returned by the storefront search.
type SearchResult struct {
	ExternalID  string
	Article     string
	Name        string
	Brand       string
	Description string
	Price       float64
	Images      []string
	RawAttrs    map[string]string
}

// Search queries the storefront catalog and returns one page of product
// cards. Page numbering starts at zero.
func (c *Client) Search(ctx context.Context, query string, page, pageSize int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("kaspi: search query required")
	}
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	var out struct {
		Data []struct {
			ID          int64   `json:"id"`
			Code        string  `json:"code"`
			Name        string  `json:"name"`
			Brand       string  `json:"brand"`
			Description string  `json:"description"`
			Price       float64 `json:"unitPrice"`
			Images      []struct {
				Large string `json:"large"`
			} `json:"images"`
			Specifications []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"specifications"`
		} `json:"data"`
	}
	params := url.Values{
		"text":  {query},
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(pageSize)},
	}
	if err := c.get(ctx, "/products/search", params, &out); err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(out.Data))
	for _, card := range out.Data {
		result := SearchResult{
			ExternalID:  strconv.FormatInt(card.ID, 10),
			Article:     strings.TrimSpace(card.Code),
			Name:        strings.TrimSpace(card.Name),
			Brand:       strings.TrimSpace(card.Brand),
			Description: strings.TrimSpace(card.Description),
			Price:       card.Price,
			RawAttrs:    map[string]string{},
		}
		if result.Article == "" {
			result.Article = result.ExternalID
		}
		for _, image := range card.Images {
			if image.Large != "" {
				result.Images = append(result.Images, image.Large)
			}
		}
		for _, spec := range card.Specifications {
			name := strings.TrimSpace(spec.Name)
			if name != "" {
				result.RawAttrs[name] = strings.TrimSpace(spec.Value)
			}
		}
		results = append(results, result)
	}
	return results, nil
}
