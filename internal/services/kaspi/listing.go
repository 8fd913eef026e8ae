package kaspi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ListingImage is one image reference in a listing payload.
type ListingImage struct {
	URL string `json:"url"`
}

// Listing is the payload submitted to the product import endpoint.
type Listing struct {
	SKU          string         `json:"sku"`
	Title        string         `json:"title"`
	Brand        string         `json:"brand,omitempty"`
	CategoryCode string         `json:"category"`
	Description  string         `json:"description,omitempty"`
	Attributes   map[string]any `json:"attributes"`
	Images       []ListingImage `json:"images,omitempty"`
}

// ImportResult reports the state of a submitted listing upload.
type ImportResult struct {
	UploadID string
	Status   string
	Errors   map[string]string
}

// Offer is a direct price/stock publication for an already-listed SKU.
type Offer struct {
	SKU          string
	Price        float64
	Stock        int
	Availability string
}

// SubmitListing uploads one listing and returns the upload id assigned by
// the import pipeline.
func (c *Client) SubmitListing(ctx context.Context, listing Listing) (string, error) {
	if strings.TrimSpace(listing.SKU) == "" {
		return "", errors.New("kaspi: listing sku required")
	}
	if strings.TrimSpace(listing.CategoryCode) == "" {
		return "", errors.New("kaspi: listing category required")
	}
	var out struct {
		Code   string `json:"code"`
		Status string `json:"status"`
	}
	payload := map[string]any{
		"merchantId": c.merchantID,
		"items":      []Listing{listing},
	}
	if err := c.post(ctx, "/products/import", payload, &out); err != nil {
		return "", err
	}
	if out.Code == "" {
		return "", errors.New("kaspi: import response missing upload code")
	}
	return out.Code, nil
}

// GetImportResult polls the import pipeline for the outcome of an upload.
func (c *Client) GetImportResult(ctx context.Context, uploadID string) (ImportResult, error) {
	uploadID = strings.TrimSpace(uploadID)
	if uploadID == "" {
		return ImportResult{}, errors.New("kaspi: upload id required")
	}
	var out struct {
		Code   string `json:"code"`
		Status string `json:"status"`
		Result []struct {
			SKU     string `json:"sku"`
			Status  string `json:"status"`
			Message string `json:"errorMessage"`
		} `json:"result"`
	}
	query := url.Values{"i": {uploadID}, "m": {c.merchantID}}
	if err := c.get(ctx, "/products/import/result", query, &out); err != nil {
		return ImportResult{}, err
	}
	result := ImportResult{
		UploadID: uploadID,
		Status:   strings.ToLower(strings.TrimSpace(out.Status)),
		Errors:   map[string]string{},
	}
	for _, item := range out.Result {
		if strings.TrimSpace(item.Message) != "" {
			result.Errors[item.SKU] = item.Message
		}
	}
	return result, nil
}

// PublishOffer pushes price, stock, and availability for a listed SKU.
func (c *Client) PublishOffer(ctx context.Context, offer Offer) error {
	if strings.TrimSpace(offer.SKU) == "" {
		return errors.New("kaspi: offer sku required")
	}
	if offer.Price <= 0 {
		return fmt.Errorf("kaspi: offer price must be positive, got %v", offer.Price)
	}
	payload := map[string]any{
		"merchantId": c.merchantID,
		"offers": []map[string]any{{
			"sku":          offer.SKU,
			"price":        offer.Price,
			"stockCount":   offer.Stock,
			"availability": offer.Availability,
		}},
	}
	var out struct{}
	return c.post(ctx, "/offers", payload, &out)
}
