package moysklad

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vitrine/internal/config"
)

const (
	defaultBaseURL     = "https://api.moysklad.ru/api/remap/1.2"
	defaultHTTPTimeout = 30 * time.Second
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("moysklad: not found")

// Item is an inventory product as the conveyor sees it.
type Item struct {
	ID      string
	Code    string
	Article string
	Href    string
}

// StockFigure reports warehouse-scoped and global quantities for one item.
type StockFigure struct {
	Warehouse int
	Global    int
}

// Client talks to the inventory system REST API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// NewClient constructs an inventory API client.
func NewClient(token string, opts ...Option) *Client {
	client := &Client{
		token:      strings.TrimSpace(token),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// NewConfiguredClient constructs a client from application config.
func NewConfiguredClient(cfg *config.Config) *Client {
	if cfg == nil {
		return NewClient("")
	}
	timeout := time.Duration(cfg.MoySklad.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return NewClient(
		cfg.MoySklad.Token,
		WithBaseURL(cfg.MoySklad.BaseURL),
		WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

// Ping verifies credentials against a cheap endpoint.
func (c *Client) Ping(ctx context.Context) error {
	var out struct{}
	return c.get(ctx, "/context/employee", nil, &out)
}

// ResolveProductFolder finds the product folder by name. The conveyor calls
// this once at startup and aborts when the folder is missing.
func (c *Client) ResolveProductFolder(ctx context.Context, name string) (string, error) {
	var out listResponse[folderRow]
	query := url.Values{"filter": {"name=" + name}}
	if err := c.get(ctx, "/entity/productfolder", query, &out); err != nil {
		return "", err
	}
	if len(out.Rows) == 0 {
		return "", fmt.Errorf("%w: product folder %q", ErrNotFound, name)
	}
	return out.Rows[0].Meta.Href, nil
}

// ResolvePriceType finds the sale price type by name. Startup lookup, fatal
// when missing.
func (c *Client) ResolvePriceType(ctx context.Context, name string) (string, error) {
	var out struct {
		PriceTypes []struct {
			Name string `json:"name"`
			Meta meta   `json:"meta"`
		} `json:"priceTypes"`
	}
	if err := c.get(ctx, "/context/companysettings", nil, &out); err != nil {
		return "", err
	}
	for _, pt := range out.PriceTypes {
		if strings.EqualFold(pt.Name, name) {
			return pt.Meta.Href, nil
		}
	}
	return "", fmt.Errorf("%w: price type %q", ErrNotFound, name)
}

// FindByArticle returns the inventory item with the given article, or
// ErrNotFound.
func (c *Client) FindByArticle(ctx context.Context, article string) (*Item, error) {
	article = strings.TrimSpace(article)
	if article == "" {
		return nil, errors.New("moysklad: article required")
	}
	var out listResponse[productRow]
	query := url.Values{"filter": {"article=" + article}}
	if err := c.get(ctx, "/entity/product", query, &out); err != nil {
		return nil, err
	}
	if len(out.Rows) == 0 {
		return nil, fmt.Errorf("%w: article %q", ErrNotFound, article)
	}
	row := out.Rows[0]
	return &Item{ID: row.ID, Code: row.Code, Article: row.Article, Href: row.Meta.Href}, nil
}

// CreateRequest describes a new inventory product.
type CreateRequest struct {
	Name          string
	Article       string
	FolderHref    string
	PriceTypeHref string
	SalePrice     float64
}

// Create inserts a new inventory product and returns the stored item with
// its assigned code.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Item, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("moysklad: product name required")
	}
	if strings.TrimSpace(req.Article) == "" {
		return nil, errors.New("moysklad: product article required")
	}
	payload := map[string]any{
		"name":    req.Name,
		"article": req.Article,
	}
	if req.FolderHref != "" {
		payload["productFolder"] = map[string]any{
			"meta": map[string]any{"href": req.FolderHref, "type": "productfolder", "mediaType": "application/json"},
		}
	}
	if req.PriceTypeHref != "" {
		payload["salePrices"] = []map[string]any{{
			// API prices are in kopecks.
			"value": int64(req.SalePrice * 100),
			"priceType": map[string]any{
				"meta": map[string]any{"href": req.PriceTypeHref, "type": "pricetype", "mediaType": "application/json"},
			},
		}}
	}
	var row productRow
	if err := c.post(ctx, "/entity/product", payload, &row); err != nil {
		return nil, err
	}
	return &Item{ID: row.ID, Code: row.Code, Article: row.Article, Href: row.Meta.Href}, nil
}

// Stock reports the warehouse-scoped and global quantity for an item. The
// global figure sums every warehouse; the warehouse figure covers only the
// given store id.
func (c *Client) Stock(ctx context.Context, itemID, warehouseID string) (StockFigure, error) {
	if strings.TrimSpace(itemID) == "" {
		return StockFigure{}, errors.New("moysklad: item id required")
	}
	var out listResponse[stockRow]
	query := url.Values{"filter": {"product=" + c.baseURL + "/entity/product/" + itemID}, "groupBy": {"product"}}
	if err := c.get(ctx, "/report/stock/bystore", query, &out); err != nil {
		return StockFigure{}, err
	}

	figure := StockFigure{}
	for _, row := range out.Rows {
		for _, byStore := range row.StockByStore {
			qty := int(byStore.Stock)
			figure.Global += qty
			if warehouseID != "" && strings.Contains(byStore.Meta.Href, warehouseID) {
				figure.Warehouse += qty
			}
		}
	}
	return figure, nil
}

// CreateStockEntry inserts quantity at the given warehouse via an enter
// (оприходование) document.
func (c *Client) CreateStockEntry(ctx context.Context, itemID, warehouseID string, quantity int, unitPrice float64) error {
	if strings.TrimSpace(itemID) == "" {
		return errors.New("moysklad: item id required")
	}
	if strings.TrimSpace(warehouseID) == "" {
		return errors.New("moysklad: warehouse id required")
	}
	if quantity <= 0 {
		return errors.New("moysklad: quantity must be positive")
	}
	payload := map[string]any{
		"store": map[string]any{
			"meta": map[string]any{
				"href":      c.baseURL + "/entity/store/" + warehouseID,
				"type":      "store",
				"mediaType": "application/json",
			},
		},
		"positions": []map[string]any{{
			"quantity": quantity,
			"price":    int64(unitPrice * 100),
			"assortment": map[string]any{
				"meta": map[string]any{
					"href":      c.baseURL + "/entity/product/" + itemID,
					"type":      "product",
					"mediaType": "application/json",
				},
			},
		}},
	}
	var out struct{}
	return c.post(ctx, "/entity/enter", payload, &out)
}

type meta struct {
	Href string `json:"href"`
}

type listResponse[T any] struct {
	Rows []T `json:"rows"`
}

type folderRow struct {
	Name string `json:"name"`
	Meta meta   `json:"meta"`
}

type productRow struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Article string `json:"article"`
	Meta    meta   `json:"meta"`
}

type stockRow struct {
	Meta         meta `json:"meta"`
	StockByStore []struct {
		Meta  meta    `json:"meta"`
		Stock float64 `json:"stock"`
	} `json:"stockByStore"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("moysklad: build url: %w", err)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("moysklad: request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("moysklad: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("moysklad: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("moysklad: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if strings.TrimSpace(c.token) == "" {
		return errors.New("moysklad: token required")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json;charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("moysklad: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("moysklad: read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("moysklad: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("moysklad: decode response: %w", err)
	}
	return nil
}
