// Package inventory implements the create-in-inventory stage: each
// product record gets exactly one inventory item, found by article or
// created with the conveyor's folder and price type.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"vitrine/internal/config"
	"vitrine/internal/logging"
	"vitrine/internal/records"
	"vitrine/internal/services"
	"vitrine/internal/services/moysklad"
	"vitrine/internal/stage"
)

// Service is the inventory API surface this stage depends on.
type Service interface {
	Ping(ctx context.Context) error
	FindByArticle(ctx context.Context, article string) (*moysklad.Item, error)
	Create(ctx context.Context, req moysklad.CreateRequest) (*moysklad.Item, error)
}

// Resolver performs the startup lookups the stage cannot run without.
type Resolver interface {
	ResolveProductFolder(ctx context.Context, name string) (string, error)
	ResolvePriceType(ctx context.Context, name string) (string, error)
}

// Handler creates or finds the inventory item for each record.
type Handler struct {
	service        Service
	logger         *slog.Logger
	supplierPrefix string
	unitPrice      float64

	folderHref    string
	priceTypeHref string
}

// NewHandler wires the stage. Call Prepare before the first Execute.
func NewHandler(service Service, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	handler := &Handler{
		service: service,
		logger:  logging.NewComponentLogger(logger, "inventory"),
	}
	if cfg != nil {
		handler.supplierPrefix = cfg.Feed.SupplierPrefix
		handler.unitPrice = cfg.MoySklad.UnitPrice
	}
	return handler
}

// Prepare resolves the product folder and price type once at startup.
// Failure here is fatal for the run; records cannot be created into an
// unresolved folder.
func (h *Handler) Prepare(ctx context.Context, resolver Resolver, cfg *config.Config) error {
	if cfg == nil {
		return services.Wrap(services.ErrConfiguration, "inventory", "prepare", "configuration required", nil)
	}
	folderHref, err := resolver.ResolveProductFolder(ctx, cfg.MoySklad.ProductFolder)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "inventory", "prepare",
			fmt.Sprintf("resolve product folder %q", cfg.MoySklad.ProductFolder), err)
	}
	priceTypeHref, err := resolver.ResolvePriceType(ctx, cfg.MoySklad.PriceType)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "inventory", "prepare",
			fmt.Sprintf("resolve price type %q", cfg.MoySklad.PriceType), err)
	}
	h.folderHref = folderHref
	h.priceTypeHref = priceTypeHref
	h.logger.Info("inventory lookups resolved",
		logging.String("product_folder", cfg.MoySklad.ProductFolder),
		logging.String("price_type", cfg.MoySklad.PriceType))
	return nil
}

func (h *Handler) Name() string { return "inventory" }

func (h *Handler) Applies(product *records.Product) bool {
	return !product.MSCreated
}

// Execute finds the inventory item by the conveyor's article or creates
// it. Running twice with the same article never yields two items: the
// lookup always wins over creation.
func (h *Handler) Execute(ctx context.Context, product *records.Product) error {
	if h.folderHref == "" || h.priceTypeHref == "" {
		return services.Wrap(services.ErrConfiguration, "inventory", "execute", "inventory lookups not resolved", nil)
	}

	article := h.Article(product)
	item, err := h.service.FindByArticle(ctx, article)
	switch {
	case err == nil:
		h.logger.Info("inventory item already exists",
			logging.Int64("record_id", product.ID),
			logging.String("article", article),
			logging.String("inventory_id", item.ID))
	case errors.Is(err, moysklad.ErrNotFound):
		price := product.Price
		if price <= 0 {
			price = h.unitPrice
		}
		item, err = h.service.Create(ctx, moysklad.CreateRequest{
			Name:          product.Name,
			Article:       article,
			FolderHref:    h.folderHref,
			PriceTypeHref: h.priceTypeHref,
			SalePrice:     price,
		})
		if err != nil {
			return services.Wrap(services.ErrExternalAPI, "inventory", "execute", "create inventory item", err)
		}
		h.logger.Info("inventory item created",
			logging.Int64("record_id", product.ID),
			logging.String("article", article),
			logging.String("inventory_id", item.ID))
	default:
		return services.Wrap(services.ErrExternalAPI, "inventory", "execute", "find inventory item by article", err)
	}

	product.Specs.InventoryID = item.ID
	// The inventory system's assigned code is the listing SKU. Older
	// accounts leave it blank; the article stands in then.
	product.Specs.SKU = item.Code
	if product.Specs.SKU == "" {
		product.Specs.SKU = article
	}
	product.MSCreated = true
	product.LogEvent("inventory item ready: " + item.ID)
	return nil
}

// Article builds the conveyor-owned article for a record: the supplier
// prefix followed by the source storefront identifier.
func (h *Handler) Article(product *records.Product) string {
	return h.supplierPrefix + strconv.FormatInt(product.ExternalID, 10)
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.service.Ping(ctx); err != nil {
		return stage.Unhealthy(h.Name(), "inventory API unreachable: "+err.Error())
	}
	return stage.Healthy(h.Name())
}
