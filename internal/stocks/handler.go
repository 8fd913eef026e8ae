// Package stocks implements the stock-isolation stage. The downstream
// feed treats any positive stock anywhere as sellable, so a placeholder
// entry is inserted only when the item's global total is zero. Warehouse
// and global figures are always recorded for feed construction.
package stocks

import (
	"context"
	"fmt"
	"log/slog"

	"vitrine/internal/config"
	"vitrine/internal/logging"
	"vitrine/internal/records"
	"vitrine/internal/services"
	"vitrine/internal/services/moysklad"
	"vitrine/internal/stage"
)

// Service is the inventory stock surface this stage depends on.
type Service interface {
	Ping(ctx context.Context) error
	Stock(ctx context.Context, itemID, warehouseID string) (moysklad.StockFigure, error)
	CreateStockEntry(ctx context.Context, itemID, warehouseID string, quantity int, unitPrice float64) error
}

// Handler gates placeholder stock on the global total.
type Handler struct {
	service          Service
	logger           *slog.Logger
	warehouseID      string
	placeholderStock int
	unitPrice        float64
}

func NewHandler(service Service, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	handler := &Handler{
		service: service,
		logger:  logging.NewComponentLogger(logger, "stocks"),
	}
	if cfg != nil {
		handler.warehouseID = cfg.MoySklad.WarehouseID
		handler.placeholderStock = cfg.MoySklad.PlaceholderStock
		handler.unitPrice = cfg.MoySklad.UnitPrice
	}
	return handler
}

func (h *Handler) Name() string { return "stocks" }

func (h *Handler) Applies(product *records.Product) bool {
	return product.MSCreated && !product.StockAdded
}

// Execute records the warehouse and global stock figures and inserts the
// placeholder quantity only when the global total is zero. A record whose
// item holds stock anywhere completes the stage with zero inserted stock.
func (h *Handler) Execute(ctx context.Context, product *records.Product) error {
	if product.Specs.InventoryID == "" {
		return services.Wrap(services.ErrValidation, "stocks", "execute", "record has no inventory id", nil)
	}

	figure, err := h.service.Stock(ctx, product.Specs.InventoryID, h.warehouseID)
	if err != nil {
		return services.Wrap(services.ErrExternalAPI, "stocks", "execute", "read stock report", err)
	}

	product.Specs.GlobalStock = figure.Global
	if figure.Global > 0 {
		// Stock already exists somewhere; a placeholder here would make the
		// item look doubly supplied downstream.
		product.Specs.Stock = figure.Warehouse
		product.StockAdded = true
		product.LogEvent(fmt.Sprintf("stock skipped: global=%d warehouse=%d", figure.Global, figure.Warehouse))
		h.logger.Info("placeholder stock skipped",
			logging.Int64("record_id", product.ID),
			logging.Int("global_stock", figure.Global),
			logging.Int("warehouse_stock", figure.Warehouse))
		return nil
	}

	price := product.Price
	if price <= 0 {
		price = h.unitPrice
	}
	if err := h.service.CreateStockEntry(ctx, product.Specs.InventoryID, h.warehouseID, h.placeholderStock, price); err != nil {
		return services.Wrap(services.ErrExternalAPI, "stocks", "execute", "insert placeholder stock", err)
	}
	product.Specs.Stock = h.placeholderStock
	product.StockAdded = true
	product.LogEvent(fmt.Sprintf("placeholder stock inserted: %d", h.placeholderStock))
	h.logger.Info("placeholder stock inserted",
		logging.Int64("record_id", product.ID),
		logging.Int("quantity", h.placeholderStock))
	return nil
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.service.Ping(ctx); err != nil {
		return stage.Unhealthy(h.Name(), "inventory API unreachable: "+err.Error())
	}
	return stage.Healthy(h.Name())
}
