package stocks_test

import (
	"context"
	"testing"

	"vitrine/internal/records"
	"vitrine/internal/services/moysklad"
	"vitrine/internal/stocks"
	"vitrine/internal/testsupport"
)

type stockInsert struct {
	itemID      string
	warehouseID string
	quantity    int
}

type fakeStockService struct {
	figure  moysklad.StockFigure
	inserts []stockInsert
}

func (f *fakeStockService) Ping(context.Context) error { return nil }

func (f *fakeStockService) Stock(_ context.Context, itemID, warehouseID string) (moysklad.StockFigure, error) {
	return f.figure, nil
}

func (f *fakeStockService) CreateStockEntry(_ context.Context, itemID, warehouseID string, quantity int, _ float64) error {
	f.inserts = append(f.inserts, stockInsert{itemID: itemID, warehouseID: warehouseID, quantity: quantity})
	return nil
}

func TestExecuteSkipsInsertWhenGlobalStockExists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	service := &fakeStockService{figure: moysklad.StockFigure{Warehouse: 0, Global: 12}}
	handler := stocks.NewHandler(service, cfg, nil)

	product := &records.Product{ID: 1, Name: "Товар", MSCreated: true}
	product.Specs.InventoryID = "item-1"

	if err := handler.Execute(context.Background(), product); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(service.inserts) != 0 {
		t.Fatalf("expected zero stock inserts, got %d", len(service.inserts))
	}
	if !product.StockAdded {
		t.Fatal("expected stage flag to be set")
	}
	if product.Specs.Stock != 0 || product.Specs.GlobalStock != 12 {
		t.Fatalf("unexpected persisted figures: %+v", product.Specs)
	}
}

func TestExecuteInsertsPlaceholderWhenGlobalStockZero(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPlaceholderStock(5))
	service := &fakeStockService{figure: moysklad.StockFigure{Warehouse: 0, Global: 0}}
	handler := stocks.NewHandler(service, cfg, nil)

	product := &records.Product{ID: 2, Name: "Товар", Price: 1500, MSCreated: true}
	product.Specs.InventoryID = "item-2"

	if err := handler.Execute(context.Background(), product); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(service.inserts) != 1 {
		t.Fatalf("expected exactly one stock insert, got %d", len(service.inserts))
	}
	insert := service.inserts[0]
	if insert.itemID != "item-2" || insert.warehouseID != cfg.MoySklad.WarehouseID || insert.quantity != 5 {
		t.Fatalf("unexpected insert: %#v", insert)
	}
	if product.Specs.Stock != 5 || product.Specs.GlobalStock != 0 {
		t.Fatalf("unexpected persisted figures: %+v", product.Specs)
	}
	if !product.StockAdded {
		t.Fatal("expected stage flag to be set")
	}
}

func TestAppliesRequiresInventoryStageFirst(t *testing.T) {
	handler := stocks.NewHandler(&fakeStockService{}, testsupport.NewConfig(t), nil)

	if handler.Applies(&records.Product{}) {
		t.Fatal("stage must wait for inventory creation")
	}
	if !handler.Applies(&records.Product{MSCreated: true}) {
		t.Fatal("stage should apply once inventory exists")
	}
	if handler.Applies(&records.Product{MSCreated: true, StockAdded: true}) {
		t.Fatal("stage must not reapply after completion")
	}
}
