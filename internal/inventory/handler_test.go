package inventory_test

import (
	"context"
	"fmt"
	"testing"

	"vitrine/internal/inventory"
	"vitrine/internal/records"
	"vitrine/internal/services/moysklad"
	"vitrine/internal/testsupport"
)

type fakeInventoryService struct {
	items       map[string]*moysklad.Item
	creates     int
	assignCodes bool
}

func newFakeInventoryService() *fakeInventoryService {
	return &fakeInventoryService{items: make(map[string]*moysklad.Item)}
}

func (f *fakeInventoryService) Ping(context.Context) error { return nil }

func (f *fakeInventoryService) FindByArticle(_ context.Context, article string) (*moysklad.Item, error) {
	if item, ok := f.items[article]; ok {
		return item, nil
	}
	return nil, fmt.Errorf("%w: article %q", moysklad.ErrNotFound, article)
}

func (f *fakeInventoryService) Create(_ context.Context, req moysklad.CreateRequest) (*moysklad.Item, error) {
	f.creates++
	item := &moysklad.Item{
		ID:      fmt.Sprintf("item-%d", f.creates),
		Article: req.Article,
	}
	if f.assignCodes {
		item.Code = fmt.Sprintf("%05d", f.creates)
	}
	f.items[req.Article] = item
	return item, nil
}

type fakeResolver struct{}

func (fakeResolver) ResolveProductFolder(context.Context, string) (string, error) {
	return "https://inventory.test/folder/1", nil
}

func (fakeResolver) ResolvePriceType(context.Context, string) (string, error) {
	return "https://inventory.test/pricetype/1", nil
}

func newPreparedHandler(t *testing.T, service inventory.Service) *inventory.Handler {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	handler := inventory.NewHandler(service, cfg, nil)
	if err := handler.Prepare(context.Background(), fakeResolver{}, cfg); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	return handler
}

func TestExecuteCreatesItemOnce(t *testing.T) {
	service := newFakeInventoryService()
	handler := newPreparedHandler(t, service)

	ctx := context.Background()
	product := &records.Product{ID: 1, ExternalID: 12345, Name: "Кружка", Price: 1200}

	if err := handler.Execute(ctx, product); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if service.creates != 1 {
		t.Fatalf("expected 1 create call, got %d", service.creates)
	}
	if !product.MSCreated {
		t.Fatal("expected stage flag to be set")
	}
	if product.Specs.InventoryID == "" {
		t.Fatal("expected inventory id on specs")
	}
	if product.Specs.SKU != handler.Article(product) {
		t.Fatalf("expected sku %q, got %q", handler.Article(product), product.Specs.SKU)
	}

	// A second run with the same article must reuse the existing item.
	rerun := &records.Product{ID: 2, ExternalID: 12345, Name: "Кружка", Price: 1200}
	if err := handler.Execute(ctx, rerun); err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}
	if service.creates != 1 {
		t.Fatalf("expected creation to stay idempotent, got %d creates", service.creates)
	}
	if rerun.Specs.InventoryID != product.Specs.InventoryID {
		t.Fatalf("expected same inventory item, got %q vs %q", rerun.Specs.InventoryID, product.Specs.InventoryID)
	}
}

func TestExecuteStoresAssignedCodeAsSKU(t *testing.T) {
	service := newFakeInventoryService()
	service.assignCodes = true
	handler := newPreparedHandler(t, service)

	product := &records.Product{ID: 3, ExternalID: 555, Name: "Бутылка", Price: 900}
	if err := handler.Execute(context.Background(), product); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if product.Specs.SKU != "00001" {
		t.Fatalf("expected assigned inventory code as sku, got %q", product.Specs.SKU)
	}
	if product.Specs.SKU == handler.Article(product) {
		t.Fatal("sku must come from the inventory system, not the article")
	}
}

func TestExecuteRequiresPreparedLookups(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handler := inventory.NewHandler(newFakeInventoryService(), cfg, nil)

	product := &records.Product{ID: 1, ExternalID: 99, Name: "Товар"}
	if err := handler.Execute(context.Background(), product); err == nil {
		t.Fatal("expected error before Prepare resolves lookups")
	}
	if product.MSCreated {
		t.Fatal("stage flag must not be set on failure")
	}
}

func TestArticleUsesSupplierPrefix(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSupplierPrefix("SUP-"))
	handler := inventory.NewHandler(newFakeInventoryService(), cfg, nil)

	article := handler.Article(&records.Product{ExternalID: 777})
	if article != "SUP-777" {
		t.Fatalf("unexpected article %q", article)
	}
}
