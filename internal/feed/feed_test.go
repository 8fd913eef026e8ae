package feed_test

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"vitrine/internal/feed"
	"vitrine/internal/records"
	"vitrine/internal/testsupport"
)

func publishedRecord(externalID int64, name string, stock int) *records.Product {
	product := &records.Product{
		ExternalID:   externalID,
		Name:         name,
		Price:        990,
		KaspiCreated: true,
	}
	product.Specs.SKU = "VTR-" + strconv.FormatInt(externalID, 10)
	product.Specs.Stock = stock
	return product
}

func readCatalog(t *testing.T, path string) feed.Catalog {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read feed: %v", err)
	}
	var catalog feed.Catalog
	if err := xml.Unmarshal(data, &catalog); err != nil {
		t.Fatalf("parse feed: %v", err)
	}
	return catalog
}

func TestRegenerateWritesAllOutputPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	second := filepath.Join(cfg.Paths.FeedDir, "mirror", "offers.xml")
	cfg.Feed.OutputPaths = append(cfg.Feed.OutputPaths, second)
	cfg.Feed.CompanyName = "Vitrine Test"

	writer := feed.NewWriter(cfg, nil)
	published := []*records.Product{publishedRecord(101, "Кружка белая", 5)}
	if err := writer.Regenerate(published); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	for _, path := range cfg.Feed.OutputPaths {
		catalog := readCatalog(t, path)
		if catalog.Company != "Vitrine Test" {
			t.Fatalf("unexpected company in %s: %q", path, catalog.Company)
		}
		if len(catalog.Offers.Items) != 1 || catalog.Offers.Items[0].SKU != "VTR-101" {
			t.Fatalf("unexpected offers in %s: %#v", path, catalog.Offers.Items)
		}
	}
}

func TestRegenerateSupersedesBaseFeedDuplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := filepath.Join(cfg.Paths.FeedDir, "base.xml")
	cfg.Feed.BaseFeed = base

	baseDoc := `<?xml version="1.0" encoding="UTF-8"?>
<kaspi_catalog date="2026-01-01 00:00" xmlns="kaspiShopping">
  <company>External</company>
  <merchantid>ext</merchantid>
  <offers>
    <offer sku="EXT-101"><model>Кружка белая (дубль)</model><availabilities><availability available="yes" storeId="ext" stockCount="3"/></availabilities><price>900</price></offer>
    <offer sku="202"><model>Термос внешний</model><availabilities><availability available="yes" storeId="ext" stockCount="1"/></availabilities><price>2500</price></offer>
  </offers>
</kaspi_catalog>`
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(base, []byte(baseDoc), 0o644); err != nil {
		t.Fatalf("write base feed: %v", err)
	}

	writer := feed.NewWriter(cfg, nil)
	published := []*records.Product{publishedRecord(101, "Кружка белая", 5)}
	if err := writer.Regenerate(published); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	catalog := readCatalog(t, cfg.Feed.OutputPaths[0])
	skus := make([]string, 0, len(catalog.Offers.Items))
	for _, offer := range catalog.Offers.Items {
		skus = append(skus, offer.SKU)
	}
	if len(skus) != 2 {
		t.Fatalf("expected own offer plus non-duplicate base offer, got %v", skus)
	}
	if skus[0] != "VTR-101" {
		t.Fatalf("expected own offer first, got %v", skus)
	}
	if skus[1] != "202" {
		t.Fatalf("expected external duplicate suppressed, got %v", skus)
	}
}

func TestRegenerateReportsOnlyWarehouseStock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writer := feed.NewWriter(cfg, nil)

	// Global stock exists elsewhere, so the warehouse figure is zero and the
	// offer must not claim availability.
	product := publishedRecord(303, "Товар на чужом складе", 0)
	product.Specs.GlobalStock = 12
	if err := writer.Regenerate([]*records.Product{product}); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	catalog := readCatalog(t, cfg.Feed.OutputPaths[0])
	offer := catalog.Offers.Items[0]
	availability := offer.Availabilities.Items[0]
	if availability.Available != "no" || availability.StockCount != 0 {
		t.Fatalf("expected unavailable offer with zero stock, got %#v", availability)
	}
}
