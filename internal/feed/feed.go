// Package feed builds the consolidated marketplace price feed. Offers from
// published conveyor records are merged over a base feed sourced
// externally; base entries for the same product identifier are dropped so
// the conveyor's listing supersedes any externally-sourced duplicate.
package feed

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vitrine/internal/config"
	"vitrine/internal/logging"
	"vitrine/internal/records"
	"vitrine/internal/services"
)

// Catalog is the feed document in marketplace shopping-feed format.
type Catalog struct {
	XMLName    xml.Name `xml:"kaspi_catalog"`
	Date       string   `xml:"date,attr"`
	Namespace  string   `xml:"xmlns,attr"`
	Company    string   `xml:"company"`
	MerchantID string   `xml:"merchantid"`
	Offers     Offers   `xml:"offers"`
}

type Offers struct {
	Items []Offer `xml:"offer"`
}

// Offer is a single feed entry.
type Offer struct {
	SKU            string         `xml:"sku,attr"`
	Model          string         `xml:"model"`
	Brand          string         `xml:"brand,omitempty"`
	Availabilities Availabilities `xml:"availabilities"`
	Price          int64          `xml:"price"`
}

type Availabilities struct {
	Items []Availability `xml:"availability"`
}

type Availability struct {
	Available  string `xml:"available,attr"`
	StoreID    string `xml:"storeId,attr"`
	StockCount int    `xml:"stockCount,attr"`
}

const feedNamespace = "kaspiShopping"

// Writer regenerates and publishes the feed artifact.
type Writer struct {
	logger         *slog.Logger
	basePath       string
	outputPaths    []string
	supplierPrefix string
	companyName    string
	merchantID     string
	warehouseID    string
}

func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = logging.NewNop()
	}
	writer := &Writer{logger: logging.NewComponentLogger(logger, "feed")}
	if cfg != nil {
		writer.basePath = cfg.Feed.BaseFeed
		writer.outputPaths = append(writer.outputPaths, cfg.Feed.OutputPaths...)
		writer.supplierPrefix = cfg.Feed.SupplierPrefix
		writer.companyName = cfg.Feed.CompanyName
		writer.merchantID = cfg.Kaspi.MerchantID
		writer.warehouseID = cfg.MoySklad.WarehouseID
	}
	return writer
}

// Regenerate rebuilds the feed from the published records, merges it over
// the base feed, and writes every configured output path atomically.
func (w *Writer) Regenerate(published []*records.Product) error {
	offers := w.offersFromRecords(published)

	base, err := w.loadBase()
	if err != nil {
		return err
	}
	merged := mergeOffers(base, offers, w.supplierPrefix)

	catalog := Catalog{
		Date:       time.Now().UTC().Format("2006-01-02 15:04"),
		Namespace:  feedNamespace,
		Company:    w.companyName,
		MerchantID: w.merchantID,
		Offers:     Offers{Items: merged},
	}
	encoded, err := xml.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return services.Wrap(nil, "feed", "regenerate", "encode feed", err)
	}
	document := append([]byte(xml.Header), encoded...)

	for _, path := range w.outputPaths {
		if err := writeAtomic(path, document); err != nil {
			return services.Wrap(nil, "feed", "regenerate", "write feed output", err)
		}
	}
	w.logger.Info("feed regenerated",
		logging.Int("offers", len(merged)),
		logging.Int("own_offers", len(offers)),
		logging.Int("outputs", len(w.outputPaths)))
	return nil
}

// offersFromRecords converts published records into feed offers. Only the
// conveyor's own warehouse stock is ever reported.
func (w *Writer) offersFromRecords(published []*records.Product) []Offer {
	offers := make([]Offer, 0, len(published))
	for _, product := range published {
		if product.Specs.SKU == "" {
			continue
		}
		available := "no"
		if product.Specs.Stock > 0 {
			available = "yes"
		}
		offers = append(offers, Offer{
			SKU:   product.Specs.SKU,
			Model: product.Name,
			Brand: product.Brand,
			Price: int64(product.Price),
			Availabilities: Availabilities{Items: []Availability{{
				Available:  available,
				StoreID:    w.warehouseID,
				StockCount: product.Specs.Stock,
			}}},
		})
	}
	return offers
}

// loadBase parses the externally-sourced base feed. A missing base feed is
// not an error; the feed then carries only the conveyor's own offers.
func (w *Writer) loadBase() ([]Offer, error) {
	if w.basePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(w.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read base feed: %w", err)
	}
	var catalog Catalog
	if err := xml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse base feed: %w", err)
	}
	return catalog.Offers.Items, nil
}

// mergeOffers places the conveyor's offers first and keeps base entries
// whose product identifier does not collide with any of them. Identifiers
// are compared with the supplier prefix stripped, so an externally-sourced
// duplicate under another prefix is still superseded.
func mergeOffers(base, own []Offer, supplierPrefix string) []Offer {
	ownIDs := make(map[string]bool, len(own))
	for _, offer := range own {
		ownIDs[productIdentifier(offer.SKU, supplierPrefix)] = true
	}
	merged := make([]Offer, 0, len(base)+len(own))
	merged = append(merged, own...)
	for _, offer := range base {
		if ownIDs[productIdentifier(offer.SKU, supplierPrefix)] {
			continue
		}
		merged = append(merged, offer)
	}
	return merged
}

// productIdentifier strips any leading non-digit prefix from a SKU, leaving
// the source storefront identifier.
func productIdentifier(sku, supplierPrefix string) string {
	sku = strings.TrimSpace(sku)
	if supplierPrefix != "" {
		sku = strings.TrimPrefix(sku, supplierPrefix)
	}
	trimmed := strings.TrimLeftFunc(sku, func(r rune) bool {
		return r < '0' || r > '9'
	})
	if trimmed != "" {
		return trimmed
	}
	return sku
}

// writeAtomic writes via a temp file in the target directory and renames
// it into place so consumers never read a partial feed.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create feed dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp feed: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp feed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp feed: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish feed: %w", err)
	}
	return nil
}
