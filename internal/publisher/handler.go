// Package publisher implements the publish-listing stage: classify the
// record, build the listing payload, submit it to the marketplace import
// pipeline, and optionally push an offer for the resulting SKU.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"vitrine/internal/classify"
	"vitrine/internal/config"
	"vitrine/internal/logging"
	"vitrine/internal/records"
	"vitrine/internal/services"
	"vitrine/internal/services/kaspi"
	"vitrine/internal/stage"
)

// Classifier resolves category and attributes for a record's text.
type Classifier interface {
	Classify(ctx context.Context, name, description string) (classify.Classification, error)
	Attributes(ctx context.Context, classification classify.Classification, name, description string) (map[string]any, error)
}

// Lister is the marketplace listing surface this stage depends on.
type Lister interface {
	Ping(ctx context.Context) error
	SubmitListing(ctx context.Context, listing kaspi.Listing) (string, error)
	PublishOffer(ctx context.Context, offer kaspi.Offer) error
	CategoryAttributes(ctx context.Context, categoryCode string) ([]kaspi.Attribute, error)
}

// Handler publishes classified records to the marketplace.
type Handler struct {
	classifier    Classifier
	lister        Lister
	logger        *slog.Logger
	pushOffers    bool
	availability  string
	imageProxyURL string
}

func NewHandler(classifier Classifier, lister Lister, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	handler := &Handler{
		classifier: classifier,
		lister:     lister,
		logger:     logging.NewComponentLogger(logger, "publisher"),
	}
	if cfg != nil {
		handler.pushOffers = cfg.Kaspi.PushOffers
		handler.availability = cfg.Kaspi.Availability
		handler.imageProxyURL = cfg.Kaspi.ImageProxyURL
	}
	return handler
}

func (h *Handler) Name() string { return "publisher" }

func (h *Handler) Applies(product *records.Product) bool {
	return product.MSCreated && product.StockAdded && !product.KaspiCreated
}

func (h *Handler) Execute(ctx context.Context, product *records.Product) error {
	if product.Specs.SKU == "" {
		return services.Wrap(services.ErrValidation, "publish", "execute", "record has no sku", nil)
	}

	classification, err := h.resolveCategory(ctx, product)
	if err != nil {
		return err
	}
	if classification.Restricted() {
		product.Specs.CategoryCode = ""
		product.Specs.CategoryType = ""
		product.LogEvent("listing blocked: restricted category")
		return services.Wrap(services.ErrRestricted, "publish", "execute",
			fmt.Sprintf("product %q matched a restricted category", product.Name), nil)
	}

	attrs, err := h.classifier.Attributes(ctx, classification, product.Name, product.Description)
	if err != nil {
		return err
	}
	h.reportAttributeGaps(ctx, classification.Code, attrs)

	listing := kaspi.Listing{
		SKU:          product.Specs.SKU,
		Title:        product.Name,
		Brand:        product.Brand,
		CategoryCode: classification.Code,
		Description:  product.Description,
		Attributes:   attrs,
		Images:       h.listingImages(product.Images),
	}
	uploadID, err := h.lister.SubmitListing(ctx, listing)
	if err != nil {
		return services.Wrap(services.ErrExternalAPI, "publish", "execute", "submit listing", err)
	}

	product.Specs.Attributes = attrs
	product.Specs.UploadID = uploadID
	product.Specs.ModerationStatus = "pending"
	product.KaspiCreated = true
	product.LogEvent("listing submitted: upload " + uploadID)
	h.logger.Info("listing submitted",
		logging.Int64("record_id", product.ID),
		logging.String("sku", product.Specs.SKU),
		logging.String("category_code", classification.Code),
		logging.String("upload_id", uploadID))

	if h.pushOffers {
		offer := kaspi.Offer{
			SKU:          product.Specs.SKU,
			Price:        product.Price,
			Stock:        product.Specs.Stock,
			Availability: h.availability,
		}
		if err := h.lister.PublishOffer(ctx, offer); err != nil {
			// The listing went through; the offer push retries via housekeeping.
			product.LogEvent("offer push failed: " + err.Error())
			h.logger.Warn("offer push failed",
				logging.Int64("record_id", product.ID),
				logging.String("sku", product.Specs.SKU),
				logging.Float64("price", offer.Price),
				logging.Error(err))
		}
	}
	return nil
}

// resolveCategory reuses a previously stored classification so retried
// uploads stay in the category the first attempt chose.
func (h *Handler) resolveCategory(ctx context.Context, product *records.Product) (classify.Classification, error) {
	if product.Specs.CategoryCode != "" {
		return classify.Classification{
			Code: product.Specs.CategoryCode,
			Type: product.Specs.CategoryType,
		}, nil
	}
	classification, err := h.classifier.Classify(ctx, product.Name, product.Description)
	if err != nil {
		return classify.Classification{}, err
	}
	if !classification.Restricted() {
		product.Specs.CategoryCode = classification.Code
		product.Specs.CategoryType = classification.Type
	}
	return classification, nil
}

// reportAttributeGaps diffs the generated map against the declared
// mandatory schema. Diagnostic only; a gap is logged, never blocking.
func (h *Handler) reportAttributeGaps(ctx context.Context, categoryCode string, attrs map[string]any) {
	schema, err := h.lister.CategoryAttributes(ctx, categoryCode)
	if err != nil {
		h.logger.Debug("attribute gap check skipped", logging.String("category_code", categoryCode), logging.Error(err))
		return
	}
	if missing := classify.MissingMandatory(attrs, schema); len(missing) > 0 {
		h.logger.Warn("mandatory attributes missing from generated map",
			logging.String("category_code", categoryCode),
			logging.Any("missing", missing))
	}
}

func (h *Handler) listingImages(images []string) []kaspi.ListingImage {
	out := make([]kaspi.ListingImage, 0, len(images))
	for _, image := range images {
		image = strings.TrimSpace(image)
		if image == "" {
			continue
		}
		if h.imageProxyURL != "" {
			image = strings.TrimRight(h.imageProxyURL, "/") + "/" + url.QueryEscape(image)
		}
		out = append(out, kaspi.ListingImage{URL: image})
	}
	return out
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.lister.Ping(ctx); err != nil {
		return stage.Unhealthy(h.Name(), "marketplace API unreachable: "+err.Error())
	}
	return stage.Healthy(h.Name())
}
