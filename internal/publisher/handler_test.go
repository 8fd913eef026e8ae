package publisher_test

import (
	"context"
	"errors"
	"testing"

	"vitrine/internal/classify"
	"vitrine/internal/publisher"
	"vitrine/internal/records"
	"vitrine/internal/services"
	"vitrine/internal/services/kaspi"
	"vitrine/internal/testsupport"
)

type fakeClassifier struct {
	classification classify.Classification
	attrs          map[string]any
	classifyCalls  int
}

func (f *fakeClassifier) Classify(context.Context, string, string) (classify.Classification, error) {
	f.classifyCalls++
	return f.classification, nil
}

func (f *fakeClassifier) Attributes(context.Context, classify.Classification, string, string) (map[string]any, error) {
	return f.attrs, nil
}

type fakeLister struct {
	submitted []kaspi.Listing
	offers    []kaspi.Offer
	submitErr error
}

func (f *fakeLister) Ping(context.Context) error { return nil }

func (f *fakeLister) SubmitListing(_ context.Context, listing kaspi.Listing) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, listing)
	return "upload-1", nil
}

func (f *fakeLister) PublishOffer(_ context.Context, offer kaspi.Offer) error {
	f.offers = append(f.offers, offer)
	return nil
}

func (f *fakeLister) CategoryAttributes(context.Context, string) ([]kaspi.Attribute, error) {
	return nil, nil
}

func publishableProduct() *records.Product {
	product := &records.Product{
		ID:          1,
		ExternalID:  12345,
		Name:        "Кружка керамическая 350 мл белая",
		Price:       1200,
		MSCreated:   true,
		StockAdded:  true,
		Images:      []string{"https://img.test/mug.jpg"},
	}
	product.Specs.SKU = "VTR-12345"
	product.Specs.Stock = 5
	return product
}

func TestExecuteSubmitsListing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Kaspi.PushOffers = true
	classifier := &fakeClassifier{
		classification: classify.Classification{
			Code: "Master - Cups and saucers sets",
			Type: "mugs",
			Tier: classify.TierKeyword,
		},
		attrs: map[string]any{"Type": "кружка"},
	}
	lister := &fakeLister{}
	handler := publisher.NewHandler(classifier, lister, cfg, nil)

	product := publishableProduct()
	if err := handler.Execute(context.Background(), product); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(lister.submitted) != 1 {
		t.Fatalf("expected 1 submitted listing, got %d", len(lister.submitted))
	}
	listing := lister.submitted[0]
	if listing.SKU != "VTR-12345" || listing.CategoryCode != "Master - Cups and saucers sets" {
		t.Fatalf("unexpected listing: %#v", listing)
	}
	if product.Specs.UploadID != "upload-1" || product.Specs.ModerationStatus != "pending" {
		t.Fatalf("unexpected specs after submit: %+v", product.Specs)
	}
	if !product.KaspiCreated {
		t.Fatal("expected stage flag to be set")
	}
	if len(lister.offers) != 1 {
		t.Fatalf("expected offer push, got %d", len(lister.offers))
	}
	if lister.offers[0].Stock != 5 {
		t.Fatalf("expected offer stock from specs, got %d", lister.offers[0].Stock)
	}
}

func TestExecuteRestrictedCategoryIsTerminal(t *testing.T) {
	classifier := &fakeClassifier{
		classification: classify.Classification{Tier: classify.TierRestricted},
	}
	lister := &fakeLister{}
	handler := publisher.NewHandler(classifier, lister, testsupport.NewConfig(t), nil)

	product := publishableProduct()
	err := handler.Execute(context.Background(), product)
	if err == nil {
		t.Fatal("expected restricted error")
	}
	if !services.IsTerminal(err) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if len(lister.submitted) != 0 {
		t.Fatal("restricted products must never be submitted")
	}
	if product.KaspiCreated {
		t.Fatal("stage flag must not be set for restricted record")
	}
}

func TestExecuteReusesStoredClassification(t *testing.T) {
	classifier := &fakeClassifier{
		classification: classify.Classification{Code: "Master - Toys", Type: "toys"},
		attrs:          map[string]any{},
	}
	lister := &fakeLister{}
	handler := publisher.NewHandler(classifier, lister, testsupport.NewConfig(t), nil)

	product := publishableProduct()
	product.Specs.CategoryCode = "Master - Cups and saucers sets"
	product.Specs.CategoryType = "mugs"

	if err := handler.Execute(context.Background(), product); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if classifier.classifyCalls != 0 {
		t.Fatalf("expected stored classification reuse, got %d classify calls", classifier.classifyCalls)
	}
	if lister.submitted[0].CategoryCode != "Master - Cups and saucers sets" {
		t.Fatalf("expected stored category on listing, got %q", lister.submitted[0].CategoryCode)
	}
}

func TestExecuteSubmitFailureIsRecoverable(t *testing.T) {
	classifier := &fakeClassifier{
		classification: classify.Classification{Code: "Master - Toys", Type: "toys"},
		attrs:          map[string]any{},
	}
	lister := &fakeLister{submitErr: errors.New("api down")}
	handler := publisher.NewHandler(classifier, lister, testsupport.NewConfig(t), nil)

	product := publishableProduct()
	err := handler.Execute(context.Background(), product)
	if err == nil {
		t.Fatal("expected submit error")
	}
	if services.IsTerminal(err) {
		t.Fatalf("expected recoverable error, got %v", err)
	}
	if product.KaspiCreated {
		t.Fatal("stage flag must not be set on failure")
	}
	// Classification survives so the retry keeps the chosen category.
	if product.Specs.CategoryCode != "Master - Toys" {
		t.Fatalf("expected stored classification, got %q", product.Specs.CategoryCode)
	}
}
