package testsupport

import (
	"context"
	"testing"

	"vitrine/internal/config"
	"vitrine/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewCandidate inserts a fresh candidate record for tests.
func NewCandidate(t testing.TB, store *records.Store, externalID int64, name string) *records.Product {
	t.Helper()

	product := &records.Product{
		ExternalID: externalID,
		Name:       name,
		Price:      1000,
		Status:     records.StatusIdle,
	}
	inserted, err := store.InsertCandidate(context.Background(), product)
	if err != nil {
		t.Fatalf("store.InsertCandidate: %v", err)
	}
	if !inserted {
		t.Fatalf("candidate %d already present", externalID)
	}
	return product
}
