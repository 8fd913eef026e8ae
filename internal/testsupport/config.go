package testsupport

import (
	"path/filepath"
	"testing"

	"vitrine/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.FeedDir = filepath.Join(base, "feed")
	cfgVal.MoySklad.Token = "test-inventory-token"
	cfgVal.MoySklad.WarehouseID = "wh-test"
	cfgVal.Kaspi.Token = "test-marketplace-token"
	cfgVal.Kaspi.MerchantID = "merchant-test"
	cfgVal.LLM.APIKey = "test-llm-key"
	cfgVal.Feed.OutputPaths = []string{filepath.Join(base, "feed", "offers.xml")}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPlaceholderStock overrides the placeholder quantity on the test config.
func WithPlaceholderStock(quantity int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MoySklad.PlaceholderStock = quantity
	}
}

// WithMaxAttempts overrides the quarantine ceiling on the test config.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conveyor.MaxAttempts = attempts
	}
}

// WithSupplierPrefix overrides the feed supplier prefix on the test config.
func WithSupplierPrefix(prefix string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Feed.SupplierPrefix = prefix
	}
}
