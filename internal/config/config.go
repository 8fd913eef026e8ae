package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	FeedDir string `toml:"feed_dir"`
}

// MoySklad contains configuration for the inventory system client.
type MoySklad struct {
	Token            string  `toml:"token"`
	BaseURL          string  `toml:"base_url"`
	ProductFolder    string  `toml:"product_folder"`
	PriceType        string  `toml:"price_type"`
	WarehouseID      string  `toml:"warehouse_id"`
	PlaceholderStock int     `toml:"placeholder_stock"`
	UnitPrice        float64 `toml:"unit_price"`
	RequestTimeout   int     `toml:"request_timeout"`
}

// Kaspi contains configuration for the marketplace listing API client.
type Kaspi struct {
	Token          string  `toml:"token"`
	BaseURL        string  `toml:"base_url"`
	MerchantID     string  `toml:"merchant_id"`
	PushOffers     bool    `toml:"push_offers"`
	Availability   string  `toml:"availability"`
	ImageProxyURL  string  `toml:"image_proxy_url"`
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RequestTimeout int     `toml:"request_timeout"`
}

// LLM contains connection settings for the AI text service.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	CandidateLimit int    `toml:"candidate_limit"`
}

// Conveyor contains polling, retry, and quarantine settings.
type Conveyor struct {
	PollInterval       int `toml:"poll_interval"`
	BatchSize          int `toml:"batch_size"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	MaxAttempts        int `toml:"max_attempts"`
	BackoffInitial     int `toml:"backoff_initial"`
	BackoffMax         int `toml:"backoff_max"`
}

// Discovery contains settings for the candidate-product job queue.
type Discovery struct {
	Enabled  bool `toml:"enabled"`
	Workers  int  `toml:"workers"`
	PageSize int  `toml:"page_size"`
}

// Housekeeping contains the background reconciliation interval.
type Housekeeping struct {
	Interval int `toml:"interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Feed contains configuration for the consolidated offer feed artifact.
type Feed struct {
	BaseFeed       string   `toml:"base_feed"`
	OutputPaths    []string `toml:"output_paths"`
	SupplierPrefix string   `toml:"supplier_prefix"`
	CompanyName    string   `toml:"company_name"`
}

// Config encapsulates all configuration values for vitrine.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and feed directories
//   - MoySklad: inventory system credentials and stock targets
//   - Kaspi: marketplace listing API credentials and push behavior
//   - LLM: AI text service used by classification fallbacks
//   - Conveyor: polling cadence, retry backoff, and quarantine ceiling
//   - Discovery: candidate-product job queue workers
//   - Housekeeping: periodic reconciliation interval
//   - Logging: log format, level, and retention
//   - Feed: consolidated offer feed inputs and outputs
type Config struct {
	Paths        Paths        `toml:"paths"`
	MoySklad     MoySklad     `toml:"moysklad"`
	Kaspi        Kaspi        `toml:"kaspi"`
	LLM          LLM          `toml:"llm"`
	Conveyor     Conveyor     `toml:"conveyor"`
	Discovery    Discovery    `toml:"discovery"`
	Housekeeping Housekeeping `toml:"housekeeping"`
	Logging      Logging      `toml:"logging"`
	Feed         Feed         `toml:"feed"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vitrine/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vitrine.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.FeedDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
