package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMoySklad()
	c.normalizeKaspi()
	c.normalizeLLM()
	c.normalizeConveyor()
	c.normalizeDiscovery()
	c.normalizeLogging()
	if err := c.normalizeFeed(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.FeedDir, err = expandPath(c.Paths.FeedDir); err != nil {
		return fmt.Errorf("paths.feed_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMoySklad() {
	if c.MoySklad.Token == "" {
		if value, ok := os.LookupEnv("MOYSKLAD_TOKEN"); ok {
			c.MoySklad.Token = strings.TrimSpace(value)
		}
	}
	c.MoySklad.BaseURL = strings.TrimRight(strings.TrimSpace(c.MoySklad.BaseURL), "/")
	if c.MoySklad.BaseURL == "" {
		c.MoySklad.BaseURL = defaultMoySkladBaseURL
	}
	if c.MoySklad.PlaceholderStock <= 0 {
		c.MoySklad.PlaceholderStock = defaultPlaceholderStock
	}
	if c.MoySklad.RequestTimeout <= 0 {
		c.MoySklad.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeKaspi() {
	if c.Kaspi.Token == "" {
		if value, ok := os.LookupEnv("KASPI_TOKEN"); ok {
			c.Kaspi.Token = strings.TrimSpace(value)
		}
	}
	c.Kaspi.BaseURL = strings.TrimRight(strings.TrimSpace(c.Kaspi.BaseURL), "/")
	if c.Kaspi.BaseURL == "" {
		c.Kaspi.BaseURL = defaultKaspiBaseURL
	}
	c.Kaspi.Availability = strings.ToLower(strings.TrimSpace(c.Kaspi.Availability))
	if c.Kaspi.Availability == "" {
		c.Kaspi.Availability = defaultKaspiAvailability
	}
	if c.Kaspi.RateLimitRPS <= 0 {
		c.Kaspi.RateLimitRPS = defaultKaspiRateLimitRPS
	}
	if c.Kaspi.RequestTimeout <= 0 {
		c.Kaspi.RequestTimeout = defaultRequestTimeout
	}
	c.Kaspi.ImageProxyURL = strings.TrimSpace(c.Kaspi.ImageProxyURL)
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("VITRINE_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.CandidateLimit <= 0 {
		c.LLM.CandidateLimit = defaultLLMCandidateLimit
	}
}

func (c *Config) normalizeConveyor() {
	if c.Conveyor.PollInterval <= 0 {
		c.Conveyor.PollInterval = defaultPollInterval
	}
	if c.Conveyor.BatchSize <= 0 {
		c.Conveyor.BatchSize = defaultBatchSize
	}
	if c.Conveyor.ErrorRetryInterval <= 0 {
		c.Conveyor.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Conveyor.MaxAttempts <= 0 {
		c.Conveyor.MaxAttempts = defaultMaxAttempts
	}
	if c.Conveyor.BackoffInitial <= 0 {
		c.Conveyor.BackoffInitial = defaultBackoffInitial
	}
	if c.Conveyor.BackoffMax < c.Conveyor.BackoffInitial {
		c.Conveyor.BackoffMax = defaultBackoffMax
	}
}

func (c *Config) normalizeDiscovery() {
	if c.Discovery.Workers <= 0 {
		c.Discovery.Workers = defaultDiscoveryWorkers
	}
	// External search endpoints throttle aggressively; two workers is the ceiling.
	if c.Discovery.Workers > 2 {
		c.Discovery.Workers = 2
	}
	if c.Discovery.PageSize <= 0 {
		c.Discovery.PageSize = defaultDiscoveryPageSize
	}
	if c.Housekeeping.Interval <= 0 {
		c.Housekeeping.Interval = defaultHousekeeping
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}

func (c *Config) normalizeFeed() error {
	var err error
	if strings.TrimSpace(c.Feed.BaseFeed) != "" {
		if c.Feed.BaseFeed, err = expandPath(c.Feed.BaseFeed); err != nil {
			return fmt.Errorf("feed.base_feed: %w", err)
		}
	}
	if len(c.Feed.OutputPaths) == 0 {
		c.Feed.OutputPaths = []string{filepath.Join(c.Paths.FeedDir, "offers.xml")}
	}
	for i, path := range c.Feed.OutputPaths {
		if c.Feed.OutputPaths[i], err = expandPath(path); err != nil {
			return fmt.Errorf("feed.output_paths[%d]: %w", i, err)
		}
	}
	c.Feed.SupplierPrefix = strings.TrimSpace(c.Feed.SupplierPrefix)
	if c.Feed.SupplierPrefix == "" {
		c.Feed.SupplierPrefix = defaultSupplierPrefix
	}
	c.Feed.CompanyName = strings.TrimSpace(c.Feed.CompanyName)
	return nil
}
