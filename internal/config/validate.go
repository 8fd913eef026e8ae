package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMoySklad(); err != nil {
		return err
	}
	if err := c.validateKaspi(); err != nil {
		return err
	}
	if err := c.validateConveyor(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMoySklad() error {
	if strings.TrimSpace(c.MoySklad.Token) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/vitrine/config.toml"
		}
		return fmt.Errorf("moysklad.token is required. Set MOYSKLAD_TOKEN env var or edit %s (create with 'vitrine config init')", defaultPath)
	}
	if strings.TrimSpace(c.MoySklad.WarehouseID) == "" {
		return errors.New("moysklad.warehouse_id must be set to the stock-isolation target warehouse")
	}
	if strings.TrimSpace(c.MoySklad.ProductFolder) == "" {
		return errors.New("moysklad.product_folder must be set")
	}
	if strings.TrimSpace(c.MoySklad.PriceType) == "" {
		return errors.New("moysklad.price_type must be set")
	}
	return nil
}

func (c *Config) validateKaspi() error {
	if strings.TrimSpace(c.Kaspi.Token) == "" {
		return errors.New("kaspi.token is required. Set KASPI_TOKEN env var or add it to the config file")
	}
	if strings.TrimSpace(c.Kaspi.MerchantID) == "" {
		return errors.New("kaspi.merchant_id must be set")
	}
	switch c.Kaspi.Availability {
	case "yes", "no", "preorder":
	default:
		return fmt.Errorf("kaspi.availability: unsupported value %q", c.Kaspi.Availability)
	}
	return nil
}

func (c *Config) validateConveyor() error {
	return ensurePositiveMap(map[string]int{
		"conveyor.poll_interval":        c.Conveyor.PollInterval,
		"conveyor.batch_size":           c.Conveyor.BatchSize,
		"conveyor.error_retry_interval": c.Conveyor.ErrorRetryInterval,
		"conveyor.max_attempts":         c.Conveyor.MaxAttempts,
		"conveyor.backoff_initial":      c.Conveyor.BackoffInitial,
		"conveyor.backoff_max":          c.Conveyor.BackoffMax,
		"housekeeping.interval":         c.Housekeeping.Interval,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
