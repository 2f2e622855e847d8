package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeVision()
	c.normalizeCatalog()
	c.normalizePricing()
	if err := c.normalizeTelemetry(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReferenceDir) == "" {
		c.Paths.ReferenceDir = defaultReferenceDir
	}
	if c.Paths.ReferenceDir, err = expandPath(c.Paths.ReferenceDir); err != nil {
		return fmt.Errorf("paths.reference_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeVision() {
	c.Vision.APIKey = strings.TrimSpace(c.Vision.APIKey)
	if c.Vision.APIKey == "" {
		if value, ok := os.LookupEnv("CARDSCAN_API_KEY"); ok {
			c.Vision.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Vision.APIKey = strings.TrimSpace(value)
		}
	}
	c.Vision.BaseURL = strings.TrimSpace(c.Vision.BaseURL)
	if c.Vision.BaseURL == "" {
		c.Vision.BaseURL = defaultVisionBaseURL
	}
	c.Vision.PrimaryModel = strings.TrimSpace(c.Vision.PrimaryModel)
	if c.Vision.PrimaryModel == "" {
		c.Vision.PrimaryModel = defaultPrimaryModel
	}
	c.Vision.FallbackModel = strings.TrimSpace(c.Vision.FallbackModel)
	if c.Vision.FallbackModel == "" {
		c.Vision.FallbackModel = defaultFallbackModel
	}
	if c.Vision.ConfidenceThreshold <= 0 {
		c.Vision.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if c.Vision.DailyBudgetUSD <= 0 {
		c.Vision.DailyBudgetUSD = defaultDailyBudgetUSD
	}
	if c.Vision.TimeoutSeconds <= 0 {
		c.Vision.TimeoutSeconds = defaultVisionTimeout
	}
	c.Vision.LanguageMode = strings.ToLower(strings.TrimSpace(c.Vision.LanguageMode))
	if c.Vision.LanguageMode == "" {
		c.Vision.LanguageMode = defaultLanguageMode
	}
}

func (c *Config) normalizeCatalog() {
	c.Catalog.BaseURL = strings.TrimSpace(c.Catalog.BaseURL)
	if c.Catalog.TimeoutSeconds <= 0 {
		c.Catalog.TimeoutSeconds = defaultCatalogTimeout
	}
}

func (c *Config) normalizePricing() {
	c.Pricing.SearchBaseURL = strings.TrimSpace(c.Pricing.SearchBaseURL)
	c.Pricing.FXBaseURL = strings.TrimSpace(c.Pricing.FXBaseURL)
	if c.Pricing.FXBaseURL == "" {
		c.Pricing.FXBaseURL = defaultFXBaseURL
	}
	c.Pricing.DisplayCurrency = strings.ToUpper(strings.TrimSpace(c.Pricing.DisplayCurrency))
	if c.Pricing.DisplayCurrency == "" {
		c.Pricing.DisplayCurrency = defaultDisplayCurrency
	}
	if c.Pricing.TimeoutSeconds <= 0 {
		c.Pricing.TimeoutSeconds = defaultPricingTimeout
	}
}

func (c *Config) normalizeTelemetry() error {
	var err error
	c.Telemetry.WebhookURL = strings.TrimSpace(c.Telemetry.WebhookURL)
	if strings.TrimSpace(c.Telemetry.Dir) != "" {
		if c.Telemetry.Dir, err = expandPath(c.Telemetry.Dir); err != nil {
			return fmt.Errorf("telemetry.dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
