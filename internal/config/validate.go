package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateVision(); err != nil {
		return err
	}
	if err := c.validatePricing(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateVision() error {
	if c.Vision.ConfidenceThreshold < 1 || c.Vision.ConfidenceThreshold > 100 {
		return errors.New("vision.confidence_threshold must be between 1 and 100")
	}
	if c.Vision.DailyBudgetUSD <= 0 {
		return errors.New("vision.daily_budget_usd must be positive")
	}
	if c.Vision.TimeoutSeconds <= 0 {
		return errors.New("vision.timeout_seconds must be positive")
	}
	switch c.Vision.LanguageMode {
	case "auto", "english", "japanese":
	default:
		return fmt.Errorf("vision.language_mode must be auto, english, or japanese (got %q)", c.Vision.LanguageMode)
	}
	return nil
}

func (c *Config) validatePricing() error {
	if len(c.Pricing.DisplayCurrency) != 3 {
		return fmt.Errorf("pricing.display_currency must be a three-letter code (got %q)", c.Pricing.DisplayCurrency)
	}
	if c.Pricing.TimeoutSeconds <= 0 {
		return errors.New("pricing.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.TrimSpace(c.Logging.Format) {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
}
