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
	DataDir      string `toml:"data_dir"`
	LogDir       string `toml:"log_dir"`
	ReferenceDir string `toml:"reference_dir"`
}

// Vision contains configuration for the remote multimodal model provider.
type Vision struct {
	APIKey              string  `toml:"api_key"`
	BaseURL             string  `toml:"base_url"`
	PrimaryModel        string  `toml:"primary_model"`
	FallbackModel       string  `toml:"fallback_model"`
	ConfidenceThreshold int     `toml:"confidence_threshold"`
	DailyBudgetUSD      float64 `toml:"daily_budget_usd"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	LanguageMode        string  `toml:"language_mode"`
}

// Catalog contains configuration for the catalog-number text search source.
type Catalog struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pricing contains configuration for market price lookup and currency conversion.
type Pricing struct {
	SearchBaseURL   string `toml:"search_base_url"`
	FXBaseURL       string `toml:"fx_base_url"`
	DisplayCurrency string `toml:"display_currency"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Telemetry contains configuration for the scan outcome sink.
type Telemetry struct {
	Dir        string `toml:"dir"`
	WebhookURL string `toml:"webhook_url"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the scanner.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and reference-image directories
//   - Vision: remote model provider, escalation threshold, daily budget
//   - Catalog: catalog-number verification search source
//   - Pricing: market price search and currency conversion
//   - Telemetry: local JSONL sink or webhook for scan outcomes
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Vision    Vision    `toml:"vision"`
	Catalog   Catalog   `toml:"catalog"`
	Pricing   Pricing   `toml:"pricing"`
	Telemetry Telemetry `toml:"telemetry"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cardscan/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
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

	projectPath, err := filepath.Abs("cardscan.toml")
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

// EnsureDirectories creates required directories for scanner operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Telemetry.Dir) != "" {
		if err := os.MkdirAll(c.Telemetry.Dir, 0o755); err != nil {
			return fmt.Errorf("create telemetry directory %q: %w", c.Telemetry.Dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the sqlite store inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "cardscan.db")
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
