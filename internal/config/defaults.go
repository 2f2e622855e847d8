package config

const (
	defaultDataDir             = "~/.local/share/cardscan"
	defaultLogDir              = "~/.local/share/cardscan/logs"
	defaultReferenceDir        = "~/.local/share/cardscan/references"
	defaultVisionBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultPrimaryModel        = "openai/gpt-4o-mini"
	defaultFallbackModel       = "openai/gpt-4o"
	defaultConfidenceThreshold = 85
	defaultDailyBudgetUSD      = 1.50
	defaultVisionTimeout       = 60
	defaultLanguageMode        = "auto"
	defaultCatalogTimeout      = 15
	defaultFXBaseURL           = "https://api.frankfurter.dev/v1"
	defaultDisplayCurrency     = "EUR"
	defaultPricingTimeout      = 20
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
			ReferenceDir: defaultReferenceDir,
		},
		Vision: Vision{
			BaseURL:             defaultVisionBaseURL,
			PrimaryModel:        defaultPrimaryModel,
			FallbackModel:       defaultFallbackModel,
			ConfidenceThreshold: defaultConfidenceThreshold,
			DailyBudgetUSD:      defaultDailyBudgetUSD,
			TimeoutSeconds:      defaultVisionTimeout,
			LanguageMode:        defaultLanguageMode,
		},
		Catalog: Catalog{
			TimeoutSeconds: defaultCatalogTimeout,
		},
		Pricing: Pricing{
			FXBaseURL:       defaultFXBaseURL,
			DisplayCurrency: defaultDisplayCurrency,
			TimeoutSeconds:  defaultPricingTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
