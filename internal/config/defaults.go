package config

const (
	defaultDataDir            = "~/.local/share/vitrine"
	defaultLogDir             = "~/.local/share/vitrine/logs"
	defaultFeedDir            = "~/.local/share/vitrine/feed"
	defaultLogRetentionDays   = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultMoySkladBaseURL    = "https://api.moysklad.ru/api/remap/1.2"
	defaultMoySkladFolder     = "Kaspi"
	defaultMoySkladPriceType  = "Цена продажи"
	defaultPlaceholderStock   = 5
	defaultKaspiBaseURL       = "https://kaspi.kz/shop/api/v2"
	defaultKaspiAvailability  = "yes"
	defaultKaspiRateLimitRPS  = 2.0
	defaultRequestTimeout     = 30
	defaultLLMBaseURL         = "https://api.deepseek.com"
	defaultLLMModel           = "deepseek-chat"
	defaultLLMTimeoutSeconds  = 60
	defaultLLMCandidateLimit  = 7
	defaultPollInterval       = 10
	defaultBatchSize          = 20
	defaultErrorRetryInterval = 15
	defaultMaxAttempts        = 12
	defaultBackoffInitial     = 30
	defaultBackoffMax         = 3600
	defaultDiscoveryWorkers   = 2
	defaultDiscoveryPageSize  = 50
	defaultHousekeeping       = 300
	defaultSupplierPrefix     = "VTR-"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			FeedDir: defaultFeedDir,
		},
		MoySklad: MoySklad{
			BaseURL:          defaultMoySkladBaseURL,
			ProductFolder:    defaultMoySkladFolder,
			PriceType:        defaultMoySkladPriceType,
			PlaceholderStock: defaultPlaceholderStock,
			UnitPrice:        0,
			RequestTimeout:   defaultRequestTimeout,
		},
		Kaspi: Kaspi{
			BaseURL:        defaultKaspiBaseURL,
			Availability:   defaultKaspiAvailability,
			RateLimitRPS:   defaultKaspiRateLimitRPS,
			RequestTimeout: defaultRequestTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			CandidateLimit: defaultLLMCandidateLimit,
		},
		Conveyor: Conveyor{
			PollInterval:       defaultPollInterval,
			BatchSize:          defaultBatchSize,
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxAttempts:        defaultMaxAttempts,
			BackoffInitial:     defaultBackoffInitial,
			BackoffMax:         defaultBackoffMax,
		},
		Discovery: Discovery{
			Enabled:  true,
			Workers:  defaultDiscoveryWorkers,
			PageSize: defaultDiscoveryPageSize,
		},
		Housekeeping: Housekeeping{
			Interval: defaultHousekeeping,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Feed: Feed{
			SupplierPrefix: defaultSupplierPrefix,
		},
	}
}
