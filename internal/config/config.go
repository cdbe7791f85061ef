package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCompat    = "compat"

	StoreSQLite = "sqlite"
	StoreNotion = "notion"
)

var (
	ErrNoProvider      = errors.New("no provider configured")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownStore    = errors.New("unknown store")
)

var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-5-mini-2025-08-07",
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderGemini:    "gemini-2.5-flash",
	ProviderCompat:    "llama3.1",
}

type Config struct {
	Provider        string `env:"LLM_PROVIDER"      envDefault:"gemini"`
	Model           string `env:"LLM_MODEL"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	CompatBaseURL   string `env:"COMPAT_BASE_URL"`
	CompatAPIKey    string `env:"COMPAT_API_KEY"`

	ChunkSize      int `env:"CHUNK_SIZE"      envDefault:"6000"`
	ChunkTolerance int `env:"CHUNK_TOLERANCE" envDefault:"600"`
	MapParallelism int `env:"MAP_PARALLELISM" envDefault:"4"`
	Workers        int `env:"WORKERS"         envDefault:"4"`
	MaxKeyInsights int `env:"MAX_KEY_INSIGHTS" envDefault:"7"`

	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"5"`
	RetryBaseDelay   time.Duration `env:"RETRY_BASE_DELAY"   envDefault:"2s"`
	RetryMaxDelay    time.Duration `env:"RETRY_MAX_DELAY"    envDefault:"30s"`
	ProviderTimeout  time.Duration `env:"PROVIDER_TIMEOUT"   envDefault:"2m"`
	ProviderRPM      int           `env:"PROVIDER_RPM"       envDefault:"0"`

	Store            string        `env:"STORE"              envDefault:"sqlite"`
	DBPath           string        `env:"DB_PATH"            envDefault:"learntracker.sqlite"`
	NotionToken      string        `env:"NOTION_TOKEN"`
	NotionDatabaseID string        `env:"NOTION_DATABASE_ID"`
	StoreTimeout     time.Duration `env:"STORE_TIMEOUT"      envDefault:"30s"`
	StoreMaxAttempts int           `env:"STORE_MAX_ATTEMPTS" envDefault:"3"`

	InputsDir     string        `env:"INPUTS_DIR"      envDefault:"inputs"`
	RSSFeeds      []string      `env:"RSS_FEEDS"       envSeparator:","`
	RSSMaxEntries int           `env:"RSS_MAX_ENTRIES" envDefault:"30"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT"   envDefault:"20s"`

	ScheduleSpec       string        `env:"SCHEDULE_SPEC"        envDefault:"0 9 * * *"`
	ScheduleTimezone   string        `env:"SCHEDULE_TIMEZONE"    envDefault:"UTC"`
	ScheduleRunTimeout time.Duration `env:"SCHEDULE_RUN_TIMEOUT" envDefault:"2h"`

	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`

	LogLevel   string `env:"LOG_LEVEL"   envDefault:"info"`
	ReportPath string `env:"REPORT_PATH"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}

	return cfg, nil
}

// DefaultModel returns the model used for provider when LLM_MODEL is unset.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

// Validate reports every missing credential or out-of-range setting for the
// selected provider and store.
func (c Config) Validate() error {
	var errs []error

	switch c.Provider {
	case "":
		errs = append(errs, ErrNoProvider)
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for openai provider"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for anthropic provider"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for gemini provider"))
		}
	case ProviderCompat:
		if c.CompatBaseURL == "" {
			errs = append(errs, errors.New("COMPAT_BASE_URL is required for compat provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownProvider, c.Provider))
	}

	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite store"))
		}
	case StoreNotion:
		if c.NotionToken == "" || c.NotionDatabaseID == "" {
			errs = append(errs, errors.New("NOTION_TOKEN and NOTION_DATABASE_ID are required for notion store"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownStore, c.Store))
	}

	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive (got %d)", c.ChunkSize))
	}
	if c.ChunkTolerance < 0 || c.ChunkTolerance >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_TOLERANCE must be in [0, CHUNK_SIZE) (got %d)", c.ChunkTolerance))
	}
	if c.MapParallelism <= 0 {
		errs = append(errs, fmt.Errorf("MAP_PARALLELISM must be positive (got %d)", c.MapParallelism))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("WORKERS must be positive (got %d)", c.Workers))
	}
	if c.RetryMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive (got %d)", c.RetryMaxAttempts))
	}
	if c.StoreMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("STORE_MAX_ATTEMPTS must be positive (got %d)", c.StoreMaxAttempts))
	}
	if c.MaxKeyInsights <= 0 {
		errs = append(errs, fmt.Errorf("MAX_KEY_INSIGHTS must be positive (got %d)", c.MaxKeyInsights))
	}
	if c.ScheduleRunTimeout < 0 {
		errs = append(errs, fmt.Errorf("SCHEDULE_RUN_TIMEOUT must not be negative (got %s)", c.ScheduleRunTimeout))
	}
	if _, err := time.LoadLocation(c.ScheduleTimezone); err != nil {
		errs = append(errs, fmt.Errorf("load SCHEDULE_TIMEZONE: %w", err))
	}

	return errors.Join(errs...)
}

// NotifyEnabled is true when both Telegram settings are present.
func (c Config) NotifyEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
