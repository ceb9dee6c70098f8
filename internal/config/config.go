package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Simplici0/slabquote/internal/estimate"
)

const (
	defaultPort            = "8080"
	defaultStoreDriver     = "sqlite"
	defaultDBPath          = "./data/estimates.db"
	defaultJSONStorePath   = "./data/estimates.json"
	defaultStaticDir       = "web/static"
	defaultProvider        = "openai"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultGeminiModel     = "gemini-1.5-flash"
	defaultProposalTimeout = 20 * time.Second
	defaultRateLimitRPS    = 5.0
	defaultRateLimitBurst  = 10
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	StoreDriver   string
	DBPath        string
	JSONStorePath string
	DatabaseURL   string

	StaticDir string

	ProposalProvider string
	ProposalTimeout  time.Duration
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	GeminiModel      string

	RateLimitRPS   float64
	RateLimitBurst int

	// SeedDemo inserts sample estimates into an empty store at startup.
	SeedDemo bool

	// Rates is the fallback rate table after RATE_* overrides.
	Rates estimate.Rates
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool {
	return IsDevEnv(c.Env)
}

// IsDevEnv reports whether an APP_ENV value names a development environment.
func IsDevEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "dev", "development", "local":
		return true
	}
	return false
}

// Load reads environment variables and returns a populated Config. Problems
// are logged through the default slog logger, so callers set up logging
// first. See LoadDotEnv for .env files.
func Load() Config {
	cfg := Config{
		Env:              os.Getenv("APP_ENV"),
		Port:             stringEnv("PORT", defaultPort),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		StoreDriver:      strings.ToLower(stringEnv("STORE_DRIVER", defaultStoreDriver)),
		DBPath:           stringEnv("DB_PATH", defaultDBPath),
		JSONStorePath:    stringEnv("JSON_STORE_PATH", defaultJSONStorePath),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StaticDir:        stringEnv("STATIC_DIR", defaultStaticDir),
		ProposalProvider: strings.ToLower(stringEnv("PROPOSAL_PROVIDER", defaultProvider)),
		ProposalTimeout:  durationEnv("PROPOSAL_TIMEOUT", defaultProposalTimeout),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      stringEnv("OPENAI_MODEL", defaultOpenAIModel),
		OpenAIBaseURL:    stringEnv("OPENAI_BASE_URL", defaultOpenAIBaseURL),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      stringEnv("GEMINI_MODEL", defaultGeminiModel),
		RateLimitRPS:     floatEnv("RATE_LIMIT_RPS", defaultRateLimitRPS),
		RateLimitBurst:   intEnv("RATE_LIMIT_BURST", defaultRateLimitBurst),
		SeedDemo:         boolEnv("SEED_DEMO"),
		Rates:            loadRates(estimate.DefaultRates()),
	}

	switch cfg.StoreDriver {
	case "sqlite", "json", "postgres":
	default:
		slog.Warn("unknown STORE_DRIVER, using sqlite", "value", cfg.StoreDriver)
		cfg.StoreDriver = defaultStoreDriver
	}
	if cfg.StoreDriver == "postgres" && cfg.DatabaseURL == "" {
		slog.Warn("STORE_DRIVER=postgres but DATABASE_URL is not set")
	}

	switch cfg.ProposalProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			slog.Warn("OPENAI_API_KEY is not set, proposals will be unavailable")
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			slog.Warn("GEMINI_API_KEY is not set, proposals will be unavailable")
		}
	case "none", "off", "":
		cfg.ProposalProvider = "none"
	default:
		slog.Warn("unknown PROPOSAL_PROVIDER, proposals disabled", "value", cfg.ProposalProvider)
		cfg.ProposalProvider = "none"
	}

	return cfg
}

// loadRates applies RATE_* overrides on top of base.
func loadRates(base estimate.Rates) estimate.Rates {
	base.PricePerCY = floatEnv("RATE_PRICE_PER_CY", base.PricePerCY)
	base.RebarCostPerSqft = floatEnv("RATE_REBAR_COST_PER_SQFT", base.RebarCostPerSqft)
	base.FormsCostPerSqft = floatEnv("RATE_FORMS_COST_PER_SQFT", base.FormsCostPerSqft)
	base.LaborRatePerHour = floatEnv("RATE_LABOR_RATE_PER_HOUR", base.LaborRatePerHour)
	base.LaborHoursPerSqft = floatEnv("RATE_LABOR_HOURS_PER_SQFT", base.LaborHoursPerSqft)
	base.TearoutCostPerSqft = floatEnv("RATE_TEAROUT_COST_PER_SQFT", base.TearoutCostPerSqft)
	base.OverheadPct = floatEnv("RATE_OVERHEAD_PCT", base.OverheadPct)
	base.ProfitPct = floatEnv("RATE_PROFIT_PCT", base.ProfitPct)
	return base
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func floatEnv(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		slog.Warn("invalid numeric env value, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

func intEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		slog.Warn("invalid integer env value, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		slog.Warn("invalid duration env value, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}
