// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Defaults applied when the corresponding variable is unset or invalid.
const (
	DefaultHTTPAddr             = ":8080"
	DefaultTimezone             = "UTC"
	DefaultExchangeRateBaseURL  = "https://v6.exchangerate-api.com/v6"
	DefaultExchangeRateTimeout  = 10 * time.Second
	DefaultFrontendURL          = "http://localhost:3000"
	DefaultUtilizationThreshold = 80
	DefaultJWTExpiry            = 24 * time.Hour
)

// DefaultExchangeRate is the last-resort USD to NPR rate.
var DefaultExchangeRate = decimal.RequireFromString("133.0")

// Telemetry exporters.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL string
	HTTPAddr    string
	FrontendURL string
	JWTSecret   string
	JWTExpiry   time.Duration

	LogLevel  string
	LogFormat string
	LogFile   string

	// Location is the calendar used for rate dates and yearly rollover.
	Location *time.Location

	ExchangeRateBaseURL string
	ExchangeRateAPIKey  string
	ExchangeRateTimeout time.Duration
	DefaultExchangeRate decimal.Decimal

	UtilizationThreshold decimal.Decimal
	TelegramBotToken     string
	TelegramAlertChatID  int64

	GeminiAPIKey string

	OTelExporter string
	ServiceName  string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET_KEY"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		LogFormat:           os.Getenv("LOG_FORMAT"),
		LogFile:             os.Getenv("LOG_FILE"),
		ExchangeRateAPIKey:  os.Getenv("EXCHANGE_RATE_API_KEY"),
		TelegramBotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		HTTPAddr:            DefaultHTTPAddr,
		FrontendURL:         DefaultFrontendURL,
		JWTExpiry:           DefaultJWTExpiry,
		ExchangeRateBaseURL: DefaultExchangeRateBaseURL,
		ExchangeRateTimeout: DefaultExchangeRateTimeout,
		DefaultExchangeRate: DefaultExchangeRate,
		OTelExporter:        ExporterNone,
		ServiceName:         "paywatch",
		Location:            time.UTC,
	}

	if addr := strings.TrimSpace(os.Getenv("HTTP_ADDR")); addr != "" {
		cfg.HTTPAddr = addr
	}
	if url := strings.TrimSpace(os.Getenv("FRONTEND_URL")); url != "" {
		cfg.FrontendURL = url
	}
	if hoursStr := os.Getenv("JWT_EXPIRATION_HOURS"); hoursStr != "" {
		if h, err := strconv.Atoi(hoursStr); err == nil && h > 0 {
			cfg.JWTExpiry = time.Duration(h) * time.Hour
		}
	}

	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			cfg.Location = loc
		}
	}

	if baseURL := strings.TrimSpace(os.Getenv("EXCHANGE_RATE_API_URL")); baseURL != "" {
		cfg.ExchangeRateBaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeoutStr := os.Getenv("EXCHANGE_RATE_TIMEOUT"); timeoutStr != "" {
		if d, err := time.ParseDuration(timeoutStr); err == nil && d > 0 {
			cfg.ExchangeRateTimeout = d
		}
	}
	if rateStr := os.Getenv("DEFAULT_EXCHANGE_RATE"); rateStr != "" {
		if r, err := decimal.NewFromString(rateStr); err == nil && r.IsPositive() {
			cfg.DefaultExchangeRate = r
		}
	}

	cfg.UtilizationThreshold = decimal.NewFromInt(DefaultUtilizationThreshold)
	if thresholdStr := os.Getenv("ALERT_UTILIZATION_THRESHOLD"); thresholdStr != "" {
		if v, err := decimal.NewFromString(thresholdStr); err == nil &&
			v.IsPositive() && v.LessThanOrEqual(decimal.NewFromInt(100)) {
			cfg.UtilizationThreshold = v
		}
	}

	if chatStr := strings.TrimSpace(os.Getenv("TELEGRAM_ALERT_CHAT_ID")); chatStr != "" {
		if id, err := strconv.ParseInt(chatStr, 10, 64); err == nil {
			cfg.TelegramAlertChatID = id
		}
	}

	switch exporter := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER"))); exporter {
	case ExporterStdout, ExporterOTLPGRPC, ExporterOTLPHTTP:
		cfg.OTelExporter = exporter
	}
	if name := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")); name != "" {
		cfg.ServiceName = name
	}

	// Validate required configuration.
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET_KEY is required")
	}

	if c.TelegramBotToken != "" && c.TelegramAlertChatID == 0 {
		errs = append(errs, "TELEGRAM_ALERT_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// TelegramAlertsEnabled reports whether alert pushes to Telegram are configured.
func (c *Config) TelegramAlertsEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramAlertChatID != 0
}
