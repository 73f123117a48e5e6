package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET_KEY", "secret")
}

func TestLoad(t *testing.T) {
	t.Run("loads all config from env", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/test")
		t.Setenv("JWT_SECRET_KEY", "test-secret-123")
		t.Setenv("HTTP_ADDR", ":9090")
		t.Setenv("FRONTEND_URL", "https://paywatch.example.com")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		require.Equal(t, "test-secret-123", cfg.JWTSecret)
		require.Equal(t, ":9090", cfg.HTTPAddr)
		require.Equal(t, "https://paywatch.example.com", cfg.FrontendURL)
	})

	t.Run("applies defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
		require.Equal(t, DefaultExchangeRateBaseURL, cfg.ExchangeRateBaseURL)
		require.Equal(t, DefaultExchangeRateTimeout, cfg.ExchangeRateTimeout)
		require.True(t, decimal.RequireFromString("133").Equal(cfg.DefaultExchangeRate))
		require.True(t, decimal.NewFromInt(80).Equal(cfg.UtilizationThreshold))
		require.Equal(t, time.UTC, cfg.Location)
		require.Equal(t, ExporterNone, cfg.OTelExporter)
		require.Equal(t, 24*time.Hour, cfg.JWTExpiry)
		require.False(t, cfg.TelegramAlertsEnabled())
	})

	t.Run("loads exchange config from env", func(t *testing.T) {
		setRequired(t)
		t.Setenv("EXCHANGE_RATE_API_URL", "https://rates.example.com/v6/")
		t.Setenv("EXCHANGE_RATE_API_KEY", "key-123")
		t.Setenv("EXCHANGE_RATE_TIMEOUT", "3s")
		t.Setenv("DEFAULT_EXCHANGE_RATE", "131.25")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "https://rates.example.com/v6", cfg.ExchangeRateBaseURL)
		require.Equal(t, "key-123", cfg.ExchangeRateAPIKey)
		require.Equal(t, 3*time.Second, cfg.ExchangeRateTimeout)
		require.True(t, decimal.RequireFromString("131.25").Equal(cfg.DefaultExchangeRate))
	})

	t.Run("uses exchange defaults for invalid values", func(t *testing.T) {
		setRequired(t)
		t.Setenv("EXCHANGE_RATE_TIMEOUT", "invalid")
		t.Setenv("DEFAULT_EXCHANGE_RATE", "-1")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, DefaultExchangeRateTimeout, cfg.ExchangeRateTimeout)
		require.True(t, DefaultExchangeRate.Equal(cfg.DefaultExchangeRate))
	})

	t.Run("parses TIMEZONE", func(t *testing.T) {
		setRequired(t)
		t.Setenv("TIMEZONE", "Asia/Kathmandu")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "Asia/Kathmandu", cfg.Location.String())
	})

	t.Run("falls back to UTC for invalid timezone", func(t *testing.T) {
		setRequired(t)
		t.Setenv("TIMEZONE", "Invalid/Timezone")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, time.UTC, cfg.Location)
	})

	t.Run("parses utilization threshold", func(t *testing.T) {
		setRequired(t)
		t.Setenv("ALERT_UTILIZATION_THRESHOLD", "90.5")

		cfg, err := Load()
		require.NoError(t, err)
		require.True(t, decimal.RequireFromString("90.5").Equal(cfg.UtilizationThreshold))
	})

	t.Run("ignores out of range utilization threshold", func(t *testing.T) {
		setRequired(t)
		t.Setenv("ALERT_UTILIZATION_THRESHOLD", "150")

		cfg, err := Load()
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(DefaultUtilizationThreshold).Equal(cfg.UtilizationThreshold))
	})

	t.Run("enables telegram alerts", func(t *testing.T) {
		setRequired(t)
		t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")
		t.Setenv("TELEGRAM_ALERT_CHAT_ID", "-100123")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, int64(-100123), cfg.TelegramAlertChatID)
		require.True(t, cfg.TelegramAlertsEnabled())
	})

	t.Run("parses otel exporter case-insensitively", func(t *testing.T) {
		setRequired(t)
		t.Setenv("OTEL_EXPORTER", "OTLP-GRPC")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, ExporterOTLPGRPC, cfg.OTelExporter)
	})

	t.Run("ignores unknown otel exporter", func(t *testing.T) {
		setRequired(t)
		t.Setenv("OTEL_EXPORTER", "zipkin")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, ExporterNone, cfg.OTelExporter)
	})

	t.Run("parses JWT expiry hours", func(t *testing.T) {
		setRequired(t)
		t.Setenv("JWT_EXPIRATION_HOURS", "2")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	})
}

func TestLoad_Validation(t *testing.T) {
	t.Run("fails when DATABASE_URL is missing", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("JWT_SECRET_KEY", "secret")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "DATABASE_URL is required")
	})

	t.Run("fails when JWT_SECRET_KEY is missing", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/test")
		t.Setenv("JWT_SECRET_KEY", "")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "JWT_SECRET_KEY is required")
	})

	t.Run("fails when telegram token has no chat", func(t *testing.T) {
		setRequired(t)
		t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")
		t.Setenv("TELEGRAM_ALERT_CHAT_ID", "")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "TELEGRAM_ALERT_CHAT_ID")
	})

	t.Run("fails with multiple validation errors", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("JWT_SECRET_KEY", "")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "DATABASE_URL is required")
		require.Contains(t, err.Error(), "JWT_SECRET_KEY is required")
	})
}
