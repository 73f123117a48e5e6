// Package main is the entry point for the PayWatch ledger API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/yelinaung/paywatch/internal/alert"
	"gitlab.com/yelinaung/paywatch/internal/api"
	"gitlab.com/yelinaung/paywatch/internal/config"
	"gitlab.com/yelinaung/paywatch/internal/database"
	"gitlab.com/yelinaung/paywatch/internal/exchange"
	"gitlab.com/yelinaung/paywatch/internal/gemini"
	"gitlab.com/yelinaung/paywatch/internal/ledger"
	"gitlab.com/yelinaung/paywatch/internal/logger"
	"gitlab.com/yelinaung/paywatch/internal/report"
	"gitlab.com/yelinaung/paywatch/internal/repository"
	"gitlab.com/yelinaung/paywatch/internal/security"
	"gitlab.com/yelinaung/paywatch/internal/subscription"
	"gitlab.com/yelinaung/paywatch/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("paywatch %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		logger.SetJSON()
	}
	if cfg.LogFile != "" {
		closer := logger.SetFile(logger.FileOptions{Path: cfg.LogFile})
		defer func() { _ = closer.Close() }()
	}
	logger.InitHashSalt()

	if len(os.Args) > 1 && os.Args[1] == "token" {
		printToken(cfg, os.Args[2:])
		return
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter:    cfg.OTelExporter,
		ServiceName: cfg.ServiceName,
		Version:     version,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to set up telemetry")
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer flushCancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Log.Info().Msg("Database initialized successfully")

	clock := func() time.Time { return time.Now().In(cfg.Location) }

	rates := exchange.NewDailyRateCache(
		exchange.NewExchangeRateAPIClient(cfg.ExchangeRateBaseURL, cfg.ExchangeRateAPIKey, cfg.ExchangeRateTimeout),
		repository.NewExchangeRateRepository(pool),
		exchange.WithDefaultRate(cfg.DefaultExchangeRate),
		exchange.WithFetchTimeout(cfg.ExchangeRateTimeout),
		exchange.WithCacheClock(clock),
	)

	alertRepo := repository.NewAlertRepository(pool)
	var alertOpts []alert.Option
	if cfg.TelegramAlertsEnabled() {
		tg, err := alert.NewTelegramBot(cfg.TelegramBotToken)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to create Telegram notifier")
		}
		alertOpts = append(alertOpts, alert.WithNotifier(alert.NewTelegramNotifier(tg, cfg.TelegramAlertChatID)))
	}
	alerts := alert.NewService(alertRepo, cfg.UtilizationThreshold, alertOpts...)

	engineOpts := []ledger.Option{
		ledger.WithClock(clock),
		ledger.WithObserver(alerts),
	}
	if cfg.GeminiAPIKey != "" {
		suggester, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		engineOpts = append(engineOpts, ledger.WithCategorySuggester(suggester))
	}
	engine := ledger.NewEngine(ledger.NewPostgresGateway(pool), rates, engineOpts...)

	reports := report.NewService(repository.NewTransactionRepository(pool),
		report.WithLedger(engine),
		report.WithClock(clock),
	)
	subs := subscription.NewService(repository.NewSubscriptionRepository(pool), engine,
		subscription.WithClock(clock),
	)

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(api.Config{
		JWTSecret:   cfg.JWTSecret,
		FrontendURL: cfg.FrontendURL,
		Location:    cfg.Location,
		Now:         clock,
	}, engine, rates, reports, alerts, subs)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Log.Info().Msg("Shutting down...")
		cancel()
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
	}()

	logger.Log.Info().Str("addr", cfg.HTTPAddr).Str("version", version).Msg("HTTP server listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Error().Err(err).Msg("HTTP server failed")
	}
}

// printToken issues a bearer token for a user ID, for local use.
func printToken(cfg *config.Config, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: paywatch token <user_id>")
		os.Exit(2)
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		fmt.Fprintln(os.Stderr, "user_id must be a positive integer")
		os.Exit(2)
	}
	token, err := security.GenerateToken(cfg.JWTSecret, userID, cfg.JWTExpiry)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to sign token")
	}
	fmt.Println(token)
}
