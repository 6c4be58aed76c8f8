// Package cli provides the initialization shared by cmd/finsight,
// cmd/finsight-worker and cmd/finsightctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finsight/internal/amqp"
	"finsight/internal/backend"
	"finsight/internal/config"
	apphttp "finsight/internal/http"
	"finsight/internal/insight"
	"finsight/internal/log"
	"finsight/internal/services"
	"finsight/internal/sheets"
	gsheet "finsight/internal/sheets/google"
	"finsight/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from config and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	return SetupLoggerTo(cfg, component, os.Stdout)
}

// SetupLoggerTo is SetupLogger writing to out.
func SetupLoggerTo(cfg *config.Config, component string, out io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStore opens the configured storage backend.
func OpenStore(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", bcfg.Type, err)
	}
	return res, nil
}

// NewInsightGenerator wires the Gemini client into a Generator. Without an
// API key the generator always uses the local fallback.
func NewInsightGenerator(cfg *config.Config, logger *log.Logger) *insight.Generator {
	var opts []insight.GeminiOption
	if cfg.AIProviderURL != "" {
		opts = append(opts, insight.WithEndpoint(cfg.AIProviderURL))
	}
	client := insight.NewGeminiClient(cfg.AIAPIKey, opts...)

	if !client.Configured() {
		logger.Info("AI_API_KEY not set, insights use the local fallback")
	}
	return insight.NewGenerator(client,
		insight.WithTimeout(cfg.AITimeout),
		insight.WithLogger(logger.WithComponent(log.ComponentInsight)))
}

// ConnectAMQP dials the broker when AMQP_URL is set. A nil client and nil
// error mean messaging is disabled.
func ConnectAMQP(ctx context.Context, logger *log.Logger, cfg *config.Config, maxElapsed time.Duration) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP_URL not set, asynchronous insight requests disabled")
		return nil, nil
	}
	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, maxElapsed)
	if err != nil {
		return nil, err
	}
	logger.WithComponent(log.ComponentAMQP).Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client, nil
}

// NewServices wires the application services over store. publisher may be
// nil when no broker is configured.
func NewServices(store storage.Store, cfg *config.Config, logger *log.Logger, publisher services.InsightPublisher) apphttp.Services {
	dashboard := services.NewDashboardService(store, store, cfg.CacheTTL)
	return apphttp.Services{
		Transactions: services.NewTransactionService(store, dashboard),
		Budgets:      services.NewBudgetService(store, dashboard),
		Dashboard:    dashboard,
		Insights:     services.NewInsightService(store, store, NewInsightGenerator(cfg, logger), publisher),
		Store:        store,
	}
}

// NewSummaryExporter opens the Google Sheets exporter when
// GOOGLE_SPREADSHEET_ID is set. A nil exporter means export is disabled.
func NewSummaryExporter(ctx context.Context, logger *log.Logger, cfg *config.Config) (sheets.SummaryExporter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSummarySheet, cfg.GoogleCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("init google sheets: %w", err)
	}
	logger.WithComponent(log.ComponentSheets).Info("Google Sheets exporter initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSummarySheet)
	return client, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
