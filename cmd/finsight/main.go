package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finsight/internal/cli"
	apphttp "finsight/internal/http"
	"finsight/internal/log"
	"finsight/internal/services"
)

// amqpStartupBudget bounds how long the API waits for the broker before
// serving without asynchronous insights.
const amqpStartupBudget = 15 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	res, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to open storage", log.FieldError, err.Error(), log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close storage", log.FieldError, err.Error())
		}
	}()

	var publisher services.InsightPublisher
	amqpClient, err := cli.ConnectAMQP(ctx, logger, cfg, amqpStartupBudget)
	if err != nil {
		logger.Warn("AMQP unavailable, asynchronous insight requests disabled", log.FieldError, err.Error())
	} else if amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	svc := cli.NewServices(res.Store, cfg, logger, publisher)
	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.OptionsFromConfig(cfg, logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting finsight server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
