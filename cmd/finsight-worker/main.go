package main

import (
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finsight/internal/cli"
	"finsight/internal/log"
	"finsight/internal/worker"
)

const (
	// amqpStartupBudget bounds the initial broker dial. The worker is
	// useless without a broker, so it waits longer than the API does.
	amqpStartupBudget = 2 * time.Minute
	requestTimeout    = 2 * time.Minute
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting finsight-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

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

	exporter, err := cli.NewSummaryExporter(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err.Error())
		os.Exit(1)
	}

	amqpClient, err := cli.ConnectAMQP(ctx, logger, cfg, amqpStartupBudget)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	svc := cli.NewServices(res.Store, cfg, logger, amqpClient)
	w := worker.NewInsightWorker(svc.Insights, exporter, requestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx, amqpClient)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
