// Package worker processes queued insight requests outside the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finsight/internal/amqp"
	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/sheets"
)

// Analyzer generates and stores the summary for one owner and month.
type Analyzer interface {
	Analyze(ctx context.Context, owner, month string) (core.MonthlySummary, error)
}

// Consumer delivers queued insight requests to a handler until ctx ends.
type Consumer interface {
	ConsumeInsightRequests(ctx context.Context, handler func(context.Context, *amqp.InsightRequestMessage) error) error
}

type InsightWorker struct {
	analyzer Analyzer
	exporter sheets.SummaryExporter
	timeout  time.Duration
}

// NewInsightWorker builds a worker. exporter may be nil, in which case
// summaries are only stored. timeout bounds one request end to end.
func NewInsightWorker(analyzer Analyzer, exporter sheets.SummaryExporter, timeout time.Duration) *InsightWorker {
	return &InsightWorker{
		analyzer: analyzer,
		exporter: exporter,
		timeout:  timeout,
	}
}

// Run consumes until ctx is cancelled. A cancelled context is a clean stop.
func (w *InsightWorker) Run(ctx context.Context, consumer Consumer) error {
	err := consumer.ConsumeInsightRequests(ctx, w.HandleInsightRequest)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleInsightRequest regenerates the requested summary. Export failures
// are logged and do not fail the message because the summary is already
// stored.
func (w *InsightWorker) HandleInsightRequest(ctx context.Context, msg *amqp.InsightRequestMessage) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	slog.InfoContext(ctx, "Processing insight request",
		log.FieldComponent, log.ComponentWorker,
		log.FieldRequestID, msg.RequestID,
		log.FieldOwner, msg.Owner,
		log.FieldMonth, msg.Month)

	sum, err := w.analyzer.Analyze(ctx, msg.Owner, msg.Month)
	if err != nil {
		return fmt.Errorf("analyze %s/%s: %w", msg.Owner, msg.Month, err)
	}

	if w.exporter == nil {
		return nil
	}
	if err := w.exporter.ExportSummary(ctx, sum); err != nil {
		slog.WarnContext(ctx, "Failed to export summary to sheet",
			log.FieldComponent, log.ComponentSheets,
			log.FieldRequestID, msg.RequestID,
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeExternal)
	}
	return nil
}
