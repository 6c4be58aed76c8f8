package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finsight/internal/analytics"
	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/storage"
)

// ErrQueueUnavailable is returned when asynchronous analysis is requested
// but no message broker is configured.
var ErrQueueUnavailable = errors.New("insight queue not configured")

// InsightGenerator produces an insight for one month of transactions. It
// never fails; provider problems resolve to a fallback insight.
type InsightGenerator interface {
	Generate(ctx context.Context, month string, txns []core.Transaction) core.Insight
}

// InsightPublisher queues analysis for a background worker.
type InsightPublisher interface {
	PublishInsightRequest(ctx context.Context, owner, month string) error
}

type InsightService struct {
	txns      storage.TransactionStore
	summaries storage.SummaryStore
	generator InsightGenerator
	publisher InsightPublisher
	now       func() time.Time
}

// NewInsightService wires the insight pipeline. publisher may be nil, in
// which case RequestAnalysis reports ErrQueueUnavailable.
func NewInsightService(txns storage.TransactionStore, summaries storage.SummaryStore, generator InsightGenerator, publisher InsightPublisher) *InsightService {
	return &InsightService{
		txns:      txns,
		summaries: summaries,
		generator: generator,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Analyze generates the insight for owner and month and stores it,
// replacing any previous summary for the same month.
func (s *InsightService) Analyze(ctx context.Context, owner, month string) (core.MonthlySummary, error) {
	m, err := core.ParseMonth(month)
	if err != nil {
		return core.MonthlySummary{}, err
	}

	from, to := m.Range()
	txns, err := s.txns.TransactionsBetween(ctx, owner, from, to)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("load transactions: %w", err)
	}

	ins := s.generator.Generate(ctx, m.String(), txns)
	agg := analytics.Summarize(txns)

	sum := core.MonthlySummary{
		Owner:         owner,
		Month:         m.String(),
		TotalSpending: agg.TotalSpending,
		ByCategory:    agg.ByCategory,
		Summary:       ins.Summary,
		Insight:       ins,
		UpdatedAt:     s.now(),
	}
	if err := s.summaries.UpsertSummary(ctx, sum); err != nil {
		return core.MonthlySummary{}, fmt.Errorf("save summary: %w", err)
	}

	log.FromContext(ctx).WithComponent(log.ComponentInsight).InfoContext(ctx, "Insight generated",
		log.FieldOwner, owner,
		log.FieldMonth, sum.Month,
		log.FieldInsightSrc, string(ins.Source),
		log.FieldAmount, sum.TotalSpending)
	return sum, nil
}

// Summaries lists stored summaries, newest month first. When month is set
// and nothing is stored for it the result is a not-found error.
func (s *InsightService) Summaries(ctx context.Context, owner, month string) ([]core.MonthlySummary, error) {
	if month != "" {
		m, err := core.ParseMonth(month)
		if err != nil {
			return nil, err
		}
		month = m.String()
	}

	out, err := s.summaries.ListSummaries(ctx, owner, month)
	if err != nil {
		return nil, err
	}
	if month != "" && len(out) == 0 {
		return nil, storage.NotFound("summary", month)
	}
	return out, nil
}

// RequestAnalysis queues Analyze for a background worker.
func (s *InsightService) RequestAnalysis(ctx context.Context, owner, month string) error {
	m, err := core.ParseMonth(month)
	if err != nil {
		return err
	}
	if s.publisher == nil {
		log.FromContext(ctx).WithComponent(log.ComponentInsight).WarnContext(ctx, "AMQP client not available, cannot queue insight request",
			log.FieldOwner, owner,
			log.FieldMonth, m.String())
		return ErrQueueUnavailable
	}
	if err := s.publisher.PublishInsightRequest(ctx, owner, m.String()); err != nil {
		return &core.ExternalServiceError{Op: "queue insight request", Err: err}
	}
	return nil
}
