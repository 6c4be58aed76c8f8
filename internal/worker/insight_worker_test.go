package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/amqp"
	"finsight/internal/core"
)

type fakeAnalyzer struct {
	err      error
	requests []string
	deadline bool
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, owner, month string) (core.MonthlySummary, error) {
	_, f.deadline = ctx.Deadline()
	f.requests = append(f.requests, owner+"/"+month)
	if f.err != nil {
		return core.MonthlySummary{}, f.err
	}
	return core.MonthlySummary{Owner: owner, Month: month, Summary: "ok"}, nil
}

type fakeExporter struct {
	err      error
	exported []core.MonthlySummary
}

func (f *fakeExporter) ExportSummary(_ context.Context, sum core.MonthlySummary) error {
	f.exported = append(f.exported, sum)
	return f.err
}

type fakeConsumer struct {
	msgs []*amqp.InsightRequestMessage
	errs []error
}

func (f *fakeConsumer) ConsumeInsightRequests(ctx context.Context, handler func(context.Context, *amqp.InsightRequestMessage) error) error {
	for _, m := range f.msgs {
		f.errs = append(f.errs, handler(ctx, m))
	}
	return context.Canceled
}

func TestHandleInsightRequest(t *testing.T) {
	an := &fakeAnalyzer{}
	ex := &fakeExporter{}
	w := NewInsightWorker(an, ex, time.Minute)

	require.NoError(t, w.HandleInsightRequest(context.Background(), amqp.NewInsightRequestMessage("u1", "2025-01")))
	assert.Equal(t, []string{"u1/2025-01"}, an.requests)
	assert.True(t, an.deadline)
	require.Len(t, ex.exported, 1)
	assert.Equal(t, "ok", ex.exported[0].Summary)
}

func TestHandleInsightRequestAnalyzeFailure(t *testing.T) {
	an := &fakeAnalyzer{err: errors.New("store down")}
	ex := &fakeExporter{}
	w := NewInsightWorker(an, ex, 0)

	err := w.HandleInsightRequest(context.Background(), amqp.NewInsightRequestMessage("u1", "2025-01"))
	assert.ErrorContains(t, err, "store down")
	assert.False(t, an.deadline)
	assert.Empty(t, ex.exported)
}

func TestHandleInsightRequestExportFailureIsNotFatal(t *testing.T) {
	w := NewInsightWorker(&fakeAnalyzer{}, &fakeExporter{err: errors.New("quota")}, time.Minute)
	assert.NoError(t, w.HandleInsightRequest(context.Background(), amqp.NewInsightRequestMessage("u1", "2025-01")))
}

func TestHandleInsightRequestWithoutExporter(t *testing.T) {
	an := &fakeAnalyzer{}
	w := NewInsightWorker(an, nil, time.Minute)
	assert.NoError(t, w.HandleInsightRequest(context.Background(), amqp.NewInsightRequestMessage("u1", "2025-01")))
	assert.Len(t, an.requests, 1)
}

func TestRunStopsCleanly(t *testing.T) {
	c := &fakeConsumer{msgs: []*amqp.InsightRequestMessage{
		amqp.NewInsightRequestMessage("u1", "2025-01"),
		amqp.NewInsightRequestMessage("u2", "2025-02"),
	}}
	an := &fakeAnalyzer{}
	w := NewInsightWorker(an, nil, time.Minute)

	assert.NoError(t, w.Run(context.Background(), c))
	assert.Equal(t, []string{"u1/2025-01", "u2/2025-02"}, an.requests)
	assert.Equal(t, []error{nil, nil}, c.errs)
}
