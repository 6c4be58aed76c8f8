package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/core"
	"finsight/internal/ingest"
	"finsight/internal/storage"
	"finsight/internal/storage/memory"
)

type recordingInvalidator struct {
	mu     sync.Mutex
	owners []string
}

func (r *recordingInvalidator) Invalidate(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners = append(r.owners, owner)
}

func amountOf(v float64) *float64 { return &v }

func newTransactionService(t *testing.T) (*TransactionService, *memory.Store, *recordingInvalidator) {
	t.Helper()
	store := memory.New()
	inv := &recordingInvalidator{}
	svc := NewTransactionService(store, inv)
	svc.now = func() time.Time { return time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC) }
	return svc, store, inv
}

func TestTransactionServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc, store, inv := newTransactionService(t)

	t.Run("classifies blank category", func(t *testing.T) {
		got, err := svc.Create(ctx, "u1", TransactionInput{Date: "1/5/2025", Description: "  Uber ride  ", Amount: amountOf(22.1)})
		require.NoError(t, err)
		assert.Equal(t, core.Transport, got.Category)
		assert.Equal(t, "Uber ride", got.Description)
		assert.Equal(t, core.SourceManual, got.Source)
		assert.NotEmpty(t, got.ID)

		stored, err := store.GetTransaction(ctx, "u1", got.ID)
		require.NoError(t, err)
		assert.Equal(t, got.Amount, stored.Amount)
		assert.Contains(t, inv.owners, "u1")
	})

	t.Run("keeps explicit category", func(t *testing.T) {
		got, err := svc.Create(ctx, "u1", TransactionInput{Date: "2025-01-05", Description: "Uber ride", Amount: amountOf(5), Category: "Entertainment"})
		require.NoError(t, err)
		assert.Equal(t, core.Entertainment, got.Category)
	})

	for name, in := range map[string]TransactionInput{
		"bad date":          {Date: "2025-02-30", Description: "x", Amount: amountOf(1)},
		"unknown category":  {Date: "2025-01-01", Description: "x", Amount: amountOf(1), Category: "luxury"},
		"blank description": {Date: "2025-01-01", Description: "   ", Amount: amountOf(1)},
		"negative amount":   {Date: "2025-01-01", Description: "x", Amount: amountOf(-1)},
		"long description":  {Date: "2025-01-01", Description: strings.Repeat("a", 201), Amount: amountOf(1)},
		"missing amount":    {Date: "2025-01-05", Description: "Lunch"},
		"missing date":      {Description: "Lunch", Amount: amountOf(3)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, "u1", in)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}

	t.Run("missing amount is not stored", func(t *testing.T) {
		svc, store, _ := newTransactionService(t)
		_, err := svc.Create(ctx, "u1", TransactionInput{Date: "2025-01-05", Description: "Lunch"})
		require.Error(t, err)
		assert.Equal(t, "Please provide date, description, and amount.", err.Error())

		page, err := store.ListTransactions(ctx, "u1", storage.TransactionFilter{})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
	})

	t.Run("explicit zero amount", func(t *testing.T) {
		got, err := svc.Create(ctx, "u1", TransactionInput{Date: "2025-01-05", Description: "Free sample", Amount: amountOf(0)})
		require.NoError(t, err)
		assert.Zero(t, got.Amount)
	})
}

const mixedCSV = `date,description,amount,category
2025-01-03,Starbucks Coffee,4.50,
2025-01-04,Netflix,,
1/5/2025,Uber ride,22.10,
2025-01-06,Electric company,80,Utilities
2025-01-07,Some Store,12.00,
`

func TestTransactionServiceImport(t *testing.T) {
	ctx := context.Background()
	svc, store, inv := newTransactionService(t)

	res, err := svc.Import(ctx, "u1", strings.NewReader(mixedCSV))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Imported)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Equal(t, []string{"u1"}, inv.owners)

	page, err := store.ListTransactions(ctx, "u1", storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	for _, tx := range page.Transactions {
		assert.Equal(t, core.SourceImported, tx.Source)
		assert.NotEmpty(t, tx.ID)
	}
}

func TestTransactionServiceImportNoValidRows(t *testing.T) {
	ctx := context.Background()
	svc, _, inv := newTransactionService(t)

	res, err := svc.Import(ctx, "u1", strings.NewReader("date,description,amount\n2025-01-01,Lunch,abc\n"))
	require.Error(t, err)
	assert.True(t, IsNoValidRows(err))
	require.NotNil(t, res)
	require.Len(t, res.Errors, 1)
	assert.Empty(t, inv.owners)

	res, err = svc.Import(ctx, "u1", strings.NewReader("date,description,amount\n"))
	assert.ErrorIs(t, err, ingest.ErrNoValidRows)
	assert.Empty(t, res.Errors)
	assert.NotNil(t, res.Errors)
}

func TestTransactionServiceImportEmptyFile(t *testing.T) {
	svc, _, _ := newTransactionService(t)
	_, err := svc.Import(context.Background(), "u1", strings.NewReader(""))

	var batch *core.BatchParseError
	assert.ErrorAs(t, err, &batch)
}

func TestTransactionServiceUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTransactionService(t)
	created, err := svc.Create(ctx, "u1", TransactionInput{Date: "2025-01-05", Description: "Lunch", Amount: amountOf(10)})
	require.NoError(t, err)

	amount := 12.5
	category := "shopping"
	got, err := svc.Update(ctx, "u1", created.ID, TransactionUpdate{Amount: &amount, Category: &category})
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.Amount)
	assert.Equal(t, core.Shopping, got.Category)
	assert.Equal(t, "Lunch", got.Description, "unsupplied fields are kept")
	assert.True(t, created.Date.Equal(got.Date))

	_, err = svc.Update(ctx, "u1", created.ID, TransactionUpdate{})
	assert.ErrorIs(t, err, core.ErrValidation)

	bad := "13/45/2025"
	_, err = svc.Update(ctx, "u1", created.ID, TransactionUpdate{Date: &bad})
	assert.ErrorIs(t, err, core.ErrInvalidDate)

	_, err = svc.Update(ctx, "u2", created.ID, TransactionUpdate{Amount: &amount})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTransactionServiceListAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTransactionService(t)
	_, err := svc.Import(ctx, "u1", strings.NewReader(mixedCSV))
	require.NoError(t, err)

	page, err := svc.List(ctx, "u1", storage.TransactionFilter{Category: core.Food})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)

	_, err = svc.List(ctx, "u1", storage.TransactionFilter{Category: "luxury"})
	assert.ErrorIs(t, err, core.ErrValidation)

	require.NoError(t, svc.Delete(ctx, "u1", page.Transactions[0].ID))
	assert.ErrorIs(t, svc.Delete(ctx, "u1", page.Transactions[0].ID), core.ErrNotFound)
}

func ptr[T any](v T) *T { return &v }

func TestBudgetService(t *testing.T) {
	ctx := context.Background()
	inv := &recordingInvalidator{}
	svc := NewBudgetService(memory.New(), inv)

	_, err := svc.Upsert(ctx, "u1", BudgetInput{Month: "2025-01"})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.Upsert(ctx, "u1", BudgetInput{Month: "2025-1", TotalBudget: ptr(100.0)})
	assert.ErrorIs(t, err, core.ErrInvalidMonth)

	_, err = svc.Upsert(ctx, "u1", BudgetInput{Month: "2025-01", TotalBudget: ptr(100.0), CategoryBudgets: map[string]float64{"luxury": 5}})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.Upsert(ctx, "u1", BudgetInput{Month: "2025-01", TotalBudget: ptr(100.0), CategoryBudgets: map[string]float64{"food": -5}})
	assert.ErrorIs(t, err, core.ErrValidation)

	saved, err := svc.Upsert(ctx, "u1", BudgetInput{Month: "2025-01", TotalBudget: ptr(1000.0), CategoryBudgets: map[string]float64{"Food": 100}})
	require.NoError(t, err)
	assert.Len(t, saved.CategoryBudgets, len(core.Categories))
	assert.Equal(t, []string{"u1"}, inv.owners)

	got, err := svc.Get(ctx, "u1", "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.CategoryBudgets[core.Food])
	for _, c := range core.Categories {
		if c != core.Food {
			assert.Zero(t, got.CategoryBudgets[c], c)
		}
	}

	_, err = svc.Get(ctx, "u1", "2025-02")
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDashboardService(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	dash := NewDashboardService(store, store, time.Minute)
	txns := NewTransactionService(store, dash)
	budgets := NewBudgetService(store, dash)

	_, err := txns.Import(ctx, "u1", strings.NewReader(mixedCSV))
	require.NoError(t, err)

	sum, err := dash.Summary(ctx, "u1", "2025-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-01", sum.Month)
	assert.Equal(t, 4, sum.TransactionCount)
	assert.InDelta(t, 118.6, sum.TotalSpending, 1e-9)
	assert.Nil(t, sum.BudgetStatus)

	_, err = budgets.Upsert(ctx, "u1", BudgetInput{Month: "2025-01", TotalBudget: ptr(150.0), CategoryBudgets: map[string]float64{"utilities": 100}})
	require.NoError(t, err)

	sum, err = dash.Summary(ctx, "u1", "2025-01")
	require.NoError(t, err)
	require.NotNil(t, sum.BudgetStatus, "budget write must invalidate the cached summary")
	require.NotNil(t, sum.BudgetStatus.Overall)
	assert.Equal(t, 79, sum.BudgetStatus.Overall.Percentage)
	assert.Equal(t, 80, sum.BudgetStatus.Categories[core.Utilities].Percentage)

	_, err = txns.Create(ctx, "u1", TransactionInput{Date: "2025-01-20", Description: "Rent", Amount: amountOf(500)})
	require.NoError(t, err)
	sum, err = dash.Summary(ctx, "u1", "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 5, sum.TransactionCount)

	year, err := dash.Yearly(ctx, "u1", 2025)
	require.NoError(t, err)
	require.Len(t, year.MonthlyData, 12)
	assert.InDelta(t, 618.6, year.MonthlyData[0].Amount, 1e-9)

	_, err = dash.Summary(ctx, "u1", "bad")
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = dash.Yearly(ctx, "u1", 0)
	assert.ErrorIs(t, err, core.ErrValidation)
}

// interleavingStore runs onLoad once, between the dashboard's cache miss and
// its cache write, the way a concurrent write would.
type interleavingStore struct {
	*memory.Store
	loads  int
	onLoad func()
}

func (s *interleavingStore) TransactionsBetween(ctx context.Context, owner string, from, to time.Time) ([]core.Transaction, error) {
	s.loads++
	txns, err := s.Store.TransactionsBetween(ctx, owner, from, to)
	if s.onLoad != nil {
		hook := s.onLoad
		s.onLoad = nil
		hook()
	}
	return txns, err
}

func TestDashboardServiceSkipsCacheAfterConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	store := &interleavingStore{Store: memory.New()}
	dash := NewDashboardService(store, store, time.Minute)
	txns := NewTransactionService(store, dash)

	store.onLoad = func() {
		_, err := txns.Create(ctx, "u1", TransactionInput{Date: "2025-01-10", Description: "Lunch", Amount: amountOf(12)})
		require.NoError(t, err)
	}
	stale, err := dash.Summary(ctx, "u1", "2025-01")
	require.NoError(t, err)
	assert.Zero(t, stale.TransactionCount)

	fresh, err := dash.Summary(ctx, "u1", "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TransactionCount)
	assert.Equal(t, 2, store.loads)

	_, err = dash.Summary(ctx, "u1", "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 2, store.loads, "an undisturbed load is cached")

	store.onLoad = func() { dash.Invalidate("u1") }
	_, err = dash.Yearly(ctx, "u1", 2025)
	require.NoError(t, err)
	_, err = dash.Yearly(ctx, "u1", 2025)
	require.NoError(t, err)
	assert.Equal(t, 4, store.loads)
}

type stubGenerator struct {
	calls int
	got   []core.Transaction
}

func (s *stubGenerator) Generate(_ context.Context, month string, txns []core.Transaction) core.Insight {
	s.calls++
	s.got = txns
	return core.Insight{
		Summary:       "summary for " + month,
		TopCategories: []core.TopCategory{},
		Suggestions:   []string{"save"},
		Source:        core.InsightFallback,
	}
}

type stubPublisher struct {
	err   error
	calls []string
}

func (p *stubPublisher) PublishInsightRequest(_ context.Context, owner, month string) error {
	p.calls = append(p.calls, owner+"/"+month)
	return p.err
}

func TestInsightServiceAnalyze(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	txns := NewTransactionService(store, nil)
	_, err := txns.Import(ctx, "u1", strings.NewReader(mixedCSV))
	require.NoError(t, err)
	_, err = txns.Create(ctx, "u1", TransactionInput{Date: "2025-02-01", Description: "Lunch", Amount: amountOf(9)})
	require.NoError(t, err)

	gen := &stubGenerator{}
	svc := NewInsightService(store, store, gen, nil)

	_, err = svc.Summaries(ctx, "u1", "2025-01")
	assert.ErrorIs(t, err, core.ErrNotFound)

	sum, err := svc.Analyze(ctx, "u1", "2025-01")
	require.NoError(t, err)
	assert.Len(t, gen.got, 4, "only the requested month is analysed")
	assert.Equal(t, "summary for 2025-01", sum.Summary)
	assert.InDelta(t, 118.6, sum.TotalSpending, 1e-9)
	assert.Len(t, sum.ByCategory, len(core.Categories))

	_, err = svc.Analyze(ctx, "u1", "2025-01")
	require.NoError(t, err)

	list, err := svc.Summaries(ctx, "u1", "2025-01")
	require.NoError(t, err)
	assert.Len(t, list, 1, "regeneration overwrites")

	all, err := svc.Summaries(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = svc.Analyze(ctx, "u1", "2025-00")
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
	assert.Equal(t, 2, gen.calls)
}

func TestInsightServiceRequestAnalysis(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	svc := NewInsightService(store, store, &stubGenerator{}, nil)
	assert.ErrorIs(t, svc.RequestAnalysis(ctx, "u1", "2025-01"), ErrQueueUnavailable)

	pub := &stubPublisher{}
	svc = NewInsightService(store, store, &stubGenerator{}, pub)
	require.NoError(t, svc.RequestAnalysis(ctx, "u1", "2025-01"))
	assert.Equal(t, []string{"u1/2025-01"}, pub.calls)

	assert.ErrorIs(t, svc.RequestAnalysis(ctx, "u1", "Jan"), core.ErrInvalidMonth)

	pub.err = errors.New("broker down")
	err := svc.RequestAnalysis(ctx, "u1", "2025-01")
	var ext *core.ExternalServiceError
	assert.ErrorAs(t, err, &ext)
}
