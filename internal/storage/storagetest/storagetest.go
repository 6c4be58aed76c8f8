// Package storagetest holds behaviour tests shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/core"
	"finsight/internal/storage"
)

// Run exercises newStore against the storage contract. newStore must return
// an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("TransactionLifecycle", func(t *testing.T) { testTransactionLifecycle(t, newStore(t)) })
	t.Run("ListFiltersAndPaging", func(t *testing.T) { testListFiltersAndPaging(t, newStore(t)) })
	t.Run("TransactionsBetween", func(t *testing.T) { testTransactionsBetween(t, newStore(t)) })
	t.Run("OwnerIsolation", func(t *testing.T) { testOwnerIsolation(t, newStore(t)) })
	t.Run("BudgetUpsert", func(t *testing.T) { testBudgetUpsert(t, newStore(t)) })
	t.Run("SummaryUpsert", func(t *testing.T) { testSummaryUpsert(t, newStore(t)) })
}

var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func txn(owner, id, date string, amount float64, c core.Category) core.Transaction {
	return core.Transaction{
		ID:          id,
		Owner:       owner,
		Date:        day(date),
		Description: "txn " + id,
		Amount:      amount,
		Category:    c,
		Source:      core.SourceManual,
		CreatedAt:   base,
		UpdatedAt:   base,
	}
}

func testTransactionLifecycle(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.InsertTransactions(ctx, []core.Transaction{txn("u1", "a", "2025-01-05", 10.5, core.Food)}))

	got, err := s.GetTransaction(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, "txn a", got.Description)
	assert.Equal(t, 10.5, got.Amount)
	assert.True(t, day("2025-01-05").Equal(got.Date))
	assert.Equal(t, core.SourceManual, got.Source)

	got.Amount = 20
	got.Category = core.Shopping
	got.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.UpdateTransaction(ctx, got))

	again, err := s.GetTransaction(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, 20.0, again.Amount)
	assert.Equal(t, core.Shopping, again.Category)

	require.NoError(t, s.DeleteTransaction(ctx, "u1", "a"))
	_, err = s.GetTransaction(ctx, "u1", "a")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "u1", "a"), core.ErrNotFound)
}

func testListFiltersAndPaging(t *testing.T, s storage.Store) {
	ctx := context.Background()
	var txns []core.Transaction
	for i := 1; i <= 7; i++ {
		c := core.Food
		if i%2 == 0 {
			c = core.Rent
		}
		txns = append(txns, txn("u1", fmt.Sprintf("t%d", i), fmt.Sprintf("2025-01-%02d", i), float64(i), c))
	}
	require.NoError(t, s.InsertTransactions(ctx, txns))

	page, err := s.ListTransactions(ctx, "u1", storage.TransactionFilter{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, 3, page.Pages())
	require.Len(t, page.Transactions, 3)
	assert.Equal(t, "t7", page.Transactions[0].ID)
	assert.Equal(t, "t5", page.Transactions[2].ID)

	page, err = s.ListTransactions(ctx, "u1", storage.TransactionFilter{Limit: 3, Page: 3})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "t1", page.Transactions[0].ID)

	page, err = s.ListTransactions(ctx, "u1", storage.TransactionFilter{
		From:     day("2025-01-02"),
		To:       day("2025-01-06"),
		Category: core.Rent,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, storage.DefaultPageLimit, page.Limit)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, "t4", page.Transactions[0].ID)
	assert.Equal(t, "t2", page.Transactions[1].ID)
}

func testTransactionsBetween(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertTransactions(ctx, []core.Transaction{
		txn("u1", "dec", "2024-12-31", 1, core.Food),
		txn("u1", "jan-late", "2025-01-31", 2, core.Food),
		txn("u1", "jan-early", "2025-01-01", 3, core.Food),
		txn("u1", "feb", "2025-02-01", 4, core.Food),
	}))

	from, to := core.Month{Year: 2025, Month: time.January}.Range()
	got, err := s.TransactionsBetween(ctx, "u1", from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "jan-early", got[0].ID)
	assert.Equal(t, "jan-late", got[1].ID)

	got, err = s.TransactionsBetween(ctx, "u2", from, to)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testOwnerIsolation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertTransactions(ctx, []core.Transaction{txn("u1", "mine", "2025-01-01", 1, core.Food)}))

	_, err := s.GetTransaction(ctx, "u2", "mine")
	assert.ErrorIs(t, err, core.ErrNotFound)

	stolen := txn("u2", "mine", "2025-01-01", 999, core.Food)
	assert.ErrorIs(t, s.UpdateTransaction(ctx, stolen), core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "u2", "mine"), core.ErrNotFound)

	page, err := s.ListTransactions(ctx, "u2", storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Transactions)

	kept, err := s.GetTransaction(ctx, "u1", "mine")
	require.NoError(t, err)
	assert.Equal(t, 1.0, kept.Amount)
}

func testBudgetUpsert(t *testing.T, s storage.Store) {
	ctx := context.Background()

	_, err := s.GetBudget(ctx, "u1", "2025-01")
	assert.ErrorIs(t, err, core.ErrNotFound)

	first := core.NewBudget("u1", "2025-01", 1000, map[core.Category]float64{core.Food: 100, core.Rent: 500})
	first.UpdatedAt = base
	require.NoError(t, s.UpsertBudget(ctx, first))

	second := core.NewBudget("u1", "2025-01", 800, map[core.Category]float64{core.Food: 150})
	second.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, s.UpsertBudget(ctx, second))
	// retrying the same write converges on the same row
	require.NoError(t, s.UpsertBudget(ctx, second))

	got, err := s.GetBudget(ctx, "u1", "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 800.0, got.TotalBudget)
	require.Len(t, got.CategoryBudgets, len(core.Categories))
	assert.Equal(t, 150.0, got.CategoryBudgets[core.Food])
	assert.Equal(t, 0.0, got.CategoryBudgets[core.Rent], "upsert replaces the whole record")

	older := core.NewBudget("u1", "2024-12", 100, nil)
	require.NoError(t, s.UpsertBudget(ctx, older))
	require.NoError(t, s.UpsertBudget(ctx, core.NewBudget("u2", "2025-03", 5, nil)))

	list, err := s.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2025-01", list[0].Month)
	assert.Equal(t, "2024-12", list[1].Month)
}

func testSummaryUpsert(t *testing.T, s storage.Store) {
	ctx := context.Background()

	sum := core.MonthlySummary{
		Owner:         "u1",
		Month:         "2025-01",
		TotalSpending: 100,
		ByCategory:    core.CategoryAmounts{core.Food: 100}.Fill(),
		Summary:       "first",
		Insight: core.Insight{
			Summary:       "first",
			TopCategories: []core.TopCategory{{Category: core.Food, Amount: 100, Percent: 100}},
			Suggestions:   []string{"cook"},
			SavingsGoal:   10,
			Source:        core.InsightFallback,
		},
		UpdatedAt: base,
	}
	require.NoError(t, s.UpsertSummary(ctx, sum))

	sum.Summary = "second"
	sum.Insight.Summary = "second"
	require.NoError(t, s.UpsertSummary(ctx, sum))

	other := sum
	other.Month = "2025-02"
	require.NoError(t, s.UpsertSummary(ctx, other))

	got, err := s.ListSummaries(ctx, "u1", "2025-01")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].Summary)
	assert.Equal(t, 100.0, got[0].ByCategory[core.Food])
	assert.Len(t, got[0].ByCategory, len(core.Categories))
	assert.Equal(t, []string{"cook"}, got[0].Insight.Suggestions)
	assert.Equal(t, core.InsightFallback, got[0].Insight.Source)

	all, err := s.ListSummaries(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2025-02", all[0].Month)

	none, err := s.ListSummaries(ctx, "u2", "2025-01")
	require.NoError(t, err)
	assert.Empty(t, none)
}
