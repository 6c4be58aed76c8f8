package storage

import (
	"context"
	"sort"
	"time"

	"finsight/internal/core"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// TransactionFilter narrows a transaction listing. From is inclusive and To
// exclusive; zero values disable the bound.
type TransactionFilter struct {
	From     time.Time
	To       time.Time
	Category core.Category
	Page     int
	Limit    int
}

// Normalize applies paging defaults.
func (f TransactionFilter) Normalize() TransactionFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

func (f TransactionFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Matches reports whether tx passes the date and category bounds.
func (f TransactionFilter) Matches(tx core.Transaction) bool {
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !tx.Date.Before(f.To) {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	return true
}

type TransactionPage struct {
	Transactions []core.Transaction `json:"transactions"`
	Page         int                `json:"page"`
	Limit        int                `json:"limit"`
	Total        int                `json:"total"`
}

// Pages is the number of pages needed for Total at Limit per page.
func (p TransactionPage) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// Ports for outbound adapters. Every method is scoped to one owner; a
// record belonging to someone else is reported as core.ErrNotFound.
type (
	TransactionStore interface {
		// InsertTransactions stores all of txns or none of them.
		InsertTransactions(ctx context.Context, txns []core.Transaction) error
		GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error)
		// ListTransactions returns newest first.
		ListTransactions(ctx context.Context, owner string, f TransactionFilter) (TransactionPage, error)
		// TransactionsBetween returns transactions in [from, to), oldest first.
		TransactionsBetween(ctx context.Context, owner string, from, to time.Time) ([]core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, owner, id string) error
	}

	BudgetStore interface {
		// UpsertBudget replaces any budget for the same owner and month.
		UpsertBudget(ctx context.Context, b core.Budget) error
		GetBudget(ctx context.Context, owner, month string) (core.Budget, error)
		// ListBudgets returns newest month first.
		ListBudgets(ctx context.Context, owner string) ([]core.Budget, error)
	}

	SummaryStore interface {
		// UpsertSummary replaces any summary for the same owner and month.
		UpsertSummary(ctx context.Context, s core.MonthlySummary) error
		// ListSummaries returns newest month first; month filters when set.
		ListSummaries(ctx context.Context, owner, month string) ([]core.MonthlySummary, error)
	}

	Store interface {
		TransactionStore
		BudgetStore
		SummaryStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// SortNewestFirst orders by date descending, then creation time descending,
// then id so listings are stable.
func SortNewestFirst(txns []core.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		a, b := txns[i], txns[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// SortOldestFirst is the ascending counterpart of SortNewestFirst.
func SortOldestFirst(txns []core.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		a, b := txns[i], txns[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// NotFound builds the error stores return for a missed lookup.
func NotFound(resource, key string) error {
	return &core.NotFoundError{Resource: resource, Key: key}
}
