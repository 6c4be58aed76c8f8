// Package memory is an in-process store used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"finsight/internal/core"
	"finsight/internal/storage"
)

type ownerMonth struct {
	owner string
	month string
}

type Store struct {
	mu        sync.RWMutex
	txns      map[string]core.Transaction
	budgets   map[ownerMonth]core.Budget
	summaries map[ownerMonth]core.MonthlySummary
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		txns:      make(map[string]core.Transaction),
		budgets:   make(map[ownerMonth]core.Budget),
		summaries: make(map[ownerMonth]core.MonthlySummary),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) InsertTransactions(_ context.Context, txns []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range txns {
		s.txns[t.ID] = t
	}
	return nil
}

func (s *Store) GetTransaction(_ context.Context, owner, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txns[id]
	if !ok || t.Owner != owner {
		return core.Transaction{}, storage.NotFound("transaction", id)
	}
	return t, nil
}

func (s *Store) ListTransactions(_ context.Context, owner string, f storage.TransactionFilter) (storage.TransactionPage, error) {
	f = f.Normalize()

	s.mu.RLock()
	var matched []core.Transaction
	for _, t := range s.txns {
		if t.Owner == owner && f.Matches(t) {
			matched = append(matched, t)
		}
	}
	s.mu.RUnlock()

	storage.SortNewestFirst(matched)

	page := storage.TransactionPage{
		Transactions: []core.Transaction{},
		Page:         f.Page,
		Limit:        f.Limit,
		Total:        len(matched),
	}
	if off := f.Offset(); off < len(matched) {
		end := off + f.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Transactions = append(page.Transactions, matched[off:end]...)
	}
	return page, nil
}

func (s *Store) TransactionsBetween(_ context.Context, owner string, from, to time.Time) ([]core.Transaction, error) {
	f := storage.TransactionFilter{From: from, To: to}

	s.mu.RLock()
	out := []core.Transaction{}
	for _, t := range s.txns {
		if t.Owner == owner && f.Matches(t) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	storage.SortOldestFirst(out)
	return out, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.txns[t.ID]
	if !ok || cur.Owner != t.Owner {
		return storage.NotFound("transaction", t.ID)
	}
	t.CreatedAt = cur.CreatedAt
	t.Source = cur.Source
	s.txns[t.ID] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.txns[id]
	if !ok || cur.Owner != owner {
		return storage.NotFound("transaction", id)
	}
	delete(s.txns, id)
	return nil
}

func (s *Store) UpsertBudget(_ context.Context, b core.Budget) error {
	b.CategoryBudgets = copyAmounts(b.CategoryBudgets)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[ownerMonth{b.Owner, b.Month}] = b
	return nil
}

func (s *Store) GetBudget(_ context.Context, owner, month string) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[ownerMonth{owner, month}]
	if !ok {
		return core.Budget{}, storage.NotFound("budget", month)
	}
	b.CategoryBudgets = copyAmounts(b.CategoryBudgets)
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context, owner string) ([]core.Budget, error) {
	s.mu.RLock()
	out := []core.Budget{}
	for k, b := range s.budgets {
		if k.owner == owner {
			b.CategoryBudgets = copyAmounts(b.CategoryBudgets)
			out = append(out, b)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out, nil
}

func (s *Store) UpsertSummary(_ context.Context, sum core.MonthlySummary) error {
	sum.ByCategory = copyAmounts(sum.ByCategory)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[ownerMonth{sum.Owner, sum.Month}] = sum
	return nil
}

func (s *Store) ListSummaries(_ context.Context, owner, month string) ([]core.MonthlySummary, error) {
	s.mu.RLock()
	out := []core.MonthlySummary{}
	for k, sum := range s.summaries {
		if k.owner != owner || (month != "" && k.month != month) {
			continue
		}
		sum.ByCategory = copyAmounts(sum.ByCategory)
		out = append(out, sum)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out, nil
}

func copyAmounts(in core.CategoryAmounts) core.CategoryAmounts {
	out := core.NewCategoryAmounts()
	for c, v := range in {
		out[c] = v
	}
	return out
}
