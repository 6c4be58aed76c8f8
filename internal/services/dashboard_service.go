package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"finsight/internal/analytics"
	"finsight/internal/cache"
	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/storage"
)

// DashboardSummary is one month's spending report with its budget status.
type DashboardSummary struct {
	Month string `json:"month"`
	analytics.Aggregate
	BudgetStatus *analytics.BudgetStatus `json:"budgetStatus"`
}

// DashboardService builds monthly and yearly reports. Results are cached
// per owner until the owner writes a transaction or budget.
type DashboardService struct {
	txns    storage.TransactionStore
	budgets storage.BudgetStore
	monthly cache.Cache[*DashboardSummary]
	yearly  cache.Cache[*analytics.YearlyOverview]

	// generations counts invalidations per owner. A report is cached only
	// if no invalidation happened while it was being built.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewDashboardService caches reports for ttl; a zero ttl disables caching.
func NewDashboardService(txns storage.TransactionStore, budgets storage.BudgetStore, ttl time.Duration) *DashboardService {
	s := &DashboardService{
		txns:    txns,
		budgets: budgets,
		monthly: cache.Nop[*DashboardSummary]{},
		yearly:  cache.Nop[*analytics.YearlyOverview]{},

		generations: make(map[string]uint64),
	}
	if ttl > 0 {
		s.monthly = cache.NewTTLCache[*DashboardSummary](ttl, 2*ttl)
		s.yearly = cache.NewTTLCache[*analytics.YearlyOverview](ttl, 2*ttl)
	}
	return s
}

func (s *DashboardService) Summary(ctx context.Context, owner, month string) (*DashboardSummary, error) {
	m, err := core.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	key := cache.Key(owner, "summary", m.String())
	if cached, ok := s.monthly.Get(key); ok {
		return cached, nil
	}
	gen := s.generation(owner)

	from, to := m.Range()
	txns, err := s.txns.TransactionsBetween(ctx, owner, from, to)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	var budget *core.Budget
	b, err := s.budgets.GetBudget(ctx, owner, m.String())
	switch {
	case err == nil:
		budget = &b
	case errors.Is(err, core.ErrNotFound):
	default:
		return nil, fmt.Errorf("load budget: %w", err)
	}

	agg := analytics.Summarize(txns)
	out := &DashboardSummary{
		Month:        m.String(),
		Aggregate:    agg,
		BudgetStatus: analytics.EvaluateBudget(agg, budget),
	}
	if s.generation(owner) == gen {
		s.monthly.Set(key, out)
	}
	return out, nil
}

func (s *DashboardService) Yearly(ctx context.Context, owner string, year int) (*analytics.YearlyOverview, error) {
	if year < 1 || year > 9999 {
		return nil, core.NewValidationError("year", "year out of range")
	}
	key := cache.Key(owner, "yearly", strconv.Itoa(year))
	if cached, ok := s.yearly.Get(key); ok {
		return cached, nil
	}
	gen := s.generation(owner)

	from, to := core.YearRange(year)
	txns, err := s.txns.TransactionsBetween(ctx, owner, from, to)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	out := analytics.Yearly(year, txns)
	if s.generation(owner) == gen {
		s.yearly.Set(key, &out)
	}
	return &out, nil
}

// Invalidate drops every cached report for owner.
func (s *DashboardService) Invalidate(owner string) {
	s.mu.Lock()
	s.generations[owner]++
	s.mu.Unlock()

	prefix := cache.Key(owner, "")
	n := s.monthly.DeletePrefix(prefix) + s.yearly.DeletePrefix(prefix)
	if n > 0 {
		slog.Debug("Dashboard cache invalidated",
			log.FieldComponent, log.ComponentCache,
			log.FieldOwner, owner,
			"entries", n)
	}
}

func (s *DashboardService) generation(owner string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[owner]
}
