package services

import (
	"context"
	"fmt"
	"time"

	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/storage"
)

// BudgetInput is an upsert request. Month and TotalBudget are required;
// categories left out are reset to zero.
type BudgetInput struct {
	Month           string             `json:"month"`
	TotalBudget     *float64           `json:"totalBudget"`
	CategoryBudgets map[string]float64 `json:"categoryBudgets"`
}

type BudgetService struct {
	store       storage.BudgetStore
	invalidator Invalidator
	now         func() time.Time
}

func NewBudgetService(store storage.BudgetStore, invalidator Invalidator) *BudgetService {
	return &BudgetService{
		store:       store,
		invalidator: invalidator,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Upsert replaces the owner's budget for the month.
func (s *BudgetService) Upsert(ctx context.Context, owner string, in BudgetInput) (core.Budget, error) {
	if in.Month == "" || in.TotalBudget == nil {
		return core.Budget{}, core.NewValidationError("", "month and totalBudget are required")
	}
	month, err := core.ParseMonth(in.Month)
	if err != nil {
		return core.Budget{}, err
	}

	perCategory := make(map[core.Category]float64, len(in.CategoryBudgets))
	for label, v := range in.CategoryBudgets {
		c, err := core.ParseCategory(label)
		if err != nil {
			return core.Budget{}, err
		}
		perCategory[c] = v
	}

	b := core.NewBudget(owner, month.String(), *in.TotalBudget, perCategory)
	b.UpdatedAt = s.now()
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	if err := s.store.UpsertBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(owner)
	}

	log.FromContext(ctx).WithComponent(log.ComponentBudget).InfoContext(ctx, "Budget saved",
		log.FieldOwner, owner,
		log.FieldMonth, b.Month,
		log.FieldAmount, b.TotalBudget)
	return b, nil
}

func (s *BudgetService) Get(ctx context.Context, owner, month string) (core.Budget, error) {
	m, err := core.ParseMonth(month)
	if err != nil {
		return core.Budget{}, err
	}
	return s.store.GetBudget(ctx, owner, m.String())
}

func (s *BudgetService) List(ctx context.Context, owner string) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, owner)
}
