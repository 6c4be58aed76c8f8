package analytics

import (
	"math"

	"finsight/internal/core"
)

const (
	OverThreshold  = 0.90
	CloseThreshold = 0.70
)

// Tier classifies how much of a budget has been used.
type Tier string

const (
	TierWithin Tier = "within"
	TierClose  Tier = "close"
	TierOver   Tier = "over"
)

// Color is the dashboard colour of a tier.
func (t Tier) Color() string {
	switch t {
	case TierOver:
		return "red"
	case TierClose:
		return "yellow"
	default:
		return "green"
	}
}

// Usage is the evaluation of spending against a single limit.
type Usage struct {
	Budget     float64 `json:"budget"`
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	Percentage int     `json:"percentage"`
	Status     Tier    `json:"status"`
	Color      string  `json:"color"`
}

// BudgetStatus is the evaluation of a month against its budget record.
// Overall is nil when the total budget is zero; Categories only holds
// categories with a positive budget.
type BudgetStatus struct {
	TotalBudget float64                 `json:"totalBudget"`
	TotalSpent  float64                 `json:"totalSpent"`
	Overall     *Usage                  `json:"overall,omitempty"`
	Categories  map[core.Category]Usage `json:"categoryStatus"`
}

// Evaluate compares spent with limit. It returns false when limit is not
// positive, in which case no ratio exists.
func Evaluate(spent, limit float64) (Usage, bool) {
	if limit <= 0 {
		return Usage{}, false
	}
	ratio := spent / limit
	tier := TierWithin
	switch {
	case ratio >= OverThreshold:
		tier = TierOver
	case ratio >= CloseThreshold:
		tier = TierClose
	}
	return Usage{
		Budget:     limit,
		Spent:      spent,
		Remaining:  limit - spent,
		Percentage: int(math.Round(ratio * 100)),
		Status:     tier,
		Color:      tier.Color(),
	}, true
}

// EvaluateBudget returns nil when there is no budget record for the month.
// Each category is guarded by its own limit, independent of the total.
func EvaluateBudget(agg Aggregate, budget *core.Budget) *BudgetStatus {
	if budget == nil {
		return nil
	}

	status := &BudgetStatus{
		TotalBudget: budget.TotalBudget,
		TotalSpent:  agg.TotalSpending,
		Categories:  make(map[core.Category]Usage),
	}
	if u, ok := Evaluate(agg.TotalSpending, budget.TotalBudget); ok {
		status.Overall = &u
	}

	for _, c := range core.Categories {
		if u, ok := Evaluate(agg.ByCategory[c], budget.CategoryBudgets[c]); ok {
			status.Categories[c] = u
		}
	}
	return status
}
