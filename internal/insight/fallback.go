package insight

import (
	"fmt"
	"math"
	"sort"

	"finsight/internal/core"
)

const (
	emptySummary    = "No transactions found for this month."
	emptySuggestion = "Start tracking your expenses to get personalized insights."

	fallbackSummary = "You spent $%.2f across %d transactions this month. " +
		"Your highest spending was in %s. " +
		"Consider reviewing your recurring expenses and discretionary spending."

	topCategoryLimit = 3
	savingsRate      = 0.10
)

var fallbackSuggestions = []string{
	"Review subscriptions and cancel unused services",
	"Set spending limits for discretionary categories",
	"Track daily expenses to identify patterns",
}

// Empty is the insight for a month without transactions.
func Empty() core.Insight {
	return core.Insight{
		Summary:       emptySummary,
		TopCategories: []core.TopCategory{},
		Suggestions:   []string{emptySuggestion},
		SavingsGoal:   0,
		Source:        core.InsightEmpty,
	}
}

// Fallback derives an insight from category totals alone. Equal totals are
// ordered by the taxonomy so the output is stable for a given input.
func Fallback(txns []core.Transaction) core.Insight {
	if len(txns) == 0 {
		return Empty()
	}

	totals := make(map[core.Category]float64)
	var total float64
	for _, tx := range txns {
		c := tx.Category
		if !c.IsValid() {
			c = core.Others
		}
		totals[c] += tx.Amount
		total += tx.Amount
	}

	ranked := make([]core.TopCategory, 0, len(totals))
	for c, amount := range totals {
		ranked = append(ranked, core.TopCategory{
			Category: c,
			Amount:   amount,
			Percent:  percentOf(amount, total),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Amount != ranked[j].Amount {
			return ranked[i].Amount > ranked[j].Amount
		}
		return ranked[i].Category.Index() < ranked[j].Category.Index()
	})
	if len(ranked) > topCategoryLimit {
		ranked = ranked[:topCategoryLimit]
	}

	highest := "various categories"
	if len(ranked) > 0 {
		highest = string(ranked[0].Category)
	}

	suggestions := make([]string, len(fallbackSuggestions))
	copy(suggestions, fallbackSuggestions)

	return core.Insight{
		Summary:       fmt.Sprintf(fallbackSummary, total, len(txns), highest),
		TopCategories: ranked,
		Suggestions:   suggestions,
		SavingsGoal:   math.Round(total * savingsRate),
		Source:        core.InsightFallback,
	}
}

// percentOf returns amount as a percentage of total with one decimal.
func percentOf(amount, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(amount/total*1000) / 10
}
