// Package analytics turns transaction sets into spending reports and budget
// evaluations. Everything here is pure and safe for concurrent use.
package analytics

import (
	"sort"
	"time"

	"finsight/internal/core"
)

type DailyPoint struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

type MonthlyPoint struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// Aggregate is the spending breakdown of one transaction set.
type Aggregate struct {
	TotalSpending    float64              `json:"totalSpending"`
	ByCategory       core.CategoryAmounts `json:"byCategory"`
	TimeSeries       []DailyPoint         `json:"timeSeries"`
	TransactionCount int                  `json:"transactionCount"`
}

// YearlyOverview holds twelve monthly totals, January first.
type YearlyOverview struct {
	Year        int            `json:"year"`
	MonthlyData []MonthlyPoint `json:"monthlyData"`
	Total       float64        `json:"totalSpending"`
}

// Summarize computes the total, the per-category partition and the sparse
// daily series of txns. Amounts are summed without rounding.
func Summarize(txns []core.Transaction) Aggregate {
	agg := Aggregate{
		ByCategory:       core.NewCategoryAmounts(),
		TimeSeries:       []DailyPoint{},
		TransactionCount: len(txns),
	}

	daily := make(map[string]float64)
	for _, tx := range txns {
		agg.TotalSpending += tx.Amount

		c := tx.Category
		if !c.IsValid() {
			c = core.Others
		}
		agg.ByCategory[c] += tx.Amount

		daily[core.FormatDate(tx.Date)] += tx.Amount
	}

	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		agg.TimeSeries = append(agg.TimeSeries, DailyPoint{Date: d, Amount: daily[d]})
	}

	return agg
}

// Yearly buckets txns into the twelve months of year. Transactions outside
// the year are ignored.
func Yearly(year int, txns []core.Transaction) YearlyOverview {
	var totals [12]float64
	for _, tx := range txns {
		d := tx.Date.UTC()
		if d.Year() != year {
			continue
		}
		totals[d.Month()-1] += tx.Amount
	}

	out := YearlyOverview{Year: year, MonthlyData: make([]MonthlyPoint, 0, 12)}
	for i, amount := range totals {
		m := core.Month{Year: year, Month: time.Month(i + 1)}
		out.MonthlyData = append(out.MonthlyData, MonthlyPoint{Month: m.String(), Amount: amount})
		out.Total += amount
	}
	return out
}
