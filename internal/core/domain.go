package core

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxDescriptionLength = 200

const (
	SourceManual   Source = "manual"
	SourceImported Source = "imported"
)

const (
	InsightGenerated InsightSource = "generated"
	InsightFallback  InsightSource = "fallback"
	InsightEmpty     InsightSource = "empty"
)

type (
	// Source records how a transaction entered the system.
	Source string

	// InsightSource records which path produced an insight.
	InsightSource string

	Transaction struct {
		ID          string    `json:"id"`
		Owner       string    `json:"userId"`
		Date        time.Time `json:"date"`
		Description string    `json:"description"`
		Amount      float64   `json:"amount"`
		Category    Category  `json:"category"`
		Source      Source    `json:"source"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// TransactionPatch carries the fields of a partial update. Nil fields are
	// left untouched.
	TransactionPatch struct {
		Date        *time.Time
		Description *string
		Amount      *float64
		Category    *Category
	}

	Budget struct {
		Owner           string          `json:"userId"`
		Month           string          `json:"month"`
		TotalBudget     float64         `json:"totalBudget"`
		CategoryBudgets CategoryAmounts `json:"categoryBudgets"`
		UpdatedAt       time.Time       `json:"updatedAt"`
	}

	TopCategory struct {
		Category Category `json:"category"`
		Amount   float64  `json:"amount"`
		Percent  float64  `json:"percent"`
	}

	Insight struct {
		Summary       string        `json:"summary"`
		TopCategories []TopCategory `json:"topCategories"`
		Suggestions   []string      `json:"suggestions"`
		SavingsGoal   float64       `json:"savingsGoal"`
		Source        InsightSource `json:"source"`
	}

	// MonthlySummary is the stored insight for one owner and month together
	// with the spending snapshot it was generated from.
	MonthlySummary struct {
		Owner         string          `json:"userId"`
		Month         string          `json:"month"`
		TotalSpending float64         `json:"totalSpending"`
		ByCategory    CategoryAmounts `json:"byCategory"`
		Summary       string          `json:"summary"`
		Insight       Insight         `json:"insights"`
		UpdatedAt     time.Time       `json:"updatedAt"`
	}
)

// NormalizeDescription trims the description; Validate enforces limits.
func NormalizeDescription(s string) string {
	return strings.TrimSpace(s)
}

func validateAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NewValidationError(field, "must be a finite number")
	}
	if v < 0 {
		return NewValidationError(field, "must not be negative")
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Owner) == "" {
		return NewValidationError("userId", "owner is required")
	}
	if t.Date.IsZero() {
		return NewValidationError("date", "date is required")
	}
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return NewValidationError("description", "description is required")
	}
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return NewValidationError("description", "description too long (max 200 characters)")
	}
	if err := validateAmount("amount", t.Amount); err != nil {
		return err
	}
	if !t.Category.IsValid() {
		return NewValidationError("category", "unknown category "+string(t.Category))
	}
	switch t.Source {
	case SourceManual, SourceImported:
	default:
		return NewValidationError("source", "invalid source "+string(t.Source))
	}
	return nil
}

// Apply overwrites the fields present in p.
func (t *Transaction) Apply(p TransactionPatch) {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Description != nil {
		t.Description = NormalizeDescription(*p.Description)
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Date == nil && p.Description == nil && p.Amount == nil && p.Category == nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Owner) == "" {
		return NewValidationError("userId", "owner is required")
	}
	if _, err := ParseMonth(b.Month); err != nil {
		return err
	}
	if err := validateAmount("totalBudget", b.TotalBudget); err != nil {
		return err
	}
	for c, v := range b.CategoryBudgets {
		if !c.IsValid() {
			return NewValidationError("categoryBudgets", "unknown category "+string(c))
		}
		if err := validateAmount("categoryBudgets."+string(c), v); err != nil {
			return err
		}
	}
	return nil
}

// NewBudget builds a budget whose category map always holds all ten
// categories; categories absent from perCategory are zero.
func NewBudget(owner, month string, total float64, perCategory map[Category]float64) Budget {
	cb := NewCategoryAmounts()
	for c, v := range perCategory {
		cb[c] = v
	}
	return Budget{
		Owner:           owner,
		Month:           month,
		TotalBudget:     total,
		CategoryBudgets: cb,
	}
}
