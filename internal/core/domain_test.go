package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Owner:       "u1",
		Date:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "ok",
		Amount:      10,
		Category:    Food,
		Source:      SourceManual,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zeroAmount := good
	zeroAmount.Amount = 0
	if err := zeroAmount.Validate(); err != nil {
		t.Fatalf("zero amount should be accepted, got %v", err)
	}

	mutate := []func(*Transaction){
		func(tx *Transaction) { tx.Owner = "" },
		func(tx *Transaction) { tx.Date = time.Time{} },
		func(tx *Transaction) { tx.Description = "   " },
		func(tx *Transaction) { tx.Description = strings.Repeat("a", 201) },
		func(tx *Transaction) { tx.Amount = -1 },
		func(tx *Transaction) { tx.Category = "groceries" },
		func(tx *Transaction) { tx.Source = "csv" },
	}
	for i, m := range mutate {
		tx := good
		m(&tx)
		err := tx.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestTransactionApply(t *testing.T) {
	tx := Transaction{Description: "old", Amount: 5, Category: Food}
	desc := "  new  "
	tx.Apply(TransactionPatch{Description: &desc})
	if tx.Description != "new" || tx.Amount != 5 || tx.Category != Food {
		t.Fatalf("unexpected transaction after patch: %+v", tx)
	}
	if !(TransactionPatch{}).IsEmpty() {
		t.Fatalf("empty patch should report empty")
	}
}

func TestNewBudgetFillsCategories(t *testing.T) {
	b := NewBudget("u1", "2025-01", 500, map[Category]float64{Food: 100})
	if len(b.CategoryBudgets) != len(Categories) {
		t.Fatalf("expected %d categories, got %d", len(Categories), len(b.CategoryBudgets))
	}
	for _, c := range Categories {
		want := 0.0
		if c == Food {
			want = 100
		}
		if b.CategoryBudgets[c] != want {
			t.Fatalf("category %s: want %v got %v", c, want, b.CategoryBudgets[c])
		}
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestBudgetValidate(t *testing.T) {
	bads := []Budget{
		NewBudget("", "2025-01", 1, nil),
		NewBudget("u", "2025-1", 1, nil),
		NewBudget("u", "2025-13", 1, nil),
		NewBudget("u", "2025-01", -1, nil),
		NewBudget("u", "2025-01", 1, map[Category]float64{Rent: -5}),
		NewBudget("u", "2025-01", 1, map[Category]float64{"pets": 5}),
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
