package core

import (
	"fmt"
	"strings"
)

// Category is one label of the fixed spending taxonomy.
type Category string

const (
	Food          Category = "food"
	Rent          Category = "rent"
	Transport     Category = "transport"
	Subscriptions Category = "subscriptions"
	Shopping      Category = "shopping"
	Utilities     Category = "utilities"
	Healthcare    Category = "healthcare"
	Entertainment Category = "entertainment"
	Education     Category = "education"
	Others        Category = "others"
)

// Categories lists the taxonomy in its canonical order. Reports and tie
// breaks iterate this slice so output never depends on map ordering.
var Categories = []Category{
	Food,
	Rent,
	Transport,
	Subscriptions,
	Shopping,
	Utilities,
	Healthcare,
	Entertainment,
	Education,
	Others,
}

func (c Category) String() string { return string(c) }

// IsValid reports whether c belongs to the taxonomy.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Index returns the position of c in Categories, or len(Categories) when c
// is unknown.
func (c Category) Index() int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return len(Categories)
}

// ParseCategory normalises a user supplied label.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", NewValidationError("category", fmt.Sprintf("unknown category %q", s))
	}
	return c, nil
}

// CategoryAmounts maps every category to an amount.
type CategoryAmounts map[Category]float64

// NewCategoryAmounts returns a map with all ten categories set to zero.
func NewCategoryAmounts() CategoryAmounts {
	m := make(CategoryAmounts, len(Categories))
	for _, c := range Categories {
		m[c] = 0
	}
	return m
}

// Fill adds any missing category with a zero amount and returns the receiver.
func (m CategoryAmounts) Fill() CategoryAmounts {
	if m == nil {
		return NewCategoryAmounts()
	}
	for _, c := range Categories {
		if _, ok := m[c]; !ok {
			m[c] = 0
		}
	}
	return m
}

// Sum returns the total across all categories.
func (m CategoryAmounts) Sum() float64 {
	var total float64
	for _, c := range Categories {
		total += m[c]
	}
	return total
}
