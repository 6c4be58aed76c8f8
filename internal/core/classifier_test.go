package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		description string
		want        Category
	}{
		{"Starbucks Coffee", Food},
		{"WHOLE FOODS MARKET", Food},
		{"Monthly rent payment", Rent},
		{"Uber ride home", Transport},
		{"Shell gas station", Transport},
		{"Netflix", Subscriptions},
		{"Amazon Prime", Subscriptions},
		{"Amazon order", Shopping},
		{"Electric company", Utilities},
		{"CVS Pharmacy", Healthcare},
		{"Movie tickets", Entertainment},
		{"Udemy course", Education},
		{"Random thing", Others},
		{"", Others},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.description))
		})
	}
}

func TestClassifyRuleOrder(t *testing.T) {
	// "subway" is both a food and a transport keyword; food is checked first.
	assert.Equal(t, Food, Classify("Subway sandwich"))
	// "gas" belongs to transport, which precedes the "gas bill" utility rule.
	assert.Equal(t, Transport, Classify("Gas bill"))
}

func TestClassifyAlwaysReturnsKnownCategory(t *testing.T) {
	for _, d := range []string{"x", "🙂", "at&t wireless", "TRADER JOE'S"} {
		assert.True(t, Classify(d).IsValid(), d)
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("  Food ")
	require.NoError(t, err)
	assert.Equal(t, Food, c)

	_, err = ParseCategory("groceries")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCategoryAmounts(t *testing.T) {
	m := CategoryAmounts{Food: 3}.Fill()
	assert.Len(t, m, len(Categories))
	assert.Equal(t, 3.0, m.Sum())
	assert.Equal(t, 0, Food.Index())
	assert.Equal(t, len(Categories), Category("pets").Index())
}
