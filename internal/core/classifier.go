package core

import "strings"

type classifierRule struct {
	Category Category
	Keywords []string
}

// rules are evaluated top to bottom and the first hit wins. Several
// keywords overlap across rules ("subway", "amazon", "gas") so the order is
// part of the behaviour.
var rules = []classifierRule{
	{Food, []string{
		"starbucks", "coffee", "restaurant", "cafe", "burger", "diner",
		"pizza", "mcdonald", "kfc", "subway", "chipotle", "taco",
		"food", "lunch", "dinner", "breakfast", "meal", "grocery",
		"whole foods", "trader joe", "safeway", "kroger",
	}},
	{Rent, []string{"rent", "lease", "landlord", "apartment", "housing"}},
	{Transport, []string{
		"uber", "lyft", "taxi", "bus", "metro", "subway", "train",
		"fuel", "gas", "gasoline", "shell", "chevron", "exxon",
		"parking", "toll", "car",
	}},
	{Subscriptions, []string{
		"spotify", "netflix", "amazon prime", "hulu", "disney",
		"subscription", "membership", "gym", "fitness", "premium",
	}},
	{Shopping, []string{
		"amazon", "ebay", "walmart", "target", "shop", "store",
		"mall", "retail", "flipkart", "alibaba",
	}},
	{Utilities, []string{
		"electric", "electricity", "water", "gas bill", "internet",
		"phone bill", "utilities", "verizon", "at&t", "comcast",
	}},
	{Healthcare, []string{
		"doctor", "hospital", "pharmacy", "cvs", "walgreens",
		"medical", "health", "clinic", "dental", "insurance",
	}},
	{Entertainment, []string{
		"movie", "cinema", "theater", "concert", "game",
		"entertainment", "ticket", "show", "event",
	}},
	{Education, []string{
		"school", "university", "college", "tuition", "course",
		"education", "book", "textbook", "udemy", "coursera",
	}},
}

// Classify maps a free-text description to a category by case-insensitive
// substring match. Descriptions matching no rule fall into Others.
func Classify(description string) Category {
	desc := strings.ToLower(description)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(desc, kw) {
				return r.Category
			}
		}
	}
	return Others
}
