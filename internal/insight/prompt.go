// Package insight produces the monthly natural-language spending analysis,
// either from a generative text provider or from a deterministic fallback.
package insight

import (
	"encoding/json"
	"fmt"

	"finsight/internal/core"
)

type promptTransaction struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}

const promptTemplate = `You are a financial advisor analyzing spending patterns for a user.

Month: %s
Total Transactions: %d
Total Spending: $%.2f

Transactions:
%s

Please analyze this spending data and provide:
1. A concise 3-5 sentence summary of the user's spending pattern
2. Top 3 spending categories with amounts and percentage of total
3. 3 specific, actionable suggestions to reduce spending
4. A realistic monthly savings goal based on the data
5. One quick tip for each of the top 3 categories

Respond ONLY with valid JSON in this exact format (no markdown, no code blocks):
{
  "summary": "Your 3-5 sentence summary here",
  "topCategories": [
    {"category": "category_name", "amount": 123.45, "percent": 45.6},
    {"category": "category_name", "amount": 67.89, "percent": 25.1},
    {"category": "category_name", "amount": 45.67, "percent": 16.8}
  ],
  "suggestions": [
    "Specific suggestion 1",
    "Specific suggestion 2",
    "Specific suggestion 3"
  ],
  "savingsGoal": 150
}`

// BuildPrompt renders the analysis request for one month of transactions.
func BuildPrompt(month string, txns []core.Transaction) (string, error) {
	list := make([]promptTransaction, 0, len(txns))
	var total float64
	for _, tx := range txns {
		total += tx.Amount
		list = append(list, promptTransaction{
			Date:        core.FormatDate(tx.Date),
			Description: tx.Description,
			Amount:      tx.Amount,
			Category:    string(tx.Category),
		})
	}

	body, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transactions: %w", err)
	}

	return fmt.Sprintf(promptTemplate, month, len(txns), total, body), nil
}
