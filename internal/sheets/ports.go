// Package sheets holds outbound ports for spreadsheet exports.
package sheets

import (
	"context"

	"finsight/internal/core"
)

// SummaryExporter publishes a generated monthly summary to a spreadsheet.
type SummaryExporter interface {
	ExportSummary(ctx context.Context, sum core.MonthlySummary) error
}
