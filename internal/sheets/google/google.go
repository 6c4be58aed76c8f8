// Package google appends monthly summaries to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"finsight/internal/core"
	ports "finsight/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	summarySheet  string
}

var _ ports.SummaryExporter = (*Client)(nil)

// New creates a Sheets client. Credentials come from credentialsFile when
// set and from Application Default Credentials otherwise. Extra options are
// appended last so callers can override the endpoint or transport.
func New(ctx context.Context, spreadsheetID, summarySheet, credentialsFile string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(summarySheet) == "" {
		summarySheet = "Summaries"
	}

	svc, err := newSheetsService(ctx, credentialsFile, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		summarySheet:  summarySheet,
	}, nil
}

func newSheetsService(ctx context.Context, credentialsFile string, extra ...goption.ClientOption) (*gsheet.Service, error) {
	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}

	if credentialsFile = strings.TrimSpace(credentialsFile); credentialsFile != "" {
		credentialsJSON, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Using service account credentials", "path", credentialsFile)
		opts = append(opts, goption.WithCredentialsJSON(credentialsJSON))
	}

	service, err := gsheet.NewService(ctx, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Header is the column layout written by ExportSummary.
func Header() []string {
	h := []string{"Month", "Owner", "Total"}
	for _, c := range core.Categories {
		h = append(h, strings.ToUpper(string(c[:1]))+string(c[1:]))
	}
	return append(h, "Source", "Savings goal", "Summary", "Updated")
}

// ExportSummary appends one row per call. Re-exporting a month adds a new
// row; the sheet is an audit log, not a mirror. Values are written RAW so
// model-written text is never parsed as a formula.
func (c *Client) ExportSummary(ctx context.Context, sum core.MonthlySummary) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:%s", c.summarySheet, columnName(len(Header())))
	vr := &gsheet.ValueRange{Values: [][]interface{}{summaryRow(sum)}}

	start := time.Now()
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return &core.ExternalServiceError{Op: "append summary row", Err: err}
	}

	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Summary exported to sheet",
		"owner", sum.Owner,
		"month", sum.Month,
		"range", updated,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func summaryRow(sum core.MonthlySummary) []interface{} {
	byCat := sum.ByCategory.Fill()
	row := []interface{}{sum.Month, sum.Owner, cents(sum.TotalSpending)}
	for _, c := range core.Categories {
		row = append(row, cents(byCat[c]))
	}
	return append(row,
		string(sum.Insight.Source),
		math.Round(sum.Insight.SavingsGoal),
		sum.Summary,
		sum.UpdatedAt.UTC().Format(time.RFC3339),
	)
}

func cents(v float64) float64 {
	return math.Round(v*100) / 100
}

// columnName converts a 1-based column index to A1 notation letters.
func columnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}
