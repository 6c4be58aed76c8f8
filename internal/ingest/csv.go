// Package ingest decodes bulk transaction uploads.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"finsight/internal/core"
)

const (
	colDate        = "date"
	colDescription = "description"
	colAmount      = "amount"
	colCategory    = "category"
)

const (
	msgMissingFields = "Missing required fields (date, description, amount)"
	msgInvalidAmount = "Invalid amount value"
)

// ErrNoValidRows is returned by Result.Validate when nothing could be
// imported, even if no row produced an error.
var ErrNoValidRows = errors.New("no valid transactions found in CSV file")

// Row is a successfully decoded data row. Owner and IDs are assigned by
// the caller.
type Row struct {
	Line        int
	Date        time.Time
	Description string
	Amount      float64
	Category    core.Category
}

// Transaction converts the row into an imported transaction for owner.
func (r Row) Transaction(owner string) core.Transaction {
	return core.Transaction{
		Owner:       owner,
		Date:        r.Date,
		Description: r.Description,
		Amount:      r.Amount,
		Category:    r.Category,
		Source:      core.SourceImported,
	}
}

type Result struct {
	Rows   []Row
	Errors []core.RowError
}

// Validate reports ErrNoValidRows when the batch produced nothing.
func (r *Result) Validate() error {
	if len(r.Rows) == 0 {
		return ErrNoValidRows
	}
	return nil
}

// Transactions returns the parsed rows as transactions for owner, in input
// order.
func (r *Result) Transactions(owner string) []core.Transaction {
	out := make([]core.Transaction, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row.Transaction(owner))
	}
	return out
}

// Parser decodes CSV with a header row. Columns are matched by name so their
// order does not matter and unknown columns are ignored.
type Parser struct {
	classify func(string) core.Category
}

func NewParser() *Parser {
	return &Parser{classify: core.Classify}
}

// ParseBytes is a convenience wrapper over Parse.
func (p *Parser) ParseBytes(b []byte) (*Result, error) {
	return p.Parse(bytes.NewReader(b))
}

// Parse streams the input one record at a time. Row level problems are
// collected in Result.Errors; only a failure to decode the stream itself is
// returned as a *core.BatchParseError.
func (p *Parser) Parse(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &core.BatchParseError{Err: errors.New("missing header row")}
		}
		return nil, &core.BatchParseError{Err: err}
	}
	cols := indexHeader(header)

	res := &Result{}
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &core.BatchParseError{Err: err}
		}
		line++

		row, rowErr := p.parseRecord(cols, record)
		if rowErr != "" {
			res.Errors = append(res.Errors, core.RowError{Row: line, Message: rowErr})
			continue
		}
		row.Line = line
		res.Rows = append(res.Rows, row)
	}

	return res, nil
}

func (p *Parser) parseRecord(cols map[string]int, record []string) (Row, string) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	rawDate := field(colDate)
	desc := field(colDescription)
	rawAmount := field(colAmount)
	if rawDate == "" || desc == "" || rawAmount == "" {
		return Row{}, msgMissingFields
	}

	date, err := core.ParseDate(rawDate)
	if err != nil {
		return Row{}, "Invalid date format: " + rawDate
	}

	amount, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil || amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Row{}, msgInvalidAmount
	}

	if len([]rune(desc)) > core.MaxDescriptionLength {
		return Row{}, "Description too long (max 200 characters)"
	}

	category := p.classify(desc)
	if label := field(colCategory); label != "" {
		category = core.Category(strings.ToLower(label))
		if !category.IsValid() {
			category = core.Others
		}
	}

	return Row{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Category:    category,
	}, ""
}

func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}
