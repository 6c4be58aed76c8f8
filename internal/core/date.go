package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

var monthKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ParseDate accepts YYYY-MM-DD or M/D/YYYY (month and day optionally zero
// padded). Out of range components are rejected rather than rolled over.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(DateLayout, s); err == nil {
		return d, nil
	}

	parts := strings.Split(s, "/")
	if len(parts) == 3 {
		month := padTwo(strings.TrimSpace(parts[0]))
		day := padTwo(strings.TrimSpace(parts[1]))
		year := strings.TrimSpace(parts[2])
		if d, err := time.Parse(DateLayout, year+"-"+month+"-"+day); err == nil {
			return d, nil
		}
	}

	return time.Time{}, &ValidationError{
		Field:   "date",
		Message: fmt.Sprintf("invalid date format: %s", s),
		Err:     ErrInvalidDate,
	}
}

func padTwo(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// FormatDate renders the canonical YYYY-MM-DD form.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Month identifies a calendar month, the unit of budgets and insights.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth validates a YYYY-MM key.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if !monthKeyPattern.MatchString(s) {
		return Month{}, &ValidationError{
			Field:   "month",
			Message: "month must be in YYYY-MM format",
			Err:     ErrInvalidMonth,
		}
	}
	year, _ := strconv.Atoi(s[:4])
	m, _ := strconv.Atoi(s[5:])
	if m < 1 || m > 12 {
		return Month{}, &ValidationError{
			Field:   "month",
			Message: fmt.Sprintf("month %02d out of range", m),
			Err:     ErrInvalidMonth,
		}
	}
	return Month{Year: year, Month: time.Month(m)}, nil
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Range returns the first instant of the month and the first instant of
// the following month.
func (m Month) Range() (time.Time, time.Time) {
	start := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// YearRange returns [Jan 1 of year, Jan 1 of year+1).
func YearRange(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}
