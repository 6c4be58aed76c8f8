package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finsight/internal/core"
	"finsight/internal/storage"
)

// maxJSONBodyBytes bounds every JSON request body.
const maxJSONBodyBytes = 1 << 20

// ParseTransactionFilter reads startDate, endDate, category, page and limit.
// endDate is inclusive: the whole day is part of the range.
func ParseTransactionFilter(query url.Values) (storage.TransactionFilter, error) {
	var f storage.TransactionFilter

	if v := strings.TrimSpace(query.Get("startDate")); v != "" {
		from, err := core.ParseDate(v)
		if err != nil {
			return f, fieldError("startDate", err)
		}
		f.From = from
	}
	if v := strings.TrimSpace(query.Get("endDate")); v != "" {
		to, err := core.ParseDate(v)
		if err != nil {
			return f, fieldError("endDate", err)
		}
		f.To = to.AddDate(0, 0, 1)
	}
	if v := strings.TrimSpace(query.Get("category")); v != "" {
		c, err := core.ParseCategory(v)
		if err != nil {
			return f, err
		}
		f.Category = c
	}

	var err error
	if f.Page, err = positiveInt(query, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = positiveInt(query, "limit"); err != nil {
		return f, err
	}
	return f, nil
}

// ParseMonthQuery returns the required month parameter as given. Format
// checks are left to the services.
func ParseMonthQuery(query url.Values) (string, error) {
	month := strings.TrimSpace(query.Get("month"))
	if month == "" {
		return "", core.NewValidationError("month", "Please provide month query parameter (YYYY-MM).")
	}
	return month, nil
}

// ParseYearQuery returns the year parameter, defaulting to now's year.
func ParseYearQuery(query url.Values, now time.Time) (int, error) {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return now.Year(), nil
	}
	year, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.NewValidationError("year", "year must be a number")
	}
	return year, nil
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return core.NewValidationError("body", "request body is empty")
		}
		return &core.ValidationError{Field: "body", Message: "invalid JSON body", Err: err}
	}
	return nil
}

func positiveInt(query url.Values, key string) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, core.NewValidationError(key, key+" must be a positive integer")
	}
	return n, nil
}

func fieldError(field string, err error) error {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return &core.ValidationError{Field: field, Message: ve.Message, Err: ve.Err}
	}
	return &core.ValidationError{Field: field, Message: err.Error(), Err: err}
}
