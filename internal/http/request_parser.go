// This file parses query strings and request bodies into domain values.

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

	"caja/internal/core"
)

const (
	maxBodyBytes         = 1 << 16
	defaultSnapshotLimit = 12
	maxSnapshotLimit     = 120
)

// MonthParams holds the requested month; Month is zero based.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and month (0-11) from the query, defaulting to
// the month of now. Out-of-range months roll over the calendar; only values
// that are not integers are rejected.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month()) - 1}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, badRequest("invalid year %q", v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, badRequest("invalid month %q", v)
		}
		params.Month = m
	}
	ym := core.NewYearMonth(params.Year, params.Month)
	return MonthParams{Year: ym.Year, Month: ym.Month}, nil
}

// ParseLimit reads a positive limit capped at maxSnapshotLimit.
func ParseLimit(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return defaultSnapshotLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, badRequest("invalid limit %q", v)
	}
	return min(n, maxSnapshotLimit), nil
}

// RequestBodyParser handles JSON and form-encoded bodies alike.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads at most maxBodyBytes of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(p.err, &tooLarge) {
			p.err = badRequest("request body too large")
		}
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = badRequest("malformed JSON body")
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	if p.err != nil {
		p.err = badRequest("malformed form body")
	}
	return p.err
}

// Get returns a trimmed, sanitized value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Movement builds the transaction described by the body. Dates given as
// YYYY-MM-DD are midnight in loc; a missing date means now.
func (p *RequestBodyParser) Movement(loc *time.Location) (core.Transaction, error) {
	if err := p.Parse(); err != nil {
		return core.Transaction{}, err
	}

	cat, err := core.ParseCategory(p.Get("category"))
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		Category:  cat,
		Amount:    amount,
		AccountID: p.Get("account_id"),
		Reference: p.Get("reference"),
	}

	if v := p.Get("occurred_at"); v != "" {
		at, err := parseMovementDate(v, loc)
		if err != nil {
			return core.Transaction{}, err
		}
		tx.OccurredAt = at
	}
	return tx, nil
}

func parseMovementDate(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", v, loc); err == nil {
		return t, nil
	}
	return time.Time{}, badRequest("invalid occurred_at %q: use RFC 3339 or YYYY-MM-DD", v)
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput drops control characters other than tab and newlines, then trims.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
