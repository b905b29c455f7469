package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"caja/internal/core"
)

// Headers use the Spanish column names of the shop database.
const (
	colID           = "id"
	colKind         = "tipo"
	colAmount       = "monto"
	colMovedAt      = "fecha_movimiento"
	colAccountID    = "cuenta_id"
	colReference    = "referencia"
	colClientID     = "cliente_id"
	colOrderedAt    = "fecha"
	colTotal        = "total"
	colGramsCharged = "cantidad_cobrada_gramos"
	colGramsActual  = "cantidad_real_gramos"
	colFullName     = "nombre_completo"
	colName         = "nombre"
	colBalance      = "balance"
)

// dateLayouts covers ISO dates and the day-first format the es-AR locale
// renders, with or without zero padding (5/1/2024 and 05/01/2024).
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
}

// header maps lower-cased header names to their column index.
type header map[string]int

func parseHeader(values [][]any, required ...string) (header, error) {
	if len(values) == 0 {
		return nil, nil
	}
	h := header{}
	for i, v := range values[0] {
		name := strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
		if name == "" {
			continue
		}
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	var missing []string
	for _, r := range required {
		if _, ok := h[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected header: missing %s", strings.Join(missing, ","))
	}
	return h, nil
}

func (h header) cell(row []any, name string) any {
	idx, ok := h[name]
	if !ok || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func (h header) text(row []any, name string) string {
	v := h.cell(row, name)
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func blank(row []any) bool {
	for _, v := range row {
		if strings.TrimSpace(fmt.Sprint(v)) != "" {
			return false
		}
	}
	return true
}

// parseMovements reads the movements tab. Rows without an id are skipped;
// a row with an id but no readable date or amount fails the whole tab, so
// no sum is ever computed over a partial read. Unknown kinds are kept as
// CategoryOther.
func parseMovements(values [][]any, loc *time.Location) ([]core.Transaction, error) {
	h, err := parseHeader(values, colID, colKind, colAmount, colMovedAt)
	if err != nil || h == nil {
		return nil, err
	}
	var out []core.Transaction
	for i, row := range values[1:] {
		if blank(row) {
			continue
		}
		id := h.text(row, colID)
		if id == "" {
			continue
		}
		amount, ok := parseDecimal(h.cell(row, colAmount))
		if !ok {
			return nil, badCell(i, id, colAmount, h.cell(row, colAmount))
		}
		at, ok := parseTime(h.cell(row, colMovedAt), loc)
		if !ok {
			return nil, badCell(i, id, colMovedAt, h.cell(row, colMovedAt))
		}
		cat, err := core.ParseCategory(h.text(row, colKind))
		if err != nil {
			cat = core.CategoryOther
		}
		out = append(out, core.Transaction{
			ID:         id,
			Category:   cat,
			Amount:     amount,
			OccurredAt: at,
			AccountID:  h.text(row, colAccountID),
			Reference:  h.text(row, colReference),
		})
	}
	return out, nil
}

func parseOrders(values [][]any, loc *time.Location) ([]core.Order, error) {
	h, err := parseHeader(values, colID, colOrderedAt, colTotal)
	if err != nil || h == nil {
		return nil, err
	}
	var out []core.Order
	for i, row := range values[1:] {
		if blank(row) {
			continue
		}
		id := h.text(row, colID)
		if id == "" {
			continue
		}
		at, ok := parseTime(h.cell(row, colOrderedAt), loc)
		if !ok {
			return nil, badCell(i, id, colOrderedAt, h.cell(row, colOrderedAt))
		}
		// An empty total is zero; anything else must parse.
		total := decimal.Zero
		if h.text(row, colTotal) != "" {
			if total, ok = parseDecimal(h.cell(row, colTotal)); !ok {
				return nil, badCell(i, id, colTotal, h.cell(row, colTotal))
			}
		}
		out = append(out, core.Order{
			ID:           id,
			ClientID:     h.text(row, colClientID),
			Date:         at,
			TotalBilled:  total,
			GramsCharged: parseNullDecimal(h.cell(row, colGramsCharged)),
			GramsActual:  parseNullDecimal(h.cell(row, colGramsActual)),
		})
	}
	return out, nil
}

// badCell reports an unreadable cell; i indexes the data rows, so the sheet
// row is i+2 (one based, after the header).
func badCell(i int, id, column string, v any) error {
	return fmt.Errorf("row %d (id %s): unreadable %s %q", i+2, id, column, fmt.Sprint(v))
}

func parseClients(values [][]any) ([]core.Client, error) {
	h, err := parseHeader(values, colID)
	if err != nil || h == nil {
		return nil, err
	}
	var out []core.Client
	for _, row := range values[1:] {
		id := h.text(row, colID)
		if id == "" {
			continue
		}
		name := h.text(row, colFullName)
		if name == "" {
			name = h.text(row, colName)
		}
		out = append(out, core.Client{ID: id, Name: name})
	}
	return out, nil
}

func parseAccounts(values [][]any) ([]core.Account, error) {
	h, err := parseHeader(values, colID, colName)
	if err != nil || h == nil {
		return nil, err
	}
	var out []core.Account
	for _, row := range values[1:] {
		id := h.text(row, colID)
		if id == "" {
			continue
		}
		out = append(out, core.Account{
			ID:      id,
			Name:    h.text(row, colName),
			Balance: parseNullDecimal(h.cell(row, colBalance)),
		})
	}
	return out, nil
}

// parseDecimal accepts numeric cells and text in either decimal notation,
// with an optional leading minus and currency sign.
func parseDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	}

	s := strings.TrimSpace(fmt.Sprint(v))
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	if s == "" {
		return decimal.Zero, false
	}
	if s == "0" || strings.Trim(s, "0.,") == "" {
		return decimal.Zero, true
	}
	d, err := core.ParseAmount(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

func parseNullDecimal(v any) decimal.NullDecimal {
	d, ok := parseDecimal(v)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// parseTime reads a date cell; values without a zone are taken in loc.
func parseTime(v any, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(fmt.Sprint(v))
	if v == nil || s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
