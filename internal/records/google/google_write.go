package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	gsheet "google.golang.org/api/sheets/v4"

	"caja/internal/core"
)

// movementTimeLayout is written for dates; parseTime reads it back in loc.
const movementTimeLayout = "2006-01-02 15:04:05"

// RecordMovement appends tx to the movements tab and rewrites the balance cell
// of its account in the accounts tab. A missing id or timestamp is filled in.
// Cached tabs are dropped afterwards, whatever the outcome.
func (c *Client) RecordMovement(ctx context.Context, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = c.now()
	}
	if err := tx.Validate(); err != nil {
		return "", err
	}
	if c.svc == nil {
		return "", core.Unavailable("record movement", errors.New("sheets service not initialized"))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	defer c.InvalidateCache()

	accounts, err := c.fetchTab(ctx, c.tabs.Accounts)
	if err != nil {
		return "", err
	}
	ah, err := requireHeader(accounts, colID, colName, colBalance)
	if err != nil {
		return "", core.Unavailable("parse "+c.tabs.Accounts, err)
	}
	accountRow := -1
	for i, row := range accounts[1:] {
		if ah.text(row, colID) == tx.AccountID {
			accountRow = i + 1
			break
		}
	}
	if accountRow == -1 {
		return "", fmt.Errorf("account %s: %w", tx.AccountID, core.ErrNotFound)
	}
	current := parseNullDecimal(ah.cell(accounts[accountRow], colBalance))
	balance := decimal.Zero
	if current.Valid {
		balance = current.Decimal
	}
	balance = balance.Add(tx.BalanceEffect())

	movements, err := c.fetchTab(ctx, c.tabs.Movements)
	if err != nil {
		return "", err
	}
	mh, err := requireHeader(movements, colID, colKind, colAmount, colMovedAt)
	if err != nil {
		return "", core.Unavailable("parse "+c.tabs.Movements, err)
	}

	// Next row after the last non-empty one, as the API trims trailing rows.
	nextRow := len(movements) + 1
	cells := mh.row(map[string]any{
		colID:        tx.ID,
		colKind:      tx.Category.String(),
		colAmount:    tx.Amount.String(),
		colMovedAt:   tx.OccurredAt.In(c.loc).Format(movementTimeLayout),
		colAccountID: tx.AccountID,
		colReference: tx.Reference,
	})
	rng := fmt.Sprintf("%s!A%d:%s%d", c.tabs.Movements, nextRow, columnName(len(cells)-1), nextRow)
	if err := c.update(ctx, rng, cells); err != nil {
		return "", err
	}

	balanceRng := fmt.Sprintf("%s!%s%d", c.tabs.Accounts, columnName(ah[colBalance]), accountRow+1)
	if err := c.update(ctx, balanceRng, []any{balance.String()}); err != nil {
		// The movement row is already written; the balance needs a manual fix.
		slog.ErrorContext(ctx, "Movement appended but balance not updated",
			"movement_id", tx.ID, "account_id", tx.AccountID, "range", balanceRng, "error", err)
		return "", err
	}

	slog.InfoContext(ctx, "Movement appended to sheet",
		"movement_id", tx.ID, "range", rng, "account_id", tx.AccountID, "balance", balance.String())
	return tx.ID, nil
}

// update writes one row of values at rng. RAW input keeps the sheet locale
// from reinterpreting decimal points and dates.
func (c *Client) update(ctx context.Context, rng string, cells []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{cells}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return core.Unavailable("update "+rng, err)
	}
	return nil
}

func requireHeader(values [][]any, required ...string) (header, error) {
	h, err := parseHeader(values, required...)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errors.New("tab has no header row")
	}
	return h, nil
}

// row lays out values by header position. Columns without a header stay empty.
func (h header) row(values map[string]any) []any {
	width := 0
	for name := range values {
		if idx, ok := h[name]; ok && idx+1 > width {
			width = idx + 1
		}
	}
	cells := make([]any, width)
	for i := range cells {
		cells[i] = ""
	}
	for name, v := range values {
		if idx, ok := h[name]; ok {
			cells[idx] = v
		}
	}
	return cells
}

// columnName converts a zero based column index into A1 notation.
func columnName(idx int) string {
	name := ""
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		name = string(rune('A'+(n-1)%26)) + name
	}
	return name
}
