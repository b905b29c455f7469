package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"caja/internal/core"
	"caja/internal/records"
)

// Aggregator computes the monthly figures of the dashboard from the record store.
// It holds no mutable state: every call does exactly one read pass and is safe
// to repeat or run concurrently.
type Aggregator struct {
	store records.Store
	loc   *time.Location
}

// NewAggregator resolves periods in loc; nil means UTC.
func NewAggregator(store records.Store, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{store: store, loc: loc}
}

// Location returns the reference zone months are resolved in.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// Period resolves month (0-11) of year in the reference zone.
func (a *Aggregator) Period(month, year int) core.Period {
	return core.ResolvePeriod(month, year, a.loc)
}

// MonthlyIncome sums the income movements of the month.
func (a *Aggregator) MonthlyIncome(ctx context.Context, month, year int) (decimal.Decimal, error) {
	return a.sumCategory(ctx, core.CategoryIncome, month, year, false)
}

// MonthlyReinvestment sums the reinvestment movements of the month as a positive figure.
func (a *Aggregator) MonthlyReinvestment(ctx context.Context, month, year int) (decimal.Decimal, error) {
	return a.sumCategory(ctx, core.CategoryReinvestment, month, year, true)
}

// MonthlySalary sums the salary withdrawals of the month.
func (a *Aggregator) MonthlySalary(ctx context.Context, month, year int) (decimal.Decimal, error) {
	return a.sumCategory(ctx, core.CategorySalary, month, year, false)
}

// MonthlyNetProfit is income minus reinvestment; salary is not deducted.
func (a *Aggregator) MonthlyNetProfit(ctx context.Context, month, year int) (decimal.Decimal, error) {
	income, err := a.MonthlyIncome(ctx, month, year)
	if err != nil {
		return decimal.Zero, err
	}
	reinvestment, err := a.MonthlyReinvestment(ctx, month, year)
	if err != nil {
		return decimal.Zero, err
	}
	return income.Sub(reinvestment), nil
}

// MonthlyGramsSold sums the grams of every order of the month, attributed or not.
func (a *Aggregator) MonthlyGramsSold(ctx context.Context, month, year int) (decimal.Decimal, error) {
	orders, err := a.ordersOf(ctx, month, year)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Grams())
	}
	return total, nil
}

// MostActiveClient returns the client with the most orders in the month, or
// nil when no order of the month is attributed to a client. See TopClient
// for the tie-break order. Only the winner's name is looked up.
func (a *Aggregator) MostActiveClient(ctx context.Context, month, year int) (*core.ClientActivity, error) {
	orders, err := a.ordersOf(ctx, month, year)
	if err != nil {
		return nil, err
	}
	top, ok := TopClient(orders)
	if !ok {
		return nil, nil
	}

	client, err := a.store.GetClient(ctx, top.ClientID)
	switch {
	case err == nil:
		top.Name = client.Name
	case errors.Is(err, core.ErrNotFound):
		slog.WarnContext(ctx, "Most active client has no client record",
			"client_id", top.ClientID, "year", year, "month", month)
	default:
		return nil, fmt.Errorf("resolve client %s: %w", top.ClientID, err)
	}
	return &top, nil
}

// ListAccounts returns the current accounts; balances are not period scoped.
func (a *Aggregator) ListAccounts(ctx context.Context) ([]core.Account, error) {
	accounts, err := a.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (a *Aggregator) sumCategory(ctx context.Context, cat core.Category, month, year int, abs bool) (decimal.Decimal, error) {
	p := a.Period(month, year)
	txs, err := a.store.ListTransactions(ctx, records.TransactionFilter{Category: cat, Period: p})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list movements",
			"category", cat, "year", year, "month", month, "error", err)
		return decimal.Zero, fmt.Errorf("sum %s: %w", cat, err)
	}

	total := decimal.Zero
	for _, tx := range txs {
		// Stores may filter loosely; the half-open window and category are enforced here.
		if tx.Category != cat || !p.Contains(tx.OccurredAt) {
			continue
		}
		amount := tx.Amount
		if abs {
			amount = amount.Abs()
		}
		total = total.Add(amount)
	}

	slog.DebugContext(ctx, "Monthly sum computed",
		"category", cat, "year", year, "month", month,
		"movements", len(txs), "total", total.String())
	return total, nil
}

func (a *Aggregator) ordersOf(ctx context.Context, month, year int) ([]core.Order, error) {
	p := a.Period(month, year)
	orders, err := a.store.ListOrders(ctx, p)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list orders", "year", year, "month", month, "error", err)
		return nil, fmt.Errorf("list orders: %w", err)
	}
	var inPeriod []core.Order
	for _, o := range orders {
		if p.Contains(o.Date) {
			inPeriod = append(inPeriod, o)
		}
	}
	return inPeriod, nil
}
