package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClientActivity summarizes one client's orders in a period.
type ClientActivity struct {
	ClientID    string
	Name        string
	OrderCount  int
	TotalBilled decimal.Decimal
}

// AccountBreakdown splits the balance between the cash box and the virtual wallet.
type AccountBreakdown struct {
	Cash   decimal.Decimal
	Wallet decimal.Decimal
}

// BreakdownOf locates the cash box ("efectivo") and the virtual wallet
// ("billetera") by name. A missing account contributes zero.
func BreakdownOf(accounts []Account) AccountBreakdown {
	b := AccountBreakdown{Cash: decimal.Zero, Wallet: decimal.Zero}
	if a, ok := FindAccount(accounts, "efectivo"); ok {
		b.Cash = a.BalanceOrZero()
	}
	if a, ok := FindAccount(accounts, "billetera"); ok {
		b.Wallet = a.BalanceOrZero()
	}
	return b
}

// Dashboard is the full set of figures shown for one month.
type Dashboard struct {
	Month        YearMonth
	Period       Period
	Income       decimal.Decimal
	Reinvestment decimal.Decimal
	Salary       decimal.Decimal
	NetProfit    decimal.Decimal
	GramsSold    decimal.Decimal
	Accounts     []Account
	TotalBalance decimal.Decimal
	Breakdown    AccountBreakdown
	// MostActiveClient is nil when no order was attributed to a client in the month.
	MostActiveClient *ClientActivity
}

// MonthSnapshot is the persisted closing figure set of a month.
type MonthSnapshot struct {
	Month           YearMonth
	Income          decimal.Decimal
	Reinvestment    decimal.Decimal
	Salary          decimal.Decimal
	NetProfit       decimal.Decimal
	GramsSold       decimal.Decimal
	TopClientID     string
	TopClientName   string
	TopClientOrders int
	ComputedAt      time.Time
}

// SnapshotOf captures the period-scoped figures of d. Balances are left out
// because they are not tied to a month.
func SnapshotOf(d Dashboard, at time.Time) MonthSnapshot {
	s := MonthSnapshot{
		Month:        d.Month,
		Income:       d.Income,
		Reinvestment: d.Reinvestment,
		Salary:       d.Salary,
		NetProfit:    d.NetProfit,
		GramsSold:    d.GramsSold,
		ComputedAt:   at,
	}
	if c := d.MostActiveClient; c != nil {
		s.TopClientID = c.ClientID
		s.TopClientName = c.Name
		s.TopClientOrders = c.OrderCount
	}
	return s
}
