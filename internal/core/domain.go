package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CategoryIncome       Category = "ingreso"
	CategoryReinvestment Category = "reinversion"
	CategorySalary       Category = "sueldo"
	CategoryOther        Category = "otro"
)

type (
	// Category classifies a cash movement.
	Category string

	// Transaction is a recorded cash movement. Immutable once stored.
	Transaction struct {
		ID         string
		Category   Category
		Amount     decimal.Decimal
		OccurredAt time.Time
		AccountID  string
		Reference  string
	}

	Order struct {
		ID          string
		ClientID    string // empty when the order is not attributed to a client
		Date        time.Time
		TotalBilled decimal.Decimal
		// Grams actually charged to the client; falls back to GramsActual when null.
		GramsCharged decimal.NullDecimal
		GramsActual  decimal.NullDecimal
	}

	Client struct {
		ID   string
		Name string
	}

	// Account holds a running balance; it is not period scoped.
	Account struct {
		ID      string
		Name    string
		Balance decimal.NullDecimal
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyAccount    = errors.New("empty account id")
	ErrZeroDate        = errors.New("date cannot be zero")
	// ErrDateOutOfRange reports a date the record store cannot hold.
	ErrDateOutOfRange = errors.New("date out of range")
)

// ParseCategory accepts both the stored names and their English aliases.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ingreso", "income":
		return CategoryIncome, nil
	case "reinversion", "reinversión", "reinvestment":
		return CategoryReinvestment, nil
	case "sueldo", "salary":
		return CategorySalary, nil
	case "otro", "other":
		return CategoryOther, nil
	default:
		return "", ErrInvalidCategory
	}
}

func (c Category) String() string {
	return string(c)
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryIncome, CategoryReinvestment, CategorySalary, CategoryOther:
		return true
	default:
		return false
	}
}

// BalanceEffect returns the signed amount a movement applies to its account:
// income adds, reinvestment and salary subtract, anything else leaves it alone.
func (t Transaction) BalanceEffect() decimal.Decimal {
	switch t.Category {
	case CategoryIncome:
		return t.Amount
	case CategoryReinvestment, CategorySalary:
		return t.Amount.Neg()
	default:
		return decimal.Zero
	}
}

func (t Transaction) Validate() error {
	if !t.Category.IsValid() {
		return ErrInvalidCategory
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrEmptyAccount
	}
	if t.OccurredAt.IsZero() {
		return ErrZeroDate
	}
	if len(t.Reference) > 200 {
		return errors.New("reference too long (max 200 characters)")
	}
	return nil
}

// Grams returns the grams sold by the order: charged grams, else actual grams, else zero.
func (o Order) Grams() decimal.Decimal {
	if o.GramsCharged.Valid {
		return o.GramsCharged.Decimal
	}
	if o.GramsActual.Valid {
		return o.GramsActual.Decimal
	}
	return decimal.Zero
}

// BalanceOrZero treats a missing balance as zero.
func (a Account) BalanceOrZero() decimal.Decimal {
	if !a.Balance.Valid {
		return decimal.Zero
	}
	return a.Balance.Decimal
}

// TotalBalance sums the balances of all accounts, counting null balances as zero.
func TotalBalance(accounts []Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.BalanceOrZero())
	}
	return total
}

// FindAccount returns the first account whose name contains needle, case-insensitively.
func FindAccount(accounts []Account, needle string) (Account, bool) {
	needle = strings.ToLower(needle)
	for _, a := range accounts {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			return a, true
		}
	}
	return Account{}, false
}
