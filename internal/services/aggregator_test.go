package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"caja/internal/core"
	"caja/internal/records"
	"caja/internal/records/memory"
)

var errBoom = errors.New("connection reset")

// looseStore returns everything it holds regardless of filters and can be
// told to fail, to check what the aggregator enforces on its own.
type looseStore struct {
	txs      []core.Transaction
	orders   []core.Order
	clients  map[string]core.Client
	accounts []core.Account

	failTxs, failOrders, failClient, failAccounts bool
	reads                                         atomic.Int64
}

func (s *looseStore) ListTransactions(context.Context, records.TransactionFilter) ([]core.Transaction, error) {
	s.reads.Add(1)
	if s.failTxs {
		return nil, core.Unavailable("list movements", errBoom)
	}
	return s.txs, nil
}

func (s *looseStore) ListOrders(context.Context, core.Period) ([]core.Order, error) {
	s.reads.Add(1)
	if s.failOrders {
		return nil, core.Unavailable("list orders", errBoom)
	}
	return s.orders, nil
}

func (s *looseStore) GetClient(_ context.Context, id string) (core.Client, error) {
	s.reads.Add(1)
	if s.failClient {
		return core.Client{}, core.Unavailable("get client", errBoom)
	}
	c, ok := s.clients[id]
	if !ok {
		return core.Client{}, core.ErrNotFound
	}
	return c, nil
}

func (s *looseStore) ListAccounts(context.Context) ([]core.Account, error) {
	s.reads.Add(1)
	if s.failAccounts {
		return nil, core.Unavailable("list accounts", errBoom)
	}
	return s.accounts, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(month time.Month, dd int) time.Time {
	return time.Date(2024, month, dd, 12, 0, 0, 0, time.UTC)
}

func order(id, client string, at time.Time, total string) core.Order {
	return core.Order{ID: id, ClientID: client, Date: at, TotalBilled: d(total)}
}

func TestMonthlyIncomeAndReinvestment(t *testing.T) {
	store := memory.New(memory.Seed{Transactions: []core.Transaction{
		{ID: "1", Category: core.CategoryIncome, Amount: d("100"), OccurredAt: day(time.January, 5)},
		{ID: "2", Category: core.CategoryIncome, Amount: d("50"), OccurredAt: day(time.January, 20)},
		{ID: "3", Category: core.CategoryReinvestment, Amount: d("30"), OccurredAt: day(time.January, 10)},
		{ID: "4", Category: core.CategoryOther, Amount: d("999"), OccurredAt: day(time.January, 10)},
		{ID: "5", Category: core.CategoryIncome, Amount: d("7"), OccurredAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	}})
	agg := NewAggregator(store, time.UTC)
	ctx := context.Background()

	income, err := agg.MonthlyIncome(ctx, 0, 2024)
	if err != nil || !income.Equal(d("150")) {
		t.Fatalf("income = %s, err = %v; want 150", income, err)
	}
	reinv, err := agg.MonthlyReinvestment(ctx, 0, 2024)
	if err != nil || !reinv.Equal(d("30")) {
		t.Fatalf("reinvestment = %s, err = %v; want 30", reinv, err)
	}
	net, err := agg.MonthlyNetProfit(ctx, 0, 2024)
	if err != nil || !net.Equal(d("120")) {
		t.Fatalf("net = %s, err = %v; want 120", net, err)
	}

	// The movement at exactly Feb 1 00:00 belongs to February only.
	feb, err := agg.MonthlyIncome(ctx, 1, 2024)
	if err != nil || !feb.Equal(d("7")) {
		t.Fatalf("february income = %s, err = %v; want 7", feb, err)
	}
}

func TestMonthlySumsEmptyMonthIsZero(t *testing.T) {
	agg := NewAggregator(memory.New(memory.Seed{}), nil)
	ctx := context.Background()

	for name, fn := range map[string]func(context.Context, int, int) (decimal.Decimal, error){
		"income":       agg.MonthlyIncome,
		"reinvestment": agg.MonthlyReinvestment,
		"salary":       agg.MonthlySalary,
		"grams":        agg.MonthlyGramsSold,
	} {
		got, err := fn(ctx, 5, 2023)
		if err != nil || !got.IsZero() {
			t.Errorf("%s = %s, err = %v; want 0", name, got, err)
		}
	}
}

func TestMonthlySumsRefilterLooseStore(t *testing.T) {
	store := &looseStore{txs: []core.Transaction{
		{Category: core.CategoryIncome, Amount: d("10"), OccurredAt: day(time.March, 1)},
		{Category: core.CategoryIncome, Amount: d("99"), OccurredAt: day(time.April, 1)},
		{Category: core.CategoryReinvestment, Amount: d("-5"), OccurredAt: day(time.March, 2)},
	}}
	agg := NewAggregator(store, time.UTC)

	income, err := agg.MonthlyIncome(context.Background(), 2, 2024)
	if err != nil || !income.Equal(d("10")) {
		t.Fatalf("income = %s, err = %v; want 10", income, err)
	}
	reinv, err := agg.MonthlyReinvestment(context.Background(), 2, 2024)
	if err != nil || !reinv.Equal(d("5")) {
		t.Fatalf("reinvestment = %s, err = %v; want 5", reinv, err)
	}
}

func TestMonthlyIncomeIsExact(t *testing.T) {
	var txs []core.Transaction
	for i := 0; i < 10; i++ {
		txs = append(txs, core.Transaction{Category: core.CategoryIncome, Amount: d("0.10"), OccurredAt: day(time.June, 1)})
	}
	agg := NewAggregator(memory.New(memory.Seed{Transactions: txs}), time.UTC)

	got, err := agg.MonthlyIncome(context.Background(), 5, 2024)
	if err != nil || got.String() != "1" {
		t.Fatalf("income = %s, err = %v; want exactly 1", got, err)
	}
}

func TestMonthlyGramsSold(t *testing.T) {
	store := memory.New(memory.Seed{Orders: []core.Order{
		{ID: "1", Date: day(time.January, 2), GramsCharged: decimal.NewNullDecimal(d("3.5")), GramsActual: decimal.NewNullDecimal(d("9"))},
		{ID: "2", Date: day(time.January, 3), GramsActual: decimal.NewNullDecimal(d("2"))},
		{ID: "3", Date: day(time.January, 4)},
	}})
	got, err := NewAggregator(store, time.UTC).MonthlyGramsSold(context.Background(), 0, 2024)
	if err != nil || !got.Equal(d("5.5")) {
		t.Fatalf("grams = %s, err = %v; want 5.5", got, err)
	}
}

func TestMostActiveClient(t *testing.T) {
	jan := func(dd int) time.Time { return day(time.January, dd) }
	clients := map[string]core.Client{"A": {ID: "A", Name: "Ana"}, "B": {ID: "B", Name: "Bruno"}, "C": {ID: "C", Name: "Carla"}}

	tests := []struct {
		name      string
		orders    []core.Order
		wantID    string
		wantName  string
		wantCount int
		wantTotal string
	}{
		{
			name:      "most orders wins",
			orders:    []core.Order{order("1", "A", jan(1), "10"), order("2", "A", jan(2), "10"), order("3", "B", jan(3), "500")},
			wantID:    "A",
			wantName:  "Ana",
			wantCount: 2,
			wantTotal: "20",
		},
		{
			name:      "tie on count broken by billed total",
			orders:    []core.Order{order("1", "A", jan(1), "100"), order("2", "A", jan(2), "100"), order("3", "B", jan(3), "150"), order("4", "B", jan(4), "150")},
			wantID:    "B",
			wantName:  "Bruno",
			wantCount: 2,
			wantTotal: "300",
		},
		{
			name:      "full tie broken by lowest client id",
			orders:    []core.Order{order("1", "C", jan(1), "50"), order("2", "B", jan(2), "50"), order("3", "A", jan(3), "50")},
			wantID:    "A",
			wantName:  "Ana",
			wantCount: 1,
			wantTotal: "50",
		},
		{
			name:      "unattributed orders are ignored",
			orders:    []core.Order{order("1", "", jan(1), "10"), order("2", "", jan(2), "10"), order("3", "C", jan(3), "1")},
			wantID:    "C",
			wantName:  "Carla",
			wantCount: 1,
			wantTotal: "1",
		},
		{
			name:      "missing client record keeps the winner",
			orders:    []core.Order{order("1", "Z", jan(1), "10")},
			wantID:    "Z",
			wantCount: 1,
			wantTotal: "10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &looseStore{orders: tt.orders, clients: clients}
			agg := NewAggregator(store, time.UTC)

			// Same answer on every call regardless of map iteration order.
			for i := 0; i < 20; i++ {
				got, err := agg.MostActiveClient(context.Background(), 0, 2024)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got == nil {
					t.Fatal("expected a client")
				}
				if got.ClientID != tt.wantID || got.Name != tt.wantName || got.OrderCount != tt.wantCount || !got.TotalBilled.Equal(d(tt.wantTotal)) {
					t.Fatalf("got %+v, want %s/%q/%d/%s", got, tt.wantID, tt.wantName, tt.wantCount, tt.wantTotal)
				}
			}
		})
	}
}

func TestMostActiveClientNoneAttributed(t *testing.T) {
	store := &looseStore{orders: []core.Order{order("1", "", day(time.January, 1), "10")}}
	got, err := NewAggregator(store, time.UTC).MostActiveClient(context.Background(), 0, 2024)
	if err != nil || got != nil {
		t.Fatalf("got %+v, err = %v; want nil, nil", got, err)
	}
	// Only the orders were read; no client lookup without a winner.
	if n := store.reads.Load(); n != 1 {
		t.Fatalf("reads = %d, want 1", n)
	}
}

func TestAggregatorPropagatesUnavailable(t *testing.T) {
	ctx := context.Background()
	withOrders := []core.Order{order("1", "A", day(time.January, 1), "10")}

	tests := []struct {
		name  string
		store *looseStore
		call  func(*Aggregator) error
	}{
		{"income", &looseStore{failTxs: true}, func(a *Aggregator) error { _, err := a.MonthlyIncome(ctx, 0, 2024); return err }},
		{"reinvestment", &looseStore{failTxs: true}, func(a *Aggregator) error { _, err := a.MonthlyReinvestment(ctx, 0, 2024); return err }},
		{"orders", &looseStore{failOrders: true}, func(a *Aggregator) error { _, err := a.MostActiveClient(ctx, 0, 2024); return err }},
		{"client lookup", &looseStore{orders: withOrders, failClient: true}, func(a *Aggregator) error { _, err := a.MostActiveClient(ctx, 0, 2024); return err }},
		{"accounts", &looseStore{failAccounts: true}, func(a *Aggregator) error { _, err := a.ListAccounts(ctx); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(NewAggregator(tt.store, time.UTC))
			if !errors.Is(err, core.ErrDataUnavailable) || !errors.Is(err, errBoom) {
				t.Fatalf("expected wrapped unavailable error, got %v", err)
			}
		})
	}
}

func TestListAccountsTotal(t *testing.T) {
	store := &looseStore{accounts: []core.Account{
		{ID: "1", Balance: decimal.NewNullDecimal(d("120.50"))},
		{ID: "2"},
		{ID: "3", Balance: decimal.NewNullDecimal(d("-20"))},
	}}
	accounts, err := NewAggregator(store, time.UTC).ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := core.TotalBalance(accounts); !got.Equal(d("100.50")) {
		t.Fatalf("total = %s, want 100.50", got)
	}
}
