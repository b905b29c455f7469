package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caja/internal/core"
	"caja/internal/records"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "caja.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_DefaultAccounts(t *testing.T) {
	repo := newTestRepository(t)

	accounts, err := repo.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "billetera", accounts[0].ID)
	assert.True(t, accounts[1].Balance.Valid)
	assert.True(t, core.TotalBalance(accounts).IsZero())
}

func TestSQLiteRepository_RecordMovementAndFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	jan := core.ResolvePeriod(0, 2024, time.UTC)

	movements := []core.Transaction{
		{Category: core.CategoryIncome, Amount: d("100.10"), OccurredAt: jan.Start, AccountID: "efectivo"},
		{Category: core.CategoryIncome, Amount: d("49.90"), OccurredAt: jan.End.Add(-time.Nanosecond), AccountID: "efectivo"},
		{Category: core.CategoryIncome, Amount: d("7"), OccurredAt: jan.End, AccountID: "efectivo"},
		{Category: core.CategoryReinvestment, Amount: d("30"), OccurredAt: jan.Start.Add(time.Hour), AccountID: "billetera"},
	}
	for _, m := range movements {
		id, err := repo.RecordMovement(ctx, m)
		require.NoError(t, err)
		require.NotEmpty(t, id)
	}

	income, err := repo.ListTransactions(ctx, records.TransactionFilter{Category: core.CategoryIncome, Period: jan})
	require.NoError(t, err)
	require.Len(t, income, 2)
	assert.True(t, income[0].Amount.Add(income[1].Amount).Equal(d("150")))
	assert.True(t, income[0].OccurredAt.Equal(jan.Start))

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	byID := map[string]decimal.Decimal{}
	for _, a := range accounts {
		byID[a.ID] = a.BalanceOrZero()
	}
	assert.True(t, byID["efectivo"].Equal(d("157")), "efectivo = %s", byID["efectivo"])
	assert.True(t, byID["billetera"].Equal(d("-30")), "billetera = %s", byID["billetera"])
}

func TestSQLiteRepository_RecordMovementUnknownAccount(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.RecordMovement(context.Background(), core.Transaction{
		Category: core.CategoryIncome, Amount: d("1"), OccurredAt: time.Now(), AccountID: "banco",
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLiteRepository_DatesOutsideStorableRange(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.RecordMovement(ctx, core.Transaction{
		Category: core.CategoryIncome, Amount: d("100"), OccurredAt: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), AccountID: "efectivo",
	})
	require.NoError(t, err)

	for _, year := range []int{1600, 2262, 2300, 9999} {
		p := core.ResolvePeriod(0, year, time.UTC)
		txs, err := repo.ListTransactions(ctx, records.TransactionFilter{Category: core.CategoryIncome, Period: p})
		require.NoError(t, err)
		assert.Empty(t, txs, "year %d", year)
		orders, err := repo.ListOrders(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, orders, "year %d", year)
	}

	_, err = repo.RecordMovement(ctx, core.Transaction{
		Category: core.CategoryIncome, Amount: d("1"), OccurredAt: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC), AccountID: "efectivo",
	})
	assert.ErrorIs(t, err, core.ErrDateOutOfRange)

	err = repo.Import(ctx, Dataset{Orders: []core.Order{{ID: "o1", Date: time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC)}}})
	assert.ErrorIs(t, err, core.ErrDateOutOfRange)

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	assert.True(t, core.TotalBalance(accounts).Equal(d("100")), "rejected writes must not touch balances")
}

func TestSQLiteRepository_ImportOrdersAndClients(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	feb := core.ResolvePeriod(1, 2024, time.UTC)

	err := repo.Import(ctx, Dataset{
		Accounts: []core.Account{{ID: "banco", Name: "Banco"}},
		Clients:  []core.Client{{ID: "c1", Name: "Ana Pérez"}},
		Orders: []core.Order{
			{ID: "o1", ClientID: "c1", Date: feb.Start.Add(time.Hour), TotalBilled: d("300"), GramsActual: decimal.NewNullDecimal(d("5.25"))},
			{ID: "o2", Date: feb.Start.Add(2 * time.Hour), TotalBilled: d("10")},
			{ID: "o3", ClientID: "c1", Date: feb.End, TotalBilled: d("1")},
		},
	})
	require.NoError(t, err)

	orders, err := repo.ListOrders(ctx, feb)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "c1", orders[0].ClientID)
	assert.Equal(t, "", orders[1].ClientID)
	assert.False(t, orders[0].GramsCharged.Valid)
	assert.True(t, orders[0].Grams().Equal(d("5.25")))

	c, err := repo.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez", c.Name)

	_, err = repo.GetClient(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 3)
	for _, a := range accounts {
		if a.ID == "banco" {
			assert.False(t, a.Balance.Valid)
		}
	}
}

func TestSQLiteRepository_Snapshots(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, ym := range []core.YearMonth{{Year: 2024, Month: 0}, {Year: 2024, Month: 1}} {
		require.NoError(t, repo.UpsertMonthSnapshot(ctx, core.MonthSnapshot{
			Month: ym, Income: d("1"), Reinvestment: d("0"), Salary: d("0"), NetProfit: d("1"), GramsSold: d("0"), ComputedAt: at,
		}))
	}
	// Recomputing a month replaces it.
	require.NoError(t, repo.UpsertMonthSnapshot(ctx, core.MonthSnapshot{
		Month: core.YearMonth{Year: 2024, Month: 1}, Income: d("150"), Reinvestment: d("30"), Salary: d("0"),
		NetProfit: d("120"), GramsSold: d("2.5"), TopClientID: "B", TopClientName: "Bruno", TopClientOrders: 2, ComputedAt: at,
	}))

	snaps, err := repo.ListMonthSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, core.YearMonth{Year: 2024, Month: 1}, snaps[0].Month)
	assert.True(t, snaps[0].NetProfit.Equal(d("120")))
	assert.Equal(t, "Bruno", snaps[0].TopClientName)
	assert.True(t, snaps[0].ComputedAt.Equal(at))
}

func TestSQLiteRepository_QueryFailuresAreUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := newRepository(db)
	ctx := context.Background()
	boom := errors.New("disk I/O error")

	mock.ExpectQuery("FROM movements").WillReturnError(boom)
	_, err = repo.ListTransactions(ctx, records.TransactionFilter{Category: core.CategoryIncome})
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("FROM orders").WillReturnError(boom)
	_, err = repo.ListOrders(ctx, core.Period{})
	assert.ErrorIs(t, err, core.ErrDataUnavailable)

	mock.ExpectQuery("FROM clients").WillReturnError(boom)
	_, err = repo.GetClient(ctx, "c1")
	assert.ErrorIs(t, err, core.ErrDataUnavailable)

	mock.ExpectQuery("FROM accounts").WillReturnError(boom)
	_, err = repo.ListAccounts(ctx)
	assert.ErrorIs(t, err, core.ErrDataUnavailable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepository_RecordMovementRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := newRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("efectivo").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("10"))
	mock.ExpectExec("INSERT INTO movements").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE accounts SET balance").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	_, err = repo.RecordMovement(context.Background(), core.Transaction{
		Category: core.CategoryIncome, Amount: d("5"), OccurredAt: time.Now(), AccountID: "efectivo",
	})
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepository_ListTransactionsMapsRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := newRepository(db)

	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM movements").
		WithArgs("ingreso", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "category", "amount", "occurred_at", "account_id", "reference"}).
			AddRow("m1", "ingreso", "1234.56", at.UnixNano(), "efectivo", "venta"))

	txs, err := repo.ListTransactions(context.Background(), records.TransactionFilter{Category: core.CategoryIncome, Period: core.ResolvePeriod(0, 2024, nil)})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.Equal(d("1234.56")))
	assert.True(t, txs[0].OccurredAt.Equal(at))
	assert.Equal(t, "venta", txs[0].Reference)
}
