package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"caja/internal/cache"
	"caja/internal/core"
	"caja/internal/records/memory"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishMovementRecorded(ctx context.Context, tx core.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func cashFixture() *memory.Store {
	return memory.New(memory.Seed{Accounts: []core.Account{{ID: "efectivo", Name: "Efectivo"}}})
}

func TestCashService_RecordMovement(t *testing.T) {
	store := cashFixture()
	pub := &mockPublisher{}
	pub.On("PublishMovementRecorded", mock.Anything, mock.MatchedBy(func(tx core.Transaction) bool {
		return tx.ID != "" && tx.AccountID == "efectivo"
	})).Return(nil).Once()

	svc := NewCashService(store, pub, nil)
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }

	tx, err := svc.RecordMovement(context.Background(), core.Transaction{
		Category:  core.CategoryIncome,
		Amount:    d("250.75"),
		AccountID: " efectivo ",
		Reference: "venta",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, at, tx.OccurredAt)
	pub.AssertExpectations(t)

	accounts, err := store.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.True(t, accounts[0].BalanceOrZero().Equal(d("250.75")))
}

func TestCashService_RecordMovementValidation(t *testing.T) {
	tests := []struct {
		name string
		tx   core.Transaction
		want error
	}{
		{"zero amount", core.Transaction{Category: core.CategoryIncome, Amount: d("0"), AccountID: "efectivo"}, core.ErrInvalidAmount},
		{"negative amount", core.Transaction{Category: core.CategoryIncome, Amount: d("-1"), AccountID: "efectivo"}, core.ErrInvalidAmount},
		{"bad category", core.Transaction{Category: "gift", Amount: d("1"), AccountID: "efectivo"}, core.ErrInvalidCategory},
		{"blank account", core.Transaction{Category: core.CategoryIncome, Amount: d("1"), AccountID: "  "}, core.ErrEmptyAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			svc := NewCashService(cashFixture(), pub, nil)

			_, err := svc.RecordMovement(context.Background(), tt.tx)
			assert.ErrorIs(t, err, tt.want)
			pub.AssertNotCalled(t, "PublishMovementRecorded", mock.Anything, mock.Anything)
		})
	}
}

func TestCashService_UnknownAccount(t *testing.T) {
	svc := NewCashService(cashFixture(), nil, nil)
	_, err := svc.RecordMovement(context.Background(), core.Transaction{Category: core.CategorySalary, Amount: d("5"), AccountID: "banco"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCashService_PublishFailureDoesNotFailWrite(t *testing.T) {
	store := cashFixture()
	pub := &mockPublisher{}
	pub.On("PublishMovementRecorded", mock.Anything, mock.Anything).Return(errors.New("circuit breaker is open"))

	svc := NewCashService(store, pub, nil)
	tx, err := svc.RecordMovement(context.Background(), core.Transaction{Category: core.CategoryReinvestment, Amount: d("10"), AccountID: "efectivo"})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)

	accounts, _ := store.ListAccounts(context.Background())
	assert.True(t, accounts[0].BalanceOrZero().Equal(d("-10")))
}

func TestCashService_InvalidatesDashboards(t *testing.T) {
	store := cashFixture()
	c := cache.NewLRUCache[core.YearMonth, core.Dashboard](4, time.Hour)
	dashboards := NewDashboardService(NewAggregator(store, time.UTC), WithDashboardCache(c))

	_, err := dashboards.Load(context.Background(), 0, 2024)
	require.NoError(t, err)
	require.Equal(t, 1, c.Size())

	svc := NewCashService(store, nil, dashboards)
	_, err = svc.RecordMovement(context.Background(), core.Transaction{Category: core.CategoryIncome, Amount: d("1"), AccountID: "efectivo"})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Size())
}
