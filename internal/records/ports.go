package records

import (
	"context"

	"caja/internal/core"
)

// TransactionFilter selects movements of one category inside a period.
type TransactionFilter struct {
	Category core.Category
	Period   core.Period
}

// Ports for outbound adapters. Read failures must wrap core.ErrDataUnavailable.
type (
	TransactionReader interface {
		// ListTransactions returns the movements matching the filter.
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	}

	OrderReader interface {
		// ListOrders returns the orders dated inside the period.
		ListOrders(ctx context.Context, p core.Period) ([]core.Order, error)
	}

	ClientReader interface {
		// GetClient returns core.ErrNotFound when no client has the id.
		GetClient(ctx context.Context, id string) (core.Client, error)
	}

	AccountReader interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
	}

	// MovementWriter records a cash movement and applies it to its account balance.
	MovementWriter interface {
		RecordMovement(ctx context.Context, tx core.Transaction) (id string, err error)
	}

	// SnapshotStore persists the closing figures of each month.
	SnapshotStore interface {
		UpsertMonthSnapshot(ctx context.Context, s core.MonthSnapshot) error
		// ListMonthSnapshots returns the newest months first.
		ListMonthSnapshots(ctx context.Context, limit int) ([]core.MonthSnapshot, error)
	}

	// Store is the read side consumed by the aggregators.
	Store interface {
		TransactionReader
		OrderReader
		ClientReader
		AccountReader
	}
)
