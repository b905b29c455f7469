package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"caja/internal/core"
	"caja/internal/records"

	_ "modernc.org/sqlite"
)

var (
	_ records.Store          = (*SQLiteRepository)(nil)
	_ records.MovementWriter = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newRepository(db), nil
}

func newRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, queries: New(db), now: time.Now}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.Unavailable("ping sqlite", err)
	}
	return nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f records.TransactionFilter) ([]core.Transaction, error) {
	rows, err := r.queries.ListMovementsByCategory(ctx, f.Category.String(), toUnix(f.Period.Start), toUnix(f.Period.End))
	if err != nil {
		return nil, core.Unavailable("list movements", err)
	}

	txs := make([]core.Transaction, 0, len(rows))
	for _, m := range rows {
		cat, err := core.ParseCategory(m.Category)
		if err != nil {
			cat = core.CategoryOther
		}
		txs = append(txs, core.Transaction{
			ID:         m.ID,
			Category:   cat,
			Amount:     m.Amount,
			OccurredAt: fromUnix(m.OccurredAt),
			AccountID:  m.AccountID,
			Reference:  m.Reference,
		})
	}
	return txs, nil
}

func (r *SQLiteRepository) ListOrders(ctx context.Context, p core.Period) ([]core.Order, error) {
	rows, err := r.queries.ListOrdersBetween(ctx, toUnix(p.Start), toUnix(p.End))
	if err != nil {
		return nil, core.Unavailable("list orders", err)
	}

	orders := make([]core.Order, 0, len(rows))
	for _, o := range rows {
		orders = append(orders, core.Order{
			ID:           o.ID,
			ClientID:     o.ClientID.String,
			Date:         fromUnix(o.OrderedAt),
			TotalBilled:  o.Total,
			GramsCharged: o.GramsCharged,
			GramsActual:  o.GramsActual,
		})
	}
	return orders, nil
}

func (r *SQLiteRepository) GetClient(ctx context.Context, id string) (core.Client, error) {
	cid, name, err := r.queries.GetClient(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Client{}, fmt.Errorf("client %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Client{}, core.Unavailable("get client", err)
	}
	return core.Client{ID: cid, Name: name}, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return nil, core.Unavailable("list accounts", err)
	}
	accounts := make([]core.Account, 0, len(rows))
	for _, a := range rows {
		accounts = append(accounts, core.Account{ID: a.ID, Name: a.Name, Balance: a.Balance})
	}
	return accounts, nil
}

// RecordMovement inserts tx and applies it to its account balance in one
// transaction. It returns core.ErrNotFound when the account does not exist.
func (r *SQLiteRepository) RecordMovement(ctx context.Context, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = r.now()
	}
	if err := tx.Validate(); err != nil {
		return "", err
	}
	if err := checkStorable(tx.OccurredAt); err != nil {
		return "", err
	}

	err := r.inTx(ctx, func(q *Queries) error {
		balance, err := q.GetAccountBalance(ctx, tx.AccountID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("account %s: %w", tx.AccountID, core.ErrNotFound)
		}
		if err != nil {
			return core.Unavailable("read balance", err)
		}

		if err := q.InsertMovement(ctx, InsertMovementParams{
			ID:         tx.ID,
			Category:   tx.Category.String(),
			Amount:     tx.Amount,
			OccurredAt: toUnix(tx.OccurredAt),
			AccountID:  tx.AccountID,
			Reference:  tx.Reference,
			CreatedAt:  toUnix(r.now()),
		}); err != nil {
			return core.Unavailable("insert movement", err)
		}

		current := decimal.Zero
		if balance.Valid {
			current = balance.Decimal
		}
		if err := q.SetAccountBalance(ctx, tx.AccountID, current.Add(tx.BalanceEffect())); err != nil {
			return core.Unavailable("update balance", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Movement saved to SQLite",
		"id", tx.ID,
		"category", tx.Category,
		"amount", tx.Amount.String(),
		"account_id", tx.AccountID)
	return tx.ID, nil
}

// Dataset is a bulk load of records, as read from seed files.
type Dataset struct {
	Accounts  []core.Account
	Clients   []core.Client
	Movements []core.Transaction
	Orders    []core.Order
}

// Import upserts every record of d in one transaction. Movements are stored
// as given and do not touch balances; the accounts carry their own.
func (r *SQLiteRepository) Import(ctx context.Context, d Dataset) error {
	now := toUnix(r.now())
	return r.inTx(ctx, func(q *Queries) error {
		for _, a := range d.Accounts {
			if err := q.UpsertAccount(ctx, AccountRow{ID: a.ID, Name: a.Name, Balance: a.Balance}); err != nil {
				return core.Unavailable("import account "+a.ID, err)
			}
		}
		for _, c := range d.Clients {
			if err := q.UpsertClient(ctx, c.ID, c.Name); err != nil {
				return core.Unavailable("import client "+c.ID, err)
			}
		}
		for _, m := range d.Movements {
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			if err := checkStorable(m.OccurredAt); err != nil {
				return fmt.Errorf("import movement %s: %w", m.ID, err)
			}
			if err := q.InsertMovement(ctx, InsertMovementParams{
				ID:         m.ID,
				Category:   m.Category.String(),
				Amount:     m.Amount,
				OccurredAt: toUnix(m.OccurredAt),
				AccountID:  m.AccountID,
				Reference:  m.Reference,
				CreatedAt:  now,
			}); err != nil {
				return core.Unavailable("import movement "+m.ID, err)
			}
		}
		for _, o := range d.Orders {
			if o.ID == "" {
				o.ID = uuid.NewString()
			}
			if err := checkStorable(o.Date); err != nil {
				return fmt.Errorf("import order %s: %w", o.ID, err)
			}
			if err := q.UpsertOrder(ctx, OrderRow{
				ID:           o.ID,
				ClientID:     sql.NullString{String: o.ClientID, Valid: o.ClientID != ""},
				OrderedAt:    toUnix(o.Date),
				Total:        o.TotalBilled,
				GramsCharged: o.GramsCharged,
				GramsActual:  o.GramsActual,
			}); err != nil {
				return core.Unavailable("import order "+o.ID, err)
			}
		}
		return nil
	})
}

// UpsertMonthSnapshot stores the figures of a month, replacing older ones.
func (r *SQLiteRepository) UpsertMonthSnapshot(ctx context.Context, s core.MonthSnapshot) error {
	err := r.queries.UpsertMonthSnapshot(ctx, SnapshotRow{
		Year:            int64(s.Month.Year),
		Month:           int64(s.Month.Month),
		Income:          s.Income,
		Reinvestment:    s.Reinvestment,
		Salary:          s.Salary,
		NetProfit:       s.NetProfit,
		GramsSold:       s.GramsSold,
		TopClientID:     s.TopClientID,
		TopClientName:   s.TopClientName,
		TopClientOrders: int64(s.TopClientOrders),
		ComputedAt:      toUnix(s.ComputedAt),
	})
	if err != nil {
		return core.Unavailable("upsert snapshot", err)
	}
	return nil
}

// ListMonthSnapshots returns the latest limit months, newest first.
func (r *SQLiteRepository) ListMonthSnapshots(ctx context.Context, limit int) ([]core.MonthSnapshot, error) {
	if limit <= 0 {
		limit = 12
	}
	rows, err := r.queries.ListMonthSnapshots(ctx, int64(limit))
	if err != nil {
		return nil, core.Unavailable("list snapshots", err)
	}
	out := make([]core.MonthSnapshot, 0, len(rows))
	for _, s := range rows {
		out = append(out, core.MonthSnapshot{
			Month:           core.YearMonth{Year: int(s.Year), Month: int(s.Month)},
			Income:          s.Income,
			Reinvestment:    s.Reinvestment,
			Salary:          s.Salary,
			NetProfit:       s.NetProfit,
			GramsSold:       s.GramsSold,
			TopClientID:     s.TopClientID,
			TopClientName:   s.TopClientName,
			TopClientOrders: int(s.TopClientOrders),
			ComputedAt:      fromUnix(s.ComputedAt),
		})
	}
	return out, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Unavailable("begin transaction", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to rollback transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return core.Unavailable("commit transaction", err)
	}
	return nil
}

// Times are stored as Unix nanoseconds, which only reach from 1677 to 2262.
var (
	minStoredTime = time.Unix(0, math.MinInt64).UTC()
	maxStoredTime = time.Unix(0, math.MaxInt64).UTC()
)

// toUnix clamps times outside the storable range to its ends, so a query
// window beyond it selects nothing instead of wrapping around.
func toUnix(t time.Time) int64 {
	switch {
	case t.Before(minStoredTime):
		return math.MinInt64
	case t.After(maxStoredTime):
		return math.MaxInt64
	}
	return t.UTC().UnixNano()
}

func checkStorable(t time.Time) error {
	if t.Before(minStoredTime) || t.After(maxStoredTime) {
		return fmt.Errorf("%s: %w", t.Format(time.RFC3339), core.ErrDateOutOfRange)
	}
	return nil
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
