package storage

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds one method per statement, with rows mapped to plain structs.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Movement struct {
	ID         string
	Category   string
	Amount     decimal.Decimal
	OccurredAt int64
	AccountID  string
	Reference  string
}

type OrderRow struct {
	ID           string
	ClientID     sql.NullString
	OrderedAt    int64
	Total        decimal.Decimal
	GramsCharged decimal.NullDecimal
	GramsActual  decimal.NullDecimal
}

type AccountRow struct {
	ID      string
	Name    string
	Balance decimal.NullDecimal
}

type SnapshotRow struct {
	Year            int64
	Month           int64
	Income          decimal.Decimal
	Reinvestment    decimal.Decimal
	Salary          decimal.Decimal
	NetProfit       decimal.Decimal
	GramsSold       decimal.Decimal
	TopClientID     string
	TopClientName   string
	TopClientOrders int64
	ComputedAt      int64
}

const listMovementsByCategory = `-- name: ListMovementsByCategory :many
SELECT id, category, amount, occurred_at, account_id, reference
FROM movements
WHERE category = ? AND occurred_at >= ? AND occurred_at < ?
ORDER BY occurred_at, id`

func (q *Queries) ListMovementsByCategory(ctx context.Context, category string, from, to int64) ([]Movement, error) {
	rows, err := q.db.QueryContext(ctx, listMovementsByCategory, category, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Movement
	for rows.Next() {
		var i Movement
		if err := rows.Scan(&i.ID, &i.Category, &i.Amount, &i.OccurredAt, &i.AccountID, &i.Reference); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertMovement = `-- name: InsertMovement :exec
INSERT INTO movements (id, category, amount, occurred_at, account_id, reference, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

type InsertMovementParams struct {
	ID         string
	Category   string
	Amount     decimal.Decimal
	OccurredAt int64
	AccountID  string
	Reference  string
	CreatedAt  int64
}

func (q *Queries) InsertMovement(ctx context.Context, arg InsertMovementParams) error {
	_, err := q.db.ExecContext(ctx, insertMovement,
		arg.ID, arg.Category, arg.Amount, arg.OccurredAt, arg.AccountID, arg.Reference, arg.CreatedAt)
	return err
}

const listOrdersBetween = `-- name: ListOrdersBetween :many
SELECT id, client_id, ordered_at, total, grams_charged, grams_actual
FROM orders
WHERE ordered_at >= ? AND ordered_at < ?
ORDER BY ordered_at, id`

func (q *Queries) ListOrdersBetween(ctx context.Context, from, to int64) ([]OrderRow, error) {
	rows, err := q.db.QueryContext(ctx, listOrdersBetween, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderRow
	for rows.Next() {
		var i OrderRow
		if err := rows.Scan(&i.ID, &i.ClientID, &i.OrderedAt, &i.Total, &i.GramsCharged, &i.GramsActual); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertOrder = `-- name: UpsertOrder :exec
INSERT INTO orders (id, client_id, ordered_at, total, grams_charged, grams_actual)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    client_id = excluded.client_id,
    ordered_at = excluded.ordered_at,
    total = excluded.total,
    grams_charged = excluded.grams_charged,
    grams_actual = excluded.grams_actual`

func (q *Queries) UpsertOrder(ctx context.Context, arg OrderRow) error {
	_, err := q.db.ExecContext(ctx, upsertOrder,
		arg.ID, arg.ClientID, arg.OrderedAt, arg.Total, arg.GramsCharged, arg.GramsActual)
	return err
}

const getClient = `-- name: GetClient :one
SELECT id, full_name FROM clients WHERE id = ?`

func (q *Queries) GetClient(ctx context.Context, id string) (string, string, error) {
	var cid, name string
	err := q.db.QueryRowContext(ctx, getClient, id).Scan(&cid, &name)
	return cid, name, err
}

const upsertClient = `-- name: UpsertClient :exec
INSERT INTO clients (id, full_name) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET full_name = excluded.full_name`

func (q *Queries) UpsertClient(ctx context.Context, id, name string) error {
	_, err := q.db.ExecContext(ctx, upsertClient, id, name)
	return err
}

const listAccounts = `-- name: ListAccounts :many
SELECT id, name, balance FROM accounts ORDER BY id`

func (q *Queries) ListAccounts(ctx context.Context) ([]AccountRow, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountRow
	for rows.Next() {
		var i AccountRow
		if err := rows.Scan(&i.ID, &i.Name, &i.Balance); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getAccountBalance = `-- name: GetAccountBalance :one
SELECT balance FROM accounts WHERE id = ?`

func (q *Queries) GetAccountBalance(ctx context.Context, id string) (decimal.NullDecimal, error) {
	var balance decimal.NullDecimal
	err := q.db.QueryRowContext(ctx, getAccountBalance, id).Scan(&balance)
	return balance, err
}

const setAccountBalance = `-- name: SetAccountBalance :exec
UPDATE accounts SET balance = ? WHERE id = ?`

func (q *Queries) SetAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	_, err := q.db.ExecContext(ctx, setAccountBalance, balance, id)
	return err
}

const upsertAccount = `-- name: UpsertAccount :exec
INSERT INTO accounts (id, name, balance) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, balance = excluded.balance`

func (q *Queries) UpsertAccount(ctx context.Context, arg AccountRow) error {
	_, err := q.db.ExecContext(ctx, upsertAccount, arg.ID, arg.Name, arg.Balance)
	return err
}

const upsertMonthSnapshot = `-- name: UpsertMonthSnapshot :exec
INSERT INTO month_snapshots (
    year, month, income, reinvestment, salary, net_profit, grams_sold,
    top_client_id, top_client_name, top_client_orders, computed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(year, month) DO UPDATE SET
    income = excluded.income,
    reinvestment = excluded.reinvestment,
    salary = excluded.salary,
    net_profit = excluded.net_profit,
    grams_sold = excluded.grams_sold,
    top_client_id = excluded.top_client_id,
    top_client_name = excluded.top_client_name,
    top_client_orders = excluded.top_client_orders,
    computed_at = excluded.computed_at`

func (q *Queries) UpsertMonthSnapshot(ctx context.Context, arg SnapshotRow) error {
	_, err := q.db.ExecContext(ctx, upsertMonthSnapshot,
		arg.Year, arg.Month, arg.Income, arg.Reinvestment, arg.Salary, arg.NetProfit, arg.GramsSold,
		arg.TopClientID, arg.TopClientName, arg.TopClientOrders, arg.ComputedAt)
	return err
}

const listMonthSnapshots = `-- name: ListMonthSnapshots :many
SELECT year, month, income, reinvestment, salary, net_profit, grams_sold,
       top_client_id, top_client_name, top_client_orders, computed_at
FROM month_snapshots
ORDER BY year DESC, month DESC
LIMIT ?`

func (q *Queries) ListMonthSnapshots(ctx context.Context, limit int64) ([]SnapshotRow, error) {
	rows, err := q.db.QueryContext(ctx, listMonthSnapshots, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SnapshotRow
	for rows.Next() {
		var i SnapshotRow
		if err := rows.Scan(&i.Year, &i.Month, &i.Income, &i.Reinvestment, &i.Salary, &i.NetProfit, &i.GramsSold,
			&i.TopClientID, &i.TopClientName, &i.TopClientOrders, &i.ComputedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
