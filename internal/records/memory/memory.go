package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"caja/internal/core"
	"caja/internal/records"
)

// Ensure interface conformance
var (
	_ records.Store          = (*Store)(nil)
	_ records.MovementWriter = (*Store)(nil)
)

// Seed is the initial content of a Store.
type Seed struct {
	Accounts     []core.Account
	Clients      []core.Client
	Transactions []core.Transaction
	Orders       []core.Order
}

type Store struct {
	mu       sync.Mutex
	accounts []core.Account
	clients  map[string]core.Client
	txs      []core.Transaction
	orders   []core.Order
	now      func() time.Time
}

func New(seed Seed) *Store {
	s := &Store{
		accounts: append([]core.Account(nil), seed.Accounts...),
		clients:  make(map[string]core.Client, len(seed.Clients)),
		txs:      append([]core.Transaction(nil), seed.Transactions...),
		orders:   append([]core.Order(nil), seed.Orders...),
		now:      time.Now,
	}
	for _, c := range seed.Clients {
		s.clients[c.ID] = c
	}
	return s
}

// NewFromFiles seeds a store from the files read by ReadSeed. Without
// accounts the store starts with an empty cash box and virtual wallet.
func NewFromFiles(base string) (*Store, error) {
	seed, err := ReadSeed(base)
	if err != nil {
		return nil, err
	}
	if len(seed.Accounts) == 0 {
		seed.Accounts = []core.Account{
			{ID: "efectivo", Name: "Efectivo", Balance: decimal.NewNullDecimal(decimal.Zero)},
			{ID: "billetera", Name: "Billetera virtual", Balance: decimal.NewNullDecimal(decimal.Zero)},
		}
	}
	return New(seed), nil
}

// ReadSeed reads accounts.json, clients.json, movements.json and orders.json
// in base. Missing files leave their part of the seed empty.
func ReadSeed(base string) (Seed, error) {
	var (
		accounts  []seedAccount
		clients   []seedClient
		movements []seedMovement
		orders    []seedOrder
	)
	for name, dst := range map[string]any{
		"accounts.json":  &accounts,
		"clients.json":   &clients,
		"movements.json": &movements,
		"orders.json":    &orders,
	} {
		if err := readJSON(filepath.Join(base, name), dst); err != nil {
			return Seed{}, err
		}
	}

	var seed Seed
	for _, a := range accounts {
		seed.Accounts = append(seed.Accounts, core.Account{ID: a.ID, Name: a.Name, Balance: a.Balance})
	}
	for _, c := range clients {
		seed.Clients = append(seed.Clients, core.Client{ID: c.ID, Name: c.Name})
	}
	for _, m := range movements {
		cat, err := core.ParseCategory(m.Category)
		if err != nil {
			// Unknown kinds still count as movements, just not in any aggregate.
			cat = core.CategoryOther
		}
		seed.Transactions = append(seed.Transactions, core.Transaction{
			ID:         m.ID,
			Category:   cat,
			Amount:     m.Amount,
			OccurredAt: m.OccurredAt,
			AccountID:  m.AccountID,
			Reference:  m.Reference,
		})
	}
	for _, o := range orders {
		order := core.Order{
			ID:           o.ID,
			Date:         o.Date,
			TotalBilled:  o.Total,
			GramsCharged: o.GramsCharged,
			GramsActual:  o.GramsActual,
		}
		if o.ClientID != nil {
			order.ClientID = *o.ClientID
		}
		seed.Orders = append(seed.Orders, order)
	}
	return seed, nil
}

func (s *Store) ListTransactions(_ context.Context, f records.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.Category == f.Category && f.Period.Contains(tx.OccurredAt) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) ListOrders(_ context.Context, p core.Period) ([]core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Order
	for _, o := range s.orders {
		if p.Contains(o.Date) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) GetClient(_ context.Context, id string) (core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return core.Client{}, fmt.Errorf("client %s: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

// RecordMovement stores tx and applies it to its account balance.
func (s *Store) RecordMovement(_ context.Context, tx core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = s.now()
	}
	if err := tx.Validate(); err != nil {
		return "", err
	}
	idx := -1
	for i, a := range s.accounts {
		if a.ID == tx.AccountID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", fmt.Errorf("account %s: %w", tx.AccountID, core.ErrNotFound)
	}
	acc := &s.accounts[idx]
	acc.Balance = decimal.NewNullDecimal(acc.BalanceOrZero().Add(tx.BalanceEffect()))
	s.txs = append(s.txs, tx)
	return tx.ID, nil
}

// Ping always succeeds; the store lives in process.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Seed file rows use the Spanish column names of the shop database.
type (
	seedAccount struct {
		ID      string              `json:"id"`
		Name    string              `json:"nombre"`
		Balance decimal.NullDecimal `json:"balance"`
	}
	seedClient struct {
		ID   string `json:"id"`
		Name string `json:"nombre_completo"`
	}
	seedMovement struct {
		ID         string          `json:"id"`
		Category   string          `json:"tipo"`
		Amount     decimal.Decimal `json:"monto"`
		OccurredAt time.Time       `json:"fecha_movimiento"`
		AccountID  string          `json:"cuenta_id"`
		Reference  string          `json:"referencia"`
	}
	seedOrder struct {
		ID           string              `json:"id"`
		ClientID     *string             `json:"cliente_id"`
		Date         time.Time           `json:"fecha"`
		Total        decimal.Decimal     `json:"total"`
		GramsCharged decimal.NullDecimal `json:"cantidad_cobrada_gramos"`
		GramsActual  decimal.NullDecimal `json:"cantidad_real_gramos"`
	}
)

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
