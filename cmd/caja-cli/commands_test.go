package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caja/internal/core"
	"caja/internal/storage"
)

func TestImportSeedKeepsBalancesWithoutAccountsFile(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "caja.db"))
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.RecordMovement(ctx, core.Transaction{
		Category: core.CategoryIncome, Amount: decimal.NewFromInt(100), AccountID: "efectivo",
	})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clients.json"), []byte(`[{"id":"c1","nombre_completo":"Ana"}]`), 0o644))

	seed, err := importSeed(ctx, repo, dir)
	require.NoError(t, err)
	assert.Empty(t, seed.Accounts)

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	assert.True(t, core.TotalBalance(accounts).Equal(decimal.NewFromInt(100)), "balances: %+v", accounts)

	client, err := repo.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", client.Name)
}

func TestImportSeedWritesListedAccounts(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "caja.db"))
	require.NoError(t, err)
	defer repo.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "accounts.json"), []byte(`[{"id":"efectivo","nombre":"Efectivo","balance":"42.50"}]`), 0o644))

	_, err = importSeed(ctx, repo, dir)
	require.NoError(t, err)

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	acc, ok := core.FindAccount(accounts, "efectivo")
	require.True(t, ok)
	assert.True(t, acc.Balance.Decimal.Equal(decimal.RequireFromString("42.50")))
}
