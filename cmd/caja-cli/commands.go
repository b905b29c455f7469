package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"caja/internal/backend"
	"caja/internal/cli"
	"caja/internal/core"
	"caja/internal/log"
	"caja/internal/records/memory"
	"caja/internal/services"
	"caja/internal/storage"
)

const commandTimeout = 60 * time.Second

// openBackend builds the configured record store. The caller must Close it.
func (a *app) openBackend(ctx context.Context) (*backend.BackendResult, *time.Location, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, nil, fmt.Errorf("load timezone %q: %w", a.cfg.Timezone, err)
	}
	bcfg, err := backend.FromAppConfig(a.cfg, loc)
	if err != nil {
		return nil, nil, err
	}
	// The CLI never publishes events.
	bcfg.AMQPURL = ""
	res, err := backend.NewFactory(a.logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize %s backend: %w", bcfg.Type, err)
	}
	return res, loc, nil
}

func (a *app) closeBackend(res *backend.BackendResult) {
	if err := res.Close(); err != nil {
		a.logger.Warn("Backend cleanup error", log.FieldError, err)
	}
}

type dashboardCmd struct {
	*app
	month int
	year  int
}

func newDashboardCmd(a *app) *cobra.Command {
	dc := &dashboardCmd{app: a}
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the dashboard of a month",
		RunE:  dc.run,
	}
	cmd.Flags().IntVar(&dc.month, "month", 0, "Month to show, 0 (January) to 11 (December), rolling over outside that range; defaults to the current month")
	cmd.Flags().IntVar(&dc.year, "year", 0, "Year to show; defaults to the current year")
	return cmd
}

func (dc *dashboardCmd) run(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	res, loc, err := dc.openBackend(ctx)
	if err != nil {
		return err
	}
	defer dc.closeBackend(res)

	ym := monthOrCurrent(cmd.Flags().Changed("month"), dc.month, dc.year, time.Now().In(loc))
	dashboards, _ := cli.BuildDashboards(res.Backend, loc, 0)
	d, err := dashboards.Load(ctx, ym.Month, ym.Year)
	if err != nil {
		return fmt.Errorf("load dashboard %s: %w", ym, err)
	}
	return renderDashboard(cmd.OutOrStdout(), d)
}

// monthOrCurrent fills unset flags from now; year 0 means unset. A set month
// rolls over the calendar, so -1 is December of the year before.
func monthOrCurrent(monthSet bool, month, year int, now time.Time) core.YearMonth {
	current := core.YearMonthOf(now)
	if !monthSet {
		month = current.Month
	}
	if year == 0 {
		year = current.Year
	}
	return core.NewYearMonth(year, month)
}

func newAccountsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts and their balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			res, _, err := a.openBackend(ctx)
			if err != nil {
				return err
			}
			defer a.closeBackend(res)

			accounts, err := res.Backend.ListAccounts(ctx)
			if err != nil {
				return fmt.Errorf("list accounts: %w", err)
			}
			return renderAccounts(cmd.OutOrStdout(), accounts)
		},
	}
}

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse month by month: < previous, > next, r reload, q quit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, loc, err := a.openBackend(ctx)
			if err != nil {
				return err
			}
			defer a.closeBackend(res)

			dashboards, stop := cli.BuildDashboards(res.Backend, loc, a.cfg.DashboardCacheTTL)
			defer stop()

			view := services.NewMonthView(dashboards, core.YearMonthOf(time.Now().In(loc)))
			defer view.Close()
			return browse(ctx, view, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Load accounts.json, clients.json, movements.json and orders.json into SQLite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			repo, err := storage.NewSQLiteRepository(a.cfg.SQLiteDBPath)
			if err != nil {
				return fmt.Errorf("open %s: %w", a.cfg.SQLiteDBPath, err)
			}
			defer repo.Close()

			seed, err := importSeed(ctx, repo, args[0])
			if err != nil {
				return err
			}

			a.logger.Info("Import completed",
				"path", a.cfg.SQLiteDBPath,
				"accounts", len(seed.Accounts),
				"clients", len(seed.Clients),
				"movements", len(seed.Transactions),
				"orders", len(seed.Orders))
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts, %d clients, %d movements, %d orders\n",
				len(seed.Accounts), len(seed.Clients), len(seed.Transactions), len(seed.Orders))
			return nil
		},
	}
}

// importSeed loads the seed files of dir into repo. Only accounts present in
// accounts.json are written, so stored balances survive a partial import.
func importSeed(ctx context.Context, repo *storage.SQLiteRepository, dir string) (memory.Seed, error) {
	seed, err := memory.ReadSeed(dir)
	if err != nil {
		return memory.Seed{}, err
	}
	if err := repo.Import(ctx, storage.Dataset{
		Accounts:  seed.Accounts,
		Clients:   seed.Clients,
		Movements: seed.Transactions,
		Orders:    seed.Orders,
	}); err != nil {
		return memory.Seed{}, fmt.Errorf("import %s: %w", dir, err)
	}
	return seed, nil
}

func newSnapshotsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List the stored month snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if _, err := os.Stat(a.cfg.SQLiteDBPath); err != nil {
				return fmt.Errorf("snapshot database %s: %w", a.cfg.SQLiteDBPath, err)
			}
			repo, err := storage.NewSQLiteRepository(a.cfg.SQLiteDBPath)
			if err != nil {
				return fmt.Errorf("open %s: %w", a.cfg.SQLiteDBPath, err)
			}
			defer repo.Close()

			snaps, err := repo.ListMonthSnapshots(ctx, limit)
			if err != nil {
				return fmt.Errorf("list snapshots: %w", err)
			}
			return renderSnapshots(cmd.OutOrStdout(), snaps)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 12, "Number of months to list")
	return cmd
}
