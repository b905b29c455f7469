package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"caja/internal/cache"
	"caja/internal/core"
)

// DashboardService assembles the monthly dashboard from independent reads.
type DashboardService struct {
	agg   *Aggregator
	cache cache.Cache[core.YearMonth, core.Dashboard]
}

type DashboardOption func(*DashboardService)

// WithDashboardCache keeps loaded dashboards per month until invalidated.
func WithDashboardCache(c cache.Cache[core.YearMonth, core.Dashboard]) DashboardOption {
	return func(s *DashboardService) { s.cache = c }
}

func NewDashboardService(agg *Aggregator, opts ...DashboardOption) *DashboardService {
	s := &DashboardService{agg: agg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Aggregator exposes the underlying aggregator.
func (s *DashboardService) Aggregator() *Aggregator {
	return s.agg
}

// Load issues every read of the month concurrently and joins them. The first
// failure cancels the rest and is returned alone; a partial dashboard is never
// produced. month is 0-11 and rolls over like ResolvePeriod.
func (s *DashboardService) Load(ctx context.Context, month, year int) (core.Dashboard, error) {
	ym := core.NewYearMonth(year, month)
	if s.cache != nil {
		if d, ok := s.cache.Get(ym); ok {
			slog.DebugContext(ctx, "Dashboard served from cache", "month", ym.String())
			return d, nil
		}
	}

	start := time.Now()
	d := core.Dashboard{Month: ym, Period: s.agg.Period(ym.Month, ym.Year)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Income, err = s.agg.MonthlyIncome(gctx, ym.Month, ym.Year)
		return err
	})
	g.Go(func() (err error) {
		d.Reinvestment, err = s.agg.MonthlyReinvestment(gctx, ym.Month, ym.Year)
		return err
	})
	g.Go(func() (err error) {
		d.Salary, err = s.agg.MonthlySalary(gctx, ym.Month, ym.Year)
		return err
	})
	g.Go(func() (err error) {
		d.GramsSold, err = s.agg.MonthlyGramsSold(gctx, ym.Month, ym.Year)
		return err
	})
	g.Go(func() (err error) {
		d.MostActiveClient, err = s.agg.MostActiveClient(gctx, ym.Month, ym.Year)
		return err
	})
	g.Go(func() (err error) {
		d.Accounts, err = s.agg.ListAccounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "Dashboard load failed", "month", ym.String(), "error", err)
		return core.Dashboard{}, fmt.Errorf("load dashboard %s: %w", ym, err)
	}

	d.NetProfit = d.Income.Sub(d.Reinvestment)
	d.TotalBalance = core.TotalBalance(d.Accounts)
	d.Breakdown = core.BreakdownOf(d.Accounts)

	slog.DebugContext(ctx, "Dashboard loaded", "month", ym.String(), "duration", time.Since(start))
	if s.cache != nil {
		s.cache.Set(ym, d)
	}
	return d, nil
}

// Invalidate drops every cached dashboard. Account balances appear on all
// months, so a recorded movement stales more than its own month.
func (s *DashboardService) Invalidate() {
	if s.cache == nil {
		return
	}
	s.cache.Purge()
}

// CachedMonths reports how many months are currently cached.
func (s *DashboardService) CachedMonths() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Size()
}
