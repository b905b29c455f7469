package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"caja/internal/amqp"
	"caja/internal/core"
	"caja/internal/records"
	"caja/internal/services"
)

// SnapshotWorker keeps the month_snapshots table in step with the records.
// Every movement event recomputes its month; a periodic tick refreshes the
// current month in case events were lost.
type SnapshotWorker struct {
	dashboards services.DashboardLoader
	snapshots  records.SnapshotStore
	loc        *time.Location
	now        func() time.Time
}

func NewSnapshotWorker(dashboards services.DashboardLoader, snapshots records.SnapshotStore, loc *time.Location) *SnapshotWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &SnapshotWorker{
		dashboards: dashboards,
		snapshots:  snapshots,
		loc:        loc,
		now:        time.Now,
	}
}

// HandleMovementRecorded processes a single movement event from AMQP.
func (w *SnapshotWorker) HandleMovementRecorded(ctx context.Context, msg *amqp.MovementRecordedMessage) error {
	slog.InfoContext(ctx, "Processing movement event",
		"id", msg.ID,
		"category", msg.Category,
		"month", msg.YearMonth().String())
	return w.RefreshMonth(ctx, msg.YearMonth())
}

// RefreshMonth recomputes ym and stores its snapshot.
func (w *SnapshotWorker) RefreshMonth(ctx context.Context, ym core.YearMonth) error {
	d, err := w.dashboards.Load(ctx, ym.Month, ym.Year)
	if err != nil {
		return fmt.Errorf("compute %s: %w", ym, err)
	}
	snap := core.SnapshotOf(d, w.now())
	if err := w.snapshots.UpsertMonthSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("store snapshot %s: %w", ym, err)
	}
	slog.InfoContext(ctx, "Month snapshot stored",
		"month", ym.String(),
		"income", snap.Income.String(),
		"net_profit", snap.NetProfit.String(),
		"top_client_id", snap.TopClientID)
	return nil
}

// RefreshCurrent refreshes the month containing now in the reference zone.
func (w *SnapshotWorker) RefreshCurrent(ctx context.Context) error {
	return w.RefreshMonth(ctx, w.currentMonth())
}

// StartupCheck refreshes the current and the previous month, so a month that
// closed while the worker was down still gets its final figures.
func (w *SnapshotWorker) StartupCheck(ctx context.Context) error {
	cur := w.currentMonth()
	return errors.Join(
		w.RefreshMonth(ctx, cur.Shift(-1)),
		w.RefreshMonth(ctx, cur),
	)
}

// Run refreshes the current month every interval until ctx is done.
func (w *SnapshotWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RefreshCurrent(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Periodic snapshot refresh failed", "error", err)
			}
		}
	}
}

func (w *SnapshotWorker) currentMonth() core.YearMonth {
	return core.YearMonthOf(w.now().In(w.loc))
}
