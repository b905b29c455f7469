package services

import (
	"context"
	"log/slog"
	"sync"

	"caja/internal/core"
)

// LoadState is the lifecycle of the dashboard shown by a MonthView.
type LoadState int

const (
	StateLoading LoadState = iota
	StateLoaded
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DashboardLoader is satisfied by *DashboardService.
type DashboardLoader interface {
	Load(ctx context.Context, month, year int) (core.Dashboard, error)
}

// ViewState is a copy of what a MonthView currently shows.
type ViewState struct {
	Month     core.YearMonth
	State     LoadState
	Dashboard core.Dashboard // zero unless State is StateLoaded
	Err       error          // set only when State is StateFailed
}

// MonthView holds the month being browsed and the outcome of its latest load.
// Every navigation cancels the load in flight and starts a new one; a result
// that arrives for a superseded navigation is dropped.
type MonthView struct {
	loader DashboardLoader

	mu      sync.Mutex
	state   ViewState
	gen     uint64
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

// NewMonthView starts on month without loading it; call Reload to fetch.
func NewMonthView(loader DashboardLoader, month core.YearMonth) *MonthView {
	return &MonthView{
		loader: loader,
		state:  ViewState{Month: core.NewYearMonth(month.Year, month.Month), State: StateLoading},
	}
}

// State returns the current view.
func (v *MonthView) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Shift moves delta months from the current one and loads it. The returned
// channel closes once that load has settled, applied or discarded.
func (v *MonthView) Shift(ctx context.Context, delta int) <-chan struct{} {
	v.mu.Lock()
	target := v.state.Month.Shift(delta)
	v.mu.Unlock()
	return v.Goto(ctx, target)
}

// Reload fetches the current month again.
func (v *MonthView) Reload(ctx context.Context) <-chan struct{} {
	return v.Shift(ctx, 0)
}

// Goto jumps to month and loads it.
func (v *MonthView) Goto(ctx context.Context, month core.YearMonth) <-chan struct{} {
	month = core.NewYearMonth(month.Year, month.Month)
	loadCtx, cancel := context.WithCancel(ctx)

	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.gen++
	gen := v.gen
	v.cancel = cancel
	v.state = ViewState{Month: month, State: StateLoading}
	v.mu.Unlock()

	done := make(chan struct{})
	v.pending.Add(1)
	go func() {
		defer v.pending.Done()
		defer close(done)
		defer cancel()

		d, err := v.loader.Load(loadCtx, month.Month, month.Year)

		v.mu.Lock()
		defer v.mu.Unlock()
		if gen != v.gen {
			slog.DebugContext(ctx, "Discarding superseded dashboard load", "month", month.String())
			return
		}
		v.cancel = nil
		if err != nil {
			v.state = ViewState{Month: month, State: StateFailed, Err: err}
			return
		}
		v.state = ViewState{Month: month, State: StateLoaded, Dashboard: d}
	}()
	return done
}

// Close cancels the load in flight and waits for every load goroutine to exit.
func (v *MonthView) Close() {
	v.mu.Lock()
	v.gen++
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.mu.Unlock()
	v.pending.Wait()
}
