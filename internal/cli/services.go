package cli

import (
	"time"

	"caja/internal/cache"
	"caja/internal/core"
	"caja/internal/records"
	"caja/internal/services"
)

// dashboardCacheMonths bounds the dashboard cache; browsing rarely spans two years.
const dashboardCacheMonths = 24

// BuildDashboards wires the aggregator over store. A positive ttl adds an LRU
// cache whose expired months are swept every ttl; stop ends the sweep.
func BuildDashboards(store records.Store, loc *time.Location, ttl time.Duration) (dashboards *services.DashboardService, stop func()) {
	agg := services.NewAggregator(store, loc)
	if ttl <= 0 {
		return services.NewDashboardService(agg), func() {}
	}

	lru := cache.NewLRUCache[core.YearMonth, core.Dashboard](dashboardCacheMonths, ttl)
	manager := cache.NewManager()
	manager.Register(lru)
	manager.StartCleanup(ttl)
	return services.NewDashboardService(agg, services.WithDashboardCache(lru)), manager.Stop
}
