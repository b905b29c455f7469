package services

import (
	"github.com/shopspring/decimal"

	"caja/internal/core"
)

// TopClient groups the attributed orders by client and picks the winner:
// most orders first, then highest billed total, then lowest client id.
// Orders without a client are ignored. ok is false when nothing is attributed.
func TopClient(orders []core.Order) (top core.ClientActivity, ok bool) {
	groups := make(map[string]*core.ClientActivity)
	for _, o := range orders {
		if o.ClientID == "" {
			continue
		}
		g, exists := groups[o.ClientID]
		if !exists {
			g = &core.ClientActivity{ClientID: o.ClientID, TotalBilled: decimal.Zero}
			groups[o.ClientID] = g
		}
		g.OrderCount++
		g.TotalBilled = g.TotalBilled.Add(o.TotalBilled)
	}

	for _, g := range groups {
		if !ok || ranksBefore(*g, top) {
			top = *g
			ok = true
		}
	}
	return top, ok
}

// ranksBefore reports whether a outranks b. The order is total, so map
// iteration order never changes the winner.
func ranksBefore(a, b core.ClientActivity) bool {
	if a.OrderCount != b.OrderCount {
		return a.OrderCount > b.OrderCount
	}
	if c := a.TotalBilled.Cmp(b.TotalBilled); c != 0 {
		return c > 0
	}
	return a.ClientID < b.ClientID
}
