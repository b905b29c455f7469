package adapters

import (
	"context"
	"fmt"

	"caja/internal/records"
	"caja/internal/records/google"
)

var (
	_ records.Store          = (*SheetsAdapter)(nil)
	_ records.MovementWriter = (*SheetsAdapter)(nil)
)

// SheetsAdapter presents the spreadsheet store as a full backend by adding a
// readiness check to the client's reads and writes.
type SheetsAdapter struct {
	*google.Client
}

func NewSheetsAdapter(client *google.Client) *SheetsAdapter {
	return &SheetsAdapter{Client: client}
}

// Ping reads the accounts tab. A cached tab counts as reachable.
func (a *SheetsAdapter) Ping(ctx context.Context) error {
	if _, err := a.Client.ListAccounts(ctx); err != nil {
		return fmt.Errorf("ping sheets: %w", err)
	}
	return nil
}
