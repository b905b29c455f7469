package backend

import (
	"context"
	"time"

	"caja/internal/records"
	"caja/internal/services"
)

// Backend is a record store that also accepts movements and can report
// whether it is reachable.
type Backend interface {
	records.Store
	records.MovementWriter
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and the optional collaborators
// that only some backends provide.
type BackendResult struct {
	Backend Backend
	// Publisher is nil unless a broker is configured and reachable.
	Publisher services.MovementPublisher
	// Snapshots is nil unless the backend persists month snapshots.
	Snapshots records.SnapshotStore
	Cleanup   CleanupFunc
}

// Close runs Cleanup when one is set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	SheetsCacheTTL           time.Duration

	// Memory backend seed directory
	DataDirectory string

	// Location dates movements and interprets zone-less spreadsheet dates.
	Location *time.Location
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
