package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"caja/internal/core"
	"caja/internal/records"
)

// MovementPublisher announces persisted movements to other processes.
type MovementPublisher interface {
	PublishMovementRecorded(ctx context.Context, tx core.Transaction) error
}

// CashService orchestrates recording a movement across the store, the
// dashboard cache and the message broker.
type CashService struct {
	writer     records.MovementWriter
	publisher  MovementPublisher
	dashboards *DashboardService
	now        func() time.Time
}

// NewCashService wires the write path. publisher and dashboards may be nil.
func NewCashService(writer records.MovementWriter, publisher MovementPublisher, dashboards *DashboardService) *CashService {
	return &CashService{
		writer:     writer,
		publisher:  publisher,
		dashboards: dashboards,
		now:        time.Now,
	}
}

// RecordMovement validates tx, persists it and applies it to its account.
// A missing id or timestamp is filled in. Publishing is best effort: the
// movement is already stored when the broker is asked.
func (s *CashService) RecordMovement(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.AccountID = strings.TrimSpace(tx.AccountID)
	tx.Reference = strings.TrimSpace(tx.Reference)
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = s.now()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	id, err := s.writer.RecordMovement(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record movement: %w", err)
	}
	tx.ID = id

	slog.InfoContext(ctx, "Movement recorded",
		"id", tx.ID, "category", tx.Category, "account_id", tx.AccountID, "amount", tx.Amount.String())

	if s.dashboards != nil {
		s.dashboards.Invalidate()
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping movement event", "id", tx.ID)
		return tx, nil
	}
	if err := s.publisher.PublishMovementRecorded(ctx, tx); err != nil {
		// The movement is stored; snapshots catch up on the next periodic refresh.
		slog.ErrorContext(ctx, "Failed to publish movement event", "id", tx.ID, "error", err)
	}
	return tx, nil
}
