package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"caja/internal/core"
)

// MovementRecordedMessage announces a cash movement that was just persisted.
// Year and Month (0-11) identify the month whose figures changed, resolved in
// the reference zone of the publisher.
type MovementRecordedMessage struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	Category   string    `json:"category"`
	Amount     string    `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewMovementRecordedMessage builds the event for tx, dating the month in loc.
func NewMovementRecordedMessage(tx core.Transaction, loc *time.Location) *MovementRecordedMessage {
	if loc == nil {
		loc = time.UTC
	}
	ym := core.YearMonthOf(tx.OccurredAt.In(loc))
	return &MovementRecordedMessage{
		ID:         tx.ID,
		AccountID:  tx.AccountID,
		Category:   tx.Category.String(),
		Amount:     tx.Amount.String(),
		OccurredAt: tx.OccurredAt.UTC(),
		Year:       ym.Year,
		Month:      ym.Month,
		Timestamp:  time.Now(),
	}
}

// YearMonth returns the month the event belongs to.
func (m *MovementRecordedMessage) YearMonth() core.YearMonth {
	return core.NewYearMonth(m.Year, m.Month)
}

// ToJSON converts the message to JSON bytes
func (m *MovementRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MovementRecordedMessageFromJSON decodes and checks a message body.
func MovementRecordedMessageFromJSON(data []byte) (*MovementRecordedMessage, error) {
	var msg MovementRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("movement event without id")
	}
	if msg.Month < 0 || msg.Month > 11 {
		return nil, fmt.Errorf("movement event %s: month %d out of range", msg.ID, msg.Month)
	}
	return &msg, nil
}
