package domain

import "time"

// EventType classifies a notification.
type EventType string

const (
	EventTypeDeposit     EventType = "DEPOSIT"
	EventTypeRedeem      EventType = "REDEEM"
	EventTypeTransfer    EventType = "TRANSFER"
	EventTypeRateChanged EventType = "RATE_CHANGED"
)

// Event is a fire-and-forget notification emitted after an operation
// commits. Delivery is best effort with no retry; consumers must never
// derive ledger state from it.
type Event struct {
	Type    EventType `json:"type"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	Amount  uint64    `json:"amount,omitempty"`
	NewRate uint64    `json:"new_rate,omitempty"`
	At      time.Time `json:"at"`
}
