package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"accruing-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// EventChannel is the pub/sub channel ledger events are published on.
const EventChannel = "ledger:events"

// EventPublisher implements ports.Notifier over Redis pub/sub. Subscribers
// that are offline miss events; delivery is fire-and-forget.
type EventPublisher struct {
	client *goredis.Client
}

// NewEventPublisher creates a Redis-backed event publisher.
func NewEventPublisher(client *goredis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// Publish sends the event as JSON on the ledger events channel.
func (p *EventPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, EventChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish event: %w", err)
	}
	return nil
}
