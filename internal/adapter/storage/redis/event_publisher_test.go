package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"accruing-ledger/internal/adapter/storage/redis"
	"accruing-ledger/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, redis.EventChannel)
	defer sub.Close()

	// Wait for the subscription to be established before publishing.
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := redis.NewEventPublisher(client)
	event := domain.Event{
		Type:   domain.EventTypeDeposit,
		From:   "addr-alice",
		To:     "vault",
		Amount: 500,
		At:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, pub.Publish(ctx, event))

	select {
	case msg := <-sub.Channel():
		var got domain.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, event.Type, got.Type)
		assert.Equal(t, event.From, got.From)
		assert.Equal(t, event.Amount, got.Amount)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestEventPublisher_NoSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := redis.NewEventPublisher(client)
	err := pub.Publish(context.Background(), domain.Event{Type: domain.EventTypeRateChanged, NewRate: 42})
	assert.NoError(t, err)
}
