package live

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const eventChannel = "live:events"

// RedisBroker publishes events through Redis pub/sub and forwards everything
// received on the channel into the local hub, so clients connected to any
// process instance see every event.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	logger zerolog.Logger
	cancel context.CancelFunc
}

func NewRedisBroker(client *redis.Client, hub *Hub, logger zerolog.Logger) *RedisBroker {
	ctx, cancel := context.WithCancel(context.Background())
	broker := &RedisBroker{
		client: client,
		hub:    hub,
		logger: logger,
		cancel: cancel,
	}
	go broker.subscribe(ctx)
	return broker
}

func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, eventChannel, payload).Err()
}

func (b *RedisBroker) Close() error {
	b.cancel()
	return nil
}

func (b *RedisBroker) subscribe(ctx context.Context) {
	sub := b.client.Subscribe(ctx, eventChannel)
	defer func() {
		_ = sub.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn().Err(err).Msg("live redis broker decode event")
				continue
			}
			_ = b.hub.Publish(ctx, event)
		}
	}
}
