package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const channelPrefix = "order-tracking:"

// Redis publishes tracking changes over Redis pub/sub so every API instance sees them
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func channel(orderID string) string { return channelPrefix + orderID }

func (r *Redis) Publish(ctx context.Context, orderID string) error {
	if err := r.client.Publish(ctx, channel(orderID), "changed").Err(); err != nil {
		return fmt.Errorf("publish tracking change: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, orderID string) (<-chan struct{}, func()) {
	pubsub := r.client.Subscribe(ctx, channel(orderID))
	out := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				log.Warn().Err(err).Str("order_id", orderID).Msg("Failed to close tracking subscription")
			}
		})
	}
}

// NewRedisClient mirrors the pool settings used across our services
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})
}
