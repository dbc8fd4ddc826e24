package feed

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/go-redis/redis/v8"
)

// RedisBus carries the change feed over redis pub/sub so that multiple
// service instances observe the same document mutations.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *log.Logger
}

func NewRedisBus(addr, password string, db int) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}

	return &RedisBus{
		client:  client,
		channel: Channel,
		logger:  log.New(os.Stdout, "feed: ", log.LstdFlags|log.Lmsgprefix),
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBus) Subscribe(h Handler) func() {
	sub := b.client.Subscribe(context.Background(), b.channel)

	go func() {
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Printf("Error decoding change event: %v", err)
				continue
			}
			h(ev)
		}
	}()

	return func() {
		if err := sub.Close(); err != nil {
			b.logger.Printf("Error closing change feed subscription: %v", err)
		}
	}
}

// Close releases the underlying redis connection.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
