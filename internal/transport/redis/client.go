package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-program/internal/entity"
)

// Client publishes account changes and lets subscribers follow a single account.
type Client struct {
	client *redis.Client
}

func New(client *redis.Client) *Client {
	return &Client{client}
}

func channel(key entity.Key) string {
	return "account:" + key.String()
}

// Publish sends payload to everybody following key.
func (that *Client) Publish(ctx context.Context, key entity.Key, payload []byte) error {
	if err := that.client.Publish(ctx, channel(key), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change of %s: %w", key, err)
	}

	return nil
}

// Subscribe follows key until ctx is done or the returned close function is called.
func (that *Client) Subscribe(ctx context.Context, key entity.Key) (<-chan []byte, func() error, error) {
	sub := that.client.Subscribe(ctx, channel(key))

	// wait for the confirmation so no message published afterwards is lost
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)

		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close, nil
}
