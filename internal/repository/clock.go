package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const clockKey = "clock:slot"

// Clock hands out strictly increasing logical timestamps shared by all server instances.
type Clock struct {
	client *redis.Client
}

func NewClock(client *redis.Client) *Clock {
	return &Clock{
		client: client,
	}
}

func (that *Clock) Next(ctx context.Context) (uint64, error) {
	slot, err := that.client.Incr(ctx, clockKey).Uint64()
	if err != nil {
		return 0, fmt.Errorf("failed to advance clock: %w", err)
	}

	return slot, nil
}
