package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/classpulse-backend/internal/config"
	"github.com/stemsi/classpulse-backend/internal/model"
)

// MonitorRepository fans live session events out over Redis Pub/Sub so every
// server instance can feed its own SSE listeners.
type MonitorRepository struct {
	rdb *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{rdb: rdb}
}

// Publish sends ev to the session's monitor channel.
func (r *MonitorRepository) Publish(ctx context.Context, ev model.MonitorEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal monitor event: %w", err)
	}
	return r.rdb.Publish(ctx, config.CacheKey.SessionMonitorChannel(ev.SessionID.String()), payload).Err()
}

// Subscribe returns raw JSON payloads published for the session. The channel
// closes after cancel is called or ctx ends.
func (r *MonitorRepository) Subscribe(ctx context.Context, sessionID uuid.UUID) (<-chan []byte, func(), error) {
	pubsub := r.rdb.Subscribe(ctx, config.CacheKey.SessionMonitorChannel(sessionID.String()))
	// Wait for the subscription to be confirmed before reporting success.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe monitor: %w", err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, func() { pubsub.Close() }, nil
}
