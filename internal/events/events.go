// Package events publishes claim transitions so residents and recyclers can
// be notified outside the request that caused them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
	"github.com/crisferre80/gestion-politica-sub000/internal/logging"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "reciclaje:claims"

// Message is the JSON document published for each claim transition.
type Message struct {
	Type       string    `json:"type"`
	ClaimID    string    `json:"claim_id"`
	PointID    string    `json:"point_id"`
	RecyclerID string    `json:"recycler_id"`
	OwnerID    string    `json:"owner_id"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewMessage converts a claim event into its wire form.
func NewMessage(event application.ClaimEvent) Message {
	return Message{
		Type:       string(event.Type),
		ClaimID:    event.ClaimID,
		PointID:    event.PointID,
		RecyclerID: event.RecyclerID,
		OwnerID:    event.OwnerID,
		Status:     string(event.Status),
		Reason:     event.Reason,
		OccurredAt: event.OccurredAt.UTC(),
	}
}

// redisPublisher is the subset of *redis.Client used here.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes claim events to a Redis channel.
type RedisPublisher struct {
	client  redisPublisher
	channel string
	closer  func() error
}

// RedisOptions configures NewRedisPublisher.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// NewRedisPublisher connects to Redis and returns a publisher. The connection
// is established lazily by the client; Ping verifies it.
func NewRedisPublisher(opts RedisOptions) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	p := newRedisPublisher(client, opts.Channel)
	p.closer = client.Close
	return p
}

func newRedisPublisher(client redisPublisher, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Ping reports whether Redis is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	pinger, ok := p.client.(interface {
		Ping(ctx context.Context) *redis.StatusCmd
	})
	if !ok {
		return nil
	}
	return pinger.Ping(ctx).Err()
}

// PublishClaimEvent encodes the event and publishes it on the channel.
func (p *RedisPublisher) PublishClaimEvent(ctx context.Context, event application.ClaimEvent) error {
	payload, err := json.Marshal(NewMessage(event))
	if err != nil {
		return fmt.Errorf("encode claim event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish claim event to %s: %w", p.channel, err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (p *RedisPublisher) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	return p.closer()
}

// LogPublisher writes claim events to a structured logger. It is used when
// no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a publisher writing to logger, or to the process
// default logger when logger is nil.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// PublishClaimEvent logs the event at info level.
func (p *LogPublisher) PublishClaimEvent(ctx context.Context, event application.ClaimEvent) error {
	logger := logging.FromContextOr(ctx, p.logger)
	msg := NewMessage(event)
	logger.InfoContext(ctx, "claim event",
		"event_type", msg.Type,
		"claim_id", msg.ClaimID,
		"point_id", msg.PointID,
		"recycler_id", msg.RecyclerID,
		"owner_id", msg.OwnerID,
		"status", msg.Status,
		"occurred_at", msg.OccurredAt,
	)
	return nil
}
