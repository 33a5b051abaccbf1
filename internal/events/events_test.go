package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
	"github.com/crisferre80/gestion-politica-sub000/internal/logging"
)

type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func sampleEvent() application.ClaimEvent {
	return application.ClaimEvent{
		Type:       application.ClaimEventCancelled,
		ClaimID:    "claim-1",
		PointID:    "point-1",
		RecyclerID: "recycler-1",
		OwnerID:    "resident-1",
		Status:     application.ClaimStatusCancelled,
		Reason:     "lluvia",
		OccurredAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.FixedZone("ART", -3*3600)),
	}
}

func TestRedisPublisher_PublishClaimEvent(t *testing.T) {
	fake := &fakeRedis{}
	p := newRedisPublisher(fake, "")

	require.NoError(t, p.PublishClaimEvent(context.Background(), sampleEvent()))
	assert.Equal(t, DefaultChannel, fake.channel)

	var msg Message
	require.NoError(t, json.Unmarshal(fake.payload, &msg))
	assert.Equal(t, "claim.cancelled", msg.Type)
	assert.Equal(t, "claim-1", msg.ClaimID)
	assert.Equal(t, "lluvia", msg.Reason)
	assert.Equal(t, time.UTC, msg.OccurredAt.Location())
	assert.True(t, msg.OccurredAt.Equal(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)))
}

func TestRedisPublisher_WrapsClientError(t *testing.T) {
	boom := errors.New("connection refused")
	p := newRedisPublisher(&fakeRedis{err: boom}, "custom")

	err := p.PublishClaimEvent(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "custom")
	assert.NoError(t, p.Ping(context.Background()))
	assert.NoError(t, p.Close())
}

func TestRedisPublisher_Integration(t *testing.T) {
	p := NewRedisPublisher(RedisOptions{Addr: "localhost:6379"})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}
	require.NoError(t, p.PublishClaimEvent(ctx, sampleEvent()))
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(logging.New(&buf, "info"))

	require.NoError(t, p.PublishClaimEvent(context.Background(), sampleEvent()))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "claim event", entry["msg"])
	assert.Equal(t, "claim.cancelled", entry["event_type"])
	assert.Equal(t, "point-1", entry["point_id"])
}
