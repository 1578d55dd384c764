package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizhive/api/game"
)

const (
	snapshotKey       = "quizhive:rooms:snapshot"
	snapshotChannel   = "quizhive:rooms:snapshot"
	kickChannelPrefix = "quizhive:user:"
)

// RedisPublisher fans lobby events out to other processes: the room-list
// snapshot for external pollers and the session-kick signal for nodes that
// may still hold an evicted connection.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(addr string) *RedisPublisher {
	return &RedisPublisher{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// PublishSnapshot stores the latest snapshot with a TTL and notifies
// subscribers. The key expires so a dead publisher leaves no stale list.
func (p *RedisPublisher) PublishSnapshot(ctx context.Context, snapshot game.RoomListSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	pipe := p.client.Pipeline()
	pipe.Set(ctx, snapshotKey, data, time.Minute)
	pipe.Publish(ctx, snapshotChannel, data)
	_, err = pipe.Exec(ctx)
	return err
}

// PublishKick notifies whichever node still holds the evicted connection.
// Each user gets their own channel so nodes only subscribe for the users
// they serve.
func (p *RedisPublisher) PublishKick(ctx context.Context, userId string, sessionId string) error {
	data, err := json.Marshal(map[string]string{
		"userId":    userId,
		"sessionId": sessionId,
	})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, kickChannelPrefix+userId, data).Err()
}
