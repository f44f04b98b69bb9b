package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"

	"math/rand/v2"

	"sjsage522/carpriceworker/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// SnapshotField is the stream entry field carrying a base64 JSON batch
const SnapshotField = "b64_snapshots"

// RedisPublisher implements Publisher using Redis streams
type RedisPublisher struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if streamCount < 1 {
		streamCount = 1
	}

	return &RedisPublisher{
		client:          client,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
	}
}

// Ping checks the connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return errors.NewPublisher("redis", "ping failed", err)
	}
	return nil
}

// Publish adds rows as one base64 encoded JSON entry to a random shard
// stream. If streamCount is 10, stream names are prefix:0 to prefix:9.
func (p *RedisPublisher) Publish(ctx context.Context, rows []SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return errors.NewPublisher("redis", "encode rows", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	stream := p.streamPrefix + ":" + strconv.Itoa(rand.IntN(p.streamCount))

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			SnapshotField: encoded,
		},
	}).Err()
	if err != nil {
		return errors.NewPublisher("redis", "xadd "+stream, err)
	}
	return nil
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}
	streams, err := p.client.Keys(ctx, p.streamPrefix+":*").Result()
	if err != nil {
		return errors.NewPublisher("redis", "list streams", err)
	}

	for _, stream := range streams {
		if err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return errors.NewPublisher("redis", "trim "+stream, err)
		}
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// DecodeSnapshot reverses the encoding of a stream entry value
func DecodeSnapshot(value string) ([]SnapshotRow, error) {
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, errors.NewPublisher("redis", "decode base64", err)
	}
	var rows []SnapshotRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.NewPublisher("redis", "decode rows", err)
	}
	return rows, nil
}
