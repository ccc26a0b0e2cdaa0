package publisher

import (
	"context"
	"encoding/base64"
	"hash/fnv"
	"math/rand/v2"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher implements Publisher using Redis streams. Messages are
// spread over streamCount streams named <prefix>:0 to <prefix>:<count-1>.
type RedisPublisher struct {
	client          *redis.Client
	ctx             context.Context
	streamPrefix    string
	streamCount     int
	streamMaxLength int
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(ctx context.Context, addr string, db int, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if streamCount < 1 {
		streamCount = 1
	}

	return &RedisPublisher{
		client:          client,
		ctx:             ctx,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
	}
}

// Ping checks the Redis connection
func (p *RedisPublisher) Ping() error {
	return p.client.Ping(p.ctx).Err()
}

// Publish base64-encodes message and appends it under key to the stream the
// partition hashes to, so events of one listing stay in order. An empty
// partition picks a random stream.
func (p *RedisPublisher) Publish(partition, key string, message []byte) error {
	return p.client.XAdd(p.ctx, &redis.XAddArgs{
		Stream: p.streamFor(partition),
		Values: map[string]interface{}{
			key: base64.StdEncoding.EncodeToString(message),
		},
	}).Err()
}

func (p *RedisPublisher) streamFor(partition string) string {
	idx := 0
	switch {
	case p.streamCount == 1:
	case partition == "":
		idx = rand.IntN(p.streamCount)
	default:
		h := fnv.New32a()
		h.Write([]byte(partition))
		idx = int(h.Sum32() % uint32(p.streamCount))
	}
	return p.streamPrefix + ":" + strconv.Itoa(idx)
}

// TrimStreams caps every stream at the configured maximum length. A
// non-positive maximum disables trimming.
func (p *RedisPublisher) TrimStreams() error {
	if p.streamMaxLength <= 0 {
		return nil
	}

	for i := 0; i < p.streamCount; i++ {
		stream := p.streamPrefix + ":" + strconv.Itoa(i)
		if err := p.client.XTrimMaxLen(p.ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
