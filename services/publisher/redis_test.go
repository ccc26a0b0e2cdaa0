package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"sjsage522/propertyworker/internal/property"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T, streamCount, maxLen int) (*RedisPublisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)

	ctx := context.Background()
	publisher := NewRedisPublisher(ctx, mr.Addr(), 0, "test_listings", streamCount, maxLen)
	t.Cleanup(func() { publisher.Close() })

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return publisher, client
}

func TestRedisPublisher(t *testing.T) {
	publisher, client := newTestPublisher(t, 1, 100)
	require.NoError(t, publisher.Ping())

	err := publisher.Publish("", "b64_listing_new", []byte("test_message"))
	require.NoError(t, err)

	msgs, err := client.XRange(context.Background(), "test_listings:0", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// The message should be base64 encoded
	assert.Equal(t, "dGVzdF9tZXNzYWdl", msgs[0].Values["b64_listing_new"]) // base64 of "test_message"
}

func TestRedisPublisherTrimStreams(t *testing.T) {
	publisher, client := newTestPublisher(t, 2, 3)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, publisher.Publish(strconv.Itoa(i), "k", []byte("m")))
	}
	require.NoError(t, publisher.TrimStreams())

	keys, err := client.Keys(ctx, "test_listings:*").Result()
	require.NoError(t, err)
	require.NotEmpty(t, keys)
	for _, k := range keys {
		assert.True(t, strings.HasPrefix(k, "test_listings:"))
		n, err := client.XLen(ctx, k).Result()
		require.NoError(t, err)
		assert.LessOrEqual(t, n, int64(3))
	}
}

func TestPublishEvent(t *testing.T) {
	publisher, client := newTestPublisher(t, 1, 100)

	ev := ChangeEvent{
		RunID:         "run-1",
		Kind:          "changed",
		URL:           "https://www.property24.com/for-sale/a/b/1/2",
		Price:         "R 1 100 000",
		PreviousPrice: "R 1 000 000",
		ChangedFields: []string{property.FieldPrice},
		Record:        property.Record{URL: "https://www.property24.com/for-sale/a/b/1/2", Price: "R 1 100 000"},
		DetectedAt:    time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, PublishEvent(publisher, ev))

	msgs, err := client.XRange(context.Background(), "test_listings:0", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	raw, ok := msgs[0].Values[EventKey("changed")].(string)
	require.True(t, ok)
	data, err := base64.StdEncoding.DecodeString(raw)
	require.NoError(t, err)

	var got ChangeEvent
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "R 1 000 000", got.PreviousPrice)
	assert.Equal(t, []string{"price"}, got.ChangedFields)
	assert.Equal(t, ev.URL, got.Record.URL)
}

func TestRedisPublisherPartitions(t *testing.T) {
	publisher, client := newTestPublisher(t, 4, 100)
	ctx := context.Background()

	const url = "https://www.property24.com/for-sale/a/b/1/2"
	for i := 0; i < 5; i++ {
		require.NoError(t, publisher.Publish(url, "k", []byte(strconv.Itoa(i))))
	}

	stream := publisher.streamFor(url)
	n, err := client.XLen(ctx, stream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	keys, err := client.Keys(ctx, "test_listings:*").Result()
	require.NoError(t, err)
	assert.Equal(t, []string{stream}, keys)
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, string, []byte) error { return assert.AnError }
func (failingPublisher) TrimStreams() error                  { return nil }
func (failingPublisher) Close() error                        { return nil }

func TestPublishEventError(t *testing.T) {
	err := PublishEvent(failingPublisher{}, ChangeEvent{URL: "u", Kind: "new"})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
