package stripe

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/test"
)

func TestMemoryEventStore(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	store := NewMemoryEventStore(50 * time.Millisecond)
	defer func() { _ = store.Close() }()

	exists, err := store.EventExists(ctx, "evt_1")
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsFalse)

	c.Assert(store.MarkProcessed(ctx, "evt_1"), qt.IsNil)
	exists, _ = store.EventExists(ctx, "evt_1")
	c.Assert(exists, qt.IsTrue)
	c.Assert(store.Size(), qt.Equals, 1)

	time.Sleep(80 * time.Millisecond)
	exists, _ = store.EventExists(ctx, "evt_1")
	c.Assert(exists, qt.IsFalse)

	store.purge()
	c.Assert(store.Size(), qt.Equals, 0)
	c.Assert(store.Close(), qt.IsNil)
}

func TestRedisEventStore(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	container, err := test.StartRedisContainer(ctx)
	if err != nil {
		c.Skip("redis container unavailable: ", err)
	}
	defer func() { _ = container.Terminate(ctx) }()
	url, err := test.RedisURL(ctx, container)
	c.Assert(err, qt.IsNil)

	store, err := NewRedisEventStore(ctx, url, time.Minute)
	c.Assert(err, qt.IsNil)
	defer func() { _ = store.Close() }()

	exists, err := store.EventExists(ctx, "evt_redis")
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsFalse)
	c.Assert(store.MarkProcessed(ctx, "evt_redis"), qt.IsNil)
	c.Assert(store.MarkProcessed(ctx, "evt_redis"), qt.IsNil)
	exists, err = store.EventExists(ctx, "evt_redis")
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsTrue)

	ttl, err := store.client.TTL(ctx, redisEventPrefix+"evt_redis").Result()
	c.Assert(err, qt.IsNil)
	c.Assert(ttl > 0 && ttl <= time.Minute, qt.IsTrue)

	_, err = NewRedisEventStore(ctx, "http://not-redis", time.Minute)
	c.Assert(err, qt.IsNotNil)
}
