package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T, retention Retention) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := NewRedis(client, "test", retention)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedisRoundTrip(t *testing.T) {
	r, mr := newRedis(t, nil)
	ctx := context.Background()

	_, err := r.Get(ctx, Rooms, "123456")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Put(ctx, Rooms, "123456", []byte(`{"x":1}`)))
	got, err := r.Get(ctx, Rooms, "123456")
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(got))
	assert.True(t, mr.Exists("test:rooms:123456"))

	ok, err := r.Exists(ctx, Rooms, "123456")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.Delete(ctx, Rooms, "123456"))
	_, err = r.Get(ctx, Rooms, "123456")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, r.Check(ctx))
}

func TestRedisPutSetsNamespaceTTL(t *testing.T) {
	r, mr := newRedis(t, Retention{Rooms: 10 * 24 * time.Hour, RateLimit: time.Hour})
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, Rooms, "123456", []byte(`{}`)))
	require.NoError(t, r.Put(ctx, RateLimit, "r_127.0.0.1", []byte(`{"ts":1,"cnt":1}`)))
	assert.Equal(t, 10*24*time.Hour, mr.TTL("test:rooms:123456"))
	assert.Equal(t, time.Hour, mr.TTL("test:ratelimit:r_127.0.0.1"))

	mr.FastForward(time.Hour + time.Second)
	_, err := r.Get(ctx, RateLimit, "r_127.0.0.1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(ctx, Rooms, "123456")
	assert.NoError(t, err)

	mr.FastForward(10 * 24 * time.Hour)
	_, err = r.Get(ctx, Rooms, "123456")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRetentionIsBounded(t *testing.T) {
	cases := []struct {
		name string
		in   Retention
		want time.Duration
	}{
		{"zero falls back to default", Retention{Rooms: 0, RateLimit: 0}, MinRoomRetention},
		{"too long is capped", Retention{Rooms: 30 * 24 * time.Hour}, MaxRoomRetention},
		{"too short is raised", Retention{Rooms: time.Hour}, MinRoomRetention},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, mr := newRedis(t, tc.in)
			ctx := context.Background()
			require.NoError(t, r.Put(ctx, Rooms, "1", []byte(`{}`)))
			require.NoError(t, r.Put(ctx, RateLimit, "c_1", []byte(`{}`)))
			assert.Equal(t, tc.want, mr.TTL("test:rooms:1"))
			assert.Equal(t, 7*24*time.Hour, mr.TTL("test:ratelimit:c_1"))
		})
	}
}

func TestRedisUnknownNamespaceNeverWritesWithoutExpiry(t *testing.T) {
	r, mr := newRedis(t, nil)
	err := r.Put(context.Background(), Namespace("other"), "1", []byte(`{}`))
	assert.Error(t, err)
	assert.Empty(t, mr.Keys())
}

func TestRedisKeyValidation(t *testing.T) {
	r := NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "", nil)
	_, err := r.key(Rooms, "../etc")
	assert.ErrorIs(t, err, ErrInvalidKey)

	k, err := r.key(RateLimit, "w_::1")
	require.NoError(t, err)
	assert.Equal(t, "timepon:ratelimit:w_::1", k)
}

func TestBoundedRetention(t *testing.T) {
	var none Retention
	b := none.Bounded()
	assert.Equal(t, DefaultRetention(), b)

	b = Retention{RateLimit: -time.Hour, Rooms: 12 * 24 * time.Hour}.Bounded()
	assert.Equal(t, 12*24*time.Hour, b[Rooms])
	assert.Equal(t, 7*24*time.Hour, b[RateLimit])
}
