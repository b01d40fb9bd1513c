package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/layer-3/estate/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStore(client).(*RedisStore)
}

func TestRedisStorePutGet(t *testing.T) {
	mr, s := newRedisStore(t)
	ctx := context.Background()
	issued := time.Now().Truncate(time.Millisecond)

	require.NoError(t, s.Put(ctx, newChallenge("aa", issued), time.Minute))
	assert.True(t, mr.Exists("estate:challenge:"+wallet))
	assert.Equal(t, time.Minute, mr.TTL("estate:challenge:"+wallet))

	got, err := s.Get(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "id-aa", got.ID)
	assert.Equal(t, wallet, got.Address)
	assert.Equal(t, "aa", got.Nonce)
	assert.Equal(t, "Sign this: aa", got.Message)
	assert.True(t, got.IssuedAt.Equal(issued))
	assert.True(t, got.ExpiresAt.Equal(issued.Add(time.Minute)))
}

func TestRedisStoreMissing(t *testing.T) {
	_, s := newRedisStore(t)

	_, err := s.Get(context.Background(), wallet)
	require.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestRedisStoreExpiry(t *testing.T) {
	mr, s := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newChallenge("aa", time.Now()), time.Minute))
	mr.FastForward(time.Minute + time.Second)

	_, err := s.Get(ctx, wallet)
	require.ErrorIs(t, err, core.ErrChallengeNotFound)

	ok, err := s.Consume(ctx, wallet, "aa")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreOverwriteAndConsume(t *testing.T) {
	_, s := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newChallenge("first", time.Now()), time.Minute))
	require.NoError(t, s.Put(ctx, newChallenge("second", time.Now()), time.Minute))

	ok, err := s.Consume(ctx, wallet, "first")
	require.NoError(t, err)
	assert.False(t, ok, "superseded nonce must not consume")

	got, err := s.Get(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Nonce)

	ok, err = s.Consume(ctx, wallet, "second")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, wallet, "second")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, s := newRedisStore(t)
	mr.Close()

	err := s.Put(context.Background(), newChallenge("aa", time.Now()), time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store challenge")
}
