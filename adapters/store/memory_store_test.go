package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/estate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallet = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newChallenge(nonce string, issuedAt time.Time) *core.Challenge {
	return &core.Challenge{
		ID:       "id-" + nonce,
		Address:  wallet,
		Nonce:    nonce,
		Message:  "Sign this: " + nonce,
		IssuedAt: issuedAt,
	}
}

func TestMemoryStorePutGet(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(0, WithClock(c.Now))
	defer s.Close()
	ctx := context.Background()

	_, err := s.Get(ctx, wallet)
	require.ErrorIs(t, err, core.ErrChallengeNotFound)

	require.NoError(t, s.Put(ctx, newChallenge("aa", c.Now()), time.Minute))

	got, err := s.Get(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "aa", got.Nonce)
	assert.Equal(t, c.Now().Add(time.Minute), got.ExpiresAt)
}

func TestMemoryStoreOverwrite(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(0, WithClock(c.Now))
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newChallenge("first", c.Now()), time.Minute))
	require.NoError(t, s.Put(ctx, newChallenge("second", c.Now()), time.Minute))

	got, err := s.Get(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Nonce)

	ok, err := s.Consume(ctx, wallet, "first")
	require.NoError(t, err)
	assert.False(t, ok, "superseded nonce must not consume")

	ok, err = s.Consume(ctx, wallet, "second")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, wallet, "second")
	require.NoError(t, err)
	assert.False(t, ok, "consume succeeds once")
}

func TestMemoryStoreExpiry(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(0, WithClock(c.Now))
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newChallenge("aa", c.Now()), time.Minute))

	c.Advance(time.Minute - time.Nanosecond)
	_, err := s.Get(ctx, wallet)
	require.NoError(t, err)

	c.Advance(time.Nanosecond)
	_, err = s.Get(ctx, wallet)
	require.ErrorIs(t, err, core.ErrChallengeNotFound)
	assert.Equal(t, 0, s.(*MemoryStore).Len())
}

func TestMemoryStoreConsumeAfterExpiry(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(0, WithClock(c.Now))
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newChallenge("aa", c.Now()), time.Minute))
	c.Advance(2 * time.Minute)

	ok, err := s.Consume(ctx, wallet, "aa")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.(*MemoryStore).Len())
}

func TestMemoryStoreSweep(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(5*time.Millisecond, WithClock(c.Now))
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newChallenge("aa", c.Now()), time.Minute))
	c.Advance(time.Hour)

	mem := s.(*MemoryStore)
	require.Eventually(t, func() bool { return mem.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryStoreCloseIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Millisecond)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
