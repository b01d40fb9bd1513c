package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/ports"
	"github.com/redis/go-redis/v9"
)

// consumeScript deletes the challenge hash only if it still holds the nonce
// the caller verified against.
var consumeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'nonce') == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore is a Redis implementation of the ChallengeStore interface,
// shareable between several service instances
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client redis.UniversalClient) ports.ChallengeStore {
	return &RedisStore{
		client: client,
		prefix: "estate:challenge:",
		now:    time.Now,
	}
}

// Put stores the challenge as a hash that Redis expires after ttl
func (s *RedisStore) Put(ctx context.Context, challenge *core.Challenge, ttl time.Duration) error {
	key := s.prefix + challenge.Address
	expiresAt := challenge.IssuedAt.Add(ttl)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"id", challenge.ID,
			"nonce", challenge.Nonce,
			"message", challenge.Message,
			"issued_at", strconv.FormatInt(challenge.IssuedAt.UnixNano(), 10),
			"expires_at", strconv.FormatInt(expiresAt.UnixNano(), 10),
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	return nil
}

// Get loads the live challenge for the address
func (s *RedisStore) Get(ctx context.Context, address string) (*core.Challenge, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+address).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrChallengeNotFound
	}

	issuedAt, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt challenge issued_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt challenge expires_at: %w", err)
	}

	challenge := &core.Challenge{
		ID:        fields["id"],
		Address:   address,
		Nonce:     fields["nonce"],
		Message:   fields["message"],
		IssuedAt:  time.Unix(0, issuedAt),
		ExpiresAt: time.Unix(0, expiresAt),
	}
	if challenge.Expired(s.now()) {
		return nil, core.ErrChallengeNotFound
	}

	return challenge, nil
}

// Consume atomically removes the challenge if it still carries nonce
func (s *RedisStore) Consume(ctx context.Context, address, nonce string) (bool, error) {
	deleted, err := consumeScript.Run(ctx, s.client, []string{s.prefix + address}, nonce).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume challenge: %w", err)
	}

	return deleted > 0, nil
}

// Close is a no-op; the Redis client is owned by the caller
func (s *RedisStore) Close() error {
	return nil
}
