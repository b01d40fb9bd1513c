package ports

import (
	"context"
	"time"

	"github.com/layer-3/estate/core"
)

// ChallengeStore keeps at most one live challenge per canonical address
type ChallengeStore interface {
	// Put stores the challenge, replacing any pending one for the same address
	Put(ctx context.Context, challenge *core.Challenge, ttl time.Duration) error

	// Get returns the pending challenge or core.ErrChallengeNotFound when
	// none was issued or it has expired
	Get(ctx context.Context, address string) (*core.Challenge, error)

	// Consume atomically deletes the challenge if it is still live and still
	// carries nonce. It reports whether this call removed it.
	Consume(ctx context.Context, address, nonce string) (bool, error)

	// Close releases background resources
	Close() error
}
