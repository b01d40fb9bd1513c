package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/ports"
)

// DefaultSweepInterval is how often expired challenges are purged
const DefaultSweepInterval = time.Minute

// MemoryStore is an in-process implementation of the ChallengeStore interface.
// Expiry is checked on every access; the sweeper only bounds memory.
type MemoryStore struct {
	challenges map[string]*core.Challenge
	mu         sync.Mutex
	now        func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// MemoryOption customises a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates a new in-memory store and starts its sweeper.
// A non-positive interval disables the sweeper.
func NewMemoryStore(sweepInterval time.Duration, opts ...MemoryOption) ports.ChallengeStore {
	s := &MemoryStore{
		challenges: make(map[string]*core.Challenge),
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	} else {
		close(s.done)
	}
	return s
}

// Put stores a challenge, overwriting any pending one for the address
func (s *MemoryStore) Put(ctx context.Context, challenge *core.Challenge, ttl time.Duration) error {
	stored := *challenge
	stored.ExpiresAt = stored.IssuedAt.Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[stored.Address] = &stored
	return nil
}

// Get returns the live challenge for the address
func (s *MemoryStore) Get(ctx context.Context, address string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[address]
	if !ok {
		return nil, core.ErrChallengeNotFound
	}
	if challenge.Expired(s.now()) {
		delete(s.challenges, address)
		return nil, core.ErrChallengeNotFound
	}

	cp := *challenge
	return &cp, nil
}

// Consume deletes the challenge if it is still live and carries nonce
func (s *MemoryStore) Consume(ctx context.Context, address, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[address]
	if !ok || challenge.Nonce != nonce {
		return false, nil
	}
	delete(s.challenges, address)

	return !challenge.Expired(s.now()), nil
}

// Close stops the sweeper
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

// Len returns the number of stored entries, expired or not
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for address, challenge := range s.challenges {
		if challenge.Expired(now) {
			delete(s.challenges, address)
		}
	}
}
