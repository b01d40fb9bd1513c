package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/ports"
)

// ChallengeMessagePrefix precedes the nonce in the message wallets sign
const ChallengeMessagePrefix = "Sign this: "

const (
	DefaultChallengeTTL = 5 * time.Minute
	DefaultAccessTTL    = 24 * time.Hour
)

// AuthService runs the wallet challenge/response protocol
type AuthService struct {
	store     ports.ChallengeStore
	verifier  ports.SignatureVerifier
	tokenizer ports.Tokenizer
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time

	challengeTTL time.Duration
	accessTTL    time.Duration
}

// AuthOption customises an AuthService
type AuthOption func(*AuthService)

// WithChallengeTTL sets how long an issued challenge stays valid
func WithChallengeTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.challengeTTL = ttl
		}
	}
}

// WithAccessTTL sets the lifetime of issued session tokens
func WithAccessTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithAuthClock overrides the time source
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAuthLogger sets the logger
func WithAuthLogger(logger *slog.Logger) AuthOption {
	return func(s *AuthService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuthMetrics sets the metrics sink
func WithAuthMetrics(m *Metrics) AuthOption {
	return func(s *AuthService) {
		s.metrics = m
	}
}

// NewAuthService creates a new authentication service
func NewAuthService(
	store ports.ChallengeStore,
	verifier ports.SignatureVerifier,
	tokenizer ports.Tokenizer,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		store:        store,
		verifier:     verifier,
		tokenizer:    tokenizer,
		logger:       slog.Default(),
		now:          time.Now,
		challengeTTL: DefaultChallengeTTL,
		accessTTL:    DefaultAccessTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "auth")
	return s
}

// IssueChallenge creates a fresh challenge for address, replacing any pending
// one, and returns the message the wallet has to sign
func (s *AuthService) IssueChallenge(ctx context.Context, address string) (string, error) {
	canonical, err := core.CanonicalAddress(address)
	if err != nil {
		return "", err
	}

	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(nonceBytes)

	now := s.now()
	challenge := &core.Challenge{
		ID:        uuid.New().String(),
		Address:   canonical,
		Nonce:     nonce,
		Message:   ChallengeMessagePrefix + nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.challengeTTL),
	}

	if err := s.store.Put(ctx, challenge, s.challengeTTL); err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}

	s.metrics.challengeIssued()
	s.logger.DebugContext(ctx, "challenge issued", "address", canonical, "challenge_id", challenge.ID)

	return challenge.Message, nil
}

// Verify checks that signature was produced by address over its pending
// challenge. A successful check consumes the challenge; a mismatch leaves it
// in place so the owner can retry until it expires.
func (s *AuthService) Verify(ctx context.Context, address, signature string) error {
	canonical, err := core.CanonicalAddress(address)
	if err != nil {
		return err
	}

	challenge, err := s.store.Get(ctx, canonical)
	if err != nil {
		if errors.Is(err, core.ErrChallengeNotFound) {
			s.metrics.verification("no_challenge")
			return core.ErrChallengeNotFound
		}
		return fmt.Errorf("failed to load challenge: %w", err)
	}

	recovered, err := s.verifier.Recover(challenge.Message, signature)
	if err != nil {
		s.metrics.verification("mismatch")
		return fmt.Errorf("signature verification failed: %w", err)
	}
	if core.Canonical(recovered) != canonical {
		s.metrics.verification("mismatch")
		return core.ErrSignatureMismatch
	}

	consumed, err := s.store.Consume(ctx, canonical, challenge.Nonce)
	if err != nil {
		return fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !consumed {
		// Re-issued, expired or consumed by a concurrent verify
		s.metrics.verification("no_challenge")
		return core.ErrChallengeNotFound
	}

	s.metrics.verification("ok")
	s.logger.InfoContext(ctx, "wallet signature verified", "address", canonical)

	return nil
}

// Authenticate verifies the signed challenge and opens a session for address
func (s *AuthService) Authenticate(ctx context.Context, address, signature string) (string, *core.Session, error) {
	if err := s.Verify(ctx, address, signature); err != nil {
		return "", nil, err
	}

	canonical, _ := core.CanonicalAddress(address)
	now := s.now()
	session := &core.Session{
		ID:           uuid.New().String(),
		Address:      canonical,
		IssuedAt:     now,
		AccessExpiry: now.Add(s.accessTTL),
	}

	token, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return token, session, nil
}

// ValidateAccessToken parses an access token and checks it has not expired
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, err
	}

	if s.now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	return session, nil
}
