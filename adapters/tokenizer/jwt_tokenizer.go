package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/ports"
)

const (
	// Issuer is stamped into every access token and required on parse
	Issuer = "estate"

	AudienceAccess = "estate:access"

	// AuthTypeWallet marks sessions established by a signed challenge
	AuthTypeWallet = "crypto"
)

// JWTTokenizer implements the Tokenizer interface with ES256 tokens. Only
// tokens signed by its own key, for its own issuer and audience, parse.
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	parser  *jwt.Parser
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return &JWTTokenizer{
		signKey: signKey,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
			jwt.WithIssuer(Issuer),
			jwt.WithAudience(AudienceAccess),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// SessionToAccessToken signs the session as a bearer token
func (j *JWTTokenizer) SessionToAccessToken(session *core.Session) (string, error) {
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   session.Address,
			Audience:  jwt.ClaimStrings{AudienceAccess},
			ID:        session.ID,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.AccessExpiry),
		},
		AuthType: AuthTypeWallet,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// AccessTokenToSession verifies a bearer token and rebuilds its session.
// Expired tokens yield core.ErrTokenExpired, anything else unusable
// core.ErrInvalidToken.
func (j *JWTTokenizer) AccessTokenToSession(tokenStr string) (*core.Session, error) {
	claims := &AccessClaims{}
	if _, err := j.parser.ParseWithClaims(tokenStr, claims, j.publicKey); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidToken, err)
	}

	if claims.AuthType != AuthTypeWallet || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: incomplete claims", core.ErrInvalidToken)
	}

	return &core.Session{
		ID:           claims.ID,
		Address:      claims.Subject,
		IssuedAt:     claims.IssuedAt.Time,
		AccessExpiry: claims.ExpiresAt.Time,
	}, nil
}

func (j *JWTTokenizer) publicKey(*jwt.Token) (interface{}, error) {
	return &j.signKey.PublicKey, nil
}
