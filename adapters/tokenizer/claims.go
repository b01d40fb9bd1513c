package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims are carried by a wallet session access token. AuthType tells
// wallet logins apart from any other login the token issuer may add later.
type AccessClaims struct {
	jwt.RegisteredClaims
	AuthType string `json:"auth_type"`
}
