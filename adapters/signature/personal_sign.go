package signature

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/estate/core"
	"github.com/layer-3/estate/ports"
)

// PersonalSignVerifier recovers signers of EIP-191 "personal_sign" messages,
// the format produced by browser wallets for plain-text challenges
type PersonalSignVerifier struct{}

// NewPersonalSignVerifier creates a new verifier
func NewPersonalSignVerifier() ports.SignatureVerifier {
	return PersonalSignVerifier{}
}

// Recover returns the address whose key produced signature over message
func (PersonalSignVerifier) Recover(message string, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", core.ErrSignatureMismatch)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", crypto.SignatureLength, core.ErrSignatureMismatch)
	}

	// Wallets emit V as 27/28, the recovery routine expects 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", core.ErrSignatureMismatch)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// Sign produces a wallet-compatible personal_sign signature. It is used by
// the participant CLI and by tests.
func Sign(message string, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return hexutil.Encode(sig), nil
}
