package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidAddress = fmt.Errorf("%w: malformed address", ErrInvalidInput)
	ErrNoSigner       = errors.New("administrative signer not configured")

	ErrChallengeNotFound = errors.New("challenge not found")
	ErrSignatureMismatch = errors.New("signature does not match address")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token has expired")

	ErrRPCFailure          = errors.New("rpc failure")
	ErrFetchFailed         = errors.New("fetch failed")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrNotConfirmed        = errors.New("transaction not confirmed")
	ErrEventNotFound       = errors.New("deployment event not found")
	ErrDecodeFailure       = errors.New("abi decode failure")
	ErrNotRecorded         = errors.New("deployed address not recorded")
)

// SettlementError describes which step of a settlement operation failed.
// TxHash is set whenever a transaction reached the network, so callers can
// poll it instead of assuming the transfer did not happen.
type SettlementError struct {
	Op     string
	Step   string
	State  SettlementState
	TxHash string
	Err    error
}

func (e *SettlementError) Error() string {
	if e.TxHash != "" {
		return e.Op + ": " + e.Step + " (tx " + e.TxHash + "): " + e.Err.Error()
	}
	return e.Op + ": " + e.Step + ": " + e.Err.Error()
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}
