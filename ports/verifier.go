package ports

import "github.com/ethereum/go-ethereum/common"

// SignatureVerifier recovers the account that signed a message
type SignatureVerifier interface {
	Recover(message string, signature string) (common.Address, error)
}
