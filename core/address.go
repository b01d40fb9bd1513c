package core

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress validates a hex account or contract address and returns it in
// binary form. The 0x prefix is optional. All-lower or all-upper input is
// accepted as is; mixed-case input must carry a valid EIP-55 checksum.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	addr := common.HexToAddress(s)

	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if isMixedCase(digits) && addr.Hex()[2:] != digits {
		return common.Address{}, fmt.Errorf("%w: bad checksum %q", ErrInvalidAddress, s)
	}
	return addr, nil
}

// CanonicalAddress parses s and returns its lower-case 0x form, the key used
// for every internal lookup.
func CanonicalAddress(s string) (string, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return "", err
	}
	return Canonical(addr), nil
}

// Canonical returns the lower-case 0x form of addr.
func Canonical(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// Checksum returns the EIP-55 mixed-case display form of addr.
func Checksum(addr common.Address) string {
	return addr.Hex()
}

func isMixedCase(digits string) bool {
	return strings.ToLower(digits) != digits && strings.ToUpper(digits) != digits
}
