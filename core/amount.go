package core

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatUnits renders an integer token amount in whole-token units for
// display. It is never used for arithmetic.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
