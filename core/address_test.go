package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func TestParseAddress(t *testing.T) {
	valid := []string{
		checksummed,
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED",
		"5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"  " + checksummed + "\n",
	}
	for _, s := range valid {
		addr, err := ParseAddress(s)
		require.NoError(t, err, "input %q", s)
		assert.Equal(t, checksummed, Checksum(addr))
	}

	invalid := []string{
		"",
		"0x",
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1bea",
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed00",
		"0xgaaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	}
	for _, s := range invalid {
		_, err := ParseAddress(s)
		require.ErrorIs(t, err, ErrInvalidAddress, "input %q", s)
		require.ErrorIs(t, err, ErrInvalidInput, "input %q", s)
	}
}

func TestCanonicalAddress(t *testing.T) {
	canonical, err := CanonicalAddress(checksummed)
	require.NoError(t, err)
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", canonical)

	again, err := CanonicalAddress(canonical)
	require.NoError(t, err)
	assert.Equal(t, canonical, again)
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		amount   *big.Int
		decimals uint8
		want     string
	}{
		{big.NewInt(3_000_000), 6, "3"},
		{big.NewInt(1_500_000), 6, "1.5"},
		{big.NewInt(1), 18, "0.000000000000000001"},
		{big.NewInt(1000), 0, "1000"},
		{nil, 6, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUnits(tt.amount, tt.decimals))
	}
}

func TestSettlementErrorKeepsTxHash(t *testing.T) {
	err := &SettlementError{
		Op:     OpPurchase,
		Step:   "buy_tokens",
		State:  StateSubmitted,
		TxHash: "0xabc",
		Err:    ErrNotConfirmed,
	}
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Equal(t, "purchase_tokens: buy_tokens (tx 0xabc): transaction not confirmed", err.Error())
}
