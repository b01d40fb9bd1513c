package service

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestSignerLocksSerializeSameAccount(t *testing.T) {
	locks := newSignerLocks()
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")

	release := locks.lock(a)

	acquired := make(chan struct{})
	go func() {
		unlock := locks.lock(a)
		close(acquired)
		unlock()
	}()

	// A different account is not blocked
	locks.lock(b)()

	select {
	case <-acquired:
		t.Fatal("second lock on the same account acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock not handed over after release")
	}
	assert.Len(t, locks.locks, 2)
}
