package service

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// signerLocks serializes transaction submission per signing account so two
// operations never race for the same account nonce.
type signerLocks struct {
	mu    sync.Mutex
	locks map[common.Address]*sync.Mutex
}

func newSignerLocks() *signerLocks {
	return &signerLocks{locks: make(map[common.Address]*sync.Mutex)}
}

// lock acquires the mutex of addr and returns its release func.
func (l *signerLocks) lock(addr common.Address) func() {
	l.mu.Lock()
	m, ok := l.locks[addr]
	if !ok {
		m = &sync.Mutex{}
		l.locks[addr] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
