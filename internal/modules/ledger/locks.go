package ledger

import (
	"fmt"
	"sync"
)

// holdingLocks serializes trades per (user, stock) pair. SQLite cannot
// provide serializable isolation across the read-modify-write of a
// position, so writers for the same holding are serialized in-process.
type holdingLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newHoldingLocks() *holdingLocks {
	return &holdingLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for the pair and returns its unlock function
func (h *holdingLocks) acquire(userID, stockID int64) func() {
	key := fmt.Sprintf("%d:%d", userID, stockID)

	h.mu.Lock()
	l, ok := h.locks[key]
	if !ok {
		l = &sync.Mutex{}
		h.locks[key] = l
	}
	h.mu.Unlock()

	l.Lock()
	return l.Unlock
}
