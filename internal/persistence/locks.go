package persistence

import (
	"sync"
)

// RecordLockManager provides per-record mutual exclusion for read-modify-write
// sequences on shared records. Uses a keyed mutex pattern: each record ID gets
// its own mutex, so transitions on different records never contend while
// concurrent transitions on the same record serialize.
type RecordLockManager struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-record mutexes
}

// NewRecordLockManager creates a new RecordLockManager.
func NewRecordLockManager() *RecordLockManager {
	return &RecordLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for the given record ID.
// Creates the mutex on first access if it doesn't exist.
func (r *RecordLockManager) Lock(id string) {
	r.mu.Lock()
	// Get or create the per-record mutex
	recordLock, exists := r.locks[id]
	if !exists {
		recordLock = &sync.Mutex{}
		r.locks[id] = recordLock
	}
	r.mu.Unlock()

	// Acquire the per-record lock (outside the manager lock to avoid contention)
	recordLock.Lock()
}

// Unlock releases the mutex for the given record ID.
func (r *RecordLockManager) Unlock(id string) {
	r.mu.Lock()
	recordLock, exists := r.locks[id]
	r.mu.Unlock()

	if exists {
		recordLock.Unlock()
	}
}
