package duel

import (
	"sync"
)

// Journal keeps a bounded in-memory history of snapshots captured during
// one match. Its main job is to hold the last known-good capture so a
// reconnection attempt that fails on a corrupt transmission can be
// retried from the same state while the grace timer keeps running.
// Nothing in the journal outlives the match.
type Journal struct {
	mu       sync.RWMutex
	capacity int
	entries  []GameStateSnapshot
}

// NewJournal creates a journal retaining at most capacity snapshots.
func NewJournal(capacity int) *Journal {
	if capacity < 1 {
		capacity = 1
	}
	return &Journal{
		capacity: capacity,
		entries:  make([]GameStateSnapshot, 0, capacity),
	}
}

// Record appends a snapshot, evicting the oldest entry when full.
func (j *Journal) Record(s GameStateSnapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.entries) == j.capacity {
		copy(j.entries, j.entries[1:])
		j.entries = j.entries[:len(j.entries)-1]
	}
	j.entries = append(j.entries, s.Clone())
}

// Latest returns the most recent snapshot, if any.
func (j *Journal) Latest() (GameStateSnapshot, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if len(j.entries) == 0 {
		return GameStateSnapshot{}, false
	}
	return j.entries[len(j.entries)-1].Clone(), true
}

// Size returns the number of retained snapshots.
func (j *Journal) Size() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Clear drops all retained snapshots.
func (j *Journal) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = j.entries[:0]
}
