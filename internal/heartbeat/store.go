// Package heartbeat keeps the in-memory last-seen timestamps used for
// liveness detection. The store is a cache, never a source of historical
// truth: losing it only delays dead-connection detection, it cannot corrupt
// the session ledger.
package heartbeat

import (
	"sync"
	"time"
)

// Store maps agent IDs to the time of their most recent heartbeat. It is
// constructed at process start and injected into the presence channel and
// the liveness monitor; nothing else touches it.
type Store struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{seen: make(map[string]time.Time)}
}

// Mark records a heartbeat for the agent at t. Overwriting an existing
// entry is the normal case; duplicates are harmless.
func (s *Store) Mark(agentID string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[agentID] = t
}

// LastSeen returns the last heartbeat time for the agent, and whether the
// agent has an entry at all.
func (s *Store) LastSeen(agentID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.seen[agentID]
	return t, ok
}

// Remove deletes the agent's entry. Removing a missing entry is a no-op.
func (s *Store) Remove(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, agentID)
}

// StaleBefore returns the IDs of agents whose last heartbeat is strictly
// older than cutoff. Callers must re-check LastSeen before acting on an
// entry: a heartbeat can land between the scan and the action, and the
// heartbeat wins.
func (s *Store) StaleBefore(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, t := range s.seen {
		if t.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Snapshot returns a copy of all entries, for roster views.
func (s *Store) Snapshot() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.seen))
	for id, t := range s.seen {
		out[id] = t
	}
	return out
}

// Len returns the number of tracked agents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Clear drops all entries. Called at shutdown.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]time.Time)
}
