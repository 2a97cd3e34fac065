package session

import (
	"sync"

	"matchpoint/internal/types"
)

// Store holds per-job working state layered over the cached baseline. It is
// process-local by design: overlays live only until the next explicit merge
// or reset, while the durable snapshot stays in the cache.
//
// Keys are (jobSeekerID, normalized job key); lookups are exact, no
// cross-key fallback.
type Store struct {
	mu     sync.RWMutex
	states map[stateKey]types.WorkingState
}

type stateKey struct {
	jobSeekerID string
	jobKey      string
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{
		states: make(map[stateKey]types.WorkingState),
	}
}

// GetEffective returns the working state for the job and whether one exists.
// Absence means the baseline is authoritative.
func (s *Store) GetEffective(jobSeekerID, jobKey string) (types.WorkingState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[stateKey{jobSeekerID, jobKey}]
	return state, ok
}

// SetEffective stores the working state for the job, replacing any previous one
func (s *Store) SetEffective(jobSeekerID, jobKey string, state types.WorkingState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey{jobSeekerID, jobKey}] = state
}

// Reset drops the working state for one job, falling back to baseline
func (s *Store) Reset(jobSeekerID, jobKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, stateKey{jobSeekerID, jobKey})
}

// ResetAll drops every working state for the identity. Used when the
// snapshot itself is replaced or cleared.
func (s *Store) ResetAll(jobSeekerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.states {
		if key.jobSeekerID == jobSeekerID {
			delete(s.states, key)
		}
	}
}

// Len reports the number of live overlays, for the stats endpoint
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
