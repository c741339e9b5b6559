package walker

import (
	"encoding/json"
	"sort"
	"sync"
)

// SeenSet records the record identities already yielded during a job.
// It is shared between the listing walk and the comment workers, so all
// access goes through a mutex. The zero value is not usable; call
// NewSeenSet.
type SeenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewSeenSet returns an empty seen-set.
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// CheckAndAdd inserts id and reports whether it was absent before the
// call. The check and the insert happen under one lock acquisition, so
// two goroutines racing on the same id cannot both get true.
func (s *SeenSet) CheckAndAdd(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Contains reports whether id has been recorded.
func (s *SeenSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.ids[id]
	return ok
}

// Len returns the number of recorded identities.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.ids)
}

// Snapshot returns the recorded identities in sorted order. Sorting
// keeps checkpoints byte-stable so identical progress always produces
// identical persisted state.
func (s *SeenSet) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MarshalJSON encodes the set as a sorted JSON array of identities.
func (s *SeenSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// UnmarshalJSON restores the set from a JSON array of identities.
func (s *SeenSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return nil
}
