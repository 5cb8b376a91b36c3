package poller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
)

const debounceBucket = "poller_debounce"

// debounceState is one mapping's in-flight confirmation window: the
// candidate value under observation and how many consecutive reads have
// now matched it.
type debounceState struct {
	Candidate    any `json:"candidate"`
	Confirmed    any `json:"confirmed"`
	MatchesSoFar int `json:"matchesSoFar"`
}

// DebounceTracker holds, per mapping key, the candidate value currently
// being confirmed and how many consecutive reads have matched it. A value
// change is only handed to the caller once debounceCount consecutive
// reads agree, so a single noisy reading never reaches the repository. It
// optionally persists its state to a bbolt file so a process restart does
// not discard an in-progress confirmation window and start it over
// against potentially stale field conditions.
type DebounceTracker struct {
	mu    sync.Mutex
	state map[string]*debounceState
	db    *bolt.DB
}

// NewDebounceTracker builds a tracker. If db is non-nil, state changes are
// persisted to it under debounceBucket and existing state is loaded from
// it on construction.
func NewDebounceTracker(db *bolt.DB) (*DebounceTracker, error) {
	t := &DebounceTracker{state: make(map[string]*debounceState), db: db}
	if db == nil {
		return t, nil
	}

	err := db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(debounceBucket))
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, v []byte) error {
			var s debounceState
			if err := json.Unmarshal(v, &s); err != nil {
				return nil // skip corrupt entries rather than fail startup
			}
			t.state[string(k)] = &s
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("poller: load debounce state: %w", err)
	}
	return t, nil
}

// Observe records one new reading for key and reports whether it has now
// been confirmed (matched debounceCount consecutive times) along with the
// confirmed value. A reading that differs from the current candidate
// resets the confirmation window to start counting the new value.
func (t *DebounceTracker) Observe(key string, reading any, debounceCount int) (confirmed bool, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.state[key]
	if !ok {
		s = &debounceState{}
		t.state[key] = s
	}

	if !valuesEqual(s.Candidate, reading) || s.MatchesSoFar == 0 {
		s.Candidate = reading
		s.MatchesSoFar = 1
	} else {
		s.MatchesSoFar++
	}

	if s.MatchesSoFar >= debounceCount && !valuesEqual(s.Confirmed, reading) {
		s.Confirmed = reading
		t.persist(key, s)
		return true, reading
	}

	t.persist(key, s)
	return false, nil
}

func (t *DebounceTracker) persist(key string, s *debounceState) {
	if t.db == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = t.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(debounceBucket))
		if bucket == nil {
			return nil
		}
		return bucket.Put([]byte(key), data)
	})
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ab, aerr := json.Marshal(a)
	bb, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// MappingKey builds the debounce/lookup key for a mapping.
func MappingKey(submodelID, idShortPath string) string {
	return submodelID + "#" + idShortPath
}
