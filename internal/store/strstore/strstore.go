// Package strstore is the string-value store: key -> byte string, with an
// optional millisecond expiry. An RWMutex guards a plain map; the write
// lock is only taken when the map itself must change.
package strstore

import (
	"strconv"
	"sync"
	"time"
)

type entry struct {
	value    []byte
	timer    *time.Timer
	deadline time.Time // zero means no expiry
}

// Store is a concurrency-safe map of key to string value with TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string]*entry)}
}

// Set stores value under key. If ttl > 0, the key is scheduled for removal
// after ttl elapses; ttl <= 0 means no expiry. Overwriting a key with an
// existing expiry cancels the prior timer.
func (s *Store) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.data[key]; ok && old.timer != nil {
		old.timer.Stop()
	}

	e := &entry{value: value}
	s.data[key] = e

	if ttl > 0 {
		e.deadline = time.Now().Add(ttl)
		e.timer = time.AfterFunc(ttl, func() {
			s.expire(key, e)
		})
	}
}

// LoadSnapshot installs kv verbatim, with no expiry, as the startup
// snapshot rule. Intended to run once before the listener accepts
// connections, so it takes the lock only for uniformity with the rest of
// the store's methods.
func (s *Store) LoadSnapshot(kv map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range kv {
		s.data[k] = &entry{value: []byte(v)}
	}
}

// expire deletes key if the entry still stored under it is the exact
// entry e armed this timer for; a SET that overwrote key in the
// meantime installs a new *entry, so the pointer comparison alone tells
// a stale timer firing after an overwrite to no-op instead of deleting
// the new value.
func (s *Store) expire(key string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.data[key]; !ok || cur != e {
		return
	}
	delete(s.data, key)
}

// Get returns the value for key and whether it was present (and unexpired).
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.deadline.IsZero() && !time.Now().Before(e.deadline) {
		s.expire(key, e)
		return nil, false
	}
	return e.value, true
}

// Incr parses the current value as a signed 64-bit integer, increments it,
// writes it back as a decimal string, and returns the new value. A missing
// key is treated as 0 (so the result is 1). Any non-integer existing value
// is reported via ok=false.
func (s *Store) Incr(key string) (newValue int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur int64
	if e, exists := s.data[key]; exists {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, false
		}
		cur = n
	}

	cur++
	e, exists := s.data[key]
	if !exists {
		e = &entry{}
		s.data[key] = e
	} else if e.timer != nil {
		// INCR does not touch TTL; keep the existing timer armed.
	}
	e.value = []byte(strconv.FormatInt(cur, 10))
	return cur, true
}

// Decr is Incr's mirror image, decrementing by one.
func (s *Store) Decr(key string) (newValue int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur int64
	if e, exists := s.data[key]; exists {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, false
		}
		cur = n
	}

	cur--
	e, exists := s.data[key]
	if !exists {
		e = &entry{}
		s.data[key] = e
	}
	e.value = []byte(strconv.FormatInt(cur, 10))
	return cur, true
}

// Keys returns a snapshot of all string keys currently present. Expired
// keys removed lazily elsewhere are not observed here past their deadline
// since Get/expire already delete them.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	return out
}

// KeyCount returns the number of string keys currently stored.
func (s *Store) KeyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Del removes key, reporting whether it was present.
func (s *Store) Del(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.data, key)
	return true
}

// ActiveExpireSweep removes any key past its deadline, independent of
// whether its *time.Timer has fired yet. Driven by the housekeeping
// scheduler as a belt-and-suspenders pass alongside the per-key timers.
func (s *Store) ActiveExpireSweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.data {
		if !e.deadline.IsZero() && now.After(e.deadline) {
			if e.timer != nil {
				e.timer.Stop()
			}
			delete(s.data, k)
			n++
		}
	}
	return n
}
