// Package liststore is the list-value store: key -> ordered sequence of
// byte strings, with blocking pop. Per-key wakeups use a closed-channel
// broadcast (the idiomatic Go substitute for a per-key condition variable)
// so BLPop only wakes when ITS key changes, with a 100ms poll tick as a
// fallback.
package liststore

import (
	"context"
	"sync"
	"time"
)

// pollTick bounds how long a blocked popper can go without observing a
// push it raced with a lost signal on.
const pollTick = 100 * time.Millisecond

type Store struct {
	mu      sync.Mutex
	data    map[string][][]byte
	waiters map[string]chan struct{}
}

func New() *Store {
	return &Store{
		data:    make(map[string][][]byte),
		waiters: make(map[string]chan struct{}),
	}
}

// notifyLocked closes and clears key's waiter channel, waking everyone
// currently parked on it. Must be called with s.mu held.
func (s *Store) notifyLocked(key string) {
	if ch, ok := s.waiters[key]; ok {
		close(ch)
		delete(s.waiters, key)
	}
}

// waiterLocked returns the channel to select on for key, creating it if
// needed. Must be called with s.mu held.
func (s *Store) waiterLocked(key string) chan struct{} {
	ch, ok := s.waiters[key]
	if !ok {
		ch = make(chan struct{})
		s.waiters[key] = ch
	}
	return ch
}

// Push appends (RPUSH) or prepends (LPUSH) values and returns the new
// length. Wakes any goroutines blocked in BLPop on this key.
func (s *Store) Push(key string, left bool, values ...[]byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	lst := s.data[key]
	if left {
		for _, v := range values {
			lst = append([][]byte{v}, lst...)
		}
	} else {
		lst = append(lst, values...)
	}
	s.data[key] = lst
	n := len(lst)
	s.notifyLocked(key)
	return n
}

// Pop removes up to count items from the front of key's list. When the
// list is empty, ok is false. count<=0 means pop exactly one.
func (s *Store) Pop(key string, count int) (values [][]byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popLocked(key, count)
}

func (s *Store) popLocked(key string, count int) (values [][]byte, ok bool) {
	lst := s.data[key]
	if len(lst) == 0 {
		return nil, false
	}
	if count <= 0 {
		count = 1
	}
	if count > len(lst) {
		count = len(lst)
	}
	values = lst[:count]
	s.data[key] = lst[count:]
	return values, true
}

// Range returns an inclusive-index slice of key's list with negative
// indices counting from the end and out-of-range indices clamped, per
// Redis's LRANGE semantics.
func (s *Store) Range(key string, start, end int) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	lst := s.data[key]
	n := len(lst)
	start = clampIndex(start, n)
	end = clampIndex(end, n)
	if start > end || start >= n {
		return [][]byte{}
	}
	if end >= n {
		end = n - 1
	}
	out := make([][]byte, end-start+1)
	copy(out, lst[start:end+1])
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		i = n + i
		if i < 0 {
			i = 0
		}
	}
	return i
}

// Len returns the length of key's list (0 if absent).
func (s *Store) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[key])
}

// Del removes key's list entirely, reporting whether it was present.
func (s *Store) Del(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok
}

// KeyCount returns the number of list keys currently stored.
func (s *Store) KeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// BLPop blocks until key has an item to pop, ctx is done, or timeout
// elapses (timeout<=0 means forever). It returns the popped value and
// true, or (nil, false) on timeout/cancellation.
func (s *Store) BLPop(ctx context.Context, key string, timeout time.Duration) ([]byte, bool) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		s.mu.Lock()
		if vals, ok := s.popLocked(key, 1); ok {
			s.mu.Unlock()
			return vals[0], true
		}
		wake := s.waiterLocked(key)
		s.mu.Unlock()

		wait := pollTick
		if !deadline.IsZero() {
			if remaining := time.Until(deadline); remaining <= 0 {
				return nil, false
			} else if remaining < wait {
				wait = remaining
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-wake:
			timer.Stop()
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, false
		}
	}
}
