package master

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	fail bool
}

func (f *fakeWriter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, assert.AnError
	}
	return f.buf.Write(p)
}

func (f *fakeWriter) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.String()
}

func TestAddReplicaRegistrationOrder(t *testing.T) {
	m := NewManager("abc123")
	w1 := &fakeWriter{}
	w2 := &fakeWriter{}
	m.AddReplica(w1)
	m.AddReplica(w2)
	assert.Equal(t, 2, m.Count())
}

func TestPropagateWritesAllReplicasAndAdvancesOffset(t *testing.T) {
	m := NewManager("abc123")
	w1 := &fakeWriter{}
	w2 := &fakeWriter{}
	m.AddReplica(w1)
	m.AddReplica(w2)

	m.Propagate("SET", "k", "v")

	assert.Contains(t, w1.String(), "SET")
	assert.Contains(t, w2.String(), "SET")
	assert.Greater(t, m.Offset(), int64(0))
}

func TestPropagateDropsFailingReplica(t *testing.T) {
	m := NewManager("abc123")
	w1 := &fakeWriter{fail: true}
	m.AddReplica(w1)
	m.Propagate("SET", "k", "v")
	assert.Equal(t, 0, m.Count())
}

func TestWaitReturnsImmediatelyWhenNothingPropagated(t *testing.T) {
	m := NewManager("abc123")
	m.AddReplica(&fakeWriter{})
	m.AddReplica(&fakeWriter{})
	n := m.Wait(2, 100*time.Millisecond)
	assert.Equal(t, 2, n)
}

func TestWaitTimesOutWithoutAcks(t *testing.T) {
	m := NewManager("abc123")
	m.AddReplica(&fakeWriter{})
	m.Propagate("SET", "k", "v")

	start := time.Now()
	n := m.Wait(1, 30*time.Millisecond)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 0, n)
}

func TestWaitSatisfiedByAck(t *testing.T) {
	m := NewManager("abc123")
	id := m.AddReplica(&fakeWriter{})
	m.Propagate("SET", "k", "v")
	offset := m.Offset()

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Ack(id, offset)
	}()

	n := m.Wait(1, 500*time.Millisecond)
	assert.Equal(t, 1, n)
}

func TestRemoveReplica(t *testing.T) {
	m := NewManager("abc123")
	id := m.AddReplica(&fakeWriter{})
	m.RemoveReplica(id)
	assert.Equal(t, 0, m.Count())
}
