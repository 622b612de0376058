// Package master implements the master side of replication: replica
// registration on PSYNC, write-command propagation in registration order,
// offset tracking, and WAIT. Propagation runs as a single critical section:
// unlike internal/pubsub.Registry, which snapshots subscribers and writes
// to them after releasing its lock, the Manager writes to every replica
// while holding its mutex.
package master

import (
	"fmt"
	"io"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/kvserver/kvserver/internal/resp"
)

// EmptyRDB is a fixed, opaque "empty database" payload sufficient for a
// replica to accept FULLRESYNC; the core neither parses nor emits a real
// snapshot format on this path.
var EmptyRDB = []byte{
	0x52, 0x45, 0x44, 0x49, 0x53, 0x30, 0x30, 0x31, 0x31, // "REDIS0011"
	0xfa, 0x09, 0x72, 0x65, 0x64, 0x69, 0x73, 0x2d, 0x76, 0x65, 0x72, 0x05, 0x37, 0x2e, 0x32, 0x2e, 0x30,
	0xff, // EOF opcode
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // checksum (disabled)
}

// ReplicaID is a stable handle identifying a registered replica connection
// across AddReplica/RemoveReplica/Ack calls.
type ReplicaID uint64

type replica struct {
	id     ReplicaID
	w      io.Writer
	ack    int64
	closed bool
}

// Manager tracks the replica set and the master replication offset.
type Manager struct {
	mu       sync.Mutex
	replicas []*replica
	byID     map[ReplicaID]*replica
	nextID   ReplicaID
	offset   int64 // bytes of propagated write commands only, not the snapshot
	replID   string
}

// NewManager returns a Manager with the given stable 40-hex replication id.
func NewManager(replID string) *Manager {
	return &Manager{byID: make(map[ReplicaID]*replica), replID: replID}
}

// ReplID returns the master's replication id, as reported by INFO.
func (m *Manager) ReplID() string { return m.replID }

// Offset returns the current master_repl_offset.
func (m *Manager) Offset() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset
}

// FullResyncHeader renders the "+FULLRESYNC <replid> 0\r\n" line sent in
// reply to PSYNC, before the snapshot bytes.
func (m *Manager) FullResyncHeader() []byte {
	return []byte(fmt.Sprintf("+FULLRESYNC %s 0\r\n", m.replID))
}

// SnapshotFrame renders the RDB payload in its bulk-framing-without-CRLF
// shape ("$<len>\r\n<bytes>", no trailing terminator).
func SnapshotFrame(payload []byte) []byte {
	return append([]byte(fmt.Sprintf("$%d\r\n", len(payload))), payload...)
}

// AddReplica registers w (the replica connection's writer) and returns its
// id, to be used for RemoveReplica/Ack.
func (m *Manager) AddReplica(w io.Writer) ReplicaID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	r := &replica{id: m.nextID, w: w}
	m.replicas = append(m.replicas, r)
	m.byID[r.id] = r
	return r.id
}

// RemoveReplica drops a replica from the set and the offset table
// atomically.
func (m *Manager) RemoveReplica(id ReplicaID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
}

func (m *Manager) removeLocked(id ReplicaID) {
	r, ok := m.byID[id]
	if !ok {
		return
	}
	r.closed = true
	delete(m.byID, id)
	for i, rr := range m.replicas {
		if rr.id == id {
			m.replicas = append(m.replicas[:i], m.replicas[i+1:]...)
			break
		}
	}
}

// Count returns the number of currently-registered replicas.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replicas)
}

// Propagate serializes cmd as a RESP array and writes it to every
// registered replica in registration order, as one critical section
// covering execution-order bookkeeping (the caller is expected to have
// already executed the write against the store before calling this). A
// replica whose write fails is removed from the set and the offset table.
func (m *Manager) Propagate(cmd ...string) {
	wire := resp.EncodeCommand(cmd...)
	m.propagateBytes(wire)
}

// PropagateBytes is Propagate for an already-encoded command (used when
// forwarding the exact bytes of a command executed inside EXEC, to
// guarantee contiguous in-queue-order propagation).
func (m *Manager) PropagateBytes(wire []byte) {
	m.propagateBytes(wire)
}

func (m *Manager) propagateBytes(wire []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.offset += int64(len(wire))

	dead := make([]ReplicaID, 0)
	for _, r := range m.replicas {
		if _, err := r.w.Write(wire); err != nil {
			cclog.Warnf("[REPL]> propagation to replica %d failed, dropping: %s", r.id, err.Error())
			dead = append(dead, r.id)
		}
	}
	for _, id := range dead {
		m.removeLocked(id)
	}
}

// Ack records a replica's acknowledged offset from REPLCONF ACK.
func (m *Manager) Ack(id ReplicaID, offset int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byID[id]; ok {
		r.ack = offset
	}
}

// Wait implements the WAIT command: snapshot M=master_repl_offset; if M==0
// reply immediately with the replica count. Otherwise send REPLCONF GETACK
// * to every replica (which itself advances the offset — but the count
// comparison below still uses the pre-GETACK snapshot M),
// then poll until at least numReplicas have ack >= M or timeout elapses
// (timeout<=0 means forever).
func (m *Manager) Wait(numReplicas int, timeout time.Duration) int {
	m.mu.Lock()
	snapshot := m.offset
	count := len(m.replicas)
	m.mu.Unlock()

	if snapshot == 0 {
		return count
	}

	m.Propagate("REPLCONF", "GETACK", "*")

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	const pollTick = 5 * time.Millisecond
	for {
		if n := m.countAcked(snapshot); n >= numReplicas {
			return n
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return m.countAcked(snapshot)
		}
		time.Sleep(pollTick)
	}
}

func (m *Manager) countAcked(offset int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.replicas {
		if r.ack >= offset {
			n++
		}
	}
	return n
}
