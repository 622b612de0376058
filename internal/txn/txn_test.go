package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeginRejectsNested(t *testing.T) {
	var s State
	assert.True(t, s.Begin())
	assert.False(t, s.Begin())
}

func TestEnqueueAndDrain(t *testing.T) {
	var s State
	s.Begin()
	s.Enqueue([][]byte{[]byte("SET"), []byte("a"), []byte("1")})
	s.Enqueue([][]byte{[]byte("INCR"), []byte("a")})

	q := s.Drain()
	assert.Len(t, q, 2)
	assert.False(t, s.Active)
	assert.Nil(t, s.Queue)
}
