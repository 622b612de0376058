package streamstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() int64 {
	return func() int64 { return ms }
}

func TestAddExplicitIDMonotonic(t *testing.T) {
	s := New()
	id, err := s.Add("s", "1-1", []Field{{"k", []byte("v")}}, fixedClock(0))
	require.NoError(t, err)
	assert.Equal(t, "1-1", id.String())

	_, err = s.Add("s", "1-1", []Field{{"k", []byte("v")}}, fixedClock(0))
	assert.ErrorIs(t, err, ErrIDNotIncreasing)

	_, err = s.Add("s", "0-0", []Field{{"k", []byte("v")}}, fixedClock(0))
	assert.ErrorIs(t, err, ErrZeroID)
}

func TestAddStarID(t *testing.T) {
	s := New()
	id1, err := s.Add("s", "*", nil, fixedClock(100))
	require.NoError(t, err)
	assert.Equal(t, ID{Ms: 100, Seq: 0}, id1)

	id2, err := s.Add("s", "*", nil, fixedClock(100))
	require.NoError(t, err)
	assert.Equal(t, ID{Ms: 100, Seq: 1}, id2)

	id3, err := s.Add("s", "*", nil, fixedClock(101))
	require.NoError(t, err)
	assert.Equal(t, ID{Ms: 101, Seq: 0}, id3)
}

func TestAddMsStarID(t *testing.T) {
	s := New()
	id, err := s.Add("s", "5-*", nil, fixedClock(0))
	require.NoError(t, err)
	assert.Equal(t, ID{Ms: 5, Seq: 0}, id)

	id, err = s.Add("s", "5-*", nil, fixedClock(0))
	require.NoError(t, err)
	assert.Equal(t, ID{Ms: 5, Seq: 1}, id)
}

func TestRange(t *testing.T) {
	s := New()
	s.Add("s", "1-1", []Field{{"a", []byte("1")}}, fixedClock(0))
	s.Add("s", "2-1", []Field{{"a", []byte("2")}}, fixedClock(0))
	s.Add("s", "3-1", []Field{{"a", []byte("3")}}, fixedClock(0))

	entries := s.Range("s", ID{}, ID{Ms: ^uint64(0), Seq: ^uint64(0)})
	require.Len(t, entries, 3)
	assert.Equal(t, "1-1", entries[0].ID.String())

	entries = s.Range("s", ID{Ms: 2}, ID{Ms: 2, Seq: ^uint64(0)})
	require.Len(t, entries, 1)
	assert.Equal(t, "2-1", entries[0].ID.String())
}

func TestWaitForNewWakesOnAdd(t *testing.T) {
	s := New()
	done := make(chan bool, 1)
	go func() {
		_, ok := s.WaitForNew(context.Background(), []string{"s"}, []ID{{}}, 0)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	s.Add("s", "1-1", nil, fixedClock(0))

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("WaitForNew did not wake on XADD")
	}
}

func TestWaitForNewTimeout(t *testing.T) {
	s := New()
	_, ok := s.WaitForNew(context.Background(), []string{"s"}, []ID{{}}, 30*time.Millisecond)
	assert.False(t, ok)
}
