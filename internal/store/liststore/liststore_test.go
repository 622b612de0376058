package liststore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushRangePop(t *testing.T) {
	s := New()
	n := s.Push("l", false, []byte("a"), []byte("b"), []byte("c"))
	assert.Equal(t, 3, n)

	got := s.Range("l", 0, -1)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, got)

	vals, ok := s.Pop("l", 2)
	require.True(t, ok)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, vals)
	assert.Equal(t, 1, s.Len("l"))
}

func TestLPushOrdering(t *testing.T) {
	s := New()
	s.Push("l", true, []byte("a"))
	s.Push("l", true, []byte("b"))
	assert.Equal(t, [][]byte{[]byte("b"), []byte("a")}, s.Range("l", 0, -1))
}

func TestRangeClampingAndEmpty(t *testing.T) {
	s := New()
	s.Push("l", false, []byte("a"), []byte("b"))
	assert.Equal(t, [][]byte{}, s.Range("l", 5, 10))
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, s.Range("l", -100, 100))
}

func TestBLPopWakesOnPush(t *testing.T) {
	s := New()
	done := make(chan []byte, 1)
	go func() {
		v, ok := s.BLPop(context.Background(), "l", 0)
		if ok {
			done <- v
		} else {
			done <- nil
		}
	}()

	time.Sleep(10 * time.Millisecond)
	s.Push("l", false, []byte("x"))

	select {
	case v := <-done:
		assert.Equal(t, []byte("x"), v)
	case <-time.After(time.Second):
		t.Fatal("BLPop did not wake up on push")
	}
}

func TestBLPopTimeout(t *testing.T) {
	s := New()
	start := time.Now()
	v, ok := s.BLPop(context.Background(), "missing", 50*time.Millisecond)
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestBLPopCancellation(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := s.BLPop(ctx, "missing", 0)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("BLPop did not observe cancellation")
	}
}
