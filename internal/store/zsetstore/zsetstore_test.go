package zsetstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOrdersByScoreThenMember(t *testing.T) {
	s := New()
	n := s.Add("z", map[string]float64{"b": 1, "a": 1, "c": 0})
	assert.Equal(t, 3, n)

	got := s.Range("z", 0, -1)
	require.Len(t, got, 3)
	assert.Equal(t, []Pair{{"c", 0}, {"a", 1}, {"b", 1}}, got)
}

func TestReAddSameScoreNoOp(t *testing.T) {
	s := New()
	s.Add("z", map[string]float64{"a": 1})
	n := s.Add("z", map[string]float64{"a": 1})
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, s.Card("z"))
}

func TestReAddDifferentScoreUpdatesNotCounted(t *testing.T) {
	s := New()
	s.Add("z", map[string]float64{"a": 1})
	n := s.Add("z", map[string]float64{"a": 5})
	assert.Equal(t, 0, n)

	score, ok := s.Score("z", "a")
	require.True(t, ok)
	assert.Equal(t, 5.0, score)
}

func TestRemAndCard(t *testing.T) {
	s := New()
	s.Add("z", map[string]float64{"a": 1, "b": 2})
	assert.True(t, s.Rem("z", "a"))
	assert.False(t, s.Rem("z", "a"))
	assert.Equal(t, 1, s.Card("z"))
}

func TestRank(t *testing.T) {
	s := New()
	s.Add("z", map[string]float64{"a": 1, "b": 2, "c": 3})
	rank, ok := s.Rank("z", "b")
	require.True(t, ok)
	assert.Equal(t, 1, rank)
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "1", FormatScore(1.0))
	assert.Equal(t, "1.5", FormatScore(1.5))
	assert.Equal(t, "3.141592653589793", FormatScore(3.141592653589793))
	assert.Equal(t, "0", FormatScore(0))
}
