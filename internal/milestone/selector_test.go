package milestone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() Table {
	return Table{
		100: {"100-a", "100-b"},
		200: {"200-a", "200-b"},
		300: {"300-a"},
		400: {"400-a"},
		500: {"500-a", "500-b", "500-c"},
	}
}

func TestCrossed(t *testing.T) {
	tests := []struct {
		name       string
		prev, next int
		want       int
		ok         bool
	}{
		{"single boundary", 95, 101, 100, true},
		{"exact boundary", 99, 100, 100, true},
		{"no new points", 100, 100, 0, false},
		{"within hundred", 101, 150, 0, false},
		{"two boundaries at once", 95, 205, 200, true},
		{"below first", 0, 99, 0, false},
		{"beyond table", 550, 605, 600, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Crossed(tt.prev, tt.next)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelect_SingleBoundary(t *testing.T) {
	s := New(testTable())

	msg, ok := s.Select(95, 101)
	require.True(t, ok)
	assert.Contains(t, testTable()[100], msg)
}

func TestSelect_NothingCrossed(t *testing.T) {
	s := New(testTable())

	msg, ok := s.Select(100, 100)
	assert.False(t, ok)
	assert.Empty(t, msg)
}

func TestSelect_OnlyCurrentBoundary(t *testing.T) {
	s := New(testTable())

	for i := 0; i < 50; i++ {
		msg, ok := s.Select(95, 205)
		require.True(t, ok)
		assert.Contains(t, testTable()[200], msg)
		assert.NotContains(t, testTable()[100], msg)
	}
}

func TestSelect_FallsBackToHighest(t *testing.T) {
	s := New(testTable())

	msg, ok := s.Select(550, 605)
	require.True(t, ok)
	assert.Contains(t, testTable()[500], msg)
}

func TestSelect_UsesEveryCandidate(t *testing.T) {
	s := New(testTable())
	next := 0
	s.pick = func(n int) int {
		i := next % n
		next++
		return i
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		msg, _ := s.Select(499, 500)
		seen[msg] = true
	}
	assert.Len(t, seen, 3)
}

func TestSelect_EmptyTable(t *testing.T) {
	s := New(nil)

	_, ok := s.Select(95, 101)
	assert.False(t, ok)
}
