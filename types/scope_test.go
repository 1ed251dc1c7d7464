package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScope(t *testing.T) {
	s := NewScope(3, 1, 2, 1)
	assert.Equal(t, Scope{1, 2, 3}, s)
	assert.Equal(t, 3, s.Len())
	assert.False(t, s.IsEmpty())

	empty := NewScope()
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, 0, empty.Len())

	require.Panics(t, func() { NewScope(0, -1) })
}

func TestScopeRange(t *testing.T) {
	assert.Equal(t, Scope{2, 3, 4}, ScopeRange(2, 5))
	assert.True(t, ScopeRange(3, 3).IsEmpty())
	require.Panics(t, func() { ScopeRange(3, 1) })
}

func TestScopeSetOperations(t *testing.T) {
	a := NewScope(0, 1, 2)
	b := NewScope(2, 3)

	assert.Equal(t, NewScope(0, 1, 2, 3), a.Union(b))
	assert.Equal(t, NewScope(2), a.Intersect(b))
	assert.Equal(t, NewScope(0, 1), a.Difference(b))
	assert.Equal(t, NewScope(3), b.Difference(a))

	assert.True(t, a.Overlaps(b))
	assert.False(t, NewScope(0, 1).Overlaps(NewScope(2, 3)))

	assert.True(t, NewScope(1, 2).IsSubsetOf(a))
	assert.False(t, a.IsSubsetOf(b))
	assert.True(t, NewScope().IsSubsetOf(b))

	// Operands are never mutated.
	assert.Equal(t, NewScope(0, 1, 2), a)
	assert.Equal(t, NewScope(2, 3), b)
}

func TestScopeContainsAndEqual(t *testing.T) {
	s := NewScope(10, 20, 30)
	assert.True(t, s.Contains(20))
	assert.False(t, s.Contains(15))
	assert.True(t, s.Equal(NewScope(30, 10, 20)))
	assert.False(t, s.Equal(NewScope(10, 20)))
}

func TestScopeKey(t *testing.T) {
	assert.Equal(t, NewScope(2, 0, 1).Key(), NewScope(0, 1, 2).Key())
	assert.NotEqual(t, NewScope(0, 1).Key(), NewScope(0, 12).Key())
	assert.NotEqual(t, NewScope(0, 1, 2).Key(), NewScope(0, 12).Key())
}
