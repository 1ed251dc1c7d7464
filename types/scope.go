package types

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
)

// Scope is an immutable set of non-negative variable indices, stored as a
// canonically sorted slice. It is the structural key used pervasively by the
// symbolic circuit IR: two scopes are equal iff their member sets are equal.
//
// All operations are pure: Union, Intersect and Difference always return new
// values and never mutate their receivers. The empty scope is valid and
// represents a layer with no variable dependence, e.g. a post-integration
// constant layer.
type Scope []int

// NewScope creates a Scope from the given variable indices. Duplicates are
// removed and the indices are sorted. It panics if any index is negative,
// since that is a programming error and not a runtime condition.
func NewScope(indices ...int) Scope {
	s := slices.Clone(indices)
	slices.Sort(s)
	s = slices.Compact(s)
	if len(s) > 0 && s[0] < 0 {
		exceptions.Panicf("types.NewScope(%v): variable indices must be non-negative", indices)
	}
	return s
}

// ScopeRange returns the scope {from, from+1, ..., to-1}.
func ScopeRange(from, to int) Scope {
	if from < 0 || to < from {
		exceptions.Panicf("types.ScopeRange(%d, %d): invalid range", from, to)
	}
	s := make(Scope, 0, to-from)
	for v := from; v < to; v++ {
		s = append(s, v)
	}
	return s
}

// Len returns the number of variables in the scope.
func (s Scope) Len() int { return len(s) }

// IsEmpty returns whether the scope has no variables.
func (s Scope) IsEmpty() bool { return len(s) == 0 }

// Contains returns whether the variable index v is in the scope.
func (s Scope) Contains(v int) bool {
	_, found := slices.BinarySearch(s, v)
	return found
}

// Equal returns whether the two scopes have exactly the same variables.
func (s Scope) Equal(other Scope) bool {
	return slices.Equal(s, other)
}

// Union returns a new Scope with the variables of both scopes.
func (s Scope) Union(other Scope) Scope {
	merged := make(Scope, 0, len(s)+len(other))
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] < other[j]:
			merged = append(merged, s[i])
			i++
		case s[i] > other[j]:
			merged = append(merged, other[j])
			j++
		default:
			merged = append(merged, s[i])
			i++
			j++
		}
	}
	merged = append(merged, s[i:]...)
	merged = append(merged, other[j:]...)
	return merged
}

// Intersect returns a new Scope with the variables present in both scopes.
func (s Scope) Intersect(other Scope) Scope {
	common := make(Scope, 0, min(len(s), len(other)))
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] < other[j]:
			i++
		case s[i] > other[j]:
			j++
		default:
			common = append(common, s[i])
			i++
			j++
		}
	}
	return common
}

// Difference returns a new Scope with the variables of s that are not in other.
func (s Scope) Difference(other Scope) Scope {
	diff := make(Scope, 0, len(s))
	j := 0
	for _, v := range s {
		for j < len(other) && other[j] < v {
			j++
		}
		if j < len(other) && other[j] == v {
			continue
		}
		diff = append(diff, v)
	}
	return diff
}

// Overlaps returns whether the two scopes share at least one variable.
func (s Scope) Overlaps(other Scope) bool {
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] < other[j]:
			i++
		case s[i] > other[j]:
			j++
		default:
			return true
		}
	}
	return false
}

// IsSubsetOf returns whether every variable of s is also in other.
func (s Scope) IsSubsetOf(other Scope) bool {
	return len(s.Difference(other)) == 0
}

// Key returns a compact canonical representation, usable as a map key when
// grouping layers by scope.
func (s Scope) Key() string {
	var b strings.Builder
	for i, v := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

// String implements fmt.Stringer.
func (s Scope) String() string {
	return fmt.Sprintf("{%s}", s.Key())
}
