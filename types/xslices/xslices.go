// Package xslices provide missing functionality to the slices package.
package xslices

import (
	"slices"

	"golang.org/x/exp/constraints"
)

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// Filter returns a new slice with the elements of in for which fn returns true,
// preserving order.
func Filter[T any](in []T, fn func(e T) bool) (out []T) {
	for _, e := range in {
		if fn(e) {
			out = append(out, e)
		}
	}
	return
}

// At returns the element at the given index. Negative indices count from the
// end: At(s, -1) is the last element.
func At[T any](s []T, index int) T {
	if index < 0 {
		index = len(s) + index
	}
	return s[index]
}

// Last returns the last element of the slice.
func Last[T any](s []T) T {
	return s[len(s)-1]
}

// Keys returns the keys of a map in the form of a slice, in no particular order.
func Keys[K comparable, V any](m map[K]V) (keys []K) {
	keys = make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return
}

// SortedKeys returns the sorted keys of a map in the form of a slice.
func SortedKeys[K constraints.Ordered, V any](m map[K]V) (keys []K) {
	keys = Keys(m)
	slices.Sort(keys)
	return
}
