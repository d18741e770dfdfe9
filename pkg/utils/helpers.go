// Package utils provides small generic helpers shared across the settler.
package utils

import "strings"

// Map applies f to every element of s.
func Map[T any, R any](s []T, f func(T, uint64) R) []R {
	out := make([]R, 0, len(s))
	for i, v := range s {
		out = append(out, f(v, uint64(i)))
	}
	return out
}

// Filter returns the elements of s for which f returns true.
func Filter[T any](s []T, f func(T) bool) []T {
	out := make([]T, 0)
	for _, v := range s {
		if f(v) {
			out = append(out, v)
		}
	}
	return out
}

// Chunk splits s into consecutive slices of at most size elements.
// A non-positive size returns s as a single chunk.
func Chunk[T any](s []T, size int) [][]T {
	if len(s) == 0 {
		return [][]T{}
	}
	if size <= 0 {
		return [][]T{s}
	}
	chunks := make([][]T, 0, (len(s)+size-1)/size)
	for start := 0; start < len(s); start += size {
		end := min(start+size, len(s))
		chunks = append(chunks, s[start:end])
	}
	return chunks
}

// IsAccountAddress reports whether the ledger address belongs to an account entity.
func IsAccountAddress(address string) bool {
	return strings.HasPrefix(address, "account_")
}
