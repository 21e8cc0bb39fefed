package util

import "math"

// Number constrains rolling histories to the numeric sample types the
// analysis engines produce.
type Number interface {
	~int | ~int64 | ~float64
}

// RollingHistory is a bounded FIFO of recent samples. Pushing past the
// capacity drops the oldest value.
type RollingHistory[T Number] struct {
	values   []T
	capacity int
}

// NewRollingHistory creates a history holding at most capacity samples.
func NewRollingHistory[T Number](capacity int) *RollingHistory[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RollingHistory[T]{
		values:   make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a sample, evicting the oldest when full.
func (h *RollingHistory[T]) Push(v T) {
	if len(h.values) == h.capacity {
		copy(h.values, h.values[1:])
		h.values = h.values[:len(h.values)-1]
	}
	h.values = append(h.values, v)
}

// Len reports how many samples are currently held.
func (h *RollingHistory[T]) Len() int {
	return len(h.values)
}

// Values returns the samples oldest first. The slice is a copy.
func (h *RollingHistory[T]) Values() []T {
	out := make([]T, len(h.values))
	copy(out, h.values)
	return out
}

// Tail returns up to the n most recent samples, oldest first.
func (h *RollingHistory[T]) Tail(n int) []T {
	if n >= len(h.values) {
		return h.Values()
	}
	out := make([]T, n)
	copy(out, h.values[len(h.values)-n:])
	return out
}

// Last returns the most recent sample, or the zero value when empty.
func (h *RollingHistory[T]) Last() T {
	var zero T
	if len(h.values) == 0 {
		return zero
	}
	return h.values[len(h.values)-1]
}

// Reset discards all samples.
func (h *RollingHistory[T]) Reset() {
	h.values = h.values[:0]
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean[T Number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation, or 0 for an empty slice.
func StdDev[T Number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := float64(v) - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Min returns the smallest value. It panics on an empty slice.
func Min[T Number](values []T) T {
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// Max returns the largest value. It panics on an empty slice.
func Max[T Number](values []T) T {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Clamp bounds v to the inclusive [lo, hi] range.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
