package tracking

import "golang.org/x/exp/constraints"

// Number is any value a MovingAverage can accumulate
type Number interface {
	constraints.Integer | constraints.Float
}

// MinAverageSamples is the sample count below which Average reports zero
const MinAverageSamples = 3

// MovingAverage is a fixed-capacity running mean
type MovingAverage[T Number] struct {
	values []T
	head   int // index of the oldest value once the buffer is full
	sum    T
}

// NewMovingAverage creates a moving average over the last capacity samples
func NewMovingAverage[T Number](capacity int) *MovingAverage[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &MovingAverage[T]{values: make([]T, 0, capacity)}
}

// Add records a sample, evicting the oldest one when full
func (m *MovingAverage[T]) Add(v T) {
	if len(m.values) == cap(m.values) {
		m.sum -= m.values[m.head]
		m.values[m.head] = v
		m.head = (m.head + 1) % len(m.values)
	} else {
		m.values = append(m.values, v)
	}
	m.sum += v
}

// Average returns the mean of the recorded samples, or zero until
// MinAverageSamples have been recorded.
func (m *MovingAverage[T]) Average() T {
	if len(m.values) < MinAverageSamples {
		return 0
	}
	return m.sum / T(len(m.values))
}

// Count returns the number of samples currently held
func (m *MovingAverage[T]) Count() int {
	return len(m.values)
}

// Capacity returns the window size
func (m *MovingAverage[T]) Capacity() int {
	return cap(m.values)
}

// Reset drops all samples
func (m *MovingAverage[T]) Reset() {
	m.values = m.values[:0]
	m.head = 0
	m.sum = 0
}
