package avoidance

import (
	"errors"
	"sync"
)

var (
	// ErrOverrideUnavailable is returned when the override could not be read
	// without blocking
	ErrOverrideUnavailable = errors.New("speed override unavailable")
	// ErrNoOverride is returned when no override is set
	ErrNoOverride = errors.New("no speed override set")
)

// OverrideSource supplies a manual speed factor for cruise flight. Both
// sentinel errors are recoverable: callers fall back to the adaptive factor.
type OverrideSource interface {
	SpeedOverride() (float32, error)
}

// SharedOverride is an override that can be changed at runtime, e.g. from the
// API, while the simulation loop reads it
type SharedOverride struct {
	mu    sync.RWMutex
	value *float32
}

// NewSharedOverride creates an override, optionally preset
func NewSharedOverride(initial *float32) *SharedOverride {
	o := &SharedOverride{}
	if initial != nil {
		v := *initial
		o.value = &v
	}
	return o
}

// SpeedOverride never blocks. A writer holding the lock yields
// ErrOverrideUnavailable.
func (o *SharedOverride) SpeedOverride() (float32, error) {
	if o == nil {
		return 0, ErrNoOverride
	}
	if !o.mu.TryRLock() {
		return 0, ErrOverrideUnavailable
	}
	defer o.mu.RUnlock()
	if o.value == nil {
		return 0, ErrNoOverride
	}
	return *o.value, nil
}

// Get returns the current override
func (o *SharedOverride) Get() (float32, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.value == nil {
		return 0, false
	}
	return *o.value, true
}

// Set replaces the override
func (o *SharedOverride) Set(v float32) {
	o.mu.Lock()
	o.value = &v
	o.mu.Unlock()
}

// Clear removes the override
func (o *SharedOverride) Clear() {
	o.mu.Lock()
	o.value = nil
	o.mu.Unlock()
}

// StaticOverride always returns the same factor
type StaticOverride float32

func (s StaticOverride) SpeedOverride() (float32, error) {
	return float32(s), nil
}
