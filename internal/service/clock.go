package service

import "time"

// SystemClock implements ports.Clock on the wall clock. Every ledger
// operation samples it exactly once so all effects of one operation
// observe the same instant.
type SystemClock struct{}

// NewSystemClock creates a new SystemClock.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now returns the current UTC time.
func (c *SystemClock) Now() time.Time {
	return time.Now().UTC()
}
