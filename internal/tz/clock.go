package tz

import "time"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. Used by tests and by imports
// that must stamp every record with one createdAt.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c).UTC() }
