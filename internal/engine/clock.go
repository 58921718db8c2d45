package engine

import "time"

// SystemClock reads the wall clock in UTC.
//
// Implements tracks.Clock. Tests use testutil.FixedClock instead.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// runClock pins evaluation to the instant a run started.
type runClock time.Time

func (c runClock) Now() time.Time {
	return time.Time(c)
}
