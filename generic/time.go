package generic

import "time"

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock returns the current time. Tests use FixedClock so fiscal years and
// timestamps are deterministic.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Date is a UTC midnight helper for fixtures and date-only fields.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
