// Package clock abstracts the wall clock so reminder classification and the
// overdue sweeper can be driven deterministically in tests.
//
// Production code injects Real(); tests inject Fake() and move time with
// Advance or Set.
package clock

import "time"

// Clock is the time source. Nothing outside this package calls time.Now
// directly for domain decisions.
type Clock interface {
	Now() time.Time

	// After returns a channel that receives once d has elapsed. If d <= 0
	// the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker firing every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers periodic ticks on C. C has capacity 1; ticks are dropped
// when the consumer falls behind.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stopFunc() }

// Precision is the resolution records are persisted with. PostgreSQL
// timestamptz keeps microseconds.
const Precision = time.Microsecond

// Stamp reads c in UTC at Precision, so a value returned to a caller equals
// the one later read back from any store.
func Stamp(c Clock) time.Time {
	return c.Now().UTC().Truncate(Precision)
}
