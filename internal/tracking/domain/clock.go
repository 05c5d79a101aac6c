package tracking

import "time"

// DefaultTimezone is the operating timezone for observation timestamps.
// Source payloads carry no timezone; they are always implicitly local.
const DefaultTimezone = "Australia/Perth"

// Clock provides the "now" reference for reconciliation.
type Clock interface {
	Now() time.Time
}

// ZoneClock is a Clock fixed to one location.
type ZoneClock struct {
	loc *time.Location
}

// NewZoneClock builds a clock for the named timezone.
func NewZoneClock(name string) (*ZoneClock, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return &ZoneClock{loc: loc}, nil
}

// Now returns the current time in the clock's location.
func (c *ZoneClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the clock's location.
func (c *ZoneClock) Location() *time.Location {
	return c.loc
}
