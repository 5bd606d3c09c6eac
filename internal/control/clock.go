package control

import "time"

// minSyncedYear is the earliest year a synchronised clock can report. The Pi
// has no RTC and boots at the epoch or the last fake-hwclock save.
const minSyncedYear = 2024

// SyncedClock reports the local hour once the system clock looks synchronised.
type SyncedClock struct {
	loc *time.Location
	now func() time.Time
}

// NewSyncedClock returns a clock reporting hours in loc (time.Local if nil).
func NewSyncedClock(loc *time.Location) *SyncedClock {
	if loc == nil {
		loc = time.Local
	}
	return &SyncedClock{loc: loc, now: time.Now}
}

// Hour returns the local hour, or ok=false while the clock is unsynchronised.
func (c *SyncedClock) Hour() (int, bool) {
	t := c.now()
	if t.Year() < minSyncedYear {
		return 0, false
	}
	return t.In(c.loc).Hour(), true
}
