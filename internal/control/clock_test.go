package control

import (
	"testing"
	"time"
)

func TestSyncedClock(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	tests := []struct {
		name     string
		now      time.Time
		wantHour int
		wantOK   bool
	}{
		{"epoch after power loss", time.Unix(0, 0), 0, false},
		{"stale fake-hwclock", time.Date(2021, 6, 1, 10, 0, 0, 0, time.UTC), 0, false},
		{"synchronised", time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), 12, true},
		{"wraps midnight", time.Date(2026, 6, 1, 23, 30, 0, 0, time.UTC), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSyncedClock(loc)
			c.now = func() time.Time { return tt.now }

			hour, ok := c.Hour()
			if ok != tt.wantOK || hour != tt.wantHour {
				t.Errorf("Hour() = %d, %v; want %d, %v", hour, ok, tt.wantHour, tt.wantOK)
			}
		})
	}
}
