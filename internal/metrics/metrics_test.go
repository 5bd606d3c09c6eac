package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBool(t *testing.T) {
	if Bool(true) != 1 || Bool(false) != 0 {
		t.Errorf("Bool: got %v/%v, want 1/0", Bool(true), Bool(false))
	}
}

func TestCollectorsRecord(t *testing.T) {
	PumpOn.Set(Bool(true))
	if got := testutil.ToFloat64(PumpOn); got != 1 {
		t.Errorf("PumpOn: got %v, want 1", got)
	}

	c := NotificationsTotal.WithLabelValues("tds", ResultDropped)
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("NotificationsTotal: got %v, want %v", got, before+1)
	}
}

func TestCollectorsLint(t *testing.T) {
	SensorCycleSeconds.Observe(12)
	LinkTransitionsTotal.WithLabelValues("CONNECTED").Inc()

	for name, c := range map[string]prometheus.Collector{
		"sensor_cycle_seconds":   SensorCycleSeconds,
		"link_transitions_total": LinkTransitionsTotal,
		"tds_ppm":                TDSPPM,
	} {
		problems, err := testutil.CollectAndLint(c)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		for _, p := range problems {
			t.Errorf("%s: %s", name, p.Text)
		}
	}
}
