package logic

import "time"

// LinkMonitor is the keep-alive state machine for the uplink.
// It never asks for a connect while CONNECTED or while an attempt is in flight,
// and waits out the recovery backoff after a failed attempt.
type LinkMonitor struct {
	connectTimeout time.Duration
	recoverBackoff time.Duration

	status       LinkStatus
	attemptStart time.Time
	backoffUntil time.Time
	counts       LinkCounts
}

// NewLinkMonitor creates a monitor in the DISCONNECTED state.
func NewLinkMonitor(connectTimeout, recoverBackoff time.Duration) *LinkMonitor {
	return &LinkMonitor{
		connectTimeout: connectTimeout,
		recoverBackoff: recoverBackoff,
		status:         LinkDisconnected,
	}
}

// Step advances the monitor with the transport's current connectivity.
// It returns the action the caller must take and the transitions that occurred.
func (m *LinkMonitor) Step(now time.Time, connected bool) (LinkAction, []LinkTransition) {
	switch m.status {
	case LinkConnected:
		if connected {
			return LinkActionNone, nil
		}
		m.counts.Drops++
		return LinkActionNone, []LinkTransition{m.set(now, LinkDisconnected)}

	case LinkConnecting:
		if connected {
			return LinkActionNone, []LinkTransition{m.set(now, LinkConnected)}
		}
		if now.Sub(m.attemptStart) >= m.connectTimeout {
			return LinkActionNone, []LinkTransition{m.fail(now)}
		}
		return LinkActionNone, nil

	default:
		if connected {
			// Transport came back on its own; still pass through CONNECTING.
			return LinkActionNone, []LinkTransition{
				m.set(now, LinkConnecting),
				m.set(now, LinkConnected),
			}
		}
		if now.Before(m.backoffUntil) {
			return LinkActionNone, nil
		}
		m.attemptStart = now
		m.counts.Attempts++
		return LinkActionConnect, []LinkTransition{m.set(now, LinkConnecting)}
	}
}

// Fail aborts the attempt in flight, e.g. when the transport refused to start
// connecting. The recovery backoff applies as for a timeout.
func (m *LinkMonitor) Fail(now time.Time) *LinkTransition {
	if m.status != LinkConnecting {
		return nil
	}
	tr := m.fail(now)
	return &tr
}

func (m *LinkMonitor) fail(now time.Time) LinkTransition {
	m.counts.Failures++
	m.backoffUntil = now.Add(m.recoverBackoff)
	return m.set(now, LinkDisconnected)
}

func (m *LinkMonitor) set(now time.Time, to LinkStatus) LinkTransition {
	tr := LinkTransition{Timestamp: now, From: m.status, To: to}
	m.status = to
	return tr
}

// Status returns the current link status.
func (m *LinkMonitor) Status() LinkStatus {
	return m.status
}

// BackoffUntil returns the earliest time the next attempt is permitted.
func (m *LinkMonitor) BackoffUntil() time.Time {
	return m.backoffUntil
}

// Counts returns a copy of the attempt counters.
func (m *LinkMonitor) Counts() LinkCounts {
	return m.counts
}
