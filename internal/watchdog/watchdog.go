// Package watchdog reports readiness and liveness to systemd.
// Outside systemd every call is a harmless no-op.
package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	interval time.Duration
	logger   *slog.Logger

	notify func(unsetEnv bool, state string) (bool, error)
	now    func() time.Time
}

// New reads the watchdog interval from the environment systemd provides.
func New(logger *slog.Logger) *Notifier {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("watchdog env invalid", "err", err)
		interval = 0
	}
	return &Notifier{
		interval: interval,
		logger:   logger,
		notify:   daemon.SdNotify,
		now:      time.Now,
	}
}

// Interval returns the watchdog timeout, or 0 when disabled.
func (n *Notifier) Interval() time.Duration {
	return n.interval
}

// Ready tells systemd start-up has finished.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd shutdown has begun.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "err", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify", "state", state)
	}
}

// Run pings the watchdog at half the interval until ctx is done. A ping is
// withheld whenever lastTick is older than the interval, letting systemd
// restart a process whose control loop has stalled.
func (n *Notifier) Run(ctx context.Context, lastTick func() time.Time) {
	if n.interval <= 0 {
		return
	}

	ticker := time.NewTicker(n.interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.check(lastTick())
		}
	}
}

func (n *Notifier) check(last time.Time) bool {
	if age := n.now().Sub(last); age > n.interval {
		n.logger.Error("pump loop stalled, withholding watchdog ping", "since_last_tick", age)
		return false
	}
	n.send(daemon.SdNotifyWatchdog)
	return true
}
