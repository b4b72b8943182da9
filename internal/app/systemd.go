package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "hwbot/pkg/logx"
)

// sdNotify sends a state to systemd. Outside systemd (no NOTIFY_SOCKET) it
// is a no-op.
func (a *App) sdNotify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		a.log.Debug("systemd notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Debug("systemd notified", logx.String("state", state))
	}
}

// watchdogInterval returns how often WATCHDOG=1 must be sent, or 0 when the
// unit has no watchdog.
func watchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}

// watchdogLoop pings systemd until ctx is done.
func (a *App) watchdogLoop(ctx context.Context, every time.Duration) {
	a.log.Info("systemd watchdog enabled", logx.Duration("every", every))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.sdNotify(daemon.SdNotifyWatchdog)
		}
	}
}
