// Package lifecycle reports process state to systemd and implements the
// in-place restart behind the admin restart command.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "releasebot/pkg/logx"
)

// notify sends state to the service manager. Outside systemd it is a no-op.
func notify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	switch {
	case err != nil:
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	case sent:
		log.Debug("sd_notify", logx.String("state", state))
	}
}

func NotifyReady(log logx.Logger)     { notify(log, daemon.SdNotifyReady) }
func NotifyStopping(log logx.Logger)  { notify(log, daemon.SdNotifyStopping) }
func NotifyReloading(log logx.Logger) { notify(log, daemon.SdNotifyReloading) }

// Watchdog pings the systemd watchdog at half the configured interval until
// ctx ends. It returns immediately when WatchdogSec is not set.
func Watchdog(ctx context.Context, log logx.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			notify(log, daemon.SdNotifyWatchdog)
		}
	}
}

// Restarter carries a restart request from a command handler to main.
type Restarter struct {
	once sync.Once
	ch   chan struct{}
}

func NewRestarter() *Restarter { return &Restarter{ch: make(chan struct{})} }

// Request marks a restart as pending. Repeated calls are no-ops.
func (r *Restarter) Request() { r.once.Do(func() { close(r.ch) }) }

// Requested is closed once a restart has been requested.
func (r *Restarter) Requested() <-chan struct{} { return r.ch }

func (r *Restarter) Pending() bool {
	select {
	case <-r.ch:
		return true
	default:
		return false
	}
}
