package lifecycle

import (
	"context"
	"testing"
	"time"

	logx "releasebot/pkg/logx"
)

func TestRestarterRequestIsIdempotent(t *testing.T) {
	r := NewRestarter()
	if r.Pending() {
		t.Fatal("fresh restarter is pending")
	}
	r.Request()
	r.Request()
	if !r.Pending() {
		t.Fatal("restart not pending after Request")
	}
	select {
	case <-r.Requested():
	default:
		t.Fatal("Requested channel not closed")
	}
}

func TestNotifyOutsideSystemdIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	NotifyReady(logx.Nop())
	NotifyStopping(logx.Nop())
}

func TestWatchdogReturnsWhenDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	done := make(chan struct{})
	go func() {
		Watchdog(context.Background(), logx.Nop())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchdog should return when disabled")
	}
}
