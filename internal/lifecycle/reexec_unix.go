//go:build unix

package lifecycle

import (
	"fmt"
	"os"
	"syscall"

	logx "releasebot/pkg/logx"
)

// Reexec replaces the current process with a fresh copy of the same binary
// and arguments. It only returns on failure.
func Reexec(log logx.Logger) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	NotifyReloading(log)
	log.Info("re-executing", logx.String("exe", exe), logx.Strs("args", os.Args[1:]))
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", exe, err)
	}
	return nil
}
