//go:build !unix

package lifecycle

import (
	"errors"

	logx "releasebot/pkg/logx"
)

func Reexec(log logx.Logger) error {
	return errors.New("in-place restart is not supported on this platform")
}
