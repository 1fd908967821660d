//go:build !windows
// +build !windows

package real

import (
	"os"

	"golang.org/x/sys/unix"
)

// terminate sends SIGTERM so minimodem can flush its audio output.
func terminate(proc *os.Process) error {
	if proc == nil {
		return os.ErrProcessDone
	}
	if err := unix.Kill(proc.Pid, unix.SIGTERM); err != nil {
		if err == unix.ESRCH {
			return os.ErrProcessDone
		}
		return err
	}
	return nil
}
