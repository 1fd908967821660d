//go:build windows
// +build windows

package real

import "os"

// terminate has no graceful form on windows.
func terminate(proc *os.Process) error {
	if proc == nil {
		return os.ErrProcessDone
	}
	return proc.Kill()
}
