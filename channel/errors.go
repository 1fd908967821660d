package channel

import (
	"errors"
	"fmt"

	"github.com/opd-ai/fskmodem/interfaces"
)

var (
	// ErrDirectionMismatch indicates Send on a receive channel or Receive on
	// a transmit channel
	ErrDirectionMismatch = errors.New("direction mismatch")

	// ErrChannelStopped indicates I/O on a channel that is not running
	ErrChannelStopped = errors.New("channel stopped")

	// ErrChannelStopping indicates Start while a Stop is still in progress
	ErrChannelStopping = errors.New("channel stopping")

	// ErrInvalidSize indicates a non-positive Receive size
	ErrInvalidSize = errors.New("invalid receive size")
)

// Error carries the operation and direction that failed.
type Error struct {
	Op        string               // operation that caused the error
	Direction interfaces.Direction // channel direction
	Err       error                // underlying error
}

func (e *Error) Error() string {
	return fmt.Sprintf("channel %s %s: %v", e.Direction, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, dir interfaces.Direction, err error) *Error {
	return &Error{
		Op:        op,
		Direction: dir,
		Err:       err,
	}
}
