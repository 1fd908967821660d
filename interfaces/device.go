package interfaces

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrDeviceUnavailable indicates the underlying executable or device could
// not be located or launched.
var ErrDeviceUnavailable = errors.New("device unavailable")

// ErrUnknownDirection indicates a direction string that is neither rx nor tx.
var ErrUnknownDirection = errors.New("unknown direction")

// Direction selects which half of the duplex link a device serves.
type Direction uint8

const (
	// DirectionRX is the receive-only (audio input) direction.
	DirectionRX Direction = iota + 1
	// DirectionTX is the transmit-only (audio output) direction.
	DirectionTX
)

// String returns the minimodem mode name for the direction.
func (d Direction) String() string {
	switch d {
	case DirectionRX:
		return "rx"
	case DirectionTX:
		return "tx"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Valid reports whether d is DirectionRX or DirectionTX.
func (d Direction) Valid() bool {
	return d == DirectionRX || d == DirectionTX
}

// ParseDirection converts "rx"/"tx" (case-insensitive) to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rx":
		return DirectionRX, nil
	case "tx":
		return DirectionTX, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
	}
}

// ProcessConfig holds the parameters used to launch one direction of a device.
type ProcessConfig struct {
	// Direction selects receive-only or transmit-only operation
	Direction Direction

	// BaudRate is the modem rate in bits per second
	BaudRate int

	// DeviceID names the concrete device (ALSA "card,device", serial port
	// path). Empty selects the system default where the backend has one.
	DeviceID string
}

// Process is a running, single-direction device.
type Process interface {
	// Read blocks until at least one byte is available (receive direction)
	io.Reader

	// Write buffers bytes for the device (transmit direction)
	io.Writer

	// Flush pushes buffered writes to the device
	Flush() error

	// Terminate requests a graceful shutdown
	Terminate() error

	// Kill forces the device to stop
	Kill() error

	// Done is closed once the device has exited and been drained
	Done() <-chan struct{}
}

// Launcher starts single-direction device processes.
type Launcher interface {
	// Launch starts a device for cfg. Returns an error wrapping
	// ErrDeviceUnavailable if the device cannot be located or started.
	Launch(cfg ProcessConfig) (Process, error)

	// Name identifies the backend in logs
	Name() string
}
