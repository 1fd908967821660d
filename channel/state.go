package channel

import "fmt"

// State is the lifecycle state of a HalfDuplex channel.
type State int32

const (
	// StateStopped means no device process is running
	StateStopped State = iota
	// StateStarting means the device is being launched
	StateStarting
	// StateRunning means the device is up and accepting I/O
	StateRunning
	// StateStopping means the device is being shut down
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
