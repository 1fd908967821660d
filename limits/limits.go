package limits

import (
	"errors"
	"fmt"
)

const (
	// DefaultMTU is the default maximum frame payload size in bytes.
	DefaultMTU = 500

	// MinMTU is the smallest usable MTU.
	MinMTU = 1

	// MaxMTU is the largest MTU accepted by configuration.
	MaxMTU = 64 * 1024

	// DefaultBaudRate is the default modem rate passed to the device.
	DefaultBaudRate = 300

	// MinBaudRate and MaxBaudRate bound the rate accepted by configuration.
	MinBaudRate = 1
	MaxBaudRate = 115200

	// NoiseWindowFactor is the multiple of the start marker length a
	// marker-less receive buffer may reach before it is cleared.
	NoiseWindowFactor = 10
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")

	// ErrInvalidMTU indicates an MTU outside [MinMTU, MaxMTU]
	ErrInvalidMTU = errors.New("invalid mtu")

	// ErrInvalidBaudRate indicates a baud rate outside [MinBaudRate, MaxBaudRate]
	ErrInvalidBaudRate = errors.New("invalid baud rate")
)

// ValidatePayload validates a frame payload against the given MTU.
func ValidatePayload(payload []byte, mtu int) error {
	if len(payload) == 0 {
		return ErrMessageEmpty
	}
	if len(payload) > mtu {
		return fmt.Errorf("%w: payload size %d exceeds mtu %d", ErrMessageTooLarge, len(payload), mtu)
	}
	return nil
}

// ValidateMTU checks that mtu lies within [MinMTU, MaxMTU].
func ValidateMTU(mtu int) error {
	if mtu < MinMTU || mtu > MaxMTU {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidMTU, mtu, MinMTU, MaxMTU)
	}
	return nil
}

// ValidateBaudRate checks that rate lies within [MinBaudRate, MaxBaudRate].
func ValidateBaudRate(rate int) error {
	if rate < MinBaudRate || rate > MaxBaudRate {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidBaudRate, rate, MinBaudRate, MaxBaudRate)
	}
	return nil
}

// NoiseWindow returns the buffer length above which a buffer holding no
// start marker of markerLen bytes is cleared.
func NoiseWindow(markerLen int) int {
	return NoiseWindowFactor * markerLen
}
