package fskmodem

import (
	"fmt"
	"time"

	"github.com/opd-ai/fskmodem/channel"
	"github.com/opd-ai/fskmodem/interfaces"
	"github.com/opd-ai/fskmodem/limits"
	"github.com/opd-ai/fskmodem/metrics"
)

// DefaultPollInterval is the pause between receive loop passes.
const DefaultPollInterval = 100 * time.Millisecond

// Options configures a Modem.
type Options struct {
	// BaudRate is the modem rate in bits per second
	BaudRate int

	// MTU is the largest payload delivered to the receive callback
	MTU int

	// InputDevice is the receive device identifier, e.g. ALSA "2,0".
	// Empty selects the system default.
	InputDevice string

	// OutputDevice is the transmit device identifier. Empty uses InputDevice.
	OutputDevice string

	// PollInterval is the pause between receive loop passes
	PollInterval time.Duration

	// StopTimeout bounds the graceful phase of each device shutdown
	StopTimeout time.Duration

	// Checksum adds and verifies a CRC16 trailer on every frame
	Checksum bool

	// StartOnCreate makes New start the link
	StartOnCreate bool

	// Launcher starts the devices; nil selects the minimodem backend
	Launcher interfaces.Launcher

	// Metrics records frame traffic; nil discards it
	Metrics metrics.Recorder
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{
		BaudRate:     limits.DefaultBaudRate,
		MTU:          limits.DefaultMTU,
		PollInterval: DefaultPollInterval,
		StopTimeout:  channel.DefaultStopTimeout,
	}
}

// Validate checks the numeric options.
func (o *Options) Validate() error {
	if err := limits.ValidateBaudRate(o.BaudRate); err != nil {
		return err
	}
	if err := limits.ValidateMTU(o.MTU); err != nil {
		return err
	}
	if o.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative: %v", o.PollInterval)
	}
	if o.StopTimeout < 0 {
		return fmt.Errorf("stop timeout must not be negative: %v", o.StopTimeout)
	}
	return nil
}

// outputDevice returns the effective transmit device.
func (o *Options) outputDevice() string {
	if o.OutputDevice == "" {
		return o.InputDevice
	}
	return o.OutputDevice
}
