package channel

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/opd-ai/fskmodem/interfaces"
	"github.com/opd-ai/fskmodem/limits"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// DefaultStopTimeout is how long Stop waits for a terminated device to exit
// before killing it.
const DefaultStopTimeout = 5 * time.Second

// Config describes one direction of the link.
type Config struct {
	// Direction selects receive-only or transmit-only operation
	Direction interfaces.Direction

	// BaudRate is passed to the device; zero selects limits.DefaultBaudRate
	BaudRate int

	// DeviceID selects a specific device; empty uses the system default
	DeviceID string

	// StopTimeout bounds the graceful phase of Stop; zero selects DefaultStopTimeout
	StopTimeout time.Duration
}

// HalfDuplex owns one single-direction device process.
type HalfDuplex struct {
	launcher interfaces.Launcher
	cfg      Config

	// mu guards proc and state transitions
	mu    sync.Mutex
	proc  interfaces.Process
	state atomic.Int32

	// writeMu serializes Send so frames are never interleaved
	writeMu sync.Mutex
}

// New creates a stopped channel that launches its device through launcher.
func New(launcher interfaces.Launcher, cfg Config) (*HalfDuplex, error) {
	if launcher == nil {
		return nil, errors.New("channel: launcher is nil")
	}
	if !cfg.Direction.Valid() {
		return nil, fmt.Errorf("channel: %w: %v", interfaces.ErrUnknownDirection, cfg.Direction)
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = limits.DefaultBaudRate
	}
	if err := limits.ValidateBaudRate(cfg.BaudRate); err != nil {
		return nil, fmt.Errorf("channel: %w", err)
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}

	c := &HalfDuplex{
		launcher: launcher,
		cfg:      cfg,
	}
	c.state.Store(int32(StateStopped))
	return c, nil
}

// Direction returns the channel direction.
func (c *HalfDuplex) Direction() interfaces.Direction {
	return c.cfg.Direction
}

// Config returns the channel configuration with defaults applied.
func (c *HalfDuplex) Config() Config {
	return c.cfg
}

// State returns the current lifecycle state.
func (c *HalfDuplex) State() State {
	return State(c.state.Load())
}

// IsRunning reports whether the channel is in StateRunning.
func (c *HalfDuplex) IsRunning() bool {
	return c.State() == StateRunning
}

// Start launches the device if the channel is stopped. Starting a running
// channel is a no-op.
func (c *HalfDuplex) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case StateRunning:
		return nil
	case StateStopping:
		return newError("start", c.cfg.Direction, ErrChannelStopping)
	}

	c.state.Store(int32(StateStarting))
	proc, err := c.launcher.Launch(interfaces.ProcessConfig{
		Direction: c.cfg.Direction,
		BaudRate:  c.cfg.BaudRate,
		DeviceID:  c.cfg.DeviceID,
	})
	if err != nil {
		c.state.Store(int32(StateStopped))
		logrus.WithFields(logrus.Fields{
			"function":  "HalfDuplex.Start",
			"direction": c.cfg.Direction.String(),
			"backend":   c.launcher.Name(),
			"device":    c.cfg.DeviceID,
			"error":     err.Error(),
		}).Error("Failed to launch device")
		return newError("start", c.cfg.Direction, err)
	}

	c.proc = proc
	c.state.Store(int32(StateRunning))

	logrus.WithFields(logrus.Fields{
		"function":  "HalfDuplex.Start",
		"direction": c.cfg.Direction.String(),
		"backend":   c.launcher.Name(),
		"device":    c.cfg.DeviceID,
		"baud_rate": c.cfg.BaudRate,
	}).Info("Channel started")
	return nil
}

// Stop terminates the device, waits up to StopTimeout for it to exit and
// kills it if it has not. Stopping a stopped channel is a no-op.
func (c *HalfDuplex) Stop() error {
	c.mu.Lock()
	if c.State() != StateRunning {
		c.mu.Unlock()
		return nil
	}
	c.state.Store(int32(StateStopping))
	proc := c.proc
	c.mu.Unlock()

	err := c.shutdown(proc)

	c.mu.Lock()
	c.proc = nil
	c.state.Store(int32(StateStopped))
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "HalfDuplex.Stop",
		"direction": c.cfg.Direction.String(),
	}).Info("Channel stopped")
	return err
}

// shutdown runs the graceful-then-forced termination of proc. The process
// drains its own output while we wait on Done.
func (c *HalfDuplex) shutdown(proc interfaces.Process) error {
	if err := proc.Terminate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "HalfDuplex.shutdown",
			"direction": c.cfg.Direction.String(),
			"error":     err.Error(),
		}).Warn("Graceful terminate failed")
	}

	timer := time.NewTimer(c.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-proc.Done():
		return nil
	case <-timer.C:
	}

	logrus.WithFields(logrus.Fields{
		"function":  "HalfDuplex.shutdown",
		"direction": c.cfg.Direction.String(),
		"timeout":   c.cfg.StopTimeout.String(),
	}).Warn("Device did not exit in time, killing")

	if err := proc.Kill(); err != nil {
		return newError("stop", c.cfg.Direction, err)
	}
	return nil
}

// running returns the live process, or nil if the channel is not running.
func (c *HalfDuplex) running() interfaces.Process {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() != StateRunning {
		return nil
	}
	return c.proc
}

// Send writes data to a transmit channel and flushes it immediately.
func (c *HalfDuplex) Send(data []byte) error {
	if c.cfg.Direction != interfaces.DirectionTX {
		return newError("send", c.cfg.Direction, ErrDirectionMismatch)
	}
	proc := c.running()
	if proc == nil {
		return newError("send", c.cfg.Direction, ErrChannelStopped)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := proc.Write(data); err != nil {
		return newError("send", c.cfg.Direction, err)
	}
	if err := proc.Flush(); err != nil {
		return newError("flush", c.cfg.Direction, err)
	}
	return nil
}

// Receive blocks until exactly n bytes have been read from a receive
// channel. There is no timeout; the call returns early only if the device
// exits.
func (c *HalfDuplex) Receive(n int) ([]byte, error) {
	if c.cfg.Direction != interfaces.DirectionRX {
		return nil, newError("receive", c.cfg.Direction, ErrDirectionMismatch)
	}
	if n <= 0 {
		return nil, newError("receive", c.cfg.Direction, ErrInvalidSize)
	}
	proc := c.running()
	if proc == nil {
		return nil, newError("receive", c.cfg.Direction, ErrChannelStopped)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(proc, buf); err != nil {
		return nil, newError("receive", c.cfg.Direction, err)
	}
	return buf, nil
}
