package real

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/opd-ai/fskmodem/interfaces"
	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
	"go.uber.org/atomic"
)

// DefaultSerialReadTimeout bounds each port read so a closed port is noticed.
const DefaultSerialReadTimeout = 100 * time.Millisecond

// SerialLauncher opens serial ports attached to hardware modems.
type SerialLauncher struct {
	// ReadTimeout is the per-read port timeout; zero selects DefaultSerialReadTimeout
	ReadTimeout time.Duration

	open func(*serial.Config) (io.ReadWriteCloser, error)
}

// NewSerialLauncher creates a launcher with the given read timeout.
func NewSerialLauncher(readTimeout time.Duration) *SerialLauncher {
	return &SerialLauncher{
		ReadTimeout: readTimeout,
		open:        openPort,
	}
}

func openPort(c *serial.Config) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Name implements interfaces.Launcher.
func (l *SerialLauncher) Name() string {
	return "serial"
}

// Launch implements interfaces.Launcher. cfg.DeviceID is the port path.
func (l *SerialLauncher) Launch(cfg interfaces.ProcessConfig) (interfaces.Process, error) {
	if !cfg.Direction.Valid() {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrUnknownDirection, cfg.Direction)
	}
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("%w: serial backend requires a port path", interfaces.ErrDeviceUnavailable)
	}

	timeout := l.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultSerialReadTimeout
	}
	open := l.open
	if open == nil {
		open = openPort
	}

	port, err := open(&serial.Config{
		Name:        cfg.DeviceID,
		Baud:        cfg.BaudRate,
		ReadTimeout: timeout,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "SerialLauncher.Launch",
			"port":     cfg.DeviceID,
			"baud":     cfg.BaudRate,
			"error":    err.Error(),
		}).Error("Failed to open serial port")
		return nil, fmt.Errorf("%w: open %s: %v", interfaces.ErrDeviceUnavailable, cfg.DeviceID, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "SerialLauncher.Launch",
		"port":      cfg.DeviceID,
		"baud":      cfg.BaudRate,
		"direction": cfg.Direction.String(),
	}).Info("Serial port opened")

	return &serialProcess{
		port:   port,
		dir:    cfg.Direction,
		writer: bufio.NewWriter(port),
		done:   make(chan struct{}),
	}, nil
}

// serialProcess adapts an open port to interfaces.Process.
type serialProcess struct {
	port io.ReadWriteCloser
	dir  interfaces.Direction

	writeMu sync.Mutex
	writer  *bufio.Writer

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// Read blocks until at least one byte arrives or the port is closed. Read
// timeouts from the port are retried.
func (p *serialProcess) Read(b []byte) (int, error) {
	for {
		if p.closed.Load() {
			return 0, io.EOF
		}
		n, err := p.port.Read(b)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			if p.closed.Load() {
				return 0, io.EOF
			}
			return 0, err
		}
	}
}

// Write buffers b until Flush.
func (p *serialProcess) Write(b []byte) (int, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return p.writer.Write(b)
}

// Flush writes buffered bytes to the port.
func (p *serialProcess) Flush() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.closed.Load() {
		return io.ErrClosedPipe
	}
	return p.writer.Flush()
}

// Terminate closes the port.
func (p *serialProcess) Terminate() error {
	return p.close()
}

// Kill closes the port.
func (p *serialProcess) Kill() error {
	return p.close()
}

// Done implements interfaces.Process.
func (p *serialProcess) Done() <-chan struct{} {
	return p.done
}

func (p *serialProcess) close() error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		err = p.port.Close()
		close(p.done)

		logrus.WithFields(logrus.Fields{
			"function":  "serialProcess.close",
			"direction": p.dir.String(),
		}).Info("Serial port closed")
	})
	return err
}
