package fskmodem

import (
	"context"
	"fmt"
	"sync"

	"github.com/opd-ai/fskmodem/channel"
	"github.com/opd-ai/fskmodem/frame"
	"github.com/opd-ai/fskmodem/interfaces"
	"github.com/opd-ai/fskmodem/limits"
	"github.com/opd-ai/fskmodem/metrics"
	"github.com/opd-ai/fskmodem/real"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// ReceiveCallback is invoked on the receive loop goroutine with one frame
// payload. The slice is owned by the callee.
type ReceiveCallback func(payload []byte)

// Modem is a duplex link built from one receive and one transmit channel.
type Modem struct {
	opts    Options
	rx      *channel.HalfDuplex
	tx      *channel.HalfDuplex
	metrics metrics.Recorder

	// mu serializes Start and Stop and guards stop and done
	mu       sync.Mutex
	running  atomic.Bool
	stopping atomic.Bool
	stop     chan struct{}
	done     chan struct{}

	callback atomic.Pointer[ReceiveCallback]
}

// New creates a stopped Modem, or a running one if opts.StartOnCreate is set.
// A nil opts uses NewOptions.
func New(opts *Options) (*Modem, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	o := *opts
	if o.PollInterval == 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.StopTimeout == 0 {
		o.StopTimeout = channel.DefaultStopTimeout
	}
	if o.Launcher == nil {
		o.Launcher = real.NewMinimodemLauncher()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Nop{}
	}
	o.OutputDevice = o.outputDevice()

	rx, err := channel.New(o.Launcher, channel.Config{
		Direction:   interfaces.DirectionRX,
		BaudRate:    o.BaudRate,
		DeviceID:    o.InputDevice,
		StopTimeout: o.StopTimeout,
	})
	if err != nil {
		return nil, err
	}
	tx, err := channel.New(o.Launcher, channel.Config{
		Direction:   interfaces.DirectionTX,
		BaudRate:    o.BaudRate,
		DeviceID:    o.OutputDevice,
		StopTimeout: o.StopTimeout,
	})
	if err != nil {
		return nil, err
	}

	m := &Modem{
		opts:    o,
		rx:      rx,
		tx:      tx,
		metrics: o.Metrics,
	}

	logrus.WithFields(logrus.Fields{
		"function":      "New",
		"backend":       o.Launcher.Name(),
		"baud_rate":     o.BaudRate,
		"mtu":           o.MTU,
		"input_device":  o.InputDevice,
		"output_device": o.OutputDevice,
		"checksum":      o.Checksum,
	}).Info("Created modem")

	if o.StartOnCreate {
		if err := m.Start(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Options returns a copy of the effective options.
func (m *Modem) Options() Options {
	return m.opts
}

// Start launches the receive device, the transmit device and the receive
// loop. Starting a running link is a no-op. If the transmit device fails the
// receive device is stopped again.
func (m *Modem) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return nil
	}
	if m.stopping.Load() {
		return ErrLinkStopping
	}

	if err := m.rx.Start(); err != nil {
		return err
	}
	if err := m.tx.Start(); err != nil {
		if stopErr := m.rx.Stop(); stopErr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Modem.Start",
				"error":    stopErr.Error(),
			}).Warn("Failed to roll back receive channel")
		}
		return err
	}

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.running.Store(true)

	loopDone := make(chan struct{})
	pumpDone := make(chan struct{})
	go m.receiveLoop(m.stop, loopDone, pumpDone)
	go m.awaitTeardown(m.stop, m.done, loopDone, pumpDone)

	logrus.WithFields(logrus.Fields{
		"function":  "Modem.Start",
		"backend":   m.opts.Launcher.Name(),
		"baud_rate": m.opts.BaudRate,
	}).Info("Modem started")
	return nil
}

// Stop signals the receive loop and stops both devices concurrently in the
// background. It does not block; use Wait to observe completion. Stopping a
// stopped link is a no-op.
func (m *Modem) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running.Load() {
		return
	}
	m.stopping.Store(true)
	m.running.Store(false)
	close(m.stop)

	logrus.WithFields(logrus.Fields{
		"function": "Modem.Stop",
	}).Info("Stopping modem")
}

// awaitTeardown stops both channels once Stop is signalled and closes done
// after they and the receive goroutines have all exited.
func (m *Modem) awaitTeardown(stop <-chan struct{}, done chan struct{}, loopDone, pumpDone <-chan struct{}) {
	<-stop

	var wg sync.WaitGroup
	for _, ch := range []*channel.HalfDuplex{m.tx, m.rx} {
		wg.Add(1)
		go func(ch *channel.HalfDuplex) {
			defer wg.Done()
			if err := ch.Stop(); err != nil {
				logrus.WithFields(logrus.Fields{
					"function":  "Modem.awaitTeardown",
					"direction": ch.Direction().String(),
					"error":     err.Error(),
				}).Warn("Channel stop failed")
			}
		}(ch)
	}
	wg.Wait()
	<-loopDone
	<-pumpDone

	m.stopping.Store(false)
	close(done)

	logrus.WithFields(logrus.Fields{
		"function": "Modem.awaitTeardown",
	}).Info("Modem stopped")
}

// Wait blocks until the link has been stopped and its teardown has finished,
// or ctx is done. It returns immediately if the link was never started.
func (m *Modem) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the link and waits up to twice StopTimeout for teardown.
func (m *Modem) Close() error {
	m.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*m.opts.StopTimeout)
	defer cancel()
	return m.Wait(ctx)
}

// IsRunning reports whether the link and both of its channels are running.
func (m *Modem) IsRunning() bool {
	return m.running.Load() && m.rx.IsRunning() && m.tx.IsRunning()
}

// State summarizes the link lifecycle.
func (m *Modem) State() channel.State {
	switch {
	case m.IsRunning():
		return channel.StateRunning
	case m.stopping.Load():
		return channel.StateStopping
	case m.running.Load():
		return channel.StateStarting
	default:
		return channel.StateStopped
	}
}

// OnReceive replaces the receive callback. A nil callback drops frames.
func (m *Modem) OnReceive(callback ReceiveCallback) {
	if callback == nil {
		m.callback.Store(nil)
		return
	}
	m.callback.Store(&callback)
}

// Send frames payload and writes it to the transmit channel.
func (m *Modem) Send(payload []byte) error {
	if err := limits.ValidatePayload(payload, m.opts.MTU); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Modem.Send",
			"size":     len(payload),
			"mtu":      m.opts.MTU,
			"error":    err.Error(),
		}).Warn("Payload will be dropped by the receiver")
	}
	if frame.ContainsFlag(payload) {
		logrus.WithFields(logrus.Fields{
			"function": "Modem.Send",
			"size":     len(payload),
		}).Warn("Payload contains a frame flag and may be split on receipt")
	}

	body := payload
	if m.opts.Checksum {
		body = frame.AppendChecksum(payload)
	}
	if err := m.tx.Send(frame.Encode(body)); err != nil {
		return err
	}

	m.metrics.FrameSent(len(payload))
	logrus.WithFields(logrus.Fields{
		"function": "Modem.Send",
		"size":     len(payload),
	}).Debug("Frame sent")
	return nil
}

// SendValue is Send for callers holding an untyped value. Anything other
// than a []byte fails with ErrInvalidPayloadType.
func (m *Modem) SendValue(v any) error {
	payload, ok := v.([]byte)
	if !ok {
		return fmt.Errorf("%w: %T", ErrInvalidPayloadType, v)
	}
	return m.Send(payload)
}
