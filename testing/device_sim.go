package testing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/opd-ai/fskmodem/interfaces"
	"github.com/sirupsen/logrus"
)

// ErrNoReceiver indicates Inject was called with no receive process running.
var ErrNoReceiver = errors.New("simulation: no running receive process")

// SimulatedLauncher implements interfaces.Launcher with in-memory processes.
type SimulatedLauncher struct {
	mu              sync.Mutex
	loopback        bool
	ignoreTerminate bool
	launchErr       error
	peer            *SimulatedLauncher
	rx              *SimulatedProcess
	processes       []*SimulatedProcess
	transmitted     bytes.Buffer
}

// NewSimulatedLauncher creates a launcher with loopback disabled.
func NewSimulatedLauncher() *SimulatedLauncher {
	logrus.Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")
	logrus.WithFields(logrus.Fields{
		"function": "NewSimulatedLauncher",
	}).Info("Creating simulated modem launcher for testing")

	return &SimulatedLauncher{}
}

// Connect joins two launchers so each receives what the other transmits.
func Connect(a, b *SimulatedLauncher) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()

	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

// Name implements interfaces.Launcher.
func (l *SimulatedLauncher) Name() string {
	return "simulation"
}

// SetLoopback routes flushed transmit data into this launcher's receiver.
func (l *SimulatedLauncher) SetLoopback(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loopback = enabled
}

// SetIgnoreTerminate makes processes launched afterwards ignore Terminate.
func (l *SimulatedLauncher) SetIgnoreTerminate(ignore bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ignoreTerminate = ignore
}

// SetLaunchError makes subsequent Launch calls fail with err wrapped in
// interfaces.ErrDeviceUnavailable. A nil err restores normal behaviour.
func (l *SimulatedLauncher) SetLaunchError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launchErr = err
}

// Launch implements interfaces.Launcher.
func (l *SimulatedLauncher) Launch(cfg interfaces.ProcessConfig) (interfaces.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.launchErr != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrDeviceUnavailable, l.launchErr)
	}
	if !cfg.Direction.Valid() {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrUnknownDirection, cfg.Direction)
	}

	p := &SimulatedProcess{
		cfg:             cfg,
		launcher:        l,
		ignoreTerminate: l.ignoreTerminate,
		done:            make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	l.processes = append(l.processes, p)
	if cfg.Direction == interfaces.DirectionRX {
		l.rx = p
	}

	logrus.WithFields(logrus.Fields{
		"function":  "SimulatedLauncher.Launch",
		"direction": cfg.Direction.String(),
		"baud_rate": cfg.BaudRate,
		"device":    cfg.DeviceID,
	}).Debug("Simulated process launched")
	return p, nil
}

// Inject delivers data to the running receive process.
func (l *SimulatedLauncher) Inject(data []byte) error {
	l.mu.Lock()
	rx := l.rx
	l.mu.Unlock()

	if rx == nil || !rx.deliver(data) {
		return ErrNoReceiver
	}
	return nil
}

// Transmitted returns a copy of every byte flushed by transmit processes.
func (l *SimulatedLauncher) Transmitted() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return bytes.Clone(l.transmitted.Bytes())
}

// Processes returns every process launched so far, oldest first.
func (l *SimulatedLauncher) Processes() []*SimulatedProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*SimulatedProcess, len(l.processes))
	copy(out, l.processes)
	return out
}

// LaunchCount returns how many processes were launched for dir.
func (l *SimulatedLauncher) LaunchCount(dir interfaces.Direction) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, p := range l.processes {
		if p.cfg.Direction == dir {
			count++
		}
	}
	return count
}

// transmit records flushed data and forwards it to listening receivers.
func (l *SimulatedLauncher) transmit(data []byte) {
	l.mu.Lock()
	l.transmitted.Write(data)
	var targets []*SimulatedProcess
	if l.loopback && l.rx != nil {
		targets = append(targets, l.rx)
	}
	peer := l.peer
	l.mu.Unlock()

	if peer != nil {
		peer.mu.Lock()
		if peer.rx != nil {
			targets = append(targets, peer.rx)
		}
		peer.mu.Unlock()
	}

	for _, rx := range targets {
		rx.deliver(data)
	}
}

// SimulatedProcess is an in-memory interfaces.Process.
type SimulatedProcess struct {
	cfg             interfaces.ProcessConfig
	launcher        *SimulatedLauncher
	ignoreTerminate bool

	mu         sync.Mutex
	cond       *sync.Cond
	inbox      bytes.Buffer
	pending    bytes.Buffer
	closed     bool
	terminated bool
	killed     bool
	flushes    int

	done     chan struct{}
	doneOnce sync.Once
}

// Config returns the launch configuration.
func (p *SimulatedProcess) Config() interfaces.ProcessConfig {
	return p.cfg
}

// Read blocks until injected data is available or the process exits.
func (p *SimulatedProcess) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.inbox.Len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.inbox.Len() == 0 {
		return 0, io.EOF
	}
	return p.inbox.Read(b)
}

// Write buffers data until Flush.
func (p *SimulatedProcess) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.ErrClosedPipe
	}
	return p.pending.Write(b)
}

// Flush hands buffered data to the launcher.
func (p *SimulatedProcess) Flush() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return io.ErrClosedPipe
	}
	data := bytes.Clone(p.pending.Bytes())
	p.pending.Reset()
	p.flushes++
	p.mu.Unlock()

	if len(data) > 0 {
		p.launcher.transmit(data)
	}
	return nil
}

// Terminate exits the process unless it was launched to ignore terminate.
func (p *SimulatedProcess) Terminate() error {
	p.mu.Lock()
	p.terminated = true
	ignore := p.ignoreTerminate
	p.mu.Unlock()

	if !ignore {
		p.exit()
	}
	return nil
}

// Kill exits the process.
func (p *SimulatedProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()

	p.exit()
	return nil
}

// Done implements interfaces.Process.
func (p *SimulatedProcess) Done() <-chan struct{} {
	return p.done
}

// Terminated reports whether Terminate was called.
func (p *SimulatedProcess) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// Killed reports whether Kill was called.
func (p *SimulatedProcess) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// Flushes returns how many times Flush was called.
func (p *SimulatedProcess) Flushes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushes
}

func (p *SimulatedProcess) exit() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.doneOnce.Do(func() {
		close(p.done)
	})
}

// deliver appends data to the inbox. Returns false once the process has exited.
func (p *SimulatedProcess) deliver(data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	p.inbox.Write(data)
	p.cond.Broadcast()
	return true
}
