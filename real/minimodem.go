package real

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/opd-ai/fskmodem/interfaces"
	"github.com/sirupsen/logrus"
)

// DefaultExecutable is the program name looked up on PATH.
const DefaultExecutable = "minimodem"

// drainChunkSize is the largest single read from a receive process.
const drainChunkSize = 512

// MinimodemLauncher starts minimodem processes.
type MinimodemLauncher struct {
	// Executable is a program name or path; empty selects DefaultExecutable
	Executable string

	lookPath func(string) (string, error)
}

// NewMinimodemLauncher creates a launcher using DefaultExecutable.
func NewMinimodemLauncher() *MinimodemLauncher {
	return &MinimodemLauncher{
		Executable: DefaultExecutable,
		lookPath:   exec.LookPath,
	}
}

// Name implements interfaces.Launcher.
func (l *MinimodemLauncher) Name() string {
	return "minimodem"
}

// Args returns the minimodem command line for cfg, excluding the program name.
func Args(cfg interfaces.ProcessConfig) []string {
	args := []string{"--" + cfg.Direction.String(), "--quiet"}
	if cfg.DeviceID != "" {
		args = append(args, "--alsa="+cfg.DeviceID)
	}
	return append(args, "--print-filter", strconv.Itoa(cfg.BaudRate))
}

func (l *MinimodemLauncher) resolve() (string, error) {
	name := l.Executable
	if name == "" {
		name = DefaultExecutable
	}
	lookPath := l.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", interfaces.ErrDeviceUnavailable, name, err)
	}
	return path, nil
}

// Launch implements interfaces.Launcher.
func (l *MinimodemLauncher) Launch(cfg interfaces.ProcessConfig) (interfaces.Process, error) {
	if !cfg.Direction.Valid() {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrUnknownDirection, cfg.Direction)
	}

	path, err := l.resolve()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "MinimodemLauncher.Launch",
			"executable": l.Executable,
			"error":      err.Error(),
		}).Error("Minimodem executable not found")
		return nil, err
	}

	cmd := exec.Command(path, Args(cfg)...)
	cmd.Stderr = nil

	p := &execProcess{
		cmd:      cmd,
		dir:      cfg.Direction,
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}

	switch cfg.Direction {
	case interfaces.DirectionTX:
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("%w: stdin pipe: %v", interfaces.ErrDeviceUnavailable, err)
		}
		p.stdin = stdin
		p.writer = bufio.NewWriter(stdin)
	case interfaces.DirectionRX:
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("%w: stdout pipe: %v", interfaces.ErrDeviceUnavailable, err)
		}
		p.stdout = stdout
		p.chunks = make(chan []byte)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", interfaces.ErrDeviceUnavailable, path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "MinimodemLauncher.Launch",
		"path":      path,
		"args":      cmd.Args[1:],
		"pid":       cmd.Process.Pid,
		"direction": cfg.Direction.String(),
	}).Info("Minimodem process started")

	go p.reap()
	return p, nil
}

// execProcess is a running minimodem child. Receive output is drained by
// reap, so stdout is read to EOF before cmd.Wait closes it.
type execProcess struct {
	cmd *exec.Cmd
	dir interfaces.Direction

	stdin  io.WriteCloser
	writer *bufio.Writer
	stdout io.ReadCloser

	// chunks carries drained receive output and is closed at EOF; pending
	// is owned by the single reader
	chunks  chan []byte
	pending []byte

	// writeMu guards writer and stdin
	writeMu sync.Mutex
	closed  bool

	stopping chan struct{}
	stopOnce sync.Once

	done    chan struct{}
	waitErr error
}

// Read implements io.Reader over the drained process stdout. It returns
// io.EOF once the process has exited and all output has been consumed.
func (p *execProcess) Read(b []byte) (int, error) {
	if p.chunks == nil {
		return 0, fmt.Errorf("minimodem %s: read on transmit process", p.dir)
	}
	if len(b) == 0 {
		return 0, nil
	}
	if len(p.pending) == 0 {
		chunk, ok := <-p.chunks
		if !ok {
			return 0, io.EOF
		}
		p.pending = chunk
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Write buffers b for stdin.
func (p *execProcess) Write(b []byte) (int, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.writer == nil {
		return 0, fmt.Errorf("minimodem %s: write on receive process", p.dir)
	}
	if p.closed {
		return 0, os.ErrClosed
	}
	return p.writer.Write(b)
}

// Flush pushes buffered writes to stdin.
func (p *execProcess) Flush() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.writer == nil {
		return nil
	}
	if p.closed {
		return os.ErrClosed
	}
	return p.writer.Flush()
}

// Terminate signals the process and closes its stdin.
func (p *execProcess) Terminate() error {
	p.markStopping()
	err := terminate(p.cmd.Process)
	p.closeStdin()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Kill forces the process to exit. Closing stdout unblocks the drain even
// when a surviving grandchild still holds the pipe open.
func (p *execProcess) Kill() error {
	p.markStopping()
	p.closeStdin()
	err := p.cmd.Process.Kill()
	if p.stdout != nil {
		_ = p.stdout.Close()
	}
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Done implements interfaces.Process.
func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) markStopping() {
	p.stopOnce.Do(func() {
		close(p.stopping)
	})
}

func (p *execProcess) closeStdin() {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.closed || p.stdin == nil {
		p.closed = true
		return
	}
	p.closed = true
	_ = p.stdin.Close()
}

// drain copies stdout to chunks until EOF. Once the process is stopping,
// output nobody is waiting for is discarded so exit is never held up.
func (p *execProcess) drain() {
	defer close(p.chunks)

	buf := make([]byte, drainChunkSize)
	discarded := 0
	for {
		n, err := p.stdout.Read(buf)
		if n > 0 {
			select {
			case p.chunks <- bytes.Clone(buf[:n]):
			case <-p.stopping:
				discarded += n
			}
		}
		if err != nil {
			break
		}
	}

	if discarded > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "execProcess.drain",
			"pid":      p.cmd.Process.Pid,
			"bytes":    discarded,
		}).Debug("Discarded receive output after stop")
	}
}

// reap drains receive output and then waits for the process to exit.
func (p *execProcess) reap() {
	if p.chunks != nil {
		p.drain()
	}
	p.waitErr = p.cmd.Wait()

	logrus.WithFields(logrus.Fields{
		"function":  "execProcess.reap",
		"pid":       p.cmd.Process.Pid,
		"direction": p.dir.String(),
		"exit":      fmt.Sprint(p.waitErr),
	}).Debug("Minimodem process exited")

	close(p.done)
}
