package fskmodem

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/fskmodem/channel"
	"github.com/opd-ai/fskmodem/frame"
	"github.com/opd-ai/fskmodem/interfaces"
	"github.com/opd-ai/fskmodem/limits"
	modemtest "github.com/opd-ai/fskmodem/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRecorder is a metrics.Recorder for assertions.
type countingRecorder struct {
	mu        sync.Mutex
	received  int
	sent      int
	discarded map[string]int
	bytes     map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{discarded: map[string]int{}, bytes: map[string]int{}}
}

func (r *countingRecorder) FrameReceived(int) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()
}

func (r *countingRecorder) FrameSent(int) {
	r.mu.Lock()
	r.sent++
	r.mu.Unlock()
}

func (r *countingRecorder) FrameDiscarded(reason string) {
	r.mu.Lock()
	r.discarded[reason]++
	r.mu.Unlock()
}

func (r *countingRecorder) BytesDiscarded(reason string, n int) {
	r.mu.Lock()
	r.bytes[reason] += n
	r.mu.Unlock()
}

func (r *countingRecorder) receivedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received
}

func (r *countingRecorder) framesDiscarded(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discarded[reason]
}

func (r *countingRecorder) bytesDiscarded(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytes[reason]
}

// collector gathers callback payloads.
type collector struct {
	mu     sync.Mutex
	frames []string
}

func (c *collector) callback(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, string(payload))
}

func (c *collector) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func testOptions(sim interfaces.Launcher) *Options {
	opts := NewOptions()
	opts.Launcher = sim
	opts.PollInterval = 5 * time.Millisecond
	opts.StopTimeout = 100 * time.Millisecond
	return opts
}

func startModem(t *testing.T, opts *Options) *Modem {
	t.Helper()
	m, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, m.Start())
	t.Cleanup(func() {
		_ = m.Close()
	})
	return m
}

func waitFrames(t *testing.T, c *collector, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(c.get()) >= len(want)
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, c.get())
}

func TestNewOptionsDefaults(t *testing.T) {
	opts := NewOptions()
	assert.Equal(t, 300, opts.BaudRate)
	assert.Equal(t, 500, opts.MTU)
	assert.Equal(t, 100*time.Millisecond, opts.PollInterval)
	assert.Equal(t, 5*time.Second, opts.StopTimeout)
	assert.False(t, opts.Checksum)
	assert.NoError(t, opts.Validate())
}

func TestOptionsValidate(t *testing.T) {
	opts := NewOptions()
	opts.MTU = 0
	assert.ErrorIs(t, opts.Validate(), limits.ErrInvalidMTU)

	opts = NewOptions()
	opts.BaudRate = 0
	assert.ErrorIs(t, opts.Validate(), limits.ErrInvalidBaudRate)

	opts = NewOptions()
	opts.PollInterval = -time.Second
	assert.Error(t, opts.Validate())

	_, err := New(&Options{})
	assert.Error(t, err)
}

func TestOutputDeviceDefaultsToInput(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	opts := testOptions(sim)
	opts.InputDevice = "2,0"
	m := startModem(t, opts)

	assert.Equal(t, "2,0", m.Options().OutputDevice)
	for _, p := range sim.Processes() {
		assert.Equal(t, "2,0", p.Config().DeviceID)
		assert.Equal(t, 300, p.Config().BaudRate)
	}
}

func TestDistinctDevices(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	opts := testOptions(sim)
	opts.InputDevice = "2,0"
	opts.OutputDevice = "1,0"
	startModem(t, opts)

	devices := map[interfaces.Direction]string{}
	for _, p := range sim.Processes() {
		devices[p.Config().Direction] = p.Config().DeviceID
	}
	assert.Equal(t, "2,0", devices[interfaces.DirectionRX])
	assert.Equal(t, "1,0", devices[interfaces.DirectionTX])
}

func TestSendWritesFramedBytes(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	m := startModem(t, testOptions(sim))

	require.NoError(t, m.Send([]byte("hello")))
	assert.Equal(t, "|->hello<-|", string(sim.Transmitted()))
}

func TestSendValue(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	m := startModem(t, testOptions(sim))

	require.NoError(t, m.SendValue([]byte("ok")))
	assert.ErrorIs(t, m.SendValue("hello"), ErrInvalidPayloadType)
	assert.ErrorIs(t, m.SendValue(42), ErrInvalidPayloadType)
	assert.ErrorIs(t, m.SendValue(nil), ErrInvalidPayloadType)

	assert.Equal(t, "|->ok<-|", string(sim.Transmitted()))
}

func TestSendOnStoppedModem(t *testing.T) {
	m, err := New(testOptions(modemtest.NewSimulatedLauncher()))
	require.NoError(t, err)

	assert.ErrorIs(t, m.Send([]byte("x")), channel.ErrChannelStopped)
}

func TestReceiveDeliversInOrder(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	m := startModem(t, testOptions(sim))

	var c collector
	m.OnReceive(c.callback)

	require.NoError(t, sim.Inject([]byte("static|->A<-|~~|->B<-|")))
	waitFrames(t, &c, "A", "B")
}

func TestReceiveAcrossReads(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	m := startModem(t, testOptions(sim))

	var c collector
	m.OnReceive(c.callback)

	for _, part := range []string{"|", "->he", "llo<", "-|"} {
		require.NoError(t, sim.Inject([]byte(part)))
		time.Sleep(10 * time.Millisecond)
	}
	waitFrames(t, &c, "hello")
}

func TestStopBeforeStartStillDelivers(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	m := startModem(t, testOptions(sim))

	var c collector
	m.OnReceive(c.callback)

	require.NoError(t, sim.Inject([]byte("<-|A|->B<-|")))
	waitFrames(t, &c, "B")
}

func TestUndecodableBytesDropped(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	rec := newCountingRecorder()
	opts := testOptions(sim)
	opts.Metrics = rec
	m := startModem(t, opts)

	var c collector
	m.OnReceive(c.callback)

	require.NoError(t, sim.Inject([]byte("|->h\xffi\xc3<-|")))
	waitFrames(t, &c, "hi")
	assert.Equal(t, 2, rec.bytesDiscarded(ReasonUndecodable))
}

func TestLeadingNoiseCountsBytesOnly(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	rec := newCountingRecorder()
	opts := testOptions(sim)
	opts.Metrics = rec
	m := startModem(t, opts)

	var c collector
	m.OnReceive(c.callback)

	require.NoError(t, sim.Inject([]byte("xy|->hi<-|")))
	waitFrames(t, &c, "hi")
	assert.Equal(t, 2, rec.bytesDiscarded("noise"))
	assert.Zero(t, rec.framesDiscarded("noise"))
}

func TestTooLongCandidateCountsOneFrame(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	rec := newCountingRecorder()
	opts := testOptions(sim)
	opts.MTU = 8
	opts.Metrics = rec
	m := startModem(t, opts)

	var c collector
	m.OnReceive(c.callback)

	require.NoError(t, sim.Inject([]byte("|->"+strings.Repeat("x", 9)+"<-||->fits<-|")))
	waitFrames(t, &c, "fits")
	// oversize when the candidate arrives whole, abandoned when it is split
	assert.Equal(t, 1, rec.framesDiscarded("oversize")+rec.framesDiscarded("abandoned"))
	assert.Zero(t, rec.framesDiscarded("noise"))
}

func TestOversizeFrameDropped(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	opts := testOptions(sim)
	opts.MTU = 8
	m := startModem(t, opts)

	var c collector
	m.OnReceive(c.callback)

	require.NoError(t, sim.Inject([]byte("|->"+strings.Repeat("x", 9)+"<-||->fits<-|")))
	waitFrames(t, &c, "fits")
}

func TestFramesBeforeCallbackAreDropped(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	rec := newCountingRecorder()
	opts := testOptions(sim)
	opts.Metrics = rec
	m := startModem(t, opts)

	require.NoError(t, sim.Inject([]byte("|->early<-|")))
	require.Eventually(t, func() bool { return rec.receivedCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	var c collector
	m.OnReceive(c.callback)
	require.NoError(t, sim.Inject([]byte("|->late<-|")))
	waitFrames(t, &c, "late")
}

func TestCallbackReplacement(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	rec := newCountingRecorder()
	opts := testOptions(sim)
	opts.Metrics = rec
	m := startModem(t, opts)

	var first, second collector
	m.OnReceive(first.callback)
	require.NoError(t, sim.Inject([]byte("|->one<-|")))
	waitFrames(t, &first, "one")

	m.OnReceive(second.callback)
	require.NoError(t, sim.Inject([]byte("|->two<-|")))
	waitFrames(t, &second, "two")
	assert.Equal(t, []string{"one"}, first.get())

	m.OnReceive(nil)
	require.NoError(t, sim.Inject([]byte("|->three<-|")))
	require.Eventually(t, func() bool { return rec.receivedCount() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"two"}, second.get())
}

func TestLoopbackRoundTrip(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	sim.SetLoopback(true)
	m := startModem(t, testOptions(sim))

	var c collector
	m.OnReceive(c.callback)

	require.NoError(t, m.Send([]byte("first")))
	require.NoError(t, m.Send([]byte("second")))
	waitFrames(t, &c, "first", "second")
}

func TestChecksumRoundTrip(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	sim.SetLoopback(true)
	opts := testOptions(sim)
	opts.Checksum = true
	m := startModem(t, opts)

	var c collector
	m.OnReceive(c.callback)

	require.NoError(t, m.Send([]byte("hi")))
	waitFrames(t, &c, "hi")

	wire := string(sim.Transmitted())
	assert.True(t, strings.HasPrefix(wire, "|->hi"))
	assert.True(t, strings.HasSuffix(wire, "<-|"))
	assert.Len(t, wire, len("|->hi<-|")+4)
}

func TestChecksumRejectsCorruptFrame(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	opts := testOptions(sim)
	opts.Checksum = true
	m := startModem(t, opts)

	var c collector
	m.OnReceive(c.callback)

	good := frame.Encode(frame.AppendChecksum([]byte("ok")))
	require.NoError(t, sim.Inject(append([]byte("|->hi0000<-|"), good...)))
	waitFrames(t, &c, "ok")
}

func TestTwoModemsExchangeFrames(t *testing.T) {
	a := modemtest.NewSimulatedLauncher()
	b := modemtest.NewSimulatedLauncher()
	modemtest.Connect(a, b)

	ma := startModem(t, testOptions(a))
	mb := startModem(t, testOptions(b))

	var gotA, gotB collector
	ma.OnReceive(gotA.callback)
	mb.OnReceive(gotB.callback)

	require.NoError(t, ma.Send([]byte("ping")))
	waitFrames(t, &gotB, "ping")

	require.NoError(t, mb.Send([]byte("pong")))
	waitFrames(t, &gotA, "pong")
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	m, err := New(testOptions(sim))
	require.NoError(t, err)

	m.Stop()
	require.NoError(t, m.Wait(context.Background()))

	require.NoError(t, m.Start())
	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	assert.Equal(t, channel.StateRunning, m.State())
	assert.Equal(t, 1, sim.LaunchCount(interfaces.DirectionRX))
	assert.Equal(t, 1, sim.LaunchCount(interfaces.DirectionTX))

	m.Stop()
	m.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))
	assert.False(t, m.IsRunning())
	assert.Equal(t, channel.StateStopped, m.State())

	for _, p := range sim.Processes() {
		assert.True(t, p.Terminated())
	}
}

func TestStopDoesNotBlock(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	sim.SetIgnoreTerminate(true)
	opts := testOptions(sim)
	opts.StopTimeout = 200 * time.Millisecond
	m, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, m.Start())

	start := time.Now()
	m.Stop()
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, channel.StateStopping, m.State())

	assert.ErrorIs(t, m.Start(), ErrLinkStopping)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	for _, p := range sim.Processes() {
		assert.True(t, p.Killed())
	}
}

func TestWaitHonoursContext(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	m := startModem(t, testOptions(sim))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Wait(ctx), context.DeadlineExceeded)
	assert.True(t, m.IsRunning())
}

func TestRestartAfterStop(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	m := startModem(t, testOptions(sim))

	require.NoError(t, m.Close())
	require.NoError(t, m.Start())

	var c collector
	m.OnReceive(c.callback)
	require.NoError(t, sim.Inject([]byte("|->again<-|")))
	waitFrames(t, &c, "again")
	assert.Equal(t, 2, sim.LaunchCount(interfaces.DirectionRX))
}

func TestStartFailure(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	sim.SetLaunchError(errors.New("minimodem: command not found"))

	m, err := New(testOptions(sim))
	require.NoError(t, err)

	assert.ErrorIs(t, m.Start(), interfaces.ErrDeviceUnavailable)
	assert.False(t, m.IsRunning())
	assert.Equal(t, channel.StateStopped, m.State())
}

// txFailLauncher fails every transmit launch.
type txFailLauncher struct {
	*modemtest.SimulatedLauncher
}

func (l txFailLauncher) Launch(cfg interfaces.ProcessConfig) (interfaces.Process, error) {
	if cfg.Direction == interfaces.DirectionTX {
		return nil, interfaces.ErrDeviceUnavailable
	}
	return l.SimulatedLauncher.Launch(cfg)
}

func TestStartRollsBackReceiveOnTransmitFailure(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	m, err := New(testOptions(txFailLauncher{sim}))
	require.NoError(t, err)

	assert.ErrorIs(t, m.Start(), interfaces.ErrDeviceUnavailable)
	assert.False(t, m.IsRunning())

	procs := sim.Processes()
	require.Len(t, procs, 1)
	assert.Equal(t, interfaces.DirectionRX, procs[0].Config().Direction)
	assert.True(t, procs[0].Terminated())
}

func TestStartOnCreate(t *testing.T) {
	sim := modemtest.NewSimulatedLauncher()
	opts := testOptions(sim)
	opts.StartOnCreate = true

	m, err := New(opts)
	require.NoError(t, err)
	defer m.Close()

	assert.True(t, m.IsRunning())
}
