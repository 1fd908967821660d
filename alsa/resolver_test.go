package alsa

import (
	"context"
	"errors"
	"testing"

	"github.com/opd-ai/fskmodem/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arecordOutput = `**** List of CAPTURE Hardware Devices ****
card 0: PCH [HDA Intel PCH], device 0: ALC3246 Analog [ALC3246 Analog]
  Subdevices: 1/1
  Subdevice #0: subdevice #0
card 2: Device [USB PnP Sound Device], device 0: USB Audio [USB Audio]
  Subdevices: 1/1
  Subdevice #0: subdevice #0
`

type fakeRunner struct {
	out  string
	err  error
	name string
	args []string
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.name = name
	f.args = args
	return []byte(f.out), f.err
}

func TestResolveFindsDevice(t *testing.T) {
	runner := &fakeRunner{out: arecordOutput}
	r := NewResolverWithRunner(runner)

	dev, ok, err := r.Resolve("USB PnP", interfaces.DirectionRX)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2,0", dev)
	assert.Equal(t, "arecord", runner.name)
	assert.Equal(t, []string{"-l"}, runner.args)
}

func TestResolveUsesAplayForTransmit(t *testing.T) {
	runner := &fakeRunner{out: arecordOutput}
	r := NewResolverWithRunner(runner)

	dev, ok, err := r.Resolve("HDA Intel", interfaces.DirectionTX)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0,0", dev)
	assert.Equal(t, "aplay", runner.name)
}

func TestResolveNoMatch(t *testing.T) {
	r := NewResolverWithRunner(&fakeRunner{out: arecordOutput})

	dev, ok, err := r.Resolve("Blue Yeti", interfaces.DirectionRX)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, dev)
}

func TestResolveSkipsUnparseableLines(t *testing.T) {
	// "Subdevice" lines match the description but carry no card field
	r := NewResolverWithRunner(&fakeRunner{out: arecordOutput})

	dev, ok, err := r.Resolve("subdevice", interfaces.DirectionRX)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, dev)
}

func TestResolveCommandFailure(t *testing.T) {
	r := NewResolverWithRunner(&fakeRunner{err: errors.New("exec: \"arecord\": executable file not found in $PATH")})

	_, ok, err := r.Resolve("USB PnP", interfaces.DirectionRX)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrResolution)
}

func TestResolveUnknownDirection(t *testing.T) {
	r := NewResolverWithRunner(&fakeRunner{})
	_, _, err := r.Resolve("USB PnP", interfaces.Direction(0))
	assert.ErrorIs(t, err, interfaces.ErrUnknownDirection)
}

func TestParseDeviceLine(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"card 2: Device [USB PnP Sound Device], device 0: USB Audio [USB Audio]", "2,0", true},
		{"card 11: Loopback [Loopback], device 7: Loopback PCM [Loopback PCM]", "11,7", true},
		{"card X: Device [USB PnP Sound Device], device 0: USB Audio", "", false},
		{"  Subdevice #0: subdevice #0", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseDeviceLine(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestList(t *testing.T) {
	r := NewResolverWithRunner(&fakeRunner{out: arecordOutput})

	devices, err := r.List(context.Background(), interfaces.DirectionRX)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "0,0", devices[0].ID)
	assert.Equal(t, "2,0", devices[1].ID)
	assert.Contains(t, devices[1].Line, "USB PnP Sound Device")

	_, err = r.List(context.Background(), interfaces.Direction(0))
	assert.ErrorIs(t, err, interfaces.ErrUnknownDirection)
}
