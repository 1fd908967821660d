package frame

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedBytewise(d *Deframer, data []byte) [][]byte {
	var frames [][]byte
	for i := range data {
		frames = append(frames, d.Feed(data[i:i+1])...)
	}
	return frames
}

func TestDeframerSingleFrameWithNoise(t *testing.T) {
	d := NewDeframer(500)
	frames := d.Feed([]byte("noise|->hello<-|more"))

	require.Len(t, frames, 1)
	assert.Equal(t, "hello", string(frames[0]))
	assert.Equal(t, len("more"), d.Len())
}

func TestDeframerFrameAfterLongNoiseBytewise(t *testing.T) {
	for n := 0; n < 70; n++ {
		d := NewDeframer(500)
		stream := append([]byte(strings.Repeat("x", n)), Encode([]byte("hello"))...)

		frames := feedBytewise(d, stream)
		require.Len(t, frames, 1, "noise length %d", n)
		assert.Equal(t, "hello", string(frames[0]))
	}
}

func TestDeframerSplitFlags(t *testing.T) {
	d := NewDeframer(500)
	var frames [][]byte
	for _, chunk := range []string{"|-", ">hel", "lo<", "-|"} {
		frames = append(frames, d.Feed([]byte(chunk))...)
	}

	require.Len(t, frames, 1)
	assert.Equal(t, "hello", string(frames[0]))
	assert.Zero(t, d.Len())
}

func TestDeframerOrdering(t *testing.T) {
	d := NewDeframer(500)
	frames := d.Feed([]byte("|->A<-||->B<-|"))

	require.Len(t, frames, 2)
	assert.Equal(t, "A", string(frames[0]))
	assert.Equal(t, "B", string(frames[1]))
}

func TestDeframerStopBeforeStart(t *testing.T) {
	d := NewDeframer(500)
	frames := d.Feed([]byte("<-|A|->B<-|"))

	require.Len(t, frames, 1)
	assert.Equal(t, "B", string(frames[0]))
}

func TestDeframerStopBeforeStartBytewise(t *testing.T) {
	d := NewDeframer(500)
	frames := feedBytewise(d, []byte("<-|A|->B<-|"))

	require.Len(t, frames, 1)
	assert.Equal(t, "B", string(frames[0]))
}

func TestDeframerEmptyFrameThenValid(t *testing.T) {
	d := NewDeframer(500)
	assert.Empty(t, d.Feed([]byte("|-><-|B")))

	frames := d.Feed([]byte("|->C<-|"))
	require.Len(t, frames, 1)
	assert.Equal(t, "C", string(frames[0]))
}

func TestDeframerOversizeDropped(t *testing.T) {
	var reasons []string
	d := NewDeframer(500, WithDiscardHook(func(reason string, n int) {
		reasons = append(reasons, reason)
	}))

	big := bytes.Repeat([]byte("a"), 501)
	frames := d.Feed(append(Encode(big), []byte("tail")...))

	assert.Empty(t, frames)
	assert.Equal(t, 4, d.Len(), "buffer should sit after the consumed stop flag")
	assert.Contains(t, reasons, "oversize")
}

func TestDeframerOversizeBytewiseThenRecovers(t *testing.T) {
	d := NewDeframer(500)
	big := bytes.Repeat([]byte("a"), 501)

	assert.Empty(t, feedBytewise(d, Encode(big)))
	assert.LessOrEqual(t, d.Len(), 30)

	frames := feedBytewise(d, Encode([]byte("B")))
	require.Len(t, frames, 1)
	assert.Equal(t, "B", string(frames[0]))
}

func TestDeframerPayloadAtMTU(t *testing.T) {
	d := NewDeframer(500)
	payload := bytes.Repeat([]byte("z"), 500)

	frames := feedBytewise(d, Encode(payload))
	require.Len(t, frames, 1)
	assert.Equal(t, payload, frames[0])
}

func TestDeframerBufferBoundWithoutStart(t *testing.T) {
	d := NewDeframer(500)
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 20000; i++ {
		d.Feed(randomLetters(r, 1+r.Intn(4)))
		require.LessOrEqual(t, d.Len(), 10*len(StartFlag))
	}
}

func TestDeframerTruncatesLongPartialFrame(t *testing.T) {
	d := NewDeframer(10)
	assert.Empty(t, d.Feed([]byte("|->aaaaaaaaaa|->bb")))
	assert.Equal(t, len("|->bb"), d.Len())

	frames := d.Feed([]byte("<-|"))
	require.Len(t, frames, 1)
	assert.Equal(t, "bb", string(frames[0]))
}

func TestDeframerFramesAreCopies(t *testing.T) {
	d := NewDeframer(500)
	frames := d.Feed([]byte("|->first<-|"))
	require.Len(t, frames, 1)

	d.Feed([]byte("|->XXXXX<-|"))
	assert.Equal(t, "first", string(frames[0]))
}

func TestDeframerRandomizedDelivery(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		payload := randomLetters(r, 1+r.Intn(500))
		stream := append(randomLetters(r, r.Intn(80)), Encode(payload)...)
		stream = append(stream, randomLetters(r, r.Intn(80))...)

		d := NewDeframer(500)
		var frames [][]byte
		for len(stream) > 0 {
			n := 1 + r.Intn(16)
			if n > len(stream) {
				n = len(stream)
			}
			frames = append(frames, d.Feed(stream[:n])...)
			stream = stream[n:]
		}

		require.Len(t, frames, 1, "trial %d", trial)
		require.Equal(t, payload, frames[0], "trial %d", trial)
	}
}

func TestDeframerChecksum(t *testing.T) {
	var reasons []string
	d := NewDeframer(500, WithChecksum(), WithDiscardHook(func(reason string, n int) {
		reasons = append(reasons, reason)
	}))

	good := Encode(AppendChecksum([]byte("hello")))
	bad := Encode([]byte("hello0000"))

	frames := d.Feed(append(bad, good...))
	require.Len(t, frames, 1)
	assert.Equal(t, "hello", string(frames[0]))
	assert.Contains(t, reasons, "checksum")
}

func TestDeframerChecksumAllowsFullMTUPayload(t *testing.T) {
	d := NewDeframer(8, WithChecksum())
	payload := []byte("12345678")

	frames := d.Feed(Encode(AppendChecksum(payload)))
	require.Len(t, frames, 1)
	assert.Equal(t, payload, frames[0])
}

func TestDeframerKeepsPartialFrame(t *testing.T) {
	d := NewDeframer(0)
	assert.Empty(t, d.Feed([]byte("|->partial")))
	assert.Equal(t, len("|->partial"), d.Len())
}
