package frame

import (
	"bytes"

	"github.com/opd-ai/fskmodem/limits"
	"github.com/sirupsen/logrus"
)

// DiscardHook is notified whenever bytes or candidates are dropped. reason
// is a stable label suitable for metrics.
type DiscardHook func(reason string, n int)

// Option configures a Deframer.
type Option func(*Deframer)

// WithChecksum verifies and strips the checksum trailer on every frame.
func WithChecksum() Option {
	return func(d *Deframer) {
		d.checksum = true
	}
}

// WithDiscardHook installs a hook for dropped data.
func WithDiscardHook(hook DiscardHook) Option {
	return func(d *Deframer) {
		d.onDiscard = hook
	}
}

// Deframer accumulates received bytes and extracts frames. It is not safe
// for concurrent use; the receive loop owns it exclusively.
type Deframer struct {
	buf       []byte
	mtu       int
	checksum  bool
	onDiscard DiscardHook
}

// NewDeframer creates a Deframer delivering payloads of at most mtu bytes.
// A non-positive mtu selects limits.DefaultMTU.
func NewDeframer(mtu int, opts ...Option) *Deframer {
	if mtu <= 0 {
		mtu = limits.DefaultMTU
	}
	d := &Deframer{mtu: mtu}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed appends p and returns any frames that became complete.
func (d *Deframer) Feed(p []byte) [][]byte {
	d.buf = append(d.buf, p...)
	return d.Frames()
}

// Frames applies the extraction rules until none makes progress and returns
// the frames found, in stream order. Returned slices are owned by the caller.
func (d *Deframer) Frames() [][]byte {
	var frames [][]byte

	limit := d.mtu
	if d.checksum {
		limit += ChecksumLen
	}

	for {
		res := Step(d.buf, limit)
		if !res.Progress() {
			break
		}

		if res.Discarded > 0 {
			reason := res.Action.String()
			if res.Action == ActionFrame {
				// leading bytes before the start flag
				reason = ActionCleared.String()
			}
			d.discard(reason, res.Discarded)
		}

		if res.Action == ActionFrame {
			if payload, ok := d.accept(res.Payload); ok {
				frames = append(frames, payload)
			}
		}

		d.buf = append(d.buf[:0], res.Rest...)
	}

	return frames
}

// accept copies a candidate out of the buffer and applies the checksum.
func (d *Deframer) accept(candidate []byte) ([]byte, bool) {
	payload := bytes.Clone(candidate)
	if !d.checksum {
		return payload, true
	}

	verified, err := VerifyChecksum(payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Deframer.accept",
			"size":     len(payload),
			"error":    err.Error(),
		}).Debug("Discarding frame with bad checksum")
		d.discard("checksum", len(payload))
		return nil, false
	}
	return verified, true
}

func (d *Deframer) discard(reason string, n int) {
	logrus.WithFields(logrus.Fields{
		"function": "Deframer.discard",
		"reason":   reason,
		"bytes":    n,
	}).Debug("Discarding receive buffer data")

	if d.onDiscard != nil {
		d.onDiscard(reason, n)
	}
}

// Len returns the number of buffered bytes.
func (d *Deframer) Len() int {
	return len(d.buf)
}
