package fskmodem

import (
	"time"
	"unicode/utf8"

	"github.com/opd-ai/fskmodem/frame"
	"github.com/sirupsen/logrus"
)

// receiveQueueSize bounds the bytes read ahead of the receive loop.
const receiveQueueSize = 4096

// ReasonUndecodable labels received bytes dropped before framing.
const ReasonUndecodable = "undecodable"

// validByte reports whether b decodes as a complete character on its own.
// Bytes of multi-byte sequences never do and are dropped.
func validByte(b byte) bool {
	return b < utf8.RuneSelf
}

// pump reads the receive channel one byte at a time until it fails or stop
// is closed. A byte already in flight when stop closes is abandoned.
func (m *Modem) pump(stop <-chan struct{}, out chan<- byte, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		data, err := m.rx.Receive(1)
		if err != nil {
			select {
			case <-stop:
			default:
				logrus.WithFields(logrus.Fields{
					"function": "Modem.pump",
					"error":    err.Error(),
				}).Warn("Receive channel read failed, receive loop idle until restart")
			}
			return
		}

		b := data[0]
		if !validByte(b) {
			m.metrics.BytesDiscarded(ReasonUndecodable, 1)
			continue
		}

		select {
		case out <- b:
		case <-stop:
			return
		}
	}
}

// receiveLoop owns the deframer. Each pass waits for at least one byte,
// takes everything else already queued, extracts frames, delivers them in
// order and then pauses for PollInterval.
func (m *Modem) receiveLoop(stop <-chan struct{}, done, pumpDone chan<- struct{}) {
	defer close(done)

	in := make(chan byte, receiveQueueSize)
	go m.pump(stop, in, pumpDone)

	opts := []frame.Option{frame.WithDiscardHook(m.discarded)}
	if m.opts.Checksum {
		opts = append(opts, frame.WithChecksum())
	}
	deframer := frame.NewDeframer(m.opts.MTU, opts...)

	batch := make([]byte, 0, receiveQueueSize)
	for {
		select {
		case b := <-in:
			batch = append(batch[:0], b)
		case <-stop:
			return
		}

	drain:
		for {
			select {
			case b := <-in:
				batch = append(batch, b)
			default:
				break drain
			}
		}

		frames := deframer.Feed(batch)
		logrus.WithFields(logrus.Fields{
			"function": "Modem.receiveLoop",
			"read":     len(batch),
			"frames":   len(frames),
			"buffered": deframer.Len(),
		}).Trace("Processed receive batch")

		for _, payload := range frames {
			select {
			case <-stop:
				return
			default:
			}
			m.deliver(payload)
		}

		if !m.pause(stop) {
			return
		}
	}
}

// pause waits PollInterval so bytes arriving meanwhile are handled as one
// batch. It returns false if stop closed first.
func (m *Modem) pause(stop <-chan struct{}) bool {
	timer := time.NewTimer(m.opts.PollInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}

// deliver hands one payload to the current callback, if any.
func (m *Modem) deliver(payload []byte) {
	m.metrics.FrameReceived(len(payload))

	cb := m.callback.Load()
	if cb == nil {
		logrus.WithFields(logrus.Fields{
			"function": "Modem.deliver",
			"size":     len(payload),
		}).Debug("No receive callback registered, dropping frame")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "Modem.deliver",
		"size":     len(payload),
	}).Debug("Delivering frame")
	(*cb)(payload)
}

// discarded records dropped receive data. Noise is not a frame candidate,
// so it only counts bytes.
func (m *Modem) discarded(reason string, n int) {
	if reason != frame.ActionCleared.String() {
		m.metrics.FrameDiscarded(reason)
	}
	m.metrics.BytesDiscarded(reason, n)
}
