package frame

import (
	"bytes"

	"github.com/opd-ai/fskmodem/limits"
)

const (
	// StartFlag marks the beginning of a frame.
	StartFlag = "|->"

	// StopFlag marks the end of a frame.
	StopFlag = "<-|"
)

// Overhead is the number of bytes the flags add to each payload.
const Overhead = len(StartFlag) + len(StopFlag)

var (
	startFlag = []byte(StartFlag)
	stopFlag  = []byte(StopFlag)
)

// Encode wraps payload with the start and stop flags.
func Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+Overhead)
	out = append(out, startFlag...)
	out = append(out, payload...)
	return append(out, stopFlag...)
}

// ContainsFlag reports whether payload contains either flag. Such payloads
// cannot be framed unambiguously.
func ContainsFlag(payload []byte) bool {
	return bytes.Contains(payload, startFlag) || bytes.Contains(payload, stopFlag)
}

// Action describes what a single Step did to the buffer.
type Action uint8

const (
	// ActionNone means no rule could make progress.
	ActionNone Action = iota
	// ActionCleared means a buffer without a start flag was cleared.
	ActionCleared
	// ActionTruncated means the buffer was cut back to its last start flag.
	ActionTruncated
	// ActionAbandoned means a candidate that can no longer fit was dropped.
	ActionAbandoned
	// ActionFrame means a valid frame was extracted.
	ActionFrame
	// ActionOversize means a complete candidate larger than the MTU was dropped.
	ActionOversize
	// ActionMalformed means a stop flag sat directly on the start flag.
	ActionMalformed
)

var actionNames = map[Action]string{
	ActionNone:      "none",
	ActionCleared:   "noise",
	ActionTruncated: "truncated",
	ActionAbandoned: "abandoned",
	ActionFrame:     "frame",
	ActionOversize:  "oversize",
	ActionMalformed: "malformed",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Result is the outcome of one Step.
type Result struct {
	Action Action

	// Rest is the buffer after the step. It aliases the input buffer.
	Rest []byte

	// Payload is the extracted frame when Action is ActionFrame. It aliases
	// the input buffer.
	Payload []byte

	// Discarded counts bytes removed without being delivered.
	Discarded int
}

// Progress reports whether the step changed the buffer.
func (r Result) Progress() bool {
	return r.Action != ActionNone
}

// Step applies the first applicable extraction rule to buf. mtu bounds the
// candidate length.
func Step(buf []byte, mtu int) Result {
	first := bytes.Index(buf, startFlag)
	if first < 0 {
		return stepNoStart(buf)
	}

	payloadStart := first + len(startFlag)
	rel := bytes.Index(buf[payloadStart:], stopFlag)
	if rel < 0 {
		return stepNoStop(buf, mtu)
	}

	end := payloadStart + rel
	if end <= payloadStart {
		return Result{
			Action:    ActionMalformed,
			Rest:      buf[payloadStart:],
			Discarded: payloadStart,
		}
	}

	rest := buf[end+len(stopFlag):]
	candidate := buf[payloadStart:end]
	if len(candidate) > mtu {
		return Result{
			Action:    ActionOversize,
			Rest:      rest,
			Discarded: len(buf) - len(rest),
		}
	}

	return Result{
		Action:    ActionFrame,
		Rest:      rest,
		Payload:   candidate,
		Discarded: first,
	}
}

// stepNoStart handles a buffer holding no start flag.
func stepNoStart(buf []byte) Result {
	if len(buf) <= limits.NoiseWindow(len(startFlag)) {
		return Result{Action: ActionNone, Rest: buf}
	}
	keep := partialSuffix(buf, startFlag)
	return Result{
		Action:    ActionCleared,
		Rest:      buf[len(buf)-keep:],
		Discarded: len(buf) - keep,
	}
}

// stepNoStop handles a buffer with a start flag but no stop flag after it.
func stepNoStop(buf []byte, mtu int) Result {
	if len(buf) <= mtu {
		return Result{Action: ActionNone, Rest: buf}
	}

	last := bytes.LastIndex(buf, startFlag)
	if last > 0 {
		return Result{
			Action:    ActionTruncated,
			Rest:      buf[last:],
			Discarded: last,
		}
	}

	// A trailing partial stop flag may still complete a candidate of mtu bytes.
	if len(buf)-len(startFlag) > mtu+len(stopFlag)-1 {
		return Result{
			Action:    ActionAbandoned,
			Rest:      buf[len(startFlag):],
			Discarded: len(startFlag),
		}
	}
	return Result{Action: ActionNone, Rest: buf}
}

// partialSuffix returns the length of the longest proper prefix of flag that
// buf ends with.
func partialSuffix(buf, flag []byte) int {
	for n := len(flag) - 1; n > 0; n-- {
		if len(buf) >= n && bytes.Equal(buf[len(buf)-n:], flag[:n]) {
			return n
		}
	}
	return 0
}
