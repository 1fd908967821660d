package fskmodem

import "errors"

var (
	// ErrInvalidPayloadType indicates SendValue was given something other
	// than a byte slice
	ErrInvalidPayloadType = errors.New("invalid payload type")

	// ErrLinkStopping indicates Start was called before the previous Stop
	// finished tearing down
	ErrLinkStopping = errors.New("link stopping")
)
