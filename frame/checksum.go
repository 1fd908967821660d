package frame

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sigurn/crc16"
)

// ChecksumLen is the size of the hex checksum trailer.
const ChecksumLen = 4

var (
	// ErrChecksumMismatch indicates the trailer does not match the payload
	ErrChecksumMismatch = errors.New("frame: checksum mismatch")

	// ErrShortFrame indicates a frame too short to hold a trailer
	ErrShortFrame = errors.New("frame: too short for checksum")
)

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum returns the CRC16-MODBUS of payload.
func Checksum(payload []byte) uint16 {
	return crc16.Checksum(payload, crcTable)
}

// AppendChecksum returns payload followed by its four-digit hex checksum.
func AppendChecksum(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+ChecksumLen)
	out = append(out, payload...)
	return fmt.Appendf(out, "%04X", Checksum(payload))
}

// VerifyChecksum checks and strips the trailer added by AppendChecksum.
func VerifyChecksum(data []byte) ([]byte, error) {
	if len(data) < ChecksumLen {
		return nil, ErrShortFrame
	}
	split := len(data) - ChecksumLen
	payload, trailer := data[:split], data[split:]

	want, err := strconv.ParseUint(string(trailer), 16, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: trailer %q", ErrChecksumMismatch, trailer)
	}
	if got := Checksum(payload); uint16(want) != got {
		return nil, fmt.Errorf("%w: got %04X want %04X", ErrChecksumMismatch, got, want)
	}
	return payload, nil
}
