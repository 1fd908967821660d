// Package frame implements the delimiter framing used on the modem link.
//
// A frame on the wire is
//
//	StartFlag || payload || StopFlag
//
// where both flags are fixed three-byte sequences. Using several characters
// per flag, as HDLC and PPP do with their flag bytes, makes it less likely
// that receiver noise emulates a flag.
//
// # Extraction Rules
//
// [Step] applies one rule to an accumulating receive buffer and reports what
// it did. [Deframer] owns a buffer and applies Step until no rule makes
// progress, returning the frames found in order:
//
//  1. No start flag: once the buffer exceeds ten flag lengths it is cleared,
//     keeping only a trailing partial start flag.
//  2. Start flag but no stop flag after it: once the buffer exceeds the MTU
//     it is cut back to the last start flag. A single candidate that can no
//     longer fit the MTU is abandoned.
//  3. Start flag followed by a stop flag: the bytes between them are a
//     candidate. Everything through the stop flag is consumed; candidates
//     larger than the MTU are discarded. An empty candidate is malformed and
//     only the start flag is consumed.
//
// The first start flag and the first stop flag after it are always used.
//
// # Checksum Trailer
//
// When enabled on both ends, each payload carries four hex digits of its
// CRC16-MODBUS before the stop flag. Hex keeps the trailer printable so it
// survives the receive-side byte filtering.
package frame
