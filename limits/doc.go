// Package limits provides centralized size and rate constants and validation
// functions for the modem link. This package ensures consistent enforcement
// across the frame codec, the duplex link and configuration loading.
//
// # Size Hierarchy
//
//   - DefaultMTU (500 bytes): the largest frame payload delivered to a
//     receive callback unless configured otherwise. Matches the packet size
//     used by the Reticulum Network Stack over low-rate links.
//
//   - MaxMTU (64 KiB): upper bound accepted for a configured MTU. At 300
//     baud a frame this size takes over half an hour to transmit, so larger
//     values are almost certainly configuration errors.
//
//   - NoiseWindowFactor (10): a receive buffer with no start marker is
//     cleared once it grows past this many marker lengths.
//
// # Validation Functions
//
//	if err := limits.ValidateMTU(options.MTU); err != nil {
//	    // ErrInvalidMTU
//	}
//
//	if err := limits.ValidatePayload(payload, options.MTU); err != nil {
//	    // ErrMessageEmpty or ErrMessageTooLarge
//	}
//
// Errors are wrapped with the offending value and can be matched with
// errors.Is.
package limits
