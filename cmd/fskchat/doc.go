// Command fskchat is a line-oriented chat over an FSK audio link.
//
// Each line read from stdin is sent as one frame; each received frame is
// printed to stdout on its own line. SIGINT or SIGTERM stops the link.
//
// Usage:
//
//	fskchat [options]
//
// Examples:
//
//	# default sound card at 300 baud
//	fskchat
//
//	# USB adapter found by description, 1200 baud, with frame checksums
//	fskchat --input-desc "USB PnP" --baud 1200 --checksum
//
//	# settings from a file, Prometheus metrics on :9464
//	fskchat --config fskchat.yaml --metrics-addr :9464
//
// Flags override values read from --config.
package main
