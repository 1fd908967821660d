// Package real provides the production device backends for the modem link.
//
// # Backends
//
// [MinimodemLauncher] runs one minimodem process per direction:
//
//	minimodem --rx --quiet --alsa=2,0 --print-filter 300
//	minimodem --tx --quiet --alsa=2,0 --print-filter 300
//
// The receive process writes decoded bytes to its stdout, which the link
// reads one byte at a time. The transmit process reads bytes from its stdin,
// which is buffered and flushed once per frame. Stderr is discarded.
//
// [SerialLauncher] opens a serial port instead, for hardware modems and TNCs
// that present decoded bytes on a UART. Both directions may share one port
// path; each direction opens its own handle.
//
// # Shutdown
//
// Terminate asks the device to exit (SIGTERM on unix, closing stdin) and Kill
// forces it. Done is closed once the process has been reaped; a Read blocked
// on the receive pipe returns when the pipe is closed.
//
// # Errors
//
// Launch failures wrap interfaces.ErrDeviceUnavailable:
//
//	_, err := real.NewMinimodemLauncher().Launch(cfg)
//	if errors.Is(err, interfaces.ErrDeviceUnavailable) {
//	    // minimodem is not installed or could not start
//	}
package real
