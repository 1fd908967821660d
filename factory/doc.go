// Package factory creates device launchers for the modem link.
//
// The factory hides the choice between the minimodem process, a serial
// modem and the in-memory simulation behind one backend name, so the link
// and the CLI never construct backends directly.
//
// # Configuration
//
// Defaults may be overridden with environment variables:
//   - FSKMODEM_BACKEND: "minimodem", "serial" or "simulation"
//   - FSKMODEM_MINIMODEM_PATH: minimodem program name or absolute path
//   - FSKMODEM_SERIAL_READ_TIMEOUT: integer milliseconds per serial read
//
// Invalid or out-of-range values are logged and the default is kept.
//
// # Usage
//
//	f := factory.NewLauncherFactory()
//
//	// backend from configuration
//	launcher, err := f.CreateLauncher("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// or pick one explicitly
//	launcher, err = f.CreateLauncher(factory.BackendSerial)
//
// # Thread Safety
//
// LauncherFactory is safe for concurrent use.
package factory
