// Package interfaces defines the collaborator contracts between the modem
// link and the byte devices it drives.
//
// This package provides the abstractions that let the same link code run over
// a real minimodem process, a serial-attached modem, or an in-memory
// simulation used by tests.
//
// # Core Interfaces
//
// [Launcher] starts one direction of an underlying device and returns a
// running [Process]:
//
//	proc, err := launcher.Launch(interfaces.ProcessConfig{
//	    Direction: interfaces.DirectionRX,
//	    BaudRate:  300,
//	    DeviceID:  "2,0",
//	})
//	if errors.Is(err, interfaces.ErrDeviceUnavailable) {
//	    // executable or port missing
//	}
//
// [Process] exposes a blocking byte read (receive direction), buffered byte
// write with explicit flush (transmit direction), and the two-phase
// Terminate/Kill shutdown. Done is closed once the device has exited and its
// output has been drained.
//
// # Implementation Selection
//
// The factory package creates launchers from a backend name:
//   - "minimodem": real.MinimodemLauncher (default)
//   - "serial": real.SerialLauncher
//   - "simulation": testing.SimulatedLauncher
//
// # Thread Safety
//
// Read and Write may be called from different goroutines. Terminate and Kill
// may be called while a Read is blocked and must cause it to return.
package interfaces
