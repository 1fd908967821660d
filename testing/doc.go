// Package testing provides an in-memory simulation of the modem device for
// deterministic tests that do not require the minimodem binary or a sound
// card.
//
// # Simulated Launcher
//
// [SimulatedLauncher] implements interfaces.Launcher. Each Launch returns a
// [SimulatedProcess]; receive processes read bytes pushed with Inject and
// transmit processes record everything flushed to them:
//
//	sim := testing.NewSimulatedLauncher()
//	sim.SetLoopback(true) // transmitted bytes are heard by our own receiver
//
//	options := fskmodem.NewOptions()
//	options.Launcher = sim
//	modem, _ := fskmodem.New(options)
//
//	sim.Inject([]byte("|->hello<-|"))
//	sent := sim.Transmitted()
//
// Two launchers joined with Connect model two stations sharing an audio path:
// whatever one transmits the other receives.
//
// # Shutdown Behaviour
//
// SetIgnoreTerminate makes processes ignore Terminate so that tests can
// exercise the forced-kill path of channel shutdown. SetLaunchError makes
// Launch fail with interfaces.ErrDeviceUnavailable.
//
// # Warning
//
// The simulation logs a warning on construction so that it is never mistaken
// for a real device in production logs.
package testing
