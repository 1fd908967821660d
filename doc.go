// Package fskmodem implements a duplex packet transport over a pair of
// half-duplex FSK audio modems.
//
// Each direction of the link is a separate device process: one minimodem
// instance demodulates the audio input into bytes, another modulates bytes
// into the audio output. The link frames outgoing payloads with fixed
// multi-byte delimiters and recovers frames from the noisy incoming byte
// stream.
//
// # Getting Started
//
//	opts := fskmodem.NewOptions()
//	opts.InputDevice = "2,0"
//
//	modem, err := fskmodem.New(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	modem.OnReceive(func(payload []byte) {
//	    fmt.Printf("received %q\n", payload)
//	})
//
//	if err := modem.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer modem.Close()
//
//	modem.Send([]byte("hello"))
//
// # Wire Format
//
// Every frame is the start flag, the payload and the stop flag:
//
//	|->hello<-|
//
// Payloads longer than the MTU (500 bytes by default) are dropped by the
// receiver. Payloads containing either flag cannot be framed reliably.
// With Options.Checksum a four-digit hex CRC16 trailer is added inside the
// flags and verified on receipt.
//
// # Receive Path
//
// A pump goroutine reads the receive device one byte at a time and drops
// bytes outside the 7-bit range, which cannot be decoded on their own.
// The receive loop batches what the pump delivers, runs the frame
// extraction rules and invokes the callback for each frame, strictly in
// stream order and on the loop goroutine. It then pauses for PollInterval
// before the next batch. Frames found while no callback is registered are
// dropped.
//
// Noise, truncated candidates, oversize and malformed frames are never
// reported as errors. They are logged at debug level and counted through
// Options.Metrics.
//
// # Lifecycle
//
// Start launches the receive device first, then the transmit device, then
// the receive loop. Stop returns immediately: it signals the loop and stops
// both devices concurrently in the background. Wait blocks until that
// teardown has finished. Starting a running link and stopping a stopped link
// are no-ops.
//
// # Backends
//
// Options.Launcher selects the device backend. The default runs minimodem;
// see the real, testing and factory packages for the serial backend, the
// in-memory simulation and backend selection by name.
package fskmodem
