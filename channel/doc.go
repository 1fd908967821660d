// Package channel manages one direction of the modem link.
//
// A [HalfDuplex] owns a single receive-only or transmit-only device process
// obtained from an interfaces.Launcher and moves it through the
// Stopped → Starting → Running → Stopping → Stopped lifecycle.
//
//	rx, err := channel.New(launcher, channel.Config{
//	    Direction: interfaces.DirectionRX,
//	    BaudRate:  300,
//	})
//	if err := rx.Start(); err != nil {
//	    // errors.Is(err, interfaces.ErrDeviceUnavailable)
//	}
//	b, err := rx.Receive(1) // blocks until a byte arrives
//
// Start is idempotent. Stop asks the device to terminate, waits up to
// Config.StopTimeout for it to exit while its output drains, then kills it.
// Stop on a stopped channel does nothing.
//
// Receive blocks without a timeout and must run on a goroutine that is
// allowed to block. Send writes and flushes immediately.
package channel
