// Package alsa maps a human-readable sound device description to the ALSA
// "card,device" identifier minimodem expects.
//
// USB sound adapters change card number between boots. Resolving by
// description keeps the configuration stable:
//
//	r := alsa.NewResolver()
//	dev, ok, err := r.Resolve("USB PnP", interfaces.DirectionRX)
//	// dev == "2,0" for a line such as
//	// card 2: Device [USB PnP Sound Device], device 0: USB Audio [USB Audio]
//
// Receive devices are listed with "arecord -l", transmit devices with
// "aplay -l".
package alsa
