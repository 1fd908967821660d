// Package metrics records frame traffic on a modem link.
//
// The link reports through the [Recorder] interface. [Nop] discards
// everything and is the default; [NewPrometheus] exports counters and a
// frame-size histogram to a Prometheus registry:
//
//	reg := prometheus.NewRegistry()
//	opts := fskmodem.NewOptions()
//	opts.Metrics = metrics.NewPrometheus(reg)
//
// Discard reasons are stable labels: noise, truncated, abandoned, oversize,
// malformed and checksum from the frame extractor, plus undecodable for
// bytes dropped before framing. Noise and undecodable bytes are counted in
// bytes only; the other reasons also count a dropped frame.
package metrics
