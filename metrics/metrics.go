package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives link traffic events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	FrameReceived(size int)
	FrameSent(size int)
	FrameDiscarded(reason string)
	BytesDiscarded(reason string, n int)
}

// Nop is a Recorder that does nothing.
type Nop struct{}

func (Nop) FrameReceived(int)          {}
func (Nop) FrameSent(int)              {}
func (Nop) FrameDiscarded(string)      {}
func (Nop) BytesDiscarded(string, int) {}

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	framesReceived  prometheus.Counter
	framesSent      prometheus.Counter
	framesDiscarded *prometheus.CounterVec
	bytesDiscarded  *prometheus.CounterVec
	frameSize       *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them with reg. A nil
// reg uses prometheus.DefaultRegisterer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prometheus{
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fskmodem_frames_received_total",
			Help: "Valid frames extracted from the receive stream.",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fskmodem_frames_sent_total",
			Help: "Frames written to the transmit channel.",
		}),
		framesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fskmodem_frames_discarded_total",
			Help: "Frame candidates dropped by reason.",
		}, []string{"reason"}),
		bytesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fskmodem_bytes_discarded_total",
			Help: "Bytes dropped from the receive buffer by reason.",
		}, []string{"reason"}),
		frameSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fskmodem_frame_size_bytes",
			Help:    "Payload size of sent and received frames.",
			Buckets: []float64{8, 16, 32, 64, 128, 256, 500, 1024},
		}, []string{"direction"}),
	}

	reg.MustRegister(p.framesReceived, p.framesSent, p.framesDiscarded, p.bytesDiscarded, p.frameSize)
	return p
}

func (p *Prometheus) FrameReceived(size int) {
	p.framesReceived.Inc()
	p.frameSize.WithLabelValues("rx").Observe(float64(size))
}

func (p *Prometheus) FrameSent(size int) {
	p.framesSent.Inc()
	p.frameSize.WithLabelValues("tx").Observe(float64(size))
}

func (p *Prometheus) FrameDiscarded(reason string) {
	p.framesDiscarded.WithLabelValues(reason).Inc()
}

func (p *Prometheus) BytesDiscarded(reason string, n int) {
	p.bytesDiscarded.WithLabelValues(reason).Add(float64(n))
}
