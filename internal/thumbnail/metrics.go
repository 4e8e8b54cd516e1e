package thumbnail

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	ResultHit         = "hit"
	ResultPassthrough = "passthrough"
	ResultGenerated   = "generated"
	ResultFailed      = "failed"
)

// Metrics records thumbnail cache activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  prometheus.Histogram
	coalesced prometheus.Counter
}

// NewMetrics registers the thumbnail metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thumbnail_requests_total",
		Help: "Thumbnail requests by outcome.",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "thumbnail_generation_seconds",
		Help:    "Time spent generating one thumbnail.",
		Buckets: prometheus.DefBuckets,
	})
	coalesced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "thumbnail_coalesced_total",
		Help: "Requests served by a generation started by another caller.",
	})
	reg.MustRegister(requests, duration, coalesced)
	return &Metrics{requests: requests, duration: duration, coalesced: coalesced}
}

func (m *Metrics) observeRequest(result string) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(result).Inc()
}

func (m *Metrics) observeDuration(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) incCoalesced() {
	if m == nil || m.coalesced == nil {
		return
	}
	m.coalesced.Inc()
}
