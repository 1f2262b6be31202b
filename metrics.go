package chirp

import "github.com/prometheus/client_golang/prometheus"

// metrics instruments the facade. Every method tolerates a nil receiver so
// an uninstrumented Client pays nothing.
type metrics struct {
	ops       *prometheus.CounterVec
	failures  *prometheus.CounterVec
	bytesRead prometheus.Counter
	bytesSent prometheus.Counter
}

func newMetrics(r prometheus.Registerer) *metrics {
	if r == nil {
		return nil
	}
	m := &metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chirp_client_operations_total",
			Help: "Completed chirp operations by verb.",
		}, []string{"verb"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chirp_client_failures_total",
			Help: "Failed chirp operations by verb.",
		}, []string{"verb"}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chirp_client_received_bytes_total",
			Help: "Payload bytes received from the server.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chirp_client_sent_bytes_total",
			Help: "Payload bytes sent to the server.",
		}),
	}
	r.MustRegister(m.ops, m.failures, m.bytesRead, m.bytesSent)
	return m
}

func (m *metrics) observe(verb string, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(verb).Inc()
	if err != nil {
		m.failures.WithLabelValues(verb).Inc()
	}
}

func (m *metrics) addReceived(n int64) {
	if m == nil {
		return
	}
	m.bytesRead.Add(float64(n))
}

func (m *metrics) addSent(n int64) {
	if m == nil {
		return
	}
	m.bytesSent.Add(float64(n))
}
