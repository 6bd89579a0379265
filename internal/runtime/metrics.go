package runtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BrokerMetrics exposes broker activity as Prometheus collectors. A nil
// *BrokerMetrics records nothing.
type BrokerMetrics struct {
	mu sync.Mutex

	receivedTotal    *prometheus.CounterVec
	skippedTotal     *prometheus.CounterVec
	processedTotal   *prometheus.CounterVec
	deletedTotal     *prometheus.CounterVec
	repliesTotal     *prometheus.CounterVec
	versionMismatch  *prometheus.CounterVec
	fetchCyclesTotal *prometheus.CounterVec
	durationHist     *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

func newBrokerCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qbroker",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewBrokerMetrics creates the collectors. Call Register before use.
func NewBrokerMetrics(registerer prometheus.Registerer) *BrokerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &BrokerMetrics{
		registerer:       registerer,
		receivedTotal:    newBrokerCounterVec("messages_received_total", "Total number of messages received from the queue", []string{"queue"}),
		skippedTotal:     newBrokerCounterVec("messages_skipped_total", "Messages skipped before dispatch", []string{"reason"}),
		processedTotal:   newBrokerCounterVec("messages_processed_total", "Dispatched messages by lifecycle outcome", []string{"message_name", "outcome"}),
		deletedTotal:     newBrokerCounterVec("messages_deleted_total", "Messages deleted from the queue", []string{"queue"}),
		repliesTotal:     newBrokerCounterVec("replies_sent_total", "Reply messages sent by processors", []string{"message_name"}),
		versionMismatch:  newBrokerCounterVec("version_mismatches_total", "Messages whose producer version differs from the library version", []string{"relation"}),
		fetchCyclesTotal: newBrokerCounterVec("fetch_cycles_total", "Completed fetch calls by result", []string{"result"}),
		durationHist: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "qbroker",
				Name:      "message_duration_seconds",
				Help:      "Time spent in the processor lifecycle per message",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"message_name", "outcome"},
		),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *BrokerMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.receivedTotal,
		m.skippedTotal,
		m.processedTotal,
		m.deletedTotal,
		m.repliesTotal,
		m.versionMismatch,
		m.fetchCyclesTotal,
		m.durationHist,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// Handler serves the metrics gathered by the registerer passed to
// NewBrokerMetrics, or the default gatherer when it cannot gather.
func (m *BrokerMetrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if g, ok := m.registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *BrokerMetrics) recordReceived(queue string, n int) {
	if m == nil {
		return
	}
	m.receivedTotal.WithLabelValues(queue).Add(float64(n))
}

func (m *BrokerMetrics) recordSkipped(reason string) {
	if m == nil {
		return
	}
	m.skippedTotal.WithLabelValues(reason).Inc()
}

func (m *BrokerMetrics) recordProcessed(name string, outcome Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.processedTotal.WithLabelValues(name, string(outcome)).Inc()
	m.durationHist.WithLabelValues(name, string(outcome)).Observe(d.Seconds())
}

func (m *BrokerMetrics) recordDeleted(queue string) {
	if m == nil {
		return
	}
	m.deletedTotal.WithLabelValues(queue).Inc()
}

func (m *BrokerMetrics) recordReply(name string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(name).Inc()
}

func (m *BrokerMetrics) recordVersionMismatch(relation string) {
	if m == nil {
		return
	}
	m.versionMismatch.WithLabelValues(relation).Inc()
}

func (m *BrokerMetrics) recordFetch(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetchCyclesTotal.WithLabelValues(result).Inc()
}
