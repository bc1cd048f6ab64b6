package session

import (
	"sync"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	namespace  = "conclave"
	subsystem  = "session"
	labelBoard = "board"
)

// Metrics are the counters updated by sessions. Every metric is labelled
// with the board name.
type Metrics struct {
	Steps           metrics.Counter
	MessagesSent    metrics.Counter
	TransportErrors metrics.Counter
	Faults          metrics.Counter
	Phase           metrics.Gauge
}

var (
	promOnce    sync.Once
	promMetrics *Metrics
)

// PromMetrics returns the metrics registered with the default prometheus
// registry. They are registered on the first call.
func PromMetrics() *Metrics {
	promOnce.Do(func() {
		promMetrics = &Metrics{
			Steps: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "steps_total",
				Help:      "Number of successful steps.",
			}, []string{labelBoard}),
			MessagesSent: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "messages_sent_total",
				Help:      "Number of messages posted to the board.",
			}, []string{labelBoard}),
			TransportErrors: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transport_errors_total",
				Help:      "Number of failed board requests.",
			}, []string{labelBoard}),
			Faults: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "faults_total",
				Help:      "Number of cryptographic faults raised.",
			}, []string{labelBoard}),
			Phase: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "phase",
				Help:      "Current phase of the trustee.",
			}, []string{labelBoard}),
		}
	})
	return promMetrics
}

// NopMetrics returns metrics that are not recorded.
func NopMetrics() *Metrics {
	return &Metrics{
		Steps:           discard.NewCounter(),
		MessagesSent:    discard.NewCounter(),
		TransportErrors: discard.NewCounter(),
		Faults:          discard.NewCounter(),
		Phase:           discard.NewGauge(),
	}
}

// boardMetrics are the metrics of one board.
type boardMetrics struct {
	steps           metrics.Counter
	messagesSent    metrics.Counter
	transportErrors metrics.Counter
	faults          metrics.Counter
	phase           metrics.Gauge
}

func (m *Metrics) forBoard(name string) *boardMetrics {
	return &boardMetrics{
		steps:           m.Steps.With(labelBoard, name),
		messagesSent:    m.MessagesSent.With(labelBoard, name),
		transportErrors: m.TransportErrors.With(labelBoard, name),
		faults:          m.Faults.With(labelBoard, name),
		phase:           m.Phase.With(labelBoard, name),
	}
}
