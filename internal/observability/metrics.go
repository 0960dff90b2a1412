package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Commands             *prometheus.CounterVec
	ActiveIntakeSessions prometheus.Gauge
	IntakeSessions       *prometheus.CounterVec
	RemindersSent        *prometheus.CounterVec
	NotifyErrors         *prometheus.CounterVec
	StoreErrors          *prometheus.CounterVec
	SweepDuration        prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Commands: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Inbound chat commands by kind.",
		}, []string{"command"}),
		ActiveIntakeSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_intake_sessions",
			Help:      "Number of open guided task-creation sessions.",
		}),
		IntakeSessions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_sessions_total",
			Help:      "Finished intake sessions by outcome.",
		}, []string{"outcome"}),
		RemindersSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Reminder decisions fired by deadline bucket.",
		}, []string{"bucket"}),
		NotifyErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_errors_total",
			Help:      "Per-recipient delivery failures by stage.",
		}, []string{"stage"}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store faults by operation.",
		}, []string{"op"}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one reminder sweep over candidate tasks.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
	}
}

func (m *Metrics) ObserveSweepDuration(d time.Duration) {
	m.SweepDuration.Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
