package metrics

import (
	"backoffice-marketsync-layer/internal/domain"
	"backoffice-marketsync-layer/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements ports.MetricsRecorder on a Prometheus registry.
type Recorder struct {
	syncItems   *prometheus.CounterVec
	retryJobs   *prometheus.CounterVec
	deadLetters *prometheus.CounterVec
	queueDue    prometheus.Gauge
}

// NewRecorder registers the engine's collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		syncItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsync_sync_items_total",
			Help: "Item sync outcomes by provider.",
		}, []string{"provider", "outcome"}),
		retryJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsync_retry_jobs_processed_total",
			Help: "Retry jobs processed by kind and outcome.",
		}, []string{"kind", "outcome"}),
		deadLetters: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsync_dead_letters_total",
			Help: "Jobs moved to the dead-letter store by kind.",
		}, []string{"kind"}),
		queueDue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "marketsync_retry_queue_due",
			Help: "Jobs currently eligible to run.",
		}),
	}
}

func (r *Recorder) ItemSynced(provider domain.Provider, outcome string) {
	r.syncItems.WithLabelValues(string(provider), outcome).Inc()
}

func (r *Recorder) JobProcessed(kind string, outcome string) {
	r.retryJobs.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) DeadLettered(kind string) {
	r.deadLetters.WithLabelValues(kind).Inc()
}

func (r *Recorder) SetQueueDue(n int64) {
	r.queueDue.Set(float64(n))
}

var _ ports.MetricsRecorder = (*Recorder)(nil)
