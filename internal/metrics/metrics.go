package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	MessagesIngested  prometheus.Counter
	BuyIntent         prometheus.Counter
	ArchiveInserts    prometheus.Counter
	ArchiveDuplicates prometheus.Counter
	ArchiveFailures   prometheus.Counter
	MessagesDeleted   prometheus.Counter
	PublishSkipped    *prometheus.CounterVec
	PublishSuccesses  prometheus.Counter
	PublishFailures   prometheus.Counter
	PublishRetries    prometheus.Counter
	Reactions         *prometheus.CounterVec
	EditsScheduled    prometheus.Counter
	EditsFlushed      prometheus.Counter
	EditFailures      prometheus.Counter
	PendingEdits      prometheus.Gauge
	ProcessingTime    prometheus.Histogram
	JobRuns           *prometheus.CounterVec
}

// NewMetrics creates new Prometheus metrics on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates the metrics on reg
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "wtb_relay_messages_ingested_total",
			Help: "Total number of source messages received",
		}),
		BuyIntent: f.NewCounter(prometheus.CounterOpts{
			Name: "wtb_relay_buy_intent_total",
			Help: "Total number of messages classified as buy intent",
		}),
		ArchiveInserts: f.NewCounter(prometheus.CounterOpts{
			Name: "wtb_relay_archive_inserts_total",
			Help: "Total number of messages archived as new listings",
		}),
		ArchiveDuplicates: f.NewCounter(prometheus.CounterOpts{
			Name: "wtb_relay_archive_duplicates_total",
			Help: "Total number of messages folded into an existing listing",
		}),
		ArchiveFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "wtb_relay_archive_failures_total",
			Help: "Total number of messages that could not be archived",
		}),
		MessagesDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "wtb_relay_messages_deleted_total",
			Help: "Total number of listings soft-deleted",
		}),
		PublishSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wtb_relay_publish_skipped_total",
			Help: "Total number of buy-intent listings not published, by reason",
		}, []string{"reason"}),
		PublishSuccesses: f.NewCounter(prometheus.CounterOpts{
			Name: "wtb_relay_publish_successes_total",
			Help: "Total number of successful deliveries to a destination",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "wtb_relay_publish_failures_total",
			Help: "Total number of deliveries that failed after retries",
		}),
		PublishRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "wtb_relay_publish_retries_total",
			Help: "Total number of sink call retries",
		}),
		Reactions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wtb_relay_reactions_total",
			Help: "Total number of reaction toggles, by result",
		}, []string{"result"}),
		EditsScheduled: f.NewCounter(prometheus.CounterOpts{
			Name: "wtb_relay_edits_scheduled_total",
			Help: "Total number of post updates requested",
		}),
		EditsFlushed: f.NewCounter(prometheus.CounterOpts{
			Name: "wtb_relay_edits_flushed_total",
			Help: "Total number of coalesced post edits sent",
		}),
		EditFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "wtb_relay_edit_failures_total",
			Help: "Total number of coalesced post edits that failed",
		}),
		PendingEdits: f.NewGauge(prometheus.GaugeOpts{
			Name: "wtb_relay_pending_edits",
			Help: "Number of posts with an edit waiting in the coalescing window",
		}),
		ProcessingTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "wtb_relay_processing_duration_seconds",
			Help:    "Time spent processing one inbound message",
			Buckets: prometheus.DefBuckets,
		}),
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wtb_relay_job_runs_total",
			Help: "Total number of scheduled job runs, by job and status",
		}, []string{"job", "status"}),
	}
}
