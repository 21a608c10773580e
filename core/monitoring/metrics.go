package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes worker metrics for Prometheus. All methods are safe on a
// nil receiver so tests can run without a registry.
type Collector struct {
	jobsStarted   prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
	jobsCancelled prometheus.Counter
	jobsInFlight  prometheus.Gauge
	jobDuration   prometheus.Histogram
	epochDuration prometheus.Histogram
}

// NewCollector registers the worker metrics with the default registry
func NewCollector() *Collector {
	c := &Collector{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "training_jobs_started_total",
			Help: "Total number of training jobs picked up from the queue",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "training_jobs_completed_total",
			Help: "Total number of training jobs completed successfully",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "training_jobs_failed_total",
			Help: "Total number of training jobs that failed",
		}),
		jobsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "training_jobs_cancelled_total",
			Help: "Total number of training jobs cancelled by an external actor",
		}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "training_jobs_in_flight",
			Help: "Number of jobs currently being processed (0 or 1)",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_job_duration_seconds",
			Help:    "Wall-clock duration of one job from dequeue to outcome",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		epochDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_epoch_duration_seconds",
			Help:    "Duration of one training epoch",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}

	prometheus.MustRegister(
		c.jobsStarted,
		c.jobsCompleted,
		c.jobsFailed,
		c.jobsCancelled,
		c.jobsInFlight,
		c.jobDuration,
		c.epochDuration,
	)

	return c
}

// JobStarted records a job entering processing
func (c *Collector) JobStarted() {
	if c == nil {
		return
	}
	c.jobsStarted.Inc()
	c.jobsInFlight.Inc()
}

// JobFinished records a job leaving processing, whatever the outcome
func (c *Collector) JobFinished(d time.Duration) {
	if c == nil {
		return
	}
	c.jobsInFlight.Dec()
	c.jobDuration.Observe(d.Seconds())
}

// JobCompleted counts one successful job
func (c *Collector) JobCompleted() {
	if c == nil {
		return
	}
	c.jobsCompleted.Inc()
}

// JobFailed counts one failed job
func (c *Collector) JobFailed() {
	if c == nil {
		return
	}
	c.jobsFailed.Inc()
}

// JobCancelled counts one externally cancelled job
func (c *Collector) JobCancelled() {
	if c == nil {
		return
	}
	c.jobsCancelled.Inc()
}

// EpochCompleted records the duration of one finished epoch
func (c *Collector) EpochCompleted(d time.Duration) {
	if c == nil {
		return
	}
	c.epochDuration.Observe(d.Seconds())
}
