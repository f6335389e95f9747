package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videoserver_jobs_total",
		Help: "Background jobs finished, by kind and result.",
	}, []string{"kind", "result"})

	jobRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videoserver_job_retries_total",
		Help: "Job attempts that failed and were retried, by kind.",
	}, []string{"kind"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "videoserver_job_duration_seconds",
		Help:    "Wall time per job from dequeue to flag release.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"kind"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "videoserver_job_queue_depth",
		Help: "Jobs waiting in the dispatch queue.",
	})
)
