package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"videoserver/internal/registry"
)

// Runner executes a job with bounded retry and a rollback branch. The
// processing flag is released as the final step no matter what happened
// in between.
type Runner struct {
	registry   registry.Registry
	maxRetries int
	backoff    time.Duration
	log        *logrus.Logger
}

func NewRunner(reg registry.Registry, maxRetries int, backoff time.Duration, log *logrus.Logger) *Runner {
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Runner{registry: reg, maxRetries: maxRetries, backoff: backoff, log: log}
}

func (r *Runner) Run(ctx context.Context, job Job) {
	started := time.Now()
	fields := logrus.Fields{"project_id": job.ProjectID(), "kind": job.Kind()}

	err := r.execute(ctx, job)
	result := "success"
	if err != nil {
		result = "rolled_back"
		r.log.WithError(err).WithFields(fields).Error("job failed, rolling back")
		if rbErr := job.Rollback(ctx); rbErr != nil {
			r.log.WithError(rbErr).WithFields(fields).Error("job rollback failed")
		}
	}

	// The flag must never stay true as the job's final state. Release with
	// a fresh context so a cancelled job still clears it.
	releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if relErr := r.registry.ReleaseProcessing(releaseCtx, job.ProjectID(), job.Kind()); relErr != nil {
		r.log.WithError(relErr).WithFields(fields).Error("failed to release processing flag")
	}

	jobsTotal.WithLabelValues(string(job.Kind()), result).Inc()
	jobDuration.WithLabelValues(string(job.Kind())).Observe(time.Since(started).Seconds())
	if err == nil {
		r.log.WithFields(fields).WithField("duration", time.Since(started)).Info("job completed")
	}
}

func (r *Runner) execute(ctx context.Context, job Job) error {
	delay := r.backoff
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			jobRetries.WithLabelValues(string(job.Kind())).Inc()
			r.log.WithFields(logrus.Fields{
				"project_id": job.ProjectID(),
				"kind":       job.Kind(),
				"attempt":    attempt,
				"delay":      delay,
			}).Warn("retrying job")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		if err = job.Execute(ctx); err == nil {
			return nil
		}
	}
	return err
}
