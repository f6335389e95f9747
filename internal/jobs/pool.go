package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Submit when the dispatch queue is at capacity.
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned by Submit after the pool has shut down.
var ErrStopped = errors.New("job pool is stopped")

// Pool dispatches jobs to a fixed set of workers. Submit never blocks;
// admission control happens before Submit via the processing flags, so a
// full queue is an overload signal, not a correctness problem.
type Pool struct {
	queue   chan Job
	workers int
	runner  *Runner
	log     *logrus.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(workers, queueSize int, runner *Runner, log *logrus.Logger) *Pool {
	return &Pool{
		queue:   make(chan Job, queueSize),
		workers: workers,
		runner:  runner,
		log:     log,
	}
}

// Start launches the workers. They drain the queue until Stop closes it.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			for job := range p.queue {
				queueDepth.Dec()
				p.runner.Run(ctx, job)
			}
		}(i)
	}
	p.log.WithField("workers", p.workers).Info("job pool started")
}

// Submit enqueues a job. The caller must already hold the project's
// processing flag for the job's kind and must release it if Submit fails.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- job:
		queueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop rejects new jobs, then waits for queued and running jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("job pool stopped")
}
