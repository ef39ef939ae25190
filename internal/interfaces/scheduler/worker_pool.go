package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer          = otel.Tracer("bankmirror/scheduler")
	jobMeter           = otel.Meter("bankmirror/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs dropped due to full queue"))
)

var (
	ErrQueueFull  = errors.New("job queue full")
	ErrPoolClosed = errors.New("worker pool is shut down")
)

// PoolConfig sizes a WorkerPool. A zero JobTimeout runs jobs without a
// deadline; they still stop when the pool shuts down.
type PoolConfig struct {
	Workers    int
	QueueSize  int
	JobDelay   time.Duration
	JobTimeout time.Duration
}

// WorkerPool runs submitted jobs on a fixed number of goroutines. Jobs run
// detached from whoever submitted them.
type WorkerPool struct {
	workerCount int
	jobDelay    time.Duration
	jobTimeout  time.Duration
	jobs        chan Job
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	logger      zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a pool. Workers start on Start.
func NewWorkerPool(cfg PoolConfig, logger zerolog.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.JobTimeout < 0 {
		cfg.JobTimeout = 0
	}

	return &WorkerPool{
		workerCount: cfg.Workers,
		jobDelay:    cfg.JobDelay,
		jobTimeout:  cfg.JobTimeout,
		jobs:        make(chan Job, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.With().Str("component", "worker_pool").Logger(),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	wp.logger.Info().Int("workers", wp.workerCount).Msg("Starting worker pool")

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().Int("worker", id).Msg("Worker shutting down")
			return

		case job, ok := <-wp.jobs:
			if !ok {
				wp.logger.Debug().Int("worker", id).Msg("Job channel closed")
				return
			}

			wp.processJob(id, job)

			if wp.jobDelay > 0 {
				select {
				case <-time.After(wp.jobDelay):
				case <-wp.ctx.Done():
					return
				}
			}
		}
	}
}

// processJob executes a single job inside a span and records its metrics.
// A panicking job is logged and does not take the worker down.
func (wp *WorkerPool) processJob(workerID int, job Job) {
	jobID := uuid.NewString()
	log := wp.logger.With().
		Int("worker", workerID).
		Str("job_id", jobID).
		Str("job", job.Description()).
		Str("subject", job.Subject()).
		Logger()

	ctx, cancel := wp.jobContext()
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.id", jobID),
			attribute.String("job.description", job.Description()),
			attribute.String("job.subject", job.Subject()),
		),
	)
	defer span.End()

	start := time.Now()
	err := runJob(ctx, job)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Dur("duration", elapsed).Msg("Job failed")
	} else {
		log.Info().Dur("duration", elapsed).Msg("Job completed")
	}
	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	jobDuration.Record(ctx, elapsed.Seconds())
}

func (wp *WorkerPool) jobContext() (context.Context, context.CancelFunc) {
	if wp.jobTimeout > 0 {
		return context.WithTimeout(wp.ctx, wp.jobTimeout)
	}
	return context.WithCancel(wp.ctx)
}

func runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return job.Execute(ctx)
}

// Submit queues a job without blocking. It returns ErrQueueFull when the
// queue has no room and ErrPoolClosed after shutdown.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return ErrPoolClosed
	}

	select {
	case wp.jobs <- job:
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1)
		wp.logger.Warn().Str("job", job.Description()).Str("subject", job.Subject()).Msg("Job queue full, dropping job")
		return ErrQueueFull
	}
}

// SubmitBatch queues jobs until the queue fills. It returns how many were accepted.
func (wp *WorkerPool) SubmitBatch(jobs []Job) int {
	submitted := 0
	for _, job := range jobs {
		if err := wp.Submit(job); err != nil {
			wp.logger.Warn().Err(err).Str("subject", job.Subject()).Msg("Failed to submit job")
			continue
		}
		submitted++
	}
	wp.logger.Info().Int("submitted", submitted).Int("total", len(jobs)).Msg("Submitted jobs to worker pool")
	return submitted
}

// Pending returns the number of queued jobs not yet picked up.
func (wp *WorkerPool) Pending() int {
	return len(wp.jobs)
}

func (wp *WorkerPool) close() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.closed {
		return false
	}
	wp.closed = true
	close(wp.jobs)
	return true
}

// Shutdown stops accepting jobs, lets workers drain the queue and waits
// for them to exit.
func (wp *WorkerPool) Shutdown() {
	wp.ShutdownWithTimeout(0)
}

// ShutdownWithTimeout is Shutdown bounded by timeout. When the timeout
// expires, running jobs are cancelled and queued ones are discarded. A
// zero timeout waits indefinitely.
func (wp *WorkerPool) ShutdownWithTimeout(timeout time.Duration) {
	if !wp.close() {
		return
	}
	wp.logger.Info().Dur("timeout", timeout).Msg("Worker pool shutting down")

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-done:
		wp.logger.Info().Msg("All workers finished")
	case <-expired:
		wp.logger.Warn().Msg("Shutdown timeout reached, cancelling running jobs")
		wp.cancel()
		<-done
	}
	wp.cancel()
}
