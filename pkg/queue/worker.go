package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/internal/models"
)

// JobHandler is a function that processes one webhook job
type JobHandler func(ctx context.Context, job *models.WebhookJob) error

// WorkerPool manages a pool of worker goroutines that drain a JobQueue
type WorkerPool struct {
	queue      *JobQueue
	workers    int
	handler    JobHandler
	jobTimeout time.Duration
	logger     *logrus.Logger
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
	inFlight   int64 // atomic counter for in-flight jobs
	processed  int64
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queue *JobQueue, workers int, jobTimeout time.Duration, handler JobHandler, logger *logrus.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:      queue,
		workers:    workers,
		handler:    handler,
		jobTimeout: jobTimeout,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts all worker goroutines
func (wp *WorkerPool) Start() {
	wp.logger.WithFields(logrus.Fields{
		"workers": wp.workers,
	}).Info("Starting worker pool")

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop waits for the workers to drain the closed queue. When the timeout
// expires first, in-flight jobs are cancelled and an error is returned.
func (wp *WorkerPool) Stop(timeout time.Duration) error {
	var stopErr error

	wp.stopOnce.Do(func() {
		wp.logger.Info("Stopping worker pool")

		done := make(chan struct{})
		go func() {
			wp.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			wp.logger.Info("All workers stopped gracefully")
		case <-time.After(timeout):
			stopErr = fmt.Errorf("worker pool shutdown timeout after %v", timeout)
			wp.logger.WithField("in_flight", atomic.LoadInt64(&wp.inFlight)).
				Warn("Worker pool shutdown timeout, cancelling in-flight jobs")
		}

		wp.cancel()
	})

	return stopErr
}

// worker is a goroutine that processes jobs until the queue is closed and drained
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	workerLogger := wp.logger.WithField("worker_id", id)
	workerLogger.Debug("Worker started")

	for {
		job, err := wp.queue.Dequeue(wp.ctx)
		if err != nil {
			workerLogger.WithError(err).Debug("Worker stopping")
			return
		}

		wp.process(workerLogger, job)
	}
}

// process handles a single job with timeout and panic recovery
func (wp *WorkerPool) process(logger *logrus.Entry, job *models.WebhookJob) {
	atomic.AddInt64(&wp.inFlight, 1)
	defer atomic.AddInt64(&wp.inFlight, -1)
	defer atomic.AddInt64(&wp.processed, 1)

	jobLogger := logger.WithFields(logrus.Fields{
		"delivery_id": job.DeliveryID,
		"event":       job.EventType,
		"repository":  job.Repository,
	})

	// Recover from panics in the job handler
	defer func() {
		if r := recover(); r != nil {
			jobLogger.WithField("panic", r).Error("Worker panic recovered")
		}
	}()

	jobLogger.WithField("queued_for", time.Since(job.QueuedAt)).Debug("Processing webhook job")

	ctx, cancel := context.WithTimeout(wp.ctx, wp.jobTimeout)
	defer cancel()

	if err := wp.handler(ctx, job); err != nil {
		jobLogger.WithError(err).Error("Webhook job failed")
	}
}

// Stats returns worker pool statistics
func (wp *WorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		Workers:    wp.workers,
		InFlight:   int(atomic.LoadInt64(&wp.inFlight)),
		Processed:  int(atomic.LoadInt64(&wp.processed)),
		QueueDepth: wp.queue.Depth(),
	}
}

// WorkerPoolStats represents worker pool statistics
type WorkerPoolStats struct {
	Workers    int
	InFlight   int
	Processed  int
	QueueDepth int
}
