package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ghnotify/github-render-webhook/internal/models"
	"github.com/ghnotify/github-render-webhook/pkg/metrics"
)

var (
	// ErrQueueFull is returned when a job cannot be queued without blocking
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned once shutdown has closed the queue
	ErrQueueClosed = errors.New("queue is closed")
)

// JobQueue represents an in-memory queue of verified webhook deliveries
type JobQueue struct {
	queue    chan *models.WebhookJob
	capacity int
	depth    int64 // atomic counter for current queue depth
	logger   *logrus.Logger
	mu       sync.RWMutex
	closed   bool
}

// NewJobQueue creates a new job queue with the specified capacity
func NewJobQueue(capacity int, logger *logrus.Logger) *JobQueue {
	return &JobQueue{
		queue:    make(chan *models.WebhookJob, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

// Enqueue adds a job to the queue without blocking.
// Returns ErrQueueFull or ErrQueueClosed when the job was not accepted.
func (q *JobQueue) Enqueue(ctx context.Context, job *models.WebhookJob) error {
	// The read lock keeps Close from closing the channel under the send
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	job.QueuedAt = time.Now()

	select {
	case q.queue <- job:
		depth := atomic.AddInt64(&q.depth, 1)
		metrics.SetQueueDepth(int(depth))
		q.logger.WithFields(logrus.Fields{
			"delivery_id": job.DeliveryID,
			"event":       job.EventType,
			"queue_depth": depth,
		}).Debug("Webhook job enqueued")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue cancelled: %w", ctx.Err())
	default:
		return fmt.Errorf("%w (capacity: %d)", ErrQueueFull, q.capacity)
	}
}

// Dequeue removes and returns a job from the queue (FIFO).
// Blocks until a job is available, the queue is closed and drained, or ctx is cancelled.
func (q *JobQueue) Dequeue(ctx context.Context) (*models.WebhookJob, error) {
	select {
	case job, ok := <-q.queue:
		if !ok {
			return nil, ErrQueueClosed
		}
		depth := atomic.AddInt64(&q.depth, -1)
		metrics.SetQueueDepth(int(depth))
		return job, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("dequeue cancelled: %w", ctx.Err())
	}
}

// Depth returns the current number of items in the queue
func (q *JobQueue) Depth() int {
	return int(atomic.LoadInt64(&q.depth))
}

// Capacity returns the maximum capacity of the queue
func (q *JobQueue) Capacity() int {
	return q.capacity
}

// Close closes the queue, preventing new enqueues.
// Existing items remain in the queue for processing.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.queue)
		q.logger.Info("Job queue closed")
	}
}

// IsClosed returns true if the queue has been closed
func (q *JobQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Stats returns queue statistics
func (q *JobQueue) Stats() QueueStats {
	depth := q.Depth()
	return QueueStats{
		Depth:       depth,
		Capacity:    q.capacity,
		Utilization: float64(depth) / float64(q.capacity) * 100,
		IsFull:      depth >= q.capacity,
		IsEmpty:     depth == 0,
	}
}

// QueueStats represents queue statistics
type QueueStats struct {
	Depth       int
	Capacity    int
	Utilization float64 // Percentage (0-100)
	IsFull      bool
	IsEmpty     bool
}
