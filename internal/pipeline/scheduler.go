package pipeline

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"pdf-layout-server/internal/domain"
)

const (
	defaultQueueSize  = 256
	defaultMaxRetries = 2
	defaultBackoff    = 500 * time.Millisecond
	maxBackoff        = 30 * time.Second
)

// PageTask is one unit of page work dispatched to the pool. Ctx is the
// owning job's context; cancelling it stops the task at its next stage
// checkpoint.
type PageTask struct {
	Ctx      context.Context
	JobID    string
	Document *domain.Document
	Page     *domain.Page
	Reporter TransitionReporter
}

// Executor runs page tasks. Execute returns an error for the scheduler's
// retry classification; Abort marks a task terminally failed once retries
// are exhausted (or were never applicable).
type Executor interface {
	Execute(ctx context.Context, task PageTask) error
	Abort(ctx context.Context, task PageTask, cause error)
}

// Scheduler is a bounded-concurrency executor for page tasks. Enqueue
// blocks under backpressure up to a caller timeout; transient task failures
// are retried with exponential backoff in the worker's slot.
type Scheduler struct {
	exec   Executor
	logger domain.Logger

	workers    int
	maxRetries int
	backoff    time.Duration

	tasks chan PageTask
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.Mutex
	closed bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithWorkers sets the number of concurrently-running page tasks.
func WithWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithQueueSize sets the pending-task queue capacity.
func WithQueueSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.tasks = make(chan PageTask, n)
		}
	}
}

// WithMaxRetries sets how many times a transiently-failing task is retried.
func WithMaxRetries(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithRetryBackoff sets the base delay of the exponential retry backoff.
func WithRetryBackoff(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// NewScheduler creates the pool and starts its workers.
func NewScheduler(exec Executor, logger domain.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		exec:       exec,
		logger:     logger,
		workers:    runtime.NumCPU(),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		tasks:      make(chan PageTask, defaultQueueSize),
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.start()
	return s
}

func (s *Scheduler) start() {
	s.once.Do(func() {
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go func(workerID int) {
				defer s.wg.Done()
				s.logger.Debug("page worker started", "worker_id", workerID)
				defer s.logger.Debug("page worker stopped", "worker_id", workerID)
				for {
					select {
					case task := <-s.tasks:
						s.runTask(task)
					case <-s.done:
						// Drain what is already queued, then exit.
						for {
							select {
							case task := <-s.tasks:
								s.runTask(task)
							default:
								return
							}
						}
					}
				}
			}(i + 1)
		}
	})
}

// Enqueue submits a page task, blocking while the queue is full. It fails
// with ErrQueueTimeout once the timeout elapses, or with the context error
// if the caller gives up first.
func (s *Scheduler) Enqueue(ctx context.Context, task PageTask, timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSchedulerClosed
	}
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// The tasks channel is never closed, so a send blocked here while
	// Shutdown runs cannot panic; it unblocks on the done channel instead.
	select {
	case s.tasks <- task:
		return nil
	case <-s.done:
		return domain.ErrSchedulerClosed
	case <-timer.C:
		return domain.ErrQueueTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runTask(task PageTask) {
	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	// Cancellation checkpoint before any work starts: pages whose job was
	// cancelled while they sat in the queue never begin processing.
	if ctx.Err() != nil {
		s.exec.Abort(context.Background(), task, domain.ErrCancelled)
		return
	}

	for attempt := 0; ; attempt++ {
		err := s.exec.Execute(ctx, task)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			s.exec.Abort(context.Background(), task, domain.ErrCancelled)
			return
		}
		if !domain.IsTransient(err) || attempt >= s.maxRetries {
			s.exec.Abort(context.Background(), task, err)
			return
		}

		delay := s.retryDelay(attempt)
		s.logger.Warn("page task failed, retrying",
			"document_id", task.Document.ID, "page_index", task.Page.Index,
			"attempt", attempt+1, "max_retries", s.maxRetries, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			s.exec.Abort(context.Background(), task, domain.ErrCancelled)
			return
		case <-time.After(delay):
		}
	}
}

func (s *Scheduler) retryDelay(attempt int) time.Duration {
	d := float64(s.backoff) * math.Pow(2, float64(attempt))
	if d > float64(maxBackoff) {
		d = float64(maxBackoff)
	}
	return time.Duration(d)
}

// Shutdown stops accepting tasks and waits for in-flight work to finish or
// the context to expire.
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() { defer close(drained); s.wg.Wait() }()

	select {
	case <-ctx.Done():
		s.logger.Warn("scheduler shutdown interrupted by context")
	case <-drained:
		s.logger.Info("scheduler drained, shutdown complete")
	}
}
