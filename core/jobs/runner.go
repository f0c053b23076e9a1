package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"DubFlow/logger"
	"DubFlow/metrics"
)

var (
	// ErrRunnerClosed is returned by Start after Shutdown has begun.
	ErrRunnerClosed = errors.New("job runner is shut down")
	// ErrDuplicateJob is returned when a job with the same id is still running.
	ErrDuplicateJob = errors.New("job already running")
	// ErrShutdown is the cancellation cause of jobs interrupted by Shutdown.
	ErrShutdown = errors.New("server shutting down")
)

// Func is the body of a job. It is called once a processing slot is held, or
// with an already-cancelled context if the job was cancelled while queued.
type Func func(ctx context.Context) error

// Job is the owning handle of one background task.
type Job struct {
	id      string
	ctx     context.Context
	cancel  context.CancelCauseFunc
	done    chan struct{}
	err     error
	created time.Time
}

func (j *Job) ID() string { return j.id }

// Done is closed when the job body has returned.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err is the job's result. Only meaningful after Done is closed.
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Cancel interrupts the job with cause, visible to the body through context.Cause.
func (j *Job) Cancel(cause error) {
	j.cancel(cause)
}

// Wait blocks until the job finishes or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner starts jobs on their own goroutines and optionally bounds how many run at once.
type Runner struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	sem     chan struct{} // nil when unbounded
	wg      sync.WaitGroup
	base    context.Context
	stopAll context.CancelCauseFunc
	closed  bool
}

// NewRunner creates a Runner. maxConcurrent <= 0 means unbounded.
func NewRunner(maxConcurrent int) *Runner {
	base, stop := context.WithCancelCause(context.Background())
	r := &Runner{
		jobs:    make(map[string]*Job),
		base:    base,
		stopAll: stop,
	}
	if maxConcurrent > 0 {
		r.sem = make(chan struct{}, maxConcurrent)
	}
	return r
}

// Start launches fn as job id and returns its handle immediately.
func (r *Runner) Start(id string, fn Func) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRunnerClosed
	}
	if _, exists := r.jobs[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, id)
	}

	ctx, cancel := context.WithCancelCause(r.base)
	job := &Job{
		id:      id,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		created: time.Now(),
	}
	r.jobs[id] = job
	r.wg.Add(1)
	go r.run(job, fn)
	return job, nil
}

func (r *Runner) run(job *Job, fn Func) {
	defer r.wg.Done()
	defer func() {
		job.cancel(nil)
		r.mu.Lock()
		delete(r.jobs, job.id)
		r.mu.Unlock()
		close(job.done)
	}()

	if r.acquire(job.ctx) {
		metrics.JobsInFlight.Inc()
		defer func() {
			metrics.JobsInFlight.Dec()
			r.release()
		}()
		logger.Debug("Job acquired processing slot",
			logger.String("jobId", job.id), logger.Duration("queued", time.Since(job.created)))
	}

	job.err = r.call(job, fn)
}

func (r *Runner) call(job *Job, fn Func) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Job panicked", logger.String("jobId", job.id), logger.Any("panic", p))
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return fn(job.ctx)
}

func (r *Runner) acquire(ctx context.Context) bool {
	if r.sem == nil {
		return ctx.Err() == nil
	}
	select {
	case r.sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Runner) release() {
	if r.sem != nil {
		<-r.sem
	}
}

// Get returns the running job with id.
func (r *Runner) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Cancel interrupts job id with cause. It reports false when no such job is running.
func (r *Runner) Cancel(id string, cause error) bool {
	job, ok := r.Get(id)
	if !ok {
		return false
	}
	job.Cancel(cause)
	return true
}

// Active is the number of jobs started and not yet finished, queued ones included.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Shutdown refuses new jobs and waits for running ones. When ctx expires the
// remaining jobs are cancelled with ErrShutdown and waited for once more.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		logger.Warn("Cancelling unfinished jobs", logger.Int("jobs", r.Active()))
		r.stopAll(ErrShutdown)
		<-finished
		return ctx.Err()
	}
}
