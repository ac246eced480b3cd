package jobstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dwd/internal/logging"
	"dwd/internal/metrics"
)

var (
	// ErrJobNotFound indicates the job is not tracked.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotRetrying indicates the job is not waiting for a retry.
	ErrNotRetrying = errors.New("job is not retrying")
)

// ExhaustedKind is the failure kind recorded when the retry cap is reached.
const ExhaustedKind = "RetriesExhausted"

// RetryPolicy caps retries and spaces them out.
type RetryPolicy struct {
	// MaxRetries is the number of retries allowed; zero means unlimited.
	MaxRetries int
	Backoff    Strategy
}

// RetryDecision describes what a retry attempt did.
type RetryDecision struct {
	JobID string
	// Attempt is the retry count after the decision.
	Attempt   int
	Delay     time.Duration
	Exhausted bool
}

// RetryManager applies a RetryPolicy to jobs parked in StateRetrying.
type RetryManager struct {
	machine  *Machine
	policy   RetryPolicy
	logger   *slog.Logger
	recorder metrics.Recorder
	wait     func(ctx context.Context, d time.Duration) error
}

// RetryOption configures a RetryManager.
type RetryOption func(*RetryManager)

// WithRetryLogger sets the retry manager logger.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(r *RetryManager) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRetryRecorder sets the metrics recorder.
func WithRetryRecorder(rec metrics.Recorder) RetryOption {
	return func(r *RetryManager) { r.recorder = metrics.OrNoop(rec) }
}

// WithWaiter replaces the backoff wait, mainly for tests.
func WithWaiter(wait func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(r *RetryManager) {
		if wait != nil {
			r.wait = wait
		}
	}
}

// NewRetryManager wraps machine with policy. A nil Backoff retries immediately.
func NewRetryManager(machine *Machine, policy RetryPolicy, opts ...RetryOption) *RetryManager {
	if policy.Backoff == nil {
		policy.Backoff = ConstantBackoff{}
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	r := &RetryManager{
		machine:  machine,
		policy:   policy,
		logger:   logging.NewNop(),
		recorder: metrics.NoopRecorder{},
		wait:     sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logging.String(logging.FieldComponent, "retry"))
	return r
}

// Policy returns the configured policy.
func (r *RetryManager) Policy() RetryPolicy {
	return r.policy
}

// Retry re-queues a retrying job, or fails it when the cap is reached. The
// cap is checked under the job lock. The bool reports whether the machine
// accepted the resulting event.
func (r *RetryManager) Retry(id string) (RetryDecision, bool) {
	decision := RetryDecision{JobID: id}
	accepted := r.machine.Step(id, func(job Job) (Event, *Failure, bool) {
		if job.State != StateRetrying {
			return "", nil, false
		}
		decision.Attempt = job.RetryCount
		if !r.exhausted(job) {
			return EventRetry, nil, true
		}
		decision.Exhausted = true
		category := ""
		if job.LastError != nil {
			category = job.LastError.Category
		}
		return EventFail, &Failure{
			Kind:     ExhaustedKind,
			Message:  fmt.Sprintf("job %s failed after %d retries", id, job.RetryCount),
			Category: category,
			Details:  map[string]any{"retry_count": job.RetryCount, "max_retries": r.policy.MaxRetries},
		}, true
	})
	if !accepted {
		return decision, false
	}

	r.recorder.IncRetry(decision.Exhausted)
	if decision.Exhausted {
		r.logger.Warn("retries exhausted",
			logging.String(logging.FieldJobID, id),
			logging.Int(logging.FieldRetryCount, decision.Attempt),
		)
		return decision, true
	}
	decision.Attempt++
	return decision, true
}

// ScheduleRetry waits the backoff for the next attempt and then calls Retry.
// Jobs that already hit the cap fail without waiting.
func (r *RetryManager) ScheduleRetry(ctx context.Context, id string) (RetryDecision, error) {
	job, ok := r.machine.Job(id)
	if !ok {
		return RetryDecision{JobID: id}, ErrJobNotFound
	}
	if job.State != StateRetrying {
		return RetryDecision{JobID: id, Attempt: job.RetryCount}, fmt.Errorf("%w: %s is %s", ErrNotRetrying, id, job.State)
	}

	var delay time.Duration
	if !r.exhausted(job) {
		delay = r.policy.Backoff.Delay(job.RetryCount + 1)
		r.recorder.ObserveRetryDelay(delay)
		r.logger.Debug("retry scheduled",
			logging.String(logging.FieldJobID, id),
			logging.Duration("delay", delay),
			logging.Int(logging.FieldRetryCount, job.RetryCount),
		)
		if err := r.wait(ctx, delay); err != nil {
			return RetryDecision{JobID: id, Attempt: job.RetryCount, Delay: delay}, err
		}
	}

	decision, accepted := r.Retry(id)
	decision.Delay = delay
	if !accepted {
		return decision, fmt.Errorf("%w: %s changed state while waiting", ErrNotRetrying, id)
	}
	return decision, nil
}

func (r *RetryManager) exhausted(job Job) bool {
	return r.policy.MaxRetries > 0 && job.RetryCount >= r.policy.MaxRetries
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
