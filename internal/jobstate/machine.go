package jobstate

import (
	"hash/fnv"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dwd/internal/errorhandling"
	"dwd/internal/logging"
	"dwd/internal/metrics"
)

const (
	defaultShards       = 32
	defaultHistoryLimit = 32
	defaultFailureKind  = "JobFailure"
)

type entry struct {
	mu      sync.Mutex
	job     Job
	removed bool
}

type shard struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

// Machine owns every job and applies lifecycle events.
type Machine struct {
	shards       []shard
	classifier   *errorhandling.Classifier
	handler      errorhandling.Handler
	observers    []Observer
	snapshots    []func(Job)
	onRemove     []func(id string)
	logger       *slog.Logger
	recorder     metrics.Recorder
	historyLimit int
	now          func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithClassifier sets the retry classifier. When unset the error handler's
// classifier is used if it has one, otherwise errorhandling.DefaultClassifier.
func WithClassifier(c *errorhandling.Classifier) Option {
	return func(m *Machine) { m.classifier = c }
}

// WithErrorHandler records each failure through h.
func WithErrorHandler(h errorhandling.Handler) Option {
	return func(m *Machine) { m.handler = h }
}

// WithObserver adds a transition observer. Observers run in the order added.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// WithSnapshotHook passes fn the full job, without history, after creation
// and after every accepted transition. Like observers it runs under the job
// lock and must not send events to that job. Restored jobs are not reported.
func WithSnapshotHook(fn func(Job)) Option {
	return func(m *Machine) {
		if fn != nil {
			m.snapshots = append(m.snapshots, fn)
		}
	}
}

// WithRemovalHook runs fn after a job is removed.
func WithRemovalHook(fn func(id string)) Option {
	return func(m *Machine) {
		if fn != nil {
			m.onRemove = append(m.onRemove, fn)
		}
	}
}

// WithLogger sets the machine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Machine) { m.recorder = metrics.OrNoop(r) }
}

// WithHistoryLimit bounds the transitions kept per job. Zero disables history.
func WithHistoryLimit(n int) Option {
	return func(m *Machine) {
		if n < 0 {
			n = 0
		}
		m.historyLimit = n
	}
}

// WithShards sets the number of lock shards.
func WithShards(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.shards = make([]shard, n)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// New returns an empty machine.
func New(opts ...Option) *Machine {
	m := &Machine{
		shards:       make([]shard, defaultShards),
		logger:       logging.NewNop(),
		recorder:     metrics.NoopRecorder{},
		historyLimit: defaultHistoryLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	for i := range m.shards {
		m.shards[i].jobs = make(map[string]*entry)
	}
	if m.classifier == nil {
		if c, ok := m.handler.(errorhandling.Classifying); ok {
			m.classifier = c.Classifier()
		} else {
			m.classifier = errorhandling.DefaultClassifier()
		}
	}
	m.logger = m.logger.With(logging.String(logging.FieldComponent, "jobstate"))
	return m
}

// CreateJob inserts a job in StateCreated. It returns false for an empty or
// already tracked id. Metadata is copied.
func (m *Machine) CreateJob(id string, metadata map[string]any) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	now := m.now()
	e := &entry{job: Job{
		ID:        id,
		State:     StateCreated,
		Metadata:  maps.Clone(metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}}
	// Held across insert so no event can reach the job before its snapshot.
	e.mu.Lock()
	defer e.mu.Unlock()
	if !m.insert(e) {
		return false
	}
	m.publishSnapshot(e.job)
	return true
}

// NewJob creates a job under a generated id and returns the id.
func (m *Machine) NewJob(metadata map[string]any) string {
	for {
		id := uuid.NewString()
		if m.CreateJob(id, metadata) {
			return id
		}
	}
}

// Restore inserts a previously captured snapshot. It returns false when the
// id is empty or taken, or the state is not a declared state.
func (m *Machine) Restore(job Job) bool {
	if strings.TrimSpace(job.ID) == "" || !job.State.Valid() {
		return false
	}
	job = job.clone()
	if m.historyLimit == 0 {
		job.History = nil
	} else if overflow := len(job.History) - m.historyLimit; overflow > 0 {
		job.History = job.History[overflow:]
	}
	return m.insert(&entry{job: job})
}

func (m *Machine) insert(e *entry) bool {
	sh := m.shardFor(e.job.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.jobs[e.job.ID]; exists {
		return false
	}
	sh.jobs[e.job.ID] = e
	m.logger.Debug("job tracked",
		logging.String(logging.FieldJobID, e.job.ID),
		logging.String(logging.FieldToState, string(e.job.State)),
	)
	return true
}

// State returns the current state of id.
func (m *Machine) State(id string) (State, bool) {
	e := m.lookup(id)
	if e == nil {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return "", false
	}
	return e.job.State, true
}

// Job returns a snapshot of id.
func (m *Machine) Job(id string) (Job, bool) {
	e := m.lookup(id)
	if e == nil {
		return Job{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Job{}, false
	}
	return e.job.clone(), true
}

// Jobs returns snapshots of every job ordered by creation time.
func (m *Machine) Jobs() []Job {
	var entries []*entry
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		for _, e := range sh.jobs {
			entries = append(entries, e)
		}
		sh.mu.RUnlock()
	}
	jobs := make([]Job, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			jobs = append(jobs, e.job.clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

// Counts returns the number of jobs in each state.
func (m *Machine) Counts() map[State]int {
	counts := make(map[State]int)
	for _, job := range m.Jobs() {
		counts[job.State]++
	}
	return counts
}

// Remove forgets id. Removing an unknown id is a no-op.
func (m *Machine) Remove(id string) {
	sh := m.shardFor(id)
	sh.mu.Lock()
	e, ok := sh.jobs[id]
	if ok {
		delete(sh.jobs, id)
	}
	sh.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	m.logger.Debug("job removed", logging.String(logging.FieldJobID, id))
	for _, fn := range m.onRemove {
		fn(id)
	}
}

// SendEvent applies event to id and reports whether a transition happened.
// A fail sent this way carries no detail and classifies as unknown unless a
// custom classifier says otherwise.
func (m *Machine) SendEvent(id string, event Event) bool {
	if event == EventFail {
		return m.Fail(id, Failure{})
	}
	return m.apply(id, event, nil)
}

// Fail applies a fail event carrying failure detail. From an active state the
// failure's classification picks StateRetrying or StateFailed; from
// StateRetrying the job always fails.
func (m *Machine) Fail(id string, failure Failure) bool {
	return m.apply(id, EventFail, &failure)
}

// Step lets choose pick the event from the job as it stands under the job
// lock, so the decision and the transition cannot be separated by another
// event. choose returns false to leave the job alone; a non-nil failure is
// used when the chosen event is EventFail. Step reports whether a transition
// happened.
func (m *Machine) Step(id string, choose func(Job) (Event, *Failure, bool)) bool {
	e := m.lookup(id)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return false
	}
	event, failure, ok := choose(e.job.clone())
	if !ok {
		return false
	}
	if event == EventFail && failure == nil {
		failure = &Failure{}
	}
	return m.applyLocked(e, id, event, failure)
}

func (m *Machine) apply(id string, event Event, failure *Failure) bool {
	e := m.lookup(id)
	if e == nil {
		m.logger.Debug("event for unknown job",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldEvent, string(event)),
		)
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return false
	}
	return m.applyLocked(e, id, event, failure)
}

func (m *Machine) applyLocked(e *entry, id string, event Event, failure *Failure) bool {
	from := e.job.State
	to, ok := nextState(from, event)
	if !ok {
		m.recorder.IncRejectedTransition(string(from), string(event))
		m.logger.Debug("transition rejected",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldFromState, string(from)),
			logging.String(logging.FieldEvent, string(event)),
		)
		return false
	}

	now := m.now()
	switch event {
	case EventFail:
		ref := m.recordFailure(id, *failure, now)
		e.job.LastError = &ref
		if from != StateRetrying && ref.RetryType.Retryable() {
			to = StateRetrying
		}
	case EventRetry:
		e.job.RetryCount++
	}

	e.job.State = to
	e.job.UpdatedAt = now
	t := Transition{
		JobID:      id,
		From:       from,
		To:         to,
		Event:      event,
		At:         now,
		RetryCount: e.job.RetryCount,
	}
	if m.historyLimit > 0 {
		e.job.History = append(e.job.History, t)
		if overflow := len(e.job.History) - m.historyLimit; overflow > 0 {
			e.job.History = append([]Transition(nil), e.job.History[overflow:]...)
		}
	}

	m.recorder.IncTransition(string(from), string(to), string(event))
	m.logger.Info("job transition",
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldFromState, string(from)),
		logging.String(logging.FieldToState, string(to)),
		logging.String(logging.FieldEvent, string(event)),
		logging.Int(logging.FieldRetryCount, e.job.RetryCount),
	)
	m.publishSnapshot(e.job)
	for _, observe := range m.observers {
		m.publish(observe, t)
	}
	return true
}

func (m *Machine) recordFailure(id string, failure Failure, at time.Time) ErrorRef {
	kind := strings.TrimSpace(failure.Kind)
	if kind == "" {
		kind = defaultFailureKind
	}
	category := strings.TrimSpace(failure.Category)
	if category == "" {
		category = errorhandling.DefaultCategory
	}
	details := maps.Clone(failure.Details)
	if details == nil {
		details = make(map[string]any, 1)
	}
	details["job_id"] = id

	ref := ErrorRef{
		Kind:      kind,
		Message:   failure.Message,
		Category:  category,
		RetryType: m.classifier.Classify(kind, category, details),
		At:        at,
	}
	if m.handler != nil {
		ref.ID = m.handler.HandleError(kind, failure.Message,
			errorhandling.WithCategory(category),
			errorhandling.WithDetails(details),
			errorhandling.WithRetryType(ref.RetryType),
		)
	}
	return ref
}

func (m *Machine) publishSnapshot(job Job) {
	if len(m.snapshots) == 0 {
		return
	}
	snap := job
	snap.History = nil
	for _, fn := range m.snapshots {
		snap := snap.clone()
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("snapshot hook panicked",
						logging.String(logging.FieldJobID, job.ID),
						logging.Any("panic", r),
					)
				}
			}()
			fn(snap)
		}()
	}
}

func (m *Machine) publish(observe Observer, t Transition) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("transition observer panicked",
				logging.String(logging.FieldJobID, t.JobID),
				logging.Any("panic", r),
			)
		}
	}()
	observe(t)
}

func (m *Machine) lookup(id string) *entry {
	sh := m.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.jobs[id]
}

func (m *Machine) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &m.shards[h.Sum32()%uint32(len(m.shards))]
}
