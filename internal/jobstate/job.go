package jobstate

import (
	"maps"
	"time"

	"dwd/internal/errorhandling"
)

// ErrorRef points at the error record behind a job's last failure.
type ErrorRef struct {
	ID        string
	Kind      string
	Message   string
	Category  string
	RetryType errorhandling.RetryType
	At        time.Time
}

// Failure describes why a job failed.
type Failure struct {
	Kind     string
	Message  string
	Category string
	Details  map[string]any
}

// Transition is an accepted state change.
type Transition struct {
	JobID      string
	From       State
	To         State
	Event      Event
	At         time.Time
	RetryCount int
}

// Observer receives accepted transitions. It runs while the job is locked, so
// it sees one job's transitions in order and must not send events to that job.
type Observer func(Transition)

// Job is a snapshot of a tracked job.
type Job struct {
	ID         string
	State      State
	Metadata   map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
	RetryCount int
	LastError  *ErrorRef
	// History holds the most recent transitions, oldest first.
	History []Transition
}

func (j Job) clone() Job {
	j.Metadata = maps.Clone(j.Metadata)
	if j.LastError != nil {
		ref := *j.LastError
		j.LastError = &ref
	}
	j.History = append([]Transition(nil), j.History...)
	return j
}
