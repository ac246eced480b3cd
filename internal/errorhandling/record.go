package errorhandling

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is used when HandleError is called without WithCategory.
const DefaultCategory = "SYSTEM"

// Handler is the capability shared by Manager and FallbackManager.
type Handler interface {
	// HandleError records a failure and returns its identifier. It never
	// panics and never returns an empty identifier.
	HandleError(kind, message string, opts ...Option) string
}

// Classifying is implemented by handlers that also classify for retry.
type Classifying interface {
	Handler
	Classifier() *Classifier
}

// Record is an immutable error entry.
type Record struct {
	ID        string
	Kind      string
	Message   string
	Category  string
	Details   map[string]any
	Timestamp time.Time
	RetryType RetryType
}

func (r Record) clone() Record {
	r.Details = maps.Clone(r.Details)
	return r
}

// CategoryStats aggregates records of one category.
type CategoryStats struct {
	Count      int
	Kinds      map[string]int
	RetryTypes map[RetryType]int
	LastSeen   time.Time
}

func (s CategoryStats) clone() CategoryStats {
	s.Kinds = maps.Clone(s.Kinds)
	s.RetryTypes = maps.Clone(s.RetryTypes)
	return s
}

type handleOptions struct {
	category  string
	details   map[string]any
	retryType RetryType
}

// Option adjusts a HandleError call.
type Option func(*handleOptions)

// WithCategory sets the record category. Blank values keep DefaultCategory.
func WithCategory(category string) Option {
	return func(o *handleOptions) {
		if c := strings.TrimSpace(category); c != "" {
			o.category = c
		}
	}
}

// WithDetails attaches structured context. The map is copied.
func WithDetails(details map[string]any) Option {
	return func(o *handleOptions) {
		if len(details) == 0 {
			return
		}
		if o.details == nil {
			o.details = make(map[string]any, len(details))
		}
		maps.Copy(o.details, details)
	}
}

// WithRetryType records a classification the caller already made, skipping
// the handler's classifier. Undeclared types are ignored.
func WithRetryType(r RetryType) Option {
	return func(o *handleOptions) {
		if r.Valid() {
			o.retryType = r
		}
	}
}

// classify returns the caller's retry type, or asks c.
func (o handleOptions) classify(c *Classifier, kind string) RetryType {
	if o.retryType != "" {
		return o.retryType
	}
	return c.Classify(kind, o.category, o.details)
}

func applyOptions(opts []Option) handleOptions {
	o := handleOptions{category: DefaultCategory}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// newErrorID formats ERR_<sequence>_<8 hex chars>.
func newErrorID(seq uint64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("ERR_%06d_%s", seq, suffix)
}

func notificationText(kind, message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return kind
	}
	return message
}
