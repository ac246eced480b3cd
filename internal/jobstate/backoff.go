package jobstate

import (
	"fmt"
	"strings"
	"time"
)

// Strategy computes the wait before retry attempt n (1-indexed).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// ConstantBackoff always waits Interval.
type ConstantBackoff struct {
	Interval time.Duration
}

func (c ConstantBackoff) Delay(int) time.Duration {
	return c.Interval
}

// LinearBackoff waits Initial * attempt, capped at Max when Max is positive.
type LinearBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

func (l LinearBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := l.Initial * time.Duration(attempt)
	if l.Max > 0 && (d > l.Max || d < 0) {
		return l.Max
	}
	return d
}

// ExponentialBackoff doubles from Initial each attempt, capped at Max when
// Max is positive.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

func (e ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := e.Initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d <= 0 || (e.Max > 0 && d >= e.Max) {
			if e.Max > 0 {
				return e.Max
			}
			return d
		}
	}
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// Backoff mode names accepted by NewBackoff.
const (
	BackoffFixed       = "fixed"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// NewBackoff builds a strategy from configuration values.
func NewBackoff(mode string, initial, maxDelay time.Duration) (Strategy, error) {
	if initial < 0 || maxDelay < 0 {
		return nil, fmt.Errorf("backoff delays must not be negative")
	}
	if maxDelay > 0 && initial > maxDelay {
		initial = maxDelay
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case BackoffFixed, "constant":
		return ConstantBackoff{Interval: initial}, nil
	case BackoffLinear:
		return LinearBackoff{Initial: initial, Max: maxDelay}, nil
	case BackoffExponential, "":
		return ExponentialBackoff{Initial: initial, Max: maxDelay}, nil
	}
	return nil, fmt.Errorf("unknown backoff mode %q", mode)
}
