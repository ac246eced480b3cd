package notifications

import (
	"fmt"
	"strings"
)

// Level is the severity attached to a notification.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	case LevelCritical:
		return 4
	default:
		return 1
	}
}

// AtLeast reports whether l is as severe as other.
func (l Level) AtLeast(other Level) bool {
	return l.rank() >= other.rank()
}

// ParseLevel converts a textual level. "warn" is accepted for warning.
func ParseLevel(value string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "critical":
		return LevelCritical, nil
	}
	return "", fmt.Errorf("unknown notification level %q", value)
}

// Notifier receives user-facing messages. Implementations must be safe for
// concurrent use and must not block for long.
type Notifier interface {
	Notify(message string, level Level)
}

// Func adapts a function to Notifier.
type Func func(message string, level Level)

func (f Func) Notify(message string, level Level) {
	if f != nil {
		f(message, level)
	}
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(string, Level) {}

type multi []Notifier

// Multi fans out to every non-nil notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	switch len(out) {
	case 0:
		return Nop{}
	case 1:
		return out[0]
	}
	return out
}

func (m multi) Notify(message string, level Level) {
	for _, n := range m {
		n.Notify(message, level)
	}
}

// MinLevel forwards notifications at or above minimum.
func MinLevel(next Notifier, minimum Level) Notifier {
	if next == nil {
		return Nop{}
	}
	return Func(func(message string, level Level) {
		if level.AtLeast(minimum) {
			next.Notify(message, level)
		}
	})
}
