package errorhandling

import (
	"fmt"
	"strings"

	"dwd/internal/notifications"
)

// RetryType classifies a failure for retry purposes.
type RetryType string

const (
	RetryTransient RetryType = "transient"
	RetryTerminal  RetryType = "terminal"
	RetryResource  RetryType = "resource"
	RetryUnknown   RetryType = "unknown"
)

// RetryTypes lists every RetryType in declaration order.
var RetryTypes = []RetryType{RetryTransient, RetryTerminal, RetryResource, RetryUnknown}

// Valid reports whether r is one of the declared types.
func (r RetryType) Valid() bool {
	switch r {
	case RetryTransient, RetryTerminal, RetryResource, RetryUnknown:
		return true
	}
	return false
}

// Retryable reports whether a failure of this type may be retried.
func (r RetryType) Retryable() bool {
	return r == RetryTransient || r == RetryResource
}

// NotificationLevel is the severity used when alerting about a failure of
// this type.
func (r RetryType) NotificationLevel() notifications.Level {
	if r.Retryable() {
		return notifications.LevelWarning
	}
	return notifications.LevelError
}

// ParseRetryType converts text into a RetryType.
func ParseRetryType(value string) (RetryType, error) {
	r := RetryType(strings.ToLower(strings.TrimSpace(value)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown retry type %q", value)
	}
	return r, nil
}
