// Package errorhandling records failures, classifies them for retry and
// alerts the user through a notifications.Notifier.
//
// Manager keeps an in-session history of records and per-category
// statistics. FallbackManager offers the same HandleError surface with no
// history for hosts that cannot afford one. Both delegate retry
// classification to a Classifier, an immutable ordered list of rules where
// the first match wins.
package errorhandling
