// Package appstate holds runtime values shared between components, grouped
// into named categories. Nothing here is persisted.
package appstate
