package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"dwd/internal/jobstate"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// jobJSON is the --json shape of a stored job.
type jobJSON struct {
	ID         string         `json:"id"`
	State      string         `json:"state"`
	RetryCount int            `json:"retry_count"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	LastError  *jobErrorJSON  `json:"last_error,omitempty"`
}

type jobErrorJSON struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Message   string `json:"message,omitempty"`
	Category  string `json:"category"`
	RetryType string `json:"retry_type"`
}

func jobsJSON(jobs []jobstate.Job) []jobJSON {
	out := make([]jobJSON, 0, len(jobs))
	for _, job := range jobs {
		view := jobJSON{
			ID:         job.ID,
			State:      string(job.State),
			RetryCount: job.RetryCount,
			Metadata:   job.Metadata,
			CreatedAt:  job.CreatedAt,
			UpdatedAt:  job.UpdatedAt,
		}
		if ref := job.LastError; ref != nil {
			view.LastError = &jobErrorJSON{
				ID:        ref.ID,
				Kind:      ref.Kind,
				Message:   ref.Message,
				Category:  ref.Category,
				RetryType: string(ref.RetryType),
			}
		}
		out = append(out, view)
	}
	return out
}
