package main

import (
	"encoding/json"
	"strings"
	"testing"

	"dwd/internal/testsupport"
)

func TestJobsSimulateMixedOutcomes(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.run(t, "jobs", "simulate", "--jobs", "6", "--workers", "3", "--fail-every", "2", "--fatal-every", "3")
	requireContains(t, out, "completed")
	requireContains(t, out, "failed")
	requireContains(t, out, "PermissionError (terminal)")
	requireContains(t, out, "TimeoutError (transient)")
	requireContains(t, out, "FILE_IO")
	requireContains(t, out, "PROCESSING")
	if strings.Contains(out, "retrying") {
		t.Fatalf("simulation left jobs retrying:\n%s", out)
	}
}

func TestJobsSimulateExhaustsFlakyJobs(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMaxRetries(2))

	out := env.run(t, "jobs", "simulate", "--jobs", "2", "--fail-every", "0", "--flaky-every", "2")
	requireContains(t, out, "RetriesExhausted")
	requireContains(t, out, "ConnectionError=3")
}

func TestJobsSimulateRejectsUnboundedFlakyRun(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMaxRetries(0))

	_, _, err := runCLI(t, []string{"jobs", "simulate", "--flaky-every", "1"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for flaky run without retry cap")
	}
}

func TestJobsSimulatePrintsMetrics(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMetrics())

	out := env.run(t, "jobs", "simulate", "--jobs", "2", "--metrics")
	requireContains(t, out, "dwd_job_transitions_total")
}

func TestJobsListReadsPersistedJobs(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithPersistentJobs())

	env.run(t, "jobs", "simulate", "--jobs", "3", "--fail-every", "0")
	out := env.run(t, "jobs", "list", "--state", "completed")
	requireContains(t, out, "take-001.wav")
	requireContains(t, out, "completed")

	out = env.run(t, "jobs", "list", "--state", "failed")
	requireContains(t, out, "No jobs stored")
}

func TestJobsListRequiresPersistence(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"jobs", "list"}, env.configPath); err == nil {
		t.Fatal("expected error when persistence is disabled")
	}
}

func TestJobsListJSON(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithPersistentJobs())

	env.run(t, "jobs", "simulate", "--jobs", "2", "--fail-every", "0")
	out := env.run(t, "jobs", "list", "--json")

	var jobs []struct {
		ID       string         `json:"id"`
		State    string         `json:"state"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(out), &jobs); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}
	for _, job := range jobs {
		if job.State != "completed" || job.Metadata["input"] == nil {
			t.Fatalf("unexpected job %+v", job)
		}
	}
}
