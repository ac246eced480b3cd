package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dwd/internal/app"
	"dwd/internal/appstate"
	"dwd/internal/errorhandling"
	"dwd/internal/jobstate"
	"dwd/internal/logging"
	"dwd/internal/settings"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Drive jobs through the state machine",
	}
	cmd.AddCommand(newJobsSimulateCommand(ctx))
	cmd.AddCommand(newJobsListCommand(ctx))
	return cmd
}

type simulateOptions struct {
	jobs        int
	workers     int
	failEvery   int
	fatalEvery  int
	flakyEvery  int
	showMetrics bool
}

func newJobsSimulateCommand(ctx *commandContext) *cobra.Command {
	var opts simulateOptions
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run synthetic jobs through the full lifecycle on concurrent workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.jobs <= 0 {
				return fmt.Errorf("--jobs must be positive")
			}
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				ids, err := runSimulation(cmd.Context(), rt, opts)
				if err != nil {
					return err
				}
				if err := rt.Checkpoint(cmd.Context()); err != nil {
					return fmt.Errorf("checkpoint jobs: %w", err)
				}
				printSimulation(cmd, rt, ids)
				if opts.showMetrics {
					return writeMetrics(cmd.OutOrStdout(), rt)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "n", 8, "Number of jobs to run")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Concurrent workers (defaults to processing.max_jobs)")
	cmd.Flags().IntVar(&opts.failEvery, "fail-every", 3, "Every Kth job hits one transient failure (0 disables)")
	cmd.Flags().IntVar(&opts.fatalEvery, "fatal-every", 0, "Every Kth job hits a terminal failure (0 disables)")
	cmd.Flags().IntVar(&opts.flakyEvery, "flaky-every", 0, "Every Kth job fails transiently on every attempt (0 disables)")
	cmd.Flags().BoolVar(&opts.showMetrics, "metrics", false, "Print Prometheus metrics after the run")
	return cmd
}

func every(index, k int) bool {
	return k > 0 && index%k == 0
}

// runSimulation creates opts.jobs jobs and drives each to a terminal state.
// It returns the job ids in creation order.
func runSimulation(ctx context.Context, rt *app.Runtime, opts simulateOptions) ([]string, error) {
	if opts.flakyEvery > 0 && rt.Retries.Policy().MaxRetries == 0 {
		return nil, fmt.Errorf("--flaky-every needs retry.max_retries > 0 or jobs never finish")
	}
	workers := opts.workers
	if workers <= 0 {
		workers = settings.Value(rt.Settings, settings.KeyMaxJobs, 4)
	}
	logger := logging.NewComponentLogger(rt.Logger, "simulate")

	ids := make([]string, opts.jobs)
	for i := range ids {
		ids[i] = rt.Jobs.NewJob(map[string]any{
			"index":  i + 1,
			"input":  fmt.Sprintf("take-%03d.wav", i+1),
			"format": settings.Value(rt.Settings, settings.KeyDefaultFormat, "wav"),
		})
	}
	rt.State.Set(appstate.CategoryProcessing, "active_workers", workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		index := i + 1
		g.Go(func() error {
			return driveJob(gctx, rt, id, index, opts)
		})
	}
	err := g.Wait()
	rt.State.Delete(appstate.CategoryProcessing, "active_workers")
	if err != nil {
		return ids, err
	}
	logger.Info("simulation finished",
		logging.Int("jobs", len(ids)),
		logging.Int("workers", workers),
	)
	return ids, nil
}

func driveJob(ctx context.Context, rt *app.Runtime, id string, index int, opts simulateOptions) error {
	ctx = logging.WithJobID(ctx, id)
	if !rt.Jobs.SendEvent(id, jobstate.EventStart) {
		return fmt.Errorf("job %s: start rejected", id)
	}
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			rt.Jobs.SendEvent(id, jobstate.EventCancel)
			return err
		}
		for _, event := range []jobstate.Event{jobstate.EventStart, jobstate.EventProgress, jobstate.EventProgress} {
			rt.Jobs.SendEvent(id, event)
		}

		failure, fail := simulatedFailure(index, attempt, opts)
		if !fail {
			rt.Jobs.SendEvent(id, jobstate.EventComplete)
			return nil
		}
		failure.Details = map[string]any{"attempt": attempt + 1}
		rt.Jobs.Fail(id, failure)

		state, _ := rt.Jobs.State(id)
		if state != jobstate.StateRetrying {
			return nil
		}
		if _, err := rt.Retries.ScheduleRetry(ctx, id); err != nil {
			return fmt.Errorf("job %s: %w", id, err)
		}
		if state, _ := rt.Jobs.State(id); state.Terminal() {
			return nil
		}
	}
}

func simulatedFailure(index, attempt int, opts simulateOptions) (jobstate.Failure, bool) {
	switch {
	case every(index, opts.fatalEvery) && attempt == 0:
		return jobstate.Failure{
			Kind:     "PermissionError",
			Message:  fmt.Sprintf("output for job %d is not writable", index),
			Category: "FILE_IO",
		}, true
	case every(index, opts.flakyEvery):
		return jobstate.Failure{
			Kind:     "ConnectionError",
			Message:  "encoder service unreachable",
			Category: "PROCESSING",
		}, true
	case every(index, opts.failEvery) && attempt == 0:
		return jobstate.Failure{
			Kind:     "TimeoutError",
			Message:  "analysis timed out",
			Category: "PROCESSING",
		}, true
	}
	return jobstate.Failure{}, false
}

func printSimulation(cmd *cobra.Command, rt *app.Runtime, ids []string) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, heading("jobs", colorize))
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		job, ok := rt.Jobs.Job(id)
		if !ok {
			continue
		}
		rows = append(rows, jobRow(job))
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Job", "Input", "State", "Retries", "Last Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		colorize,
	))

	fmt.Fprintln(out)
	fmt.Fprintln(out, heading("states", colorize))
	fmt.Fprintln(out, renderTable([]string{"State", "Jobs"}, stateRows(rt.Jobs.Counts()),
		[]columnAlignment{alignLeft, alignRight}, colorize))

	stats := rt.ErrorStatistics()
	if len(stats) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, heading("errors", colorize))
	categories := make([]string, 0, len(stats))
	for category := range stats {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	errRows := make([][]string, 0, len(categories))
	for _, category := range categories {
		s := stats[category]
		errRows = append(errRows, []string{
			category,
			strconv.Itoa(s.Count),
			joinCounts(s.Kinds),
			joinCounts(retryTypeCounts(s)),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Category", "Count", "Kinds", "Retry Types"}, errRows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}, colorize))
}

func jobRow(job jobstate.Job) []string {
	input, _ := job.Metadata["input"].(string)
	lastError := ""
	if job.LastError != nil {
		lastError = fmt.Sprintf("%s (%s)", job.LastError.Kind, job.LastError.RetryType)
	}
	return []string{shortID(job.ID), input, string(job.State), strconv.Itoa(job.RetryCount), lastError}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func stateRows(counts map[jobstate.State]int) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, state := range jobstate.States {
		if n := counts[state]; n > 0 {
			rows = append(rows, []string{string(state), strconv.Itoa(n)})
		}
	}
	return rows
}

func retryTypeCounts(s errorhandling.CategoryStats) map[string]int {
	out := make(map[string]int, len(s.RetryTypes))
	for retryType, n := range s.RetryTypes {
		out[string(retryType)] = n
	}
	return out
}

func joinCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, counts[key]))
	}
	return strings.Join(parts, ", ")
}

func writeMetrics(w io.Writer, rt *app.Runtime) error {
	if rt.Registry == nil {
		fmt.Fprintln(w, "Metrics disabled (metrics.enabled = false)")
		return nil
	}
	families, err := rt.Registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	fmt.Fprintln(w)
	for _, family := range families {
		if !strings.HasPrefix(family.GetName(), "dwd_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var (
		stateFilter string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs saved in the job store",
		RunE: func(cmd *cobra.Command, args []string) error {
			var states []jobstate.State
			if strings.TrimSpace(stateFilter) != "" {
				for _, raw := range strings.Split(stateFilter, ",") {
					state, err := jobstate.ParseState(raw)
					if err != nil {
						return err
					}
					states = append(states, state)
				}
			}
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				if rt.JobStore == nil {
					return fmt.Errorf("job persistence is disabled; set jobs.persist = true")
				}
				jobs, err := rt.JobStore.List(cmd.Context(), states...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobsJSON(jobs))
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs stored")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, jobRow(job))
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Job", "Input", "State", "Retries", "Last Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
					shouldColorize(out),
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&stateFilter, "state", "", "Comma-separated states to include")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print jobs as JSON")
	return cmd
}
