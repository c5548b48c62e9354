package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docoutline/internal/llm"
	"github.com/dgallion1/docoutline/internal/pipeline"
)

var (
	pretty    bool
	showStats bool
	quiet     bool
)

var buildCmd = &cobra.Command{
	Use:   "build <file>...",
	Short: "Build the outline of one or more documents",
	Long: `Build runs every stage over each file and prints the result as JSON, or as
an indented outline with --pretty. Files are processed concurrently on the
configured worker pool.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&pretty, "pretty", false, "Print a styled outline instead of JSON")
	buildCmd.Flags().BoolVar(&showStats, "stats", false, "Print collaborator latency stats to stderr")
	buildCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	rootCmd.AddCommand(buildCmd)
}

// fileOutput is the JSON shape for one input when several are built.
type fileOutput struct {
	File   string               `json:"file"`
	Job    pipeline.JobSnapshot `json:"job"`
	Error  string               `json:"error,omitempty"`
	Result *pipeline.Result     `json:"result,omitempty"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log := newLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := llm.NewLLMStats(time.Hour)
	comp, closeComp, err := newCompleter(cfg, stats, log)
	if err != nil {
		return err
	}
	defer closeComp()

	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		WorkerCount:  min(cfg.Pipeline.WorkerCount, len(args)),
		MaxQueueSize: max(cfg.Pipeline.MaxQueueSize, len(args)),
		JobTTL:       cfg.Pipeline.JobTTL,
	}, newEngine(cfg, comp, log), log)
	orch.Start(ctx)
	defer orch.Stop()

	jobs := make([]*pipeline.Job, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		job := pipeline.NewJob(filepath.Base(path), data)
		if err := orch.Submit(job); err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	bar := newProgressBar(cmd.ErrOrStderr(), len(jobs))
	outputs := make([]fileOutput, len(jobs))
	for i, job := range jobs {
		select {
		case <-job.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		res, runErr := job.Result()
		outputs[i] = fileOutput{File: args[i], Job: job.Snapshot(), Result: res}
		if runErr != nil {
			outputs[i].Error = runErr.Error()
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if showStats {
		printStats(cmd.ErrOrStderr(), stats.Snapshot())
	}
	if err := writeOutputs(cmd.OutOrStdout(), outputs); err != nil {
		return err
	}

	var failed []error
	for _, out := range outputs {
		if out.Job.Status == pipeline.StatusFailed {
			failed = append(failed, fmt.Errorf("%s: %s", out.File, out.Error))
		}
	}
	return errors.Join(failed...)
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	if quiet {
		w = io.Discard
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.BlueString("outlining")),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}

func writeOutputs(w io.Writer, outputs []fileOutput) error {
	if pretty {
		for _, out := range outputs {
			if out.Result == nil {
				fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%s: %s", out.File, out.Error)))
				continue
			}
			renderOutline(w, out.Result)
			fmt.Fprintln(w)
		}
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(outputs) == 1 {
		if outputs[0].Result != nil {
			return enc.Encode(outputs[0].Result)
		}
		return enc.Encode(outputs[0])
	}
	return enc.Encode(outputs)
}

func printStats(w io.Writer, s llm.StatsSnapshot) {
	fmt.Fprintf(w, "%s %d calls, %d errors, avg %.0fms, p50 %.0fms, p95 %.0fms, p99 %.0fms\n",
		color.CyanString("collaborator:"), s.Count, s.Errors, s.AvgMs, s.P50Ms, s.P95Ms, s.P99Ms)
}
