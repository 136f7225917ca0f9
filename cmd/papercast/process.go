package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercast-ai/papercast/internal/app"
	"github.com/papercast-ai/papercast/internal/budget"
	"github.com/papercast-ai/papercast/internal/config"
	"github.com/papercast-ai/papercast/internal/ingest"
	"github.com/papercast-ai/papercast/internal/orchestrator"
	"github.com/papercast-ai/papercast/internal/types"
)

// exitError carries a batch-tool exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Batch exit codes: 0 success, 1 bad input, 2 budget exceeded, 3 upstream
// failure, 4 internal contract violation.
func exitCodeFor(err error) (int, bool) {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code, true
	}
	return 0, false
}

func codeForJobError(jerr *types.JobError) int {
	switch jerr.Kind {
	case types.ErrKindBadInput:
		return 1
	case types.ErrKindBudgetExceeded:
		return 2
	case types.ErrKindUpstreamTransient, types.ErrKindUpstreamPermanent:
		return 3
	case types.ErrKindContract, types.ErrKindInternal:
		return 4
	}
	return 3
}

var (
	processStyle   string
	processTargetS float64
	processFast    bool
	processMaxCost float64
)

var processCmd = &cobra.Command{
	Use:   "process <paper-file>",
	Short: "Process a paper into a podcast episode (batch mode)",
	Long: `Ingest a paper file (.txt, .md, or .pdf), run the full pipeline, and
print the resulting episode metadata.

Exit codes: 0 success, 1 bad input, 2 budget exceeded, 3 upstream failure,
4 internal contract violation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return &exitError{code: 1, err: err}
		}

		a, err := app.Build(cfgMgr, logger)
		if err != nil {
			return &exitError{code: 3, err: err}
		}
		defer a.Close()

		paper, err := ingest.FromFile(args[0])
		if err != nil {
			return &exitError{code: 1, err: err}
		}
		a.Services.Papers.Add(paper)

		job, err := a.Services.Orchestrator.StartJob(ctx, paper, orchestrator.JobOptions{
			StyleID:         processStyle,
			TargetDurationS: processTargetS,
			FastMode:        processFast,
			Limits:          budget.Limits{MaxCost: processMaxCost},
		})
		if err != nil {
			var je *types.JobError
			if errors.As(err, &je) {
				return &exitError{code: codeForJobError(je), err: err}
			}
			return &exitError{code: 4, err: err}
		}

		logger.Info("processing", "job_id", job.JobID, "paper", paper.Title)

		// Follow the event stream until the job settles.
		events, cancel := a.Services.Jobs.Subscribe(job.JobID)
		defer cancel()
		for {
			snapshot, err := a.Services.Jobs.Get(job.JobID)
			if err != nil {
				return &exitError{code: 4, err: err}
			}
			if snapshot.State.Terminal() {
				return finishProcess(cmd, a, snapshot)
			}
			select {
			case <-ctx.Done():
				_ = a.Services.Orchestrator.Cancel(job.JobID)
				a.Services.Orchestrator.Wait()
				return &exitError{code: 3, err: fmt.Errorf("interrupted")}
			case ev, ok := <-events:
				if !ok {
					time.Sleep(100 * time.Millisecond)
					continue
				}
				logger.Info("progress", "state", ev.To, "pct", ev.ProgressPct)
			}
		}
	},
}

func finishProcess(cmd *cobra.Command, a *app.App, job *types.Job) error {
	if job.State == types.StateFailed {
		jerr := job.Error
		if jerr == nil {
			jerr = types.NewJobError(types.ErrKindInternal, "job failed without error detail")
		}
		return &exitError{code: codeForJobError(jerr), err: jerr}
	}

	ep, err := a.Services.Assembler.Get(job.EpisodeID)
	if err != nil {
		return &exitError{code: 4, err: err}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "episode %s\n", ep.EpisodeID)
	fmt.Fprintf(cmd.OutOrStdout(), "  title:             %s\n", ep.Outline.EpisodeTitle)
	fmt.Fprintf(cmd.OutOrStdout(), "  segments:          %d\n", len(ep.Segments))
	fmt.Fprintf(cmd.OutOrStdout(), "  duration:          %.1fs\n", ep.TotalDurationS)
	fmt.Fprintf(cmd.OutOrStdout(), "  verification rate: %.2f\n", ep.VerificationRate)
	fmt.Fprintf(cmd.OutOrStdout(), "  total cost:        $%.4f\n", ep.TotalCost)
	fmt.Fprintf(cmd.OutOrStdout(), "  audio:             %s\n", ep.AudioRef)
	return nil
}

func init() {
	processCmd.Flags().StringVar(&processStyle, "style", "", "podcast style (default from config)")
	processCmd.Flags().Float64Var(&processTargetS, "target-duration", 0, "target episode duration in seconds")
	processCmd.Flags().BoolVar(&processFast, "fast", false, "fast mode: leaner plans, skip style retrieval")
	processCmd.Flags().Float64Var(&processMaxCost, "max-cost", 0, "per-job cost cap in USD (default from config)")
}
