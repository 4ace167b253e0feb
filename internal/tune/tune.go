// Package tune runs the grid search: it walks the parameter space, drives the
// build pipeline for every configuration and persists the scored trials.
package tune

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ogulcanaydogan/gridtune/internal/hash"
	"github.com/ogulcanaydogan/gridtune/internal/parse"
	"github.com/ogulcanaydogan/gridtune/internal/pipeline"
	"github.com/ogulcanaydogan/gridtune/internal/report"
	"github.com/ogulcanaydogan/gridtune/internal/score"
	"github.com/ogulcanaydogan/gridtune/internal/space"
	"github.com/ogulcanaydogan/gridtune/internal/store"
	"github.com/ogulcanaydogan/gridtune/internal/track"
	"github.com/ogulcanaydogan/gridtune/pkg/logger"
	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

// ErrRunFault marks a run that stopped on an unexpected failure inside the loop.
var ErrRunFault = errors.New("run fault")

// Executor runs the pipeline for one configuration and returns the
// benchmark output.
type Executor interface {
	Execute(ctx context.Context, cfg types.Configuration) (string, error)
}

type Options struct {
	Space     *space.Space
	Executor  Executor
	OutputDir string
	Pause     time.Duration
	Logger    *slog.Logger
	Out       io.Writer
	Clock     func() time.Time
}

// Outcome describes a finished run, including one that was interrupted.
type Outcome struct {
	RunID       string
	Attempted   int
	Trials      []types.TrialResult
	Best        *types.TrialResult
	Path        string
	Digest      string
	Interrupted bool
}

// Run evaluates every configuration of opts.Space in order. Recorded trials
// are saved when the run ends, whether it completed, was cancelled through
// ctx or hit a fault.
func Run(ctx context.Context, opts Options) (out *Outcome, err error) {
	if opts.Space == nil {
		return nil, fmt.Errorf("parameter space is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.OutputDir == "" {
		opts.OutputDir = store.DefaultResultsDir
	}

	state := track.NewRunState(opts.OutputDir, opts.Clock)
	log := opts.Logger.With("run_id", state.RunID())
	out = &Outcome{RunID: state.RunID()}

	defer func() {
		if r := recover(); r != nil {
			log.Error("grid search aborted", "panic", r)
			err = fmt.Errorf("%w: %v", ErrRunFault, r)
		}
		if ferr := finalize(opts, state, out, log); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}()

	err = search(ctx, opts, state, out, log)
	return out, err
}

func search(ctx context.Context, opts Options, state *track.RunState, out *Outcome, log *slog.Logger) error {
	total := opts.Space.Size()
	log.Info("starting grid search", "parameters", opts.Space.Names(), "configurations", total)

	trial := 0
	for cfg := range opts.Space.All() {
		trial++
		if err := ctx.Err(); err != nil {
			return interrupted(out, log, err)
		}
		log.Info("testing configuration", "trial", trial, "total", total, "config", cfg.String())
		out.Attempted++

		stdout, err := opts.Executor.Execute(ctx, cfg)
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warn("trial discarded", "trial", trial, "config", cfg.String())
			return interrupted(out, log, ctxErr)
		}
		if err != nil {
			var stepErr *pipeline.StepError
			if errors.As(err, &stepErr) {
				log.Warn("pipeline step failed", "trial", trial, "step", stepErr.Step, "exit_code", stepErr.ExitCode, "error", stepErr.Err)
			} else {
				log.Warn("pipeline failed", "trial", trial, "error", err)
			}
		} else {
			record(opts, state, log, trial, cfg, stdout)
		}

		if err := pause(ctx, opts.Pause); err != nil {
			return interrupted(out, log, err)
		}
	}
	log.Info("grid search complete", "attempted", out.Attempted, "recorded", state.Len())
	return nil
}

func record(opts Options, state *track.RunState, log *slog.Logger, trial int, cfg types.Configuration, stdout string) {
	results := parse.Output(stdout)
	if len(results) == 0 {
		log.Warn("no gate results in benchmark output", "trial", trial, "config", cfg.String())
		return
	}
	tr, best := state.Record(cfg, results, score.Overall(results))
	report.WriteTrial(opts.Out, tr)
	if best {
		fmt.Fprintf(opts.Out, "*** NEW BEST! Score: %.2f ***\n", tr.Score)
		log.Info("new best configuration", "trial", trial, "score", tr.Score, "config", cfg.String())
	}
}

func interrupted(out *Outcome, log *slog.Logger, cause error) error {
	out.Interrupted = true
	log.Warn("grid search interrupted", "attempted", out.Attempted, "error", cause)
	return fmt.Errorf("grid search interrupted: %w", cause)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func finalize(opts Options, state *track.RunState, out *Outcome, log *slog.Logger) error {
	out.Trials = state.Trials()
	if best, ok := state.Best(); ok {
		out.Best = &best
	}
	if len(out.Trials) == 0 {
		report.WriteNoResults(opts.Out)
		log.Info("no trials recorded", "attempted", out.Attempted)
		return nil
	}

	path, err := store.SaveTrials(state.OutputDir(), out.Trials, opts.Clock())
	if err != nil {
		log.Error("save trials failed", "error", err)
		return fmt.Errorf("save trials: %w", err)
	}
	out.Path = path
	digest, _, err := hash.DigestFile(path)
	if err != nil {
		log.Warn("digest trial file failed", "path", path, "error", err)
	}
	out.Digest = digest

	report.WriteSummary(opts.Out, report.Summary{
		Trials: len(out.Trials),
		Path:   path,
		Digest: digest,
		Best:   out.Best,
	})
	log.Info("trials saved", "path", path, "trials", len(out.Trials), "digest", digest)
	return nil
}
