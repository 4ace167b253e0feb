// Package track accumulates the trials of one run and keeps the best one.
package track

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

// RunState is owned by a single run loop and is not safe for concurrent use.
type RunState struct {
	runID     string
	outputDir string
	clock     func() time.Time
	trials    []types.TrialResult
	best      *types.TrialResult
}

func NewRunState(outputDir string, clock func() time.Time) *RunState {
	if clock == nil {
		clock = time.Now
	}
	return &RunState{
		runID:     uuid.NewString(),
		outputDir: outputDir,
		clock:     clock,
	}
}

func (s *RunState) RunID() string     { return s.runID }
func (s *RunState) OutputDir() string { return s.outputDir }
func (s *RunState) Len() int          { return len(s.trials) }

// Record appends a completed trial and reports whether it became the best.
// A trial replaces the best only with a strictly greater score.
func (s *RunState) Record(cfg types.Configuration, results types.GateResults, score float64) (types.TrialResult, bool) {
	tr := types.TrialResult{
		Config:      cfg,
		GateResults: cloneResults(results),
		Score:       score,
		Timestamp:   s.clock(),
	}
	s.trials = append(s.trials, tr)
	if s.best == nil || tr.Score > s.best.Score {
		best := tr
		s.best = &best
		return tr, true
	}
	return tr, false
}

func (s *RunState) Trials() []types.TrialResult {
	return slices.Clone(s.trials)
}

// Best returns the best trial so far, if any.
func (s *RunState) Best() (types.TrialResult, bool) {
	if s.best == nil {
		return types.TrialResult{}, false
	}
	return *s.best, true
}

func cloneResults(in types.GateResults) types.GateResults {
	out := make(types.GateResults, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
