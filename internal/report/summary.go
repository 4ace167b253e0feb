package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

// Summary is what a finished run reports.
type Summary struct {
	Trials int
	Path   string
	Digest string
	Best   *types.TrialResult
}

func WriteSummary(w io.Writer, s Summary) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintf(w, "\n%s\nOPTIMIZATION COMPLETE\n%s\n", rule, rule)
	fmt.Fprintf(w, "Configurations tested: %d\n", s.Trials)
	fmt.Fprintf(w, "Results saved to: %s\n", s.Path)
	if s.Digest != "" {
		fmt.Fprintf(w, "Results digest: %s\n", s.Digest)
	}
	if s.Best == nil {
		return
	}
	fmt.Fprintf(w, "Best score: %.2f\n", s.Best.Score)

	fmt.Fprintln(w, "\nBest configuration:")
	writeConfig(w, s.Best.Config)

	fmt.Fprintln(w, "\nBest results:")
	for _, name := range s.Best.GateResults.Names() {
		m := s.Best.GateResults[name]
		fmt.Fprintf(w, "  %s: %.1f%% accuracy, %.1f%% undetected error\n", name, m.Accuracy, m.UndetectedError)
	}
}

// WriteNoResults is printed when a run finishes without a recorded trial.
func WriteNoResults(w io.Writer) {
	fmt.Fprintln(w, "No results to save")
}

// WriteTrial prints the per-gate figures of one scored trial.
func WriteTrial(w io.Writer, tr types.TrialResult) {
	fmt.Fprintf(w, "Score: %.2f\n", tr.Score)
	for _, name := range tr.GateResults.Names() {
		m := tr.GateResults[name]
		fmt.Fprintf(w, "  %s: %.1f%% accuracy, %.1f%% undetected\n", name, m.Accuracy, m.UndetectedError)
	}
}

func writeConfig(w io.Writer, cfg types.Configuration) {
	names := cfg.Names()
	values := cfg.Values()
	for i, n := range names {
		fmt.Fprintf(w, "  %s = %d\n", n, values[i])
	}
}
