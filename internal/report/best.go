package report

import (
	"fmt"
	"io"
	"time"

	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

// Best returns the trial with the highest score; the earliest one wins ties.
func Best(trials []types.TrialResult) (types.TrialResult, bool) {
	if len(trials) == 0 {
		return types.TrialResult{}, false
	}
	best := trials[0]
	for _, tr := range trials[1:] {
		if tr.Score > best.Score {
			best = tr
		}
	}
	return best, true
}

func WriteBest(w io.Writer, tr types.TrialResult) {
	fmt.Fprintln(w, "Best configuration:")
	names := tr.Config.Names()
	values := tr.Config.Values()
	for i, n := range names {
		fmt.Fprintf(w, "  %s: %d\n", n, values[i])
	}
	fmt.Fprintf(w, "  Score: %v\n", tr.Score)
	fmt.Fprintf(w, "  Timestamp: %s\n", tr.Timestamp.Format(time.RFC3339Nano))
}
