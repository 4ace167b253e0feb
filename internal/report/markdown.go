package report

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

// Ranked orders trials by descending score, keeping run order among equals.
func Ranked(trials []types.TrialResult) []types.TrialResult {
	out := slices.Clone(trials)
	slices.SortStableFunc(out, func(a, b types.TrialResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

func BuildMarkdown(trials []types.TrialResult) string {
	var b strings.Builder
	b.WriteString("# Grid Search Report\n\n")
	b.WriteString(fmt.Sprintf("- Trials: `%d`\n", len(trials)))

	best, ok := Best(trials)
	if !ok {
		b.WriteString("\nNo trials recorded.\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("- Best Score: **%.2f**\n", best.Score))
	b.WriteString(fmt.Sprintf("- Best Configuration: `%s`\n\n", best.Config.String()))

	gates := gateNames(trials)
	b.WriteString("## Trials\n\n")
	b.WriteString("| Rank | Configuration | Score |")
	for _, g := range gates {
		b.WriteString(fmt.Sprintf(" %s acc | %s undet |", g, g))
	}
	b.WriteString("\n|---:|---|---:|")
	for range gates {
		b.WriteString("---:|---:|")
	}
	b.WriteString("\n")

	for i, tr := range Ranked(trials) {
		b.WriteString(fmt.Sprintf("| %d | %s | %.2f |", i+1, strings.ReplaceAll(tr.Config.String(), "|", "\\|"), tr.Score))
		for _, g := range gates {
			m, ok := tr.GateResults[g]
			if !ok {
				b.WriteString(" - | - |")
				continue
			}
			b.WriteString(fmt.Sprintf(" %.1f | %.1f |", m.Accuracy, m.UndetectedError))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func WriteMarkdown(path string, trials []types.TrialResult) error {
	return os.WriteFile(path, []byte(BuildMarkdown(trials)), 0o644)
}

func gateNames(trials []types.TrialResult) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, tr := range trials {
		for name := range tr.GateResults {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}
	slices.Sort(out)
	return out
}
