// Package score reduces gate metrics to a single fitness value.
package score

import "github.com/ogulcanaydogan/gridtune/pkg/types"

// UndetectedPenalty weighs each undetected-error percentage point against accuracy.
const UndetectedPenalty = 3.0

// Unit scores one gate: accuracy minus the undetected-error penalty, floored at 0.
// ErrorDetected does not contribute.
func Unit(m types.GateMetrics) float64 {
	s := m.Accuracy - UndetectedPenalty*m.UndetectedError
	if s < 0 {
		return 0
	}
	return s
}

// Overall is the mean unit score across gates, or 0 for no gates.
func Overall(results types.GateResults) float64 {
	if len(results) == 0 {
		return 0
	}
	var total float64
	for _, name := range results.Names() {
		total += Unit(results[name])
	}
	return total / float64(len(results))
}
