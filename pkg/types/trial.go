package types

import (
	"sort"
	"time"
)

// GateMetrics are the percentages reported for one gate in a test run.
type GateMetrics struct {
	Accuracy        float64 `json:"accuracy"`
	ErrorDetected   float64 `json:"error_detected"`
	UndetectedError float64 `json:"undetected_error"`
}

// GateResults maps a gate name to its metrics.
type GateResults map[string]GateMetrics

// Names returns the gate names in lexical order.
func (r GateResults) Names() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type TrialResult struct {
	Config      Configuration `json:"config"`
	GateResults GateResults   `json:"gate_results"`
	Score       float64       `json:"score"`
	Timestamp   time.Time     `json:"timestamp"`
}
