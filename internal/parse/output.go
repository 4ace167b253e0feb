// Package parse extracts per-gate metrics from the test binary's stdout.
package parse

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

const pct = `(\d+(?:\.\d*)?|\.\d+)`

var (
	headerLine  = regexp.MustCompile(`^=== ([\p{L}\p{N}_]+) gate ===`)
	metricsLine = regexp.MustCompile(`^Accuracy: ` + pct + `%, Error detected: ` + pct + `%, Undetected error: ` + pct + `%`)
)

// Output scans text line by line. A header selects the current gate and a
// following metrics line is stored under it; the last metrics line for a
// gate wins. Metrics before any header, and all other lines, are ignored.
func Output(text string) types.GateResults {
	results := types.GateResults{}
	current := ""

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if m := headerLine.FindStringSubmatch(line); m != nil {
			current = m[1]
			continue
		}
		if current == "" {
			continue
		}
		m := metricsLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		metrics, ok := parseMetrics(m[1:])
		if !ok {
			continue
		}
		results[current] = metrics
	}
	return results
}

func parseMetrics(fields []string) (types.GateMetrics, bool) {
	var v [3]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return types.GateMetrics{}, false
		}
		v[i] = n
	}
	return types.GateMetrics{Accuracy: v[0], ErrorDetected: v[1], UndetectedError: v[2]}, true
}
