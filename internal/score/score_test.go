package score

import (
	"testing"

	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

func TestUnit(t *testing.T) {
	tests := []struct {
		name string
		in   types.GateMetrics
		want float64
	}{
		{"perfect", types.GateMetrics{Accuracy: 100}, 100},
		{"clamped", types.GateMetrics{Accuracy: 50, UndetectedError: 20}, 0},
		{"penalised", types.GateMetrics{Accuracy: 90, UndetectedError: 2}, 84},
		{"error detected ignored", types.GateMetrics{Accuracy: 80, ErrorDetected: 20}, 80},
		{"exactly zero", types.GateMetrics{Accuracy: 30, UndetectedError: 10}, 0},
	}
	for _, tt := range tests {
		if got := Unit(tt.in); got != tt.want {
			t.Errorf("%s: Unit = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestOverall_MeanOfClampedUnits(t *testing.T) {
	results := types.GateResults{
		"AND": {Accuracy: 100},
		"OR":  {Accuracy: 50, UndetectedError: 20},
	}
	if got := Overall(results); got != 50 {
		t.Fatalf("Overall = %v, want 50", got)
	}
}

func TestOverall_Empty(t *testing.T) {
	if got := Overall(nil); got != 0.0 {
		t.Fatalf("Overall(nil) = %v", got)
	}
	if got := Overall(types.GateResults{}); got != 0.0 {
		t.Fatalf("Overall(empty) = %v", got)
	}
}
