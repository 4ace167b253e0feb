package report

import (
	"encoding/json"
	"os"

	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

// WriteJSON writes trials ranked by score, best first.
func WriteJSON(path string, trials []types.TrialResult) error {
	ranked := Ranked(trials)
	if ranked == nil {
		ranked = []types.TrialResult{}
	}
	raw, err := json.MarshalIndent(ranked, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
