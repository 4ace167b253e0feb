package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ogulcanaydogan/gridtune/pkg/schema"
	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

const DefaultResultsDir = "grid_search_results"

// ResultsFileName names a trial file after the time the run generated it.
func ResultsFileName(now time.Time) string {
	return fmt.Sprintf("results_%s.json", now.Format("20060102_150405"))
}

func EnsureDir(dir string) (string, error) {
	if dir == "" {
		dir = DefaultResultsDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	return dir, nil
}

// SaveTrials writes trials as a new JSON file under dir and returns its path.
// An existing file is never replaced; a numeric suffix is added instead.
func SaveTrials(dir string, trials []types.TrialResult, now time.Time) (string, error) {
	dir, err := EnsureDir(dir)
	if err != nil {
		return "", err
	}
	if trials == nil {
		trials = []types.TrialResult{}
	}
	raw, err := json.MarshalIndent(trials, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal trials: %w", err)
	}
	raw = append(raw, '\n')

	base := strings.TrimSuffix(ResultsFileName(now), ".json")
	for i := 0; i < 1000; i++ {
		name := base + ".json"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.json", base, i)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create trial file: %w", err)
		}
		if _, err := f.Write(raw); err != nil {
			f.Close()
			return "", fmt.Errorf("write trial file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close trial file: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free trial file name for %s in %s", base, dir)
}

// LoadTrials reads a trial file after validating it against the trials schema.
func LoadTrials(path string) ([]types.TrialResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trial file: %w", err)
	}
	return DecodeTrials(raw)
}

func DecodeTrials(raw []byte) ([]types.TrialResult, error) {
	errs, err := schema.ValidateTrials(raw)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("trial file schema invalid: %v", errs)
	}
	var trials []types.TrialResult
	if err := json.Unmarshal(raw, &trials); err != nil {
		return nil, fmt.Errorf("decode trial file: %w", err)
	}
	return trials, nil
}
