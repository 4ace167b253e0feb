// Package config loads and validates the gridtune YAML configuration.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ogulcanaydogan/gridtune/internal/pipeline"
	"github.com/ogulcanaydogan/gridtune/internal/space"
	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

const DefaultPath = "gridtune.yaml"

type Config struct {
	LogLevel    string      `yaml:"log_level"`
	OutputDir   string      `yaml:"output_dir"`
	Iterations  int         `yaml:"iterations"`
	Pause       string      `yaml:"pause"`
	Parameters  []Parameter `yaml:"parameters"`
	Environment Environment `yaml:"environment"`
	Timeouts    Timeouts    `yaml:"timeouts"`
}

// Parameter lists its domain either explicitly or as an inclusive range.
type Parameter struct {
	Name   string  `yaml:"name"`
	Values []int64 `yaml:"values,omitempty"`
	Range  *Range  `yaml:"range,omitempty"`
}

type Range struct {
	From int64 `yaml:"from"`
	To   int64 `yaml:"to"`
	Step int64 `yaml:"step,omitempty"`
}

type Environment struct {
	Docker        string   `yaml:"docker"`
	Image         string   `yaml:"image"`
	HostDir       string   `yaml:"host_dir"`
	WorkDir       string   `yaml:"work_dir"`
	GatesDir      string   `yaml:"gates_dir"`
	CompileScript string   `yaml:"compile_script"`
	SourceIR      string   `yaml:"source_ir"`
	OutputIR      string   `yaml:"output_ir"`
	Linker        string   `yaml:"linker"`
	LinkFlags     []string `yaml:"link_flags"`
	Binary        string   `yaml:"binary"`
}

type Timeouts struct {
	Step string `yaml:"step"`
	Run  string `yaml:"run"`
}

func Default() Config {
	return Config{
		LogLevel:   "info",
		OutputDir:  "grid_search_results",
		Iterations: 5000,
		Pause:      "1s",
		Environment: Environment{
			Docker:        "docker",
			Image:         "flexo",
			HostDir:       ".",
			WorkDir:       "/flexo",
			GatesDir:      "circuits/gates",
			CompileScript: "./compile.sh",
			SourceIR:      "circuits/gates/test.ll",
			OutputIR:      "circuits/gates/test-wm.ll",
			Linker:        "clang-17",
			LinkFlags:     []string{"-lm", "-lstdc++"},
			Binary:        "circuits/gates/gates.elf",
		},
		Timeouts: Timeouts{Step: "5m", Run: "10m"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", c.Iterations)
	}
	if _, err := c.PauseDuration(); err != nil {
		return fmt.Errorf("invalid pause %s: %w", c.Pause, err)
	}
	if err := validateParameters(c.Parameters); err != nil {
		return fmt.Errorf("parameters validation failed: %w", err)
	}
	if _, err := space.New(c.SearchParameters()); err != nil {
		return fmt.Errorf("parameters validation failed: %w", err)
	}
	if err := validateEnvironment(&c.Environment); err != nil {
		return fmt.Errorf("environment validation failed: %w", err)
	}
	for name, v := range map[string]string{"step": c.Timeouts.Step, "run": c.Timeouts.Run} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s timeout %s: %w", name, v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s timeout must be positive, got %s", name, v)
		}
	}
	return nil
}

func validateParameters(params []Parameter) error {
	if len(params) == 0 {
		return fmt.Errorf("at least one parameter must be defined")
	}
	seen := make(map[string]bool)
	for _, p := range params {
		if p.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter name: %s", p.Name)
		}
		seen[p.Name] = true
		if p.Range != nil && p.Values != nil {
			return fmt.Errorf("parameter %s: values and range are mutually exclusive", p.Name)
		}
		if p.Range == nil && p.Values == nil {
			return fmt.Errorf("parameter %s: one of values or range is required", p.Name)
		}
		if p.Range != nil {
			if p.Range.Step < 0 {
				return fmt.Errorf("parameter %s: range step must be positive, got %d", p.Name, p.Range.Step)
			}
			if p.Range.To < p.Range.From {
				return fmt.Errorf("parameter %s: range to %d is below from %d", p.Name, p.Range.To, p.Range.From)
			}
			if n := p.Range.Len(); n > MaxRangeValues {
				return fmt.Errorf("parameter %s: range expands to %d values, limit is %d", p.Name, n, MaxRangeValues)
			}
		}
	}
	return nil
}

func validateEnvironment(e *Environment) error {
	required := map[string]string{
		"docker":         e.Docker,
		"image":          e.Image,
		"host_dir":       e.HostDir,
		"work_dir":       e.WorkDir,
		"compile_script": e.CompileScript,
		"source_ir":      e.SourceIR,
		"output_ir":      e.OutputIR,
		"linker":         e.Linker,
		"binary":         e.Binary,
	}
	for name, v := range required {
		if v == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
	}
	return nil
}

// MaxRangeValues bounds how many values a single range may expand to.
const MaxRangeValues = 1 << 20

// Len is the number of values the range expands to, or 0 when to < from.
// It saturates at math.MaxUint64 only for the full int64 span with step 1.
func (r Range) Len() uint64 {
	if r.To < r.From {
		return 0
	}
	step := r.Step
	if step <= 0 {
		step = 1
	}
	span := uint64(r.To) - uint64(r.From)
	n := span / uint64(step)
	if n == math.MaxUint64 {
		return n
	}
	return n + 1
}

// Domain expands the parameter into its values in declaration order.
// Ranges longer than MaxRangeValues expand to nothing; validation rejects them.
func (p Parameter) Domain() []int64 {
	if p.Range == nil {
		return append([]int64(nil), p.Values...)
	}
	n := p.Range.Len()
	if n > MaxRangeValues {
		return nil
	}
	step := p.Range.Step
	if step == 0 {
		step = 1
	}
	out := make([]int64, 0, n)
	v := p.Range.From
	for i := uint64(0); i < n; i++ {
		out = append(out, v)
		v += step
	}
	return out
}

// SearchParameters converts the configured parameters into domain form.
func (c *Config) SearchParameters() []types.Parameter {
	out := make([]types.Parameter, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		out = append(out, types.Parameter{Name: p.Name, Values: p.Domain()})
	}
	return out
}

func (c *Config) PauseDuration() (time.Duration, error) {
	if c.Pause == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Pause)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("pause cannot be negative")
	}
	return d, nil
}

// PipelineEnvironment resolves the host directory and timeouts for the pipeline.
func (c *Config) PipelineEnvironment() (pipeline.Environment, error) {
	hostDir, err := filepath.Abs(c.Environment.HostDir)
	if err != nil {
		return pipeline.Environment{}, fmt.Errorf("resolve host_dir: %w", err)
	}
	stepTimeout, err := time.ParseDuration(c.Timeouts.Step)
	if err != nil {
		return pipeline.Environment{}, fmt.Errorf("invalid step timeout: %w", err)
	}
	runTimeout, err := time.ParseDuration(c.Timeouts.Run)
	if err != nil {
		return pipeline.Environment{}, fmt.Errorf("invalid run timeout: %w", err)
	}
	e := c.Environment
	return pipeline.Environment{
		Docker:        e.Docker,
		Image:         e.Image,
		HostDir:       hostDir,
		WorkDir:       e.WorkDir,
		GatesDir:      e.GatesDir,
		CompileScript: e.CompileScript,
		SourceIR:      e.SourceIR,
		OutputIR:      e.OutputIR,
		Linker:        e.Linker,
		LinkFlags:     append([]string(nil), e.LinkFlags...),
		Binary:        e.Binary,
		Iterations:    c.Iterations,
		StepTimeout:   stepTimeout,
		RunTimeout:    runTimeout,
	}, nil
}

// DefaultYAML is written by `gridtune init`.
const DefaultYAML = `log_level: info
output_dir: grid_search_results
iterations: 5000
pause: 1s
parameters:
  - name: RET_WM_DIV_ROUNDS
    range: {from: 1, to: 50}
  - name: WR_OFFSET
    values: [192, 320, 448, 576, 960, 1088]
environment:
  docker: docker
  image: flexo
  host_dir: .
  work_dir: /flexo
  gates_dir: circuits/gates
  compile_script: ./compile.sh
  source_ir: circuits/gates/test.ll
  output_ir: circuits/gates/test-wm.ll
  linker: clang-17
  link_flags: [-lm, -lstdc++]
  binary: circuits/gates/gates.elf
timeouts:
  step: 5m
  run: 10m
`
