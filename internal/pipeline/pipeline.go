// Package pipeline drives the containerized clean, build, compile, link and
// run sequence for one configuration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

const (
	StepClean   = "clean"
	StepBuild   = "build"
	StepCompile = "compile"
	StepLink    = "link"
	StepRun     = "run"
)

const removeTimeout = 30 * time.Second

// Environment describes the docker image and the paths inside it.
type Environment struct {
	Docker        string
	Image         string
	HostDir       string
	WorkDir       string
	GatesDir      string
	CompileScript string
	SourceIR      string
	OutputIR      string
	Linker        string
	LinkFlags     []string
	Binary        string

	// ContainerPrefix names the step containers <prefix>-<step>. New fills
	// in a random one when it is empty.
	ContainerPrefix string

	Iterations  int
	StepTimeout time.Duration
	RunTimeout  time.Duration
}

// Step is a named command of the pipeline and the container it runs in.
type Step struct {
	Name      string
	Container string
	Command   Command
}

// StepError reports the step that stopped a trial.
type StepError struct {
	Step     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s step failed (exit %d): %v", e.Step, e.ExitCode, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }

type Pipeline struct {
	env    Environment
	runner Runner
}

func New(env Environment, runner Runner) *Pipeline {
	if runner == nil {
		runner = ExecRunner{}
	}
	if env.ContainerPrefix == "" {
		env.ContainerPrefix = "gridtune-" + uuid.NewString()[:8]
	}
	return &Pipeline{env: env, runner: runner}
}

// Steps returns the commands Execute would run for cfg, in order.
func (p *Pipeline) Steps(cfg types.Configuration) []Step {
	e := p.env
	gates := path.Join(e.WorkDir, e.GatesDir)

	compile := []string{"-w", e.WorkDir}
	for _, kv := range cfg.Overrides() {
		compile = append(compile, "-e", kv)
	}
	compile = append(compile, e.Image, e.CompileScript, e.SourceIR, e.OutputIR)

	link := []string{e.Image, e.Linker, path.Join(e.WorkDir, e.OutputIR), "-o", path.Join(e.WorkDir, e.Binary)}
	link = append(link, e.LinkFlags...)

	return []Step{
		p.step(StepClean, false, e.StepTimeout, "", e.Image, "make", "-C", gates+"/", "clean"),
		p.step(StepBuild, false, e.StepTimeout, "", e.Image, "make", "-C", gates+"/"),
		p.step(StepCompile, false, e.StepTimeout, "", compile...),
		p.step(StepLink, false, e.StepTimeout, "", link...),
		p.step(StepRun, true, e.RunTimeout, strconv.Itoa(e.Iterations)+"\n",
			"-w", e.WorkDir, e.Image, "./"+strings.TrimPrefix(e.Binary, "./")),
	}
}

func (p *Pipeline) step(name string, interactive bool, timeout time.Duration, input string, args ...string) Step {
	container := p.env.ContainerPrefix + "-" + name
	base := []string{"run", "--rm"}
	if interactive {
		base = append(base, "-i")
	}
	base = append(base, "--name", container, "-v", p.env.HostDir+":"+p.env.WorkDir)
	return Step{
		Name:      name,
		Container: container,
		Command: Command{
			Program: p.env.Docker,
			Args:    append(base, args...),
			Input:   input,
			Timeout: timeout,
		},
	}
}

// Execute runs every step for cfg and returns the stdout of the run step.
// The first failing step aborts the trial with a *StepError.
func (p *Pipeline) Execute(ctx context.Context, cfg types.Configuration) (string, error) {
	var out string
	for _, step := range p.Steps(cfg) {
		res, err := p.runner.Run(ctx, step.Command)
		if err != nil {
			se := &StepError{Step: step.Name, ExitCode: -1, Err: err}
			if res != nil {
				se.ExitCode = res.ExitCode
				se.Stderr = tail(res.Stderr, 512)
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				// Killing the docker client leaves its container running.
				if rmErr := p.removeContainer(ctx, step.Container); rmErr != nil {
					se.Err = errors.Join(err, fmt.Errorf("remove container %s: %w", step.Container, rmErr))
				}
			}
			return "", se
		}
		if step.Name == StepRun {
			out = res.Stdout
		}
	}
	return out, nil
}

func (p *Pipeline) removeContainer(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()
	_, err := p.runner.Run(ctx, Command{
		Program: p.env.Docker,
		Args:    []string{"rm", "-f", name},
		Timeout: removeTimeout,
	})
	return err
}

// tail keeps the last n bytes of s, cut at a rune boundary.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return "..." + s[i:]
}
