package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ogulcanaydogan/gridtune/pkg/types"
)

// fakeRunner records commands and fails the step whose args contain failOn.
type fakeRunner struct {
	calls     []Command
	failOn    string
	timeoutOn string
	stdout    string
}

func (f *fakeRunner) Run(_ context.Context, c Command) (*Result, error) {
	f.calls = append(f.calls, c)
	if f.timeoutOn != "" && slices.Contains(c.Args, f.timeoutOn) {
		return &Result{ExitCode: -1, TimedOut: true}, fmt.Errorf("timed out after %s: %w", c.Timeout, context.DeadlineExceeded)
	}
	if f.failOn != "" && slices.Contains(c.Args, f.failOn) {
		return &Result{ExitCode: 2, Stderr: "make: *** [all] Error 2"}, fmt.Errorf("exit status 2")
	}
	if c.Input != "" {
		return &Result{Stdout: f.stdout}, nil
	}
	return &Result{Stdout: "noise"}, nil
}

func testEnv() Environment {
	return Environment{
		Docker:        "docker",
		Image:         "flexo",
		HostDir:       "/home/me/flexo",
		WorkDir:       "/flexo",
		GatesDir:      "circuits/gates",
		CompileScript: "./compile.sh",
		SourceIR:      "circuits/gates/test.ll",
		OutputIR:      "circuits/gates/test-wm.ll",
		Linker:        "clang-17",
		LinkFlags:     []string{"-lm", "-lstdc++"},
		Binary:        "circuits/gates/gates.elf",
		Iterations:    5000,
		StepTimeout:   5 * time.Minute,
		RunTimeout:    10 * time.Minute,

		ContainerPrefix: "gt-test",
	}
}

func testConfig(t *testing.T) types.Configuration {
	t.Helper()
	cfg, err := types.NewConfiguration([]string{"RET_WM_DIV_ROUNDS", "WR_OFFSET"}, []int64{5, 960})
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestSteps_CommandShapes(t *testing.T) {
	steps := New(testEnv(), nil).Steps(testConfig(t))
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	if !slices.Equal(names, []string{StepClean, StepBuild, StepCompile, StepLink, StepRun}) {
		t.Fatalf("steps = %v", names)
	}

	want := []string{
		"docker run --rm --name gt-test-clean -v /home/me/flexo:/flexo flexo make -C /flexo/circuits/gates/ clean",
		"docker run --rm --name gt-test-build -v /home/me/flexo:/flexo flexo make -C /flexo/circuits/gates/",
		"docker run --rm --name gt-test-compile -v /home/me/flexo:/flexo -w /flexo -e RET_WM_DIV_ROUNDS=5 -e WR_OFFSET=960 flexo ./compile.sh circuits/gates/test.ll circuits/gates/test-wm.ll",
		"docker run --rm --name gt-test-link -v /home/me/flexo:/flexo flexo clang-17 /flexo/circuits/gates/test-wm.ll -o /flexo/circuits/gates/gates.elf -lm -lstdc++",
		"docker run --rm -i --name gt-test-run -v /home/me/flexo:/flexo -w /flexo flexo ./circuits/gates/gates.elf",
	}
	for i, s := range steps {
		if s.Command.String() != want[i] {
			t.Errorf("step %s:\n got %s\nwant %s", s.Name, s.Command.String(), want[i])
		}
	}
	if steps[2].Container != "gt-test-compile" {
		t.Errorf("compile container = %q", steps[2].Container)
	}
	if steps[4].Command.Input != "5000\n" {
		t.Errorf("run input = %q", steps[4].Command.Input)
	}
}

func TestSteps_Timeouts(t *testing.T) {
	steps := New(testEnv(), nil).Steps(testConfig(t))
	for _, s := range steps[:4] {
		if s.Command.Timeout != 5*time.Minute {
			t.Errorf("%s timeout = %s", s.Name, s.Command.Timeout)
		}
	}
	if steps[4].Command.Timeout != 10*time.Minute {
		t.Errorf("run timeout = %s", steps[4].Command.Timeout)
	}
}

func TestExecute_ReturnsRunStdout(t *testing.T) {
	fr := &fakeRunner{stdout: "=== AND gate ===\n"}
	out, err := New(testEnv(), fr).Execute(context.Background(), testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if out != "=== AND gate ===\n" {
		t.Fatalf("out = %q", out)
	}
	if len(fr.calls) != 5 {
		t.Fatalf("calls = %d, want 5", len(fr.calls))
	}
}

func TestExecute_ShortCircuitsOnFailure(t *testing.T) {
	fr := &fakeRunner{failOn: "clean"}
	out, err := New(testEnv(), fr).Execute(context.Background(), testConfig(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if out != "" {
		t.Fatalf("out = %q", out)
	}
	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StepError, got %T", err)
	}
	if se.Step != StepClean || se.ExitCode != 2 {
		t.Fatalf("StepError = %+v", se)
	}
	if !strings.Contains(se.Error(), "Error 2") {
		t.Fatalf("message = %q", se.Error())
	}
	if len(fr.calls) != 1 {
		t.Fatalf("remaining steps ran: %d calls", len(fr.calls))
	}
}

func TestExecute_CompileFailure(t *testing.T) {
	fr := &fakeRunner{failOn: "./compile.sh"}
	_, err := New(testEnv(), fr).Execute(context.Background(), testConfig(t))
	var se *StepError
	if !errors.As(err, &se) || se.Step != StepCompile {
		t.Fatalf("expected compile StepError, got %v", err)
	}
	if len(fr.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(fr.calls))
	}
}

func TestNew_GeneratesContainerPrefix(t *testing.T) {
	env := testEnv()
	env.ContainerPrefix = ""
	a := New(env, nil).Steps(testConfig(t))[0].Container
	b := New(env, nil).Steps(testConfig(t))[0].Container
	if !strings.HasPrefix(a, "gridtune-") || !strings.HasSuffix(a, "-clean") {
		t.Fatalf("container = %q", a)
	}
	if a == b {
		t.Fatalf("two pipelines share container name %q", a)
	}
}

func TestExecute_TimeoutRemovesContainer(t *testing.T) {
	fr := &fakeRunner{timeoutOn: "./compile.sh"}
	_, err := New(testEnv(), fr).Execute(context.Background(), testConfig(t))
	var se *StepError
	if !errors.As(err, &se) || se.Step != StepCompile {
		t.Fatalf("expected compile StepError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if len(fr.calls) != 4 {
		t.Fatalf("calls = %d, want 4", len(fr.calls))
	}
	if got := fr.calls[3].String(); got != "docker rm -f gt-test-compile" {
		t.Fatalf("cleanup command = %q", got)
	}
}

func TestExecute_FailureKeepsContainerAlone(t *testing.T) {
	fr := &fakeRunner{failOn: "./compile.sh"}
	if _, err := New(testEnv(), fr).Execute(context.Background(), testConfig(t)); err == nil {
		t.Fatal("expected error")
	}
	for _, c := range fr.calls {
		if slices.Contains(c.Args, "rm") {
			t.Fatalf("unexpected cleanup: %s", c)
		}
	}
}

// stubDocker backgrounds the work of the clean step and records its pid
// under the container name; "rm -f NAME" kills it.
const stubDocker = `#!/bin/sh
dir=$(dirname "$0")
if [ "$1" = rm ]; then
	kill "$(cat "$dir/$3.pid")"
	echo "$3" >> "$dir/removed"
	exit 0
fi
prev=""
for a in "$@"; do
	[ "$prev" = "--name" ] && name=$a
	prev=$a
done
case "$name" in
*-clean)
	(sleep 1; echo late > "$dir/marker") >/dev/null 2>&1 &
	echo $! > "$dir/$name.pid"
	wait
	;;
esac
exit 0
`

func TestExecute_TimedOutStepStopsContainerWork(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub docker needs a POSIX shell")
	}
	dir := t.TempDir()
	docker := filepath.Join(dir, "docker")
	if err := os.WriteFile(docker, []byte(stubDocker), 0o755); err != nil {
		t.Fatal(err)
	}
	env := testEnv()
	env.Docker = docker
	env.StepTimeout = 200 * time.Millisecond

	_, err := New(env, nil).Execute(context.Background(), testConfig(t))
	var se *StepError
	if !errors.As(err, &se) || se.Step != StepClean || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected clean step timeout, got %v", err)
	}
	removed, err := os.ReadFile(filepath.Join(dir, "removed"))
	if err != nil || strings.TrimSpace(string(removed)) != "gt-test-clean" {
		t.Fatalf("container not removed: %q (%v)", removed, err)
	}

	time.Sleep(1500 * time.Millisecond)
	if _, err := os.Stat(filepath.Join(dir, "marker")); !os.IsNotExist(err) {
		t.Fatalf("timed-out step kept running after Execute returned (stat err = %v)", err)
	}
}

func TestTail(t *testing.T) {
	if tail("  short \n", 10) != "short" {
		t.Fatal("short string changed")
	}
	if got := tail("0123456789", 4); got != "...6789" {
		t.Fatalf("tail = %q", got)
	}
}

func TestTail_KeepsRunesWhole(t *testing.T) {
	// "ä" is two bytes; a 3-byte cut lands inside it.
	got := tail("xxäbc", 3)
	if got != "...bc" {
		t.Fatalf("tail = %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("tail produced invalid UTF-8: %q", got)
	}
	if got := tail("xxäbc", 4); got != "...äbc" {
		t.Fatalf("tail = %q", got)
	}
}
