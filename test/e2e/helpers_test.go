//go:build e2e

package e2e

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/registry"
)

// fakeDocker stands in for the docker CLI. The compile step records the
// -e overrides in $FAKE_DOCKER_STATE and the run step reads them back to
// print one gate block. A=2 B=20 crashes the benchmark.
const fakeDocker = `#!/bin/sh
state="$FAKE_DOCKER_STATE"
case "$*" in
*compile.sh*)
	printf '%s\n' "$@" | grep -E '^[A-Z_][A-Z0-9_]*=' > "$state"
	;;
*" -i "*)
	read n
	. "$state"
	if [ "$A" = 2 ] && [ "$B" = 20 ]; then
		echo "segmentation fault" >&2
		exit 139
	fi
	echo "running $n iterations"
	echo "=== AND gate ==="
	echo "Accuracy: $((50 + A * B)).0%, Error detected: 1.0%, Undetected error: 0.5%"
	;;
esac
exit 0
`

func installFakeDocker(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake docker needs a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "docker")
	if err := os.WriteFile(path, []byte(fakeDocker), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FAKE_DOCKER_STATE", filepath.Join(dir, "state"))
	return path
}

func startRegistry(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(registry.New())
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func writeExecutable(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o755)
}
