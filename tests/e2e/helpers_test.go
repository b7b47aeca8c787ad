package e2e

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/easzlab/rvcm/pkg/router/routertest"
)

// result is the outcome of one rvcm invocation.
type result struct {
	stdout   string
	stderr   string
	exitCode int
}

// runRvcm executes the rvcm binary with an empty HOME so no user config leaks in.
func runRvcm(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(rvcmBinary, args...)
	cmd.Env = append(os.Environ(), "HOME="+t.TempDir())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := result{}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("failed to run rvcm: %v", err)
		}
		res.exitCode = exitErr.ExitCode()
	}
	res.stdout = stdout.String()
	res.stderr = stderr.String()
	return res
}

// runAgainst runs rvcm with connection flags pointing at srv.
func runAgainst(t *testing.T, srv *routertest.Server, args ...string) result {
	t.Helper()
	return runRvcm(t, append([]string{"-i", srv.Host(), "-u", "admin", "-p", "secret"}, args...)...)
}

// mustSucceed fails the test unless res exited with status 0.
func mustSucceed(t *testing.T, res result) {
	t.Helper()
	if res.exitCode != 0 {
		t.Fatalf("rvcm exited with %d\nstdout: %s\nstderr: %s", res.exitCode, res.stdout, res.stderr)
	}
}

// writeTestConfig writes YAML content to a config file in the given directory.
func writeTestConfig(t *testing.T, dir, content string) string {
	t.Helper()
	configPath := filepath.Join(dir, "rvcm.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configPath
}
