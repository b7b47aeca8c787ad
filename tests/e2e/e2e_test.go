package e2e

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/easzlab/rvcm/pkg/router"
	"github.com/easzlab/rvcm/pkg/router/routertest"
)

func newRouter(t *testing.T, list string) *routertest.Server {
	t.Helper()
	srv := routertest.NewServer("admin", "secret")
	t.Cleanup(srv.Close)
	srv.SetVSList(list)
	return srv
}

func TestE2E_Version(t *testing.T) {
	res := runRvcm(t, "version")
	mustSucceed(t, res)
	if !strings.HasPrefix(res.stdout, "rvcm version ") {
		t.Errorf("unexpected version output %q", res.stdout)
	}
}

// Full workflow: create, enable, list, apply.
func TestE2E_CreateEnableApply(t *testing.T) {
	srv := newRouter(t, "")

	mustSucceed(t, runAgainst(t, srv, "create", "ssh", "2222", "2222", "22", "22", "11", "tcp"))
	res := runAgainst(t, srv, "enable", "ssh")
	mustSucceed(t, res)
	if res.stdout != "enabling 1-ssh-2222-2222-1-22-22-11-0-\n" {
		t.Errorf("unexpected enable output %q", res.stdout)
	}

	res = runAgainst(t, srv, "nat")
	mustSucceed(t, res)
	if !strings.Contains(res.stdout, "127.0.0.11") {
		t.Errorf("expected LAN address in listing, got:\n%s", res.stdout)
	}

	mustSucceed(t, runAgainst(t, srv, "apply"))
	if len(srv.Applies()) != 1 {
		t.Errorf("expected 1 apply, got %d", len(srv.Applies()))
	}
	if srv.VSList() != "1-ssh-2222-2222-1-22-22-11-0-;" {
		t.Errorf("unexpected router list %q", srv.VSList())
	}
}

// Logs must never mix into stdout.
func TestE2E_VerboseLogsGoToStderr(t *testing.T) {
	srv := newRouter(t, "1-web-80-80-1-80-80-2-0-;")

	res := runAgainst(t, srv, "-v", "nat", "-o", "json")
	mustSucceed(t, res)
	if !strings.HasPrefix(strings.TrimSpace(res.stdout), "[") {
		t.Errorf("expected pure JSON on stdout, got:\n%s", res.stdout)
	}
	if !strings.Contains(res.stderr, "DEBUG") {
		t.Errorf("expected debug logs on stderr, got:\n%s", res.stderr)
	}
}

func TestE2E_NothingToRemoveExitsZero(t *testing.T) {
	srv := newRouter(t, "1-web-80-80-1-80-80-2-0-;")

	res := runAgainst(t, srv, "remove", "missing")
	mustSucceed(t, res)
	if res.stdout != "nothing to remove\n" {
		t.Errorf("unexpected output %q", res.stdout)
	}
	if len(srv.Saves()) != 0 {
		t.Errorf("expected no save, got %d", len(srv.Saves()))
	}
}

func TestE2E_RouterErrorExitsOne(t *testing.T) {
	srv := newRouter(t, "0-web-80-80-1-80-80-2-0-;")
	srv.FailPath(router.PathNATSave, http.StatusInternalServerError, "Invalid port range")

	res := runAgainst(t, srv, "enable", "web")
	if res.exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", res.exitCode)
	}
	if !strings.Contains(res.stderr, "Invalid port range") {
		t.Errorf("expected router message on stderr, got:\n%s", res.stderr)
	}
}

func TestE2E_WrongPasswordExitsOne(t *testing.T) {
	srv := newRouter(t, "")

	res := runRvcm(t, "-i", srv.Host(), "-p", "wrong", "nat")
	if res.exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", res.exitCode)
	}
}

func TestE2E_ConfigFileAndPasswordFile(t *testing.T) {
	srv := newRouter(t, "")
	dir := t.TempDir()

	passwordFile := dir + "/password"
	if err := os.WriteFile(passwordFile, []byte("secret\n"), 0600); err != nil {
		t.Fatalf("failed to write password file: %v", err)
	}
	configPath := writeTestConfig(t, dir, fmt.Sprintf(`
router:
  host: %s
  password_file: %s
rules:
  - name: web
    protocol: tcp
    public_port_min: 80
    target: 2
`, srv.Host(), passwordFile))

	res := runRvcm(t, "-c", configPath, "sync")
	mustSucceed(t, res)
	if res.stdout != "creating 1-web-80-80-1-80-80-2-0-\n" {
		t.Errorf("unexpected sync output %q", res.stdout)
	}
}

func TestE2E_InvalidConfigExitsOne(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, `
router:
  host: 192.168.1.1
rules:
  - name: bad-name
    public_port_min: 80
`)

	res := runRvcm(t, "-c", configPath, "sync")
	if res.exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", res.exitCode)
	}
	if !strings.Contains(res.stderr, "bad-name") {
		t.Errorf("expected offending rule name in error, got:\n%s", res.stderr)
	}
}
