package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easzlab/rvcm/pkg/router"
	"github.com/easzlab/rvcm/pkg/router/routertest"
)

// runCommand executes the CLI with args and returns what it printed on stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// runAgainst runs a command against srv with the test credentials.
func runAgainst(t *testing.T, srv *routertest.Server, args ...string) (string, error) {
	t.Helper()
	return runCommand(t, append([]string{"-i", srv.Host(), "-p", "secret"}, args...)...)
}

func newTestRouter(t *testing.T, list string) *routertest.Server {
	t.Helper()
	srv := routertest.NewServer("admin", "secret")
	t.Cleanup(srv.Close)
	srv.SetVSList(list)
	return srv
}

func TestVersion(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "rvcm version dev\n", out)
}

func TestMissingHost(t *testing.T) {
	if _, err := runCommand(t, "nat"); err == nil {
		t.Fatal("expected error without router host, got nil")
	}
}

func TestNAT_List(t *testing.T) {
	srv := newTestRouter(t, "1-web-80-80-1-8080-8080-10-0-;0-voip-5060-5070-3-5060-5070-20-0-;")

	out, err := runAgainst(t, srv, "nat")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"NAME", "STATUS", "S-MIN-PRT", "S-MAX-PRT", "D-MIN-PRT", "D-MAX-PRT", "PROTO", "IP"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"web", "active", "80", "80", "8080", "8080", "TCP", "127.0.0.10"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"voip", "inactive", "5060", "5070", "5060", "5070", "BOTH", "127.0.0.20"}, strings.Fields(lines[2]))
}

func TestNAT_ListJSON(t *testing.T) {
	srv := newTestRouter(t, "1-web-80-80-1-8080-8080-10-0-;")

	out, err := runAgainst(t, srv, "nat", "--output", "json")
	require.NoError(t, err)

	var rules []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "web", rules[0]["name"])
	assert.Equal(t, "TCP", rules[0]["protocol"])
	assert.Equal(t, "127.0.0.10", rules[0]["ip"])
	assert.Equal(t, float64(8080), rules[0]["private_port_min"])
}

func TestNAT_UnknownOutputFormat(t *testing.T) {
	srv := newTestRouter(t, "")
	if _, err := runAgainst(t, srv, "nat", "-o", "xml"); err == nil {
		t.Fatal("expected error for unknown output format, got nil")
	}
}

func TestCreate(t *testing.T) {
	srv := newTestRouter(t, "")

	out, err := runAgainst(t, srv, "create", "ssh", "2222", "2222", "22", "22", "11", "tcp")
	require.NoError(t, err)
	assert.Equal(t, "creating 0-ssh-2222-2222-1-22-22-11-0-\n", out)
	assert.Equal(t, "0-ssh-2222-2222-1-22-22-11-0-;", srv.VSList())
	assert.Empty(t, srv.Applies(), "create must not apply")
}

func TestCreate_DefaultProtocolBoth(t *testing.T) {
	srv := newTestRouter(t, "")

	if _, err := runAgainst(t, srv, "create", "game", "27015", "27030", "27015", "27030", "5"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if srv.VSList() != "0-game-27015-27030-3-27015-27030-5-0-;" {
		t.Errorf("unexpected list %q", srv.VSList())
	}
}

func TestCreate_InvalidArguments(t *testing.T) {
	srv := newTestRouter(t, "")

	tests := []struct {
		name string
		args []string
	}{
		{name: "non-numeric port", args: []string{"create", "x", "a", "1", "1", "1", "1"}},
		{name: "unknown protocol", args: []string{"create", "x", "1", "1", "1", "1", "1", "sctp"}},
		{name: "too few args", args: []string{"create", "x", "1", "1"}},
		{name: "separator in name", args: []string{"create", "x-y", "1", "1", "1", "1", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runAgainst(t, srv, tt.args...); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
	if len(srv.Saves()) != 0 {
		t.Errorf("expected no saves, got %d", len(srv.Saves()))
	}
}

func TestEnable_NothingToEnable(t *testing.T) {
	srv := newTestRouter(t, "1-X-1000-1000-3-2000-2000-5-0-;")

	out, err := runAgainst(t, srv, "enable", "X")
	require.NoError(t, err)
	assert.Equal(t, "nothing to enable\n", out)
	assert.Empty(t, srv.Saves())
}

func TestDisable(t *testing.T) {
	srv := newTestRouter(t, "1-X-1000-1000-3-2000-2000-5-0-;")

	out, err := runAgainst(t, srv, "disable", "X")
	require.NoError(t, err)
	assert.Equal(t, "disabling 0-X-1000-1000-3-2000-2000-5-0-\n", out)
}

func TestUpdate(t *testing.T) {
	srv := newTestRouter(t, "1-X-1000-1000-3-2000-2000-5-0-;")

	out, err := runAgainst(t, srv, "update", "X", "--protocol", "udp")
	require.NoError(t, err)
	assert.Equal(t, "updating 1-X-1000-1000-2-2000-2000-5-0-\n", out)

	out, err = runAgainst(t, srv, "update", "X", "--protocol", "UDP", "--target", "5")
	require.NoError(t, err)
	assert.Equal(t, "nothing to update\n", out)
	assert.Len(t, srv.Saves(), 1)

	if _, err := runAgainst(t, srv, "update", "X"); err == nil {
		t.Error("expected error when no field flag is given")
	}
}

func TestRenameAndRemove(t *testing.T) {
	srv := newTestRouter(t, "1-X-1-1-1-1-1-1-0-;0-X-2-2-2-2-2-2-0-;")

	out, err := runAgainst(t, srv, "rename", "X", "Y")
	require.NoError(t, err)
	assert.Equal(t, "renaming 1-X-1-1-1-1-1-1-0-\nrenaming 0-X-2-2-2-2-2-2-0-\n", out)

	out, err = runAgainst(t, srv, "remove", "X")
	require.NoError(t, err)
	assert.Equal(t, "nothing to remove\n", out)

	out, err = runAgainst(t, srv, "remove", "Y")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "removing "))
	assert.Equal(t, "", srv.VSList())
	assert.Len(t, srv.Saves(), 2)
}

func TestRenameToSameName(t *testing.T) {
	srv := newTestRouter(t, "1-X-1-1-1-1-1-1-0-;")

	out, err := runAgainst(t, srv, "rename", "X", "X")
	require.NoError(t, err)
	assert.Equal(t, "nothing to rename\n", out)
	assert.Empty(t, srv.Saves())
}

func TestApply(t *testing.T) {
	srv := newTestRouter(t, "")

	out, err := runAgainst(t, srv, "apply")
	require.NoError(t, err)
	assert.Equal(t, "changes applied\n", out)
	assert.Len(t, srv.Applies(), 1)
}

func TestTransportErrorIsReturned(t *testing.T) {
	srv := newTestRouter(t, "0-X-1-1-1-1-1-1-0-;")
	srv.FailPath(router.PathNATSave, http.StatusInternalServerError, "Invalid port range")

	_, err := runAgainst(t, srv, "enable", "X")
	require.Error(t, err)
	assert.Equal(t, "failed to save NAT table: Invalid port range", err.Error())
}

func TestInfo(t *testing.T) {
	srv := newTestRouter(t, "")

	out, err := runAgainst(t, srv, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Model           : RV6688BCM")
	assert.Contains(t, out, "Unsaved changes : Yes")

	out, err = runAgainst(t, srv, "info", "-o", "json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "74951234567", info["sip"])
	assert.Equal(t, true, info["unsaved_changes"])
}

func TestCalls(t *testing.T) {
	srv := newTestRouter(t, "")
	srv.SetCallLogs([]string{routertest.CallLogRecord})

	out, err := runAgainst(t, srv, "calls")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"0", "IN", "Answered", "0000000000000", "55.66.77.88", "+100000000", "11.22.33.44", "934", "2016-11-28T19:43:31"}, strings.Fields(lines[1]))

	out, err = runAgainst(t, srv, "calls", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "called_ip: 11.22.33.44")
	assert.Contains(t, out, "duration: 934")
}

func TestSync(t *testing.T) {
	srv := newTestRouter(t, "1-old-21-21-1-21-21-5-0-;")

	path := filepath.Join(t.TempDir(), "rvcm.yaml")
	content := "router:\n  host: " + srv.Host() + "\n  password: secret\nprune: true\nrules:\n" +
		"  - name: web\n    protocol: tcp\n    public_port_min: 80\n    private_port_min: 8080\n    target: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out, err := runCommand(t, "-c", path, "sync", "--apply")
	require.NoError(t, err)
	assert.Equal(t, "creating 1-web-80-80-1-8080-8080-10-0-\nremoving 1-old-21-21-1-21-21-5-0-\n", out)
	assert.Len(t, srv.Applies(), 1)

	out, err = runCommand(t, "-c", path, "sync", "--apply")
	require.NoError(t, err)
	assert.Equal(t, "nothing to sync\n", out)
	assert.Len(t, srv.Applies(), 1)
}

func TestCheck(t *testing.T) {
	srv := newTestRouter(t, "1-dns-53-53-2-53-53-1-0-;0-off-1-1-1-1-1-1-0-;")

	out, err := runAgainst(t, srv, "check")
	require.NoError(t, err)
	assert.Equal(t, []string{"dns", "127.0.0.1:53", "skipped", "(udp)"}, strings.Fields(out))
}

func TestCheckNothingMatches(t *testing.T) {
	srv := newTestRouter(t, "1-dns-53-53-2-53-53-1-0-;0-off-1-1-1-1-1-1-0-;")

	for _, args := range [][]string{{"check", "off"}, {"check", "missing"}} {
		out, err := runAgainst(t, srv, args...)
		require.NoError(t, err)
		assert.Equal(t, "nothing to check\n", out)
	}
}
