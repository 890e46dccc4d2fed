package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dataDir string, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--data-dir", dataDir}, args...))
	err := root.Execute()
	return out.String(), err
}

func quietDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tabtrail.yaml"), []byte("logging:\n  level: disabled\n"), 0o644))
	return dir
}

func TestSessionsOnEmptyStore(t *testing.T) {
	t.Parallel()
	out, err := run(t, quietDataDir(t), "", "sessions")
	require.NoError(t, err)
	require.Equal(t, "no sessions\n", out)
}

func TestReplayThenListSessions(t *testing.T) {
	t.Parallel()
	dir := quietDataDir(t)
	capture := `{"kind":"navigation","payload":{"tabId":3,"toUrl":"https://go.dev/blog","title":"The Go Blog"}}` + "\n"

	out, err := run(t, dir, capture, "replay", "-")
	require.NoError(t, err)
	require.Equal(t, "lines=1 applied=1 skipped=0\n", out)

	out, err = run(t, dir, "", "sessions", "--json")
	require.NoError(t, err)
	require.Contains(t, out, `"navigationCount": 1`)
}

func TestCommandReportsUnknownType(t *testing.T) {
	t.Parallel()
	dir := quietDataDir(t)

	out, err := run(t, dir, "", "command", "tracking_pause")
	require.NoError(t, err)
	require.Equal(t, "ok\n", out)

	_, err = run(t, dir, "", "command", "rewind_time")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown command")
}

func TestClassifierListWithoutManifest(t *testing.T) {
	t.Parallel()
	out, err := run(t, quietDataDir(t), "", "classifier", "list")
	require.NoError(t, err)
	require.Equal(t, "no classifiers configured\n", out)
}

func TestFlags(t *testing.T) {
	t.Parallel()
	require.Equal(t, "2m0s", activeTime(95_000))
	require.Equal(t, "45s", activeTime(45_000))
	require.Equal(t, "abcdefgh", shortID("abcdefgh-1234"))
}
