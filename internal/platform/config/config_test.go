package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tabtrail/internal/platform/config"
)

func TestNewUsesDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.New(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "tabtrail.db"), cfg.DBPath)
	require.Equal(t, 4, cfg.Tracking.SessionTimeoutMinutes)
	require.Equal(t, 5000, cfg.Tracking.EventCapacity)
	require.Equal(t, "balanced", cfg.Scoring.Sensitivity)
}

func TestNewMergesYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	raw := `
db_path: state.db
tracking:
  session_timeout_minutes: 10
scoring:
  sensitivity: high
  distracting_domains: [reddit.com]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(raw), 0o644))
	t.Setenv("TABTRAIL_LISTEN", "127.0.0.1:9999")

	cfg, err := config.New(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "state.db"), cfg.DBPath)
	require.Equal(t, 10, cfg.Tracking.SessionTimeoutMinutes)
	require.Equal(t, 5000, cfg.Tracking.EventCapacity)
	require.Equal(t, "high", cfg.Scoring.Sensitivity)
	require.Equal(t, []string{"reddit.com"}, cfg.Scoring.DistractingDomains)
	require.Equal(t, "127.0.0.1:9999", cfg.Listen)
}

func TestNewRejectsInvalidSensitivity(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("scoring:\n  sensitivity: wild\n"), 0o644))
	_, err := config.New(dir)
	require.Error(t, err)
}

func TestNewRequiresDataDir(t *testing.T) {
	t.Parallel()
	_, err := config.New("")
	require.Error(t, err)
}
