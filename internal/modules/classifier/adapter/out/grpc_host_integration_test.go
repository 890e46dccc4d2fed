package out_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	classifierout "tabtrail/internal/modules/classifier/adapter/out"
	"tabtrail/internal/modules/classifier/domain"
)

func TestGRPCHostIntegrationReferenceClassifier(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a plugin binary")
	}
	binPath, checksum := buildReferenceClassifier(t)
	manifest := domain.Manifest{
		Name:         "reference",
		Version:      "1.0.0",
		Binary:       binPath,
		SHA256:       checksum,
		Enabled:      true,
		Capabilities: []domain.Capability{domain.CapabilityClassify, domain.CapabilityTitles},
	}
	require.NoError(t, manifest.Validate())

	host := classifierout.NewGRPCHost(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, host.CheckLifecycle(ctx, manifest))
	meta, err := host.GetMetadata(ctx, manifest)
	require.NoError(t, err)
	require.Equal(t, "reference", meta.Name)
	require.Contains(t, meta.Categories, "Video")

	conn, err := host.Connect(ctx, manifest)
	require.NoError(t, err)
	defer conn.Close()

	verdict, err := conn.Classify(ctx, domain.NewRequest("https://videos.example.com/watch/1", "", false))
	require.NoError(t, err)
	require.Equal(t, "Video", verdict.Category)
	require.Equal(t, "reference", verdict.Source)

	verdict, err = conn.Classify(ctx, domain.NewRequest("https://example.com/", "Weekly recipe ideas", true))
	require.NoError(t, err)
	require.Empty(t, verdict.Category)
}

func buildReferenceClassifier(t *testing.T) (string, string) {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "classifier-reference")
	cmd := exec.Command("go", "build", "-o", binPath, "./plugins/classifier-reference")
	cmd.Dir = repositoryRoot(t)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	payload, err := os.ReadFile(binPath)
	require.NoError(t, err)
	hash := sha256.Sum256(payload)
	return binPath, hex.EncodeToString(hash[:])
}

func repositoryRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "../../../../../"))
}
