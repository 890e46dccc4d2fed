package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func validManifest() Manifest {
	return Manifest{
		Name:         "hosts",
		Version:      "1.0.0",
		Binary:       "/opt/tabtrail/hosts",
		SHA256:       strings.Repeat("a", 64),
		Enabled:      true,
		Capabilities: []Capability{CapabilityClassify},
	}
}

func TestManifestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validManifest().Validate())

	cases := map[string]func(m *Manifest){
		"upper name":     func(m *Manifest) { m.Name = "Hosts" },
		"no version":     func(m *Manifest) { m.Version = "" },
		"short checksum": func(m *Manifest) { m.SHA256 = "abc" },
		"bad confidence": func(m *Manifest) { m.MinConfidence = 1.5 },
		"duplicate cap":  func(m *Manifest) { m.Capabilities = []Capability{CapabilityClassify, CapabilityClassify} },
		"unknown cap":    func(m *Manifest) { m.Capabilities = []Capability{"render"} },
		"titles only":    func(m *Manifest) { m.Capabilities = []Capability{CapabilityTitles} },
	}
	for name, mutate := range cases {
		m := validManifest()
		mutate(&m)
		require.Error(t, m.Validate(), name)
	}

	m := validManifest()
	m.Capabilities = []Capability{CapabilityTitles}
	require.ErrorIs(t, m.Validate(), ErrCapabilityMissing)
}

func TestCacheKeyAndRequest(t *testing.T) {
	t.Parallel()

	require.Equal(t, "youtube.com/watch", CacheKey("https://www.youtube.com/watch?v=1"))
	require.Equal(t, "youtube.com/feed", CacheKey("https://youtube.com/Feed/subscriptions"))
	require.Equal(t, "example.com/", CacheKey("https://example.com"))
	require.Empty(t, CacheKey("not a url"))

	req := NewRequest("https://docs.example.com/guide/intro#top", "Intro", false)
	require.Equal(t, "docs.example.com", req.Host)
	require.Equal(t, "/guide/intro", req.Path)
	require.Empty(t, req.Title)
	require.Equal(t, "Intro", NewRequest("https://docs.example.com/", "Intro", true).Title)
}

func TestVerdictUsable(t *testing.T) {
	t.Parallel()

	require.True(t, Verdict{Category: "Video", Confidence: 0.8}.Usable(0.5))
	require.False(t, Verdict{Category: "Video", Confidence: 0.4}.Usable(0.5))
	require.False(t, Verdict{Category: "Cooking", Confidence: 1}.Usable(0))
}
