package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func requireMetricsMatch(t *testing.T, s *Session) {
	t.Helper()
	want := RecomputeMetrics(s)
	s.MaxNodeActiveMs()
	got := s.Metrics
	require.Equal(t, want.TotalActiveMs, got.TotalActiveMs)
	require.Equal(t, want.NodesCount, got.NodesCount)
	require.Equal(t, want.MaxNodeActiveMs, got.MaxNodeActiveMs)
	require.Equal(t, want.RevisitCount, got.RevisitCount)
	require.InDelta(t, want.WeightedScore, got.WeightedScore, 1e-6)
	require.Equal(t, want.CategoryTotals, nonZero(got.CategoryTotals))
}

func nonZero(in map[string]int64) map[string]int64 {
	out := map[string]int64{}
	for k, v := range in {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

func TestIncrementalMetricsEqualRecompute(t *testing.T) {
	t.Parallel()

	s := NewSession("s", 0, 32)
	a, _ := s.EnsureNode("https://a.test", "A", CategoryStudy, 0)
	s.RecordVisit(a, 0)
	s.NavigationCount++
	b, _ := s.EnsureNode("https://b.test", "B", CategoryVideo, 10)
	s.RecordVisit(b, 10)
	ab := s.UpsertEdge(a.URL, b.URL, 10)
	s.AddActiveTime(a, nil, 30_000)
	s.AddActiveTime(b, ab, 90_000)
	requireMetricsMatch(t, s)

	s.SetNodeScore(b, 0.8)
	s.SetNodeScore(a, 0.2)
	s.NavigationCount++
	s.RecordVisit(a, 20)
	s.AddActiveTime(a, s.UpsertEdge(b.URL, a.URL, 20), 5_000)
	requireMetricsMatch(t, s)

	s.SetNodeCategory(b, CategorySocial)
	requireMetricsMatch(t, s)
	require.Equal(t, CategorySocial, s.DominantCategory())

	s.RemoveNode(b.URL)
	require.True(t, s.Metrics.MaxDirty)
	requireMetricsMatch(t, s)
	require.Empty(t, s.Edges)
	require.Equal(t, int64(35_000), s.MaxNodeActiveMs())
}

func TestEnsureNodeStampsNavigationIndex(t *testing.T) {
	t.Parallel()

	s := NewSession("s", 0, 8)
	s.NavigationCount = 3
	node, created := s.EnsureNode("https://x.test", "X", CategoryOther, 5)
	require.True(t, created)
	require.Equal(t, 3, node.FirstNavigationIndex)

	s.NavigationCount = 5
	again, created := s.EnsureNode("https://x.test", "X2", CategoryOther, 6)
	require.False(t, created)
	require.Same(t, node, again)
	require.Equal(t, "X2", again.Title)
	require.Equal(t, 3, again.FirstNavigationIndex)
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	s := NewSession("s", 0, 8)
	node, _ := s.EnsureNode("https://x.test", "X", CategoryCode, 1)
	s.AddActiveTime(node, nil, 100)
	s.AppendEvent(Event{TS: 1, Type: EventTabFocus})

	c := s.Clone()
	c.Nodes["https://x.test"].ActiveMs = 999
	c.Metrics.CategoryTotals[CategoryCode] = 1
	c.Events[0].TS = 42

	require.Equal(t, int64(100), node.ActiveMs)
	require.Equal(t, int64(100), s.Metrics.CategoryTotals[CategoryCode])
	require.Equal(t, int64(1), s.Events[0].TS)
}
