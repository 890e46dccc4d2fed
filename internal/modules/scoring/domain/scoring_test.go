package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	activity "tabtrail/internal/modules/activity/domain"
)

func addNode(s *activity.Session, url, category string, navIndex int, activeMs int64, at int64) *activity.Node {
	s.NavigationCount = navIndex
	node, _ := s.EnsureNode(url, "", category, at)
	s.RecordVisit(node, at)
	s.AddActiveTime(node, nil, activeMs)
	return node
}

func noonUTC() int64 {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
}

func TestDistractionScoreMonotonicInActiveTime(t *testing.T) {
	t.Parallel()

	prefs := Preferences{Sensitivity: SensitivityBalanced, Location: time.UTC, DistractingDomains: []string{"youtube.com"}}
	for _, category := range []string{activity.CategoryVideo, activity.CategoryCode, activity.CategoryOther} {
		s := activity.NewSession("s", 0, 16)
		node := addNode(s, "https://www.youtube.com/watch?v=1", category, 0, 0, noonUTC())
		addNode(s, "https://example.com/a", activity.CategoryNews, 2, 60_000, noonUTC())
		sig := ComputeSessionSignals(s)

		prev := -1.0
		for _, ms := range []int64{0, 1, 1_000, 30_000, 60_000, 10 * 60_000, 60 * 60_000, 10 * 60 * 60_000, 100 * 60 * 60_000} {
			node.ActiveMs = ms
			score, inputs := ComputeDistractionScore(node, s, sig, prefs)
			require.Equal(t, ms, inputs.ActiveMs)
			require.GreaterOrEqual(t, score, prev, fmt.Sprintf("%s at %dms", category, ms))
			prev = score
		}
	}
}

func TestDistractionIntentWeight(t *testing.T) {
	t.Parallel()

	s := activity.NewSession("s", 0, 16)
	login := addNode(s, "https://accounts.example.com/signin", activity.CategoryOther, 0, 10*60_000, noonUTC())
	feed := addNode(s, "https://x.com/home", activity.CategorySocial, 1, 10*60_000, noonUTC())
	sig := Signals{}
	prefs := Preferences{Location: time.UTC, ProductiveDomains: []string{"example.com"}}

	_, loginInputs := ComputeDistractionScore(login, s, sig, prefs)
	require.InDelta(t, authDiscount*productiveDiscount, loginInputs.IntentWeight, 1e-9)

	_, feedInputs := ComputeDistractionScore(feed, s, Signals{FeedLike: true, RevisitShare: 0.5}, prefs)
	require.InDelta(t, feedSurcharge*loopSurcharge, feedInputs.IntentWeight, 1e-9)
}

func TestLateNightBonus(t *testing.T) {
	t.Parallel()

	s := activity.NewSession("s", 0, 16)
	lateAt := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC).UnixMilli()
	node := addNode(s, "https://example.com", activity.CategoryOther, 0, 60_000, lateAt)
	prefs := Preferences{Location: time.UTC}

	late, inputs := ComputeDistractionScore(node, s, Signals{}, prefs)
	require.True(t, inputs.LateNight)
	node.LastSeen = noonUTC()
	day, inputs := ComputeDistractionScore(node, s, Signals{}, prefs)
	require.False(t, inputs.LateNight)
	require.InDelta(t, lateNightBonus, late-day, 1e-9)
}

func TestDistractionLabels(t *testing.T) {
	t.Parallel()

	require.Equal(t, LabelLow, DistractionLabel(0.1))
	require.Equal(t, LabelMedium, DistractionLabel(0.35))
	require.Equal(t, LabelHigh, DistractionLabel(0.9))
}

func TestIntentDriftFloor(t *testing.T) {
	t.Parallel()

	prefs := DefaultPreferences()
	cases := map[string]func() *activity.Session{
		"empty": func() *activity.Session { return activity.NewSession("s", 0, 8) },
		"short": func() *activity.Session {
			s := activity.NewSession("s", 0, 8)
			for i := 0; i < 20; i++ {
				addNode(s, fmt.Sprintf("https://site%d.test", i), activity.CategorySocial, i, 5_000, noonUTC())
			}
			return s
		},
		"single node": func() *activity.Session {
			s := activity.NewSession("s", 0, 8)
			addNode(s, "https://site.test", activity.CategoryVideo, 0, 60*60_000, noonUTC())
			return s
		},
	}
	for name, build := range cases {
		s := build()
		drift := ComputeIntentDrift(s, ComputeSessionSignals(s), prefs)
		require.Equal(t, DriftUnknown, drift.Label, name)
		require.Equal(t, ConfidenceLow, drift.Confidence, name)
	}
}

func TestIntentDriftSeparatesFocusFromHopping(t *testing.T) {
	t.Parallel()

	prefs := Preferences{Sensitivity: SensitivityBalanced, Location: time.UTC}

	focused := activity.NewSession("f", 0, 64)
	addNode(focused, "https://github.com/org/repo/pull/1", activity.CategoryCode, 0, 40*60_000, noonUTC())
	addNode(focused, "https://pkg.go.dev/net/http", activity.CategoryCode, 1, 5*60_000, noonUTC())
	focusedDrift := ComputeIntentDrift(focused, ComputeSessionSignals(focused), prefs)
	require.Equal(t, DriftFocused, focusedDrift.Label)

	hopping := activity.NewSession("h", 0, 64)
	hosts := []string{"x.com", "reddit.com", "youtube.com", "amazon.com", "nytimes.com", "tiktok.com"}
	categories := []string{activity.CategorySocial, activity.CategorySocial, activity.CategoryVideo, activity.CategoryShopping, activity.CategoryNews, activity.CategorySocial}
	prev := ""
	for i := 0; i < 30; i++ {
		url := fmt.Sprintf("https://%s/item/%d", hosts[i%len(hosts)], i)
		node := addNode(hopping, url, categories[i%len(categories)], i, 6_000, noonUTC())
		if prev != "" {
			hopping.UpsertEdge(prev, node.URL, noonUTC())
		}
		prev = node.URL
	}
	hoppingDrift := ComputeIntentDrift(hopping, ComputeSessionSignals(hopping), prefs)
	require.Equal(t, DriftDrifting, hoppingDrift.Label)
	require.Greater(t, hoppingDrift.Score, focusedDrift.Score)
	require.Len(t, hoppingDrift.Drivers, 3)
	require.Equal(t, hoppingDrift.Drivers[0], hoppingDrift.Reason)
	require.Equal(t, ConfidenceMedium, hoppingDrift.Confidence)

	low := ComputeIntentDrift(hopping, ComputeSessionSignals(hopping), Preferences{Sensitivity: SensitivityLow, Location: time.UTC})
	high := ComputeIntentDrift(hopping, ComputeSessionSignals(hopping), Preferences{Sensitivity: SensitivityHigh, Location: time.UTC})
	require.LessOrEqual(t, low.Score, hoppingDrift.Score)
	require.GreaterOrEqual(t, high.Score, hoppingDrift.Score)
}

func TestTrapDoorThresholds(t *testing.T) {
	t.Parallel()

	require.True(t, QualifiesTrapDoor(TrapDoorMinDurationMs, 0))
	require.True(t, QualifiesTrapDoor(0, TrapDoorMinDepth))
	require.False(t, QualifiesTrapDoor(TrapDoorMinDurationMs-1, TrapDoorMinDepth-1))

	// last page reached: no depth after it, but 25 minutes spent there
	s := activity.NewSession("s", 0, 16)
	addNode(s, "https://a.test", activity.CategoryOther, 0, 60_000, noonUTC())
	addNode(s, "https://b.test", activity.CategoryOther, 1, 60_000, noonUTC())
	addNode(s, "https://c.test", activity.CategoryVideo, 2, 25*60_000, noonUTC())
	doors := EvaluateTrapDoors(s)
	require.Len(t, doors, 3)
	byURL := map[string]activity.TrapDoor{}
	for _, d := range doors {
		byURL[d.URL] = d
	}
	require.Equal(t, 0, byURL["https://c.test"].PostVisitDepth)
	require.Equal(t, int64(25*60_000), byURL["https://c.test"].PostVisitDurationMs)
	require.Equal(t, int64(27*60_000), byURL["https://a.test"].PostVisitDurationMs)
	require.Equal(t, "https://a.test", doors[0].URL)
}

func TestTrapDoorDepthOnlyAndTopThree(t *testing.T) {
	t.Parallel()

	s := activity.NewSession("s", 0, 32)
	for i := 0; i < 10; i++ {
		addNode(s, fmt.Sprintf("https://p%d.test", i), activity.CategoryOther, i, 1_000, noonUTC())
	}
	s.NavigationCount = 9
	doors := EvaluateTrapDoors(s)
	require.Len(t, doors, TrapDoorLimit)
	require.Equal(t, "https://p0.test", doors[0].URL)
	require.Equal(t, 9, doors[0].PostVisitDepth)
	for _, d := range doors {
		require.GreaterOrEqual(t, d.PostVisitDepth, TrapDoorMinDepth)
	}

	quiet := activity.NewSession("q", 0, 8)
	addNode(quiet, "https://a.test", activity.CategoryOther, 0, 60_000, noonUTC())
	addNode(quiet, "https://b.test", activity.CategoryOther, 1, 60_000, noonUTC())
	require.Empty(t, EvaluateTrapDoors(quiet))
}

func TestRefreshInsightsDerivesSessionFields(t *testing.T) {
	t.Parallel()

	s := activity.NewSession("s", 0, 16)
	addNode(s, "https://www.youtube.com/watch?v=1", activity.CategoryVideo, 0, 30*60_000, noonUTC())
	addNode(s, "https://github.com/a/b", activity.CategoryCode, 1, 10*60_000, noonUTC())
	RefreshInsights(s, Preferences{Location: time.UTC})

	require.Equal(t, int64(40*60_000), s.TotalActiveMs)
	require.Equal(t, int64(30*60_000), s.CategoryTotals[activity.CategoryVideo])
	require.Greater(t, s.DistractionAverage, 0.0)
	require.NotEmpty(t, s.DistractionLabel)
	require.NotEqual(t, DriftUnknown, s.IntentDrift.Label)
	want := activity.RecomputeMetrics(s)
	require.InDelta(t, want.WeightedScore, s.Metrics.WeightedScore, 1e-6)
}
