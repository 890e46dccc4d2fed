package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tabtrail/internal/modules/activity/domain"
	scoring "tabtrail/internal/modules/scoring/domain"
)

type seqIDs struct{ n int }

func (g *seqIDs) New() string {
	g.n++
	return fmt.Sprintf("session-%d", g.n)
}

type fixture struct {
	store     *StateStore
	lifecycle *LifecycleService
	tracker   *TrackerService
	commands  *CommandService
	ended     []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, domain.DefaultRules())
}

func newFixtureWith(t *testing.T, classifier domain.Classifier) *fixture {
	t.Helper()
	f := &fixture{store: NewStateStore(nil)}
	cfg := LifecycleConfig{
		SessionTimeout: 4 * time.Minute,
		EventCapacity:  64,
		Preferences:    scoring.Preferences{Sensitivity: scoring.SensitivityBalanced, Location: time.UTC},
	}
	f.lifecycle = NewLifecycleService(f.store, &seqIDs{}, classifier, cfg, zerolog.Nop())
	f.lifecycle.OnSessionEnd(func(id string) { f.ended = append(f.ended, id) })
	f.tracker = NewTrackerService(f.store, f.lifecycle, zerolog.Nop())
	f.commands = NewCommandService(f.store, f.lifecycle, f.tracker, zerolog.Nop())
	return f
}

func at(h, m, s int) int64 {
	return time.Date(2024, 6, 3, h, m, s, 0, time.UTC).UnixMilli()
}

func TestGetActiveSessionStableWithinTick(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	now := at(10, 0, 0)
	first := f.lifecycle.GetActiveSession(now)
	require.Same(t, first, f.lifecycle.GetActiveSession(now))
	require.Same(t, first, f.lifecycle.GetActiveSession(now+5))
	require.Equal(t, domain.DayStart(now, time.UTC), first.StartedAt)
	require.Len(t, f.store.State().Sessions, 1)
}

func TestDayRolloverEndsAtDayEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	day1 := at(22, 0, 0)
	old := f.lifecycle.GetActiveSession(day1)
	next := day1 + int64(3*time.Hour/time.Millisecond)

	fresh := f.lifecycle.GetActiveSession(next)
	require.NotSame(t, old, fresh)
	require.Same(t, fresh, f.lifecycle.GetActiveSession(next))
	require.Equal(t, domain.DayEnd(day1, time.UTC), old.EndedAt)
	require.Equal(t, time.Date(2024, 6, 3, 23, 59, 59, 999_000_000, time.UTC).UnixMilli(), old.EndedAt)
	require.Equal(t, domain.EndReasonDayEnd, old.EndReason)
	require.Equal(t, domain.DayStart(next, time.UTC), fresh.StartedAt)
	require.Equal(t, []string{old.ID}, f.ended)

	last, ok := old.LastEvent()
	require.True(t, ok)
	require.Equal(t, domain.EventSessionEnd, last.Type)
}

func TestDuplicateOpenSessionsAreSuperseded(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	st := f.store.State()
	a := domain.NewSession("a", at(8, 0, 0), 16)
	a.LastActivityAt = at(9, 0, 0)
	b := domain.NewSession("b", at(8, 30, 0), 16)
	b.LastActivityAt = at(9, 30, 0)
	st.AddSession(a)
	st.AddSession(b)

	got := f.lifecycle.GetActiveSession(at(10, 0, 0))
	require.Same(t, b, got)
	require.Equal(t, domain.EndReasonSuperseded, a.EndReason)
	require.True(t, b.IsActive())
}

func TestScenarioLinearBrowsing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	t0 := at(9, 0, 0)
	f.tracker.Navigation(1, "", "https://a.test/", "A", "typed", t0)
	f.tracker.Navigation(1, "https://a.test/", "https://b.test/", "B", "link", t0+30_000)
	f.tracker.Navigation(1, "https://b.test/", "https://c.test/", "C", "link", t0+60_000)
	f.tracker.Tick(t0 + 90_000)

	s := f.store.ActiveSession()
	require.NotNil(t, s)
	require.Equal(t, 2, s.NavigationCount)
	require.Equal(t, 2, s.Nodes["https://c.test"].FirstNavigationIndex)
	require.Equal(t, 0, s.Nodes["https://a.test"].FirstNavigationIndex)
	require.InDelta(t, 90_000, s.Metrics.TotalActiveMs, 1_000)
	require.Equal(t, int64(30_000), s.Nodes["https://b.test"].ActiveMs)
	require.Len(t, s.Edges, 2)
	require.Equal(t, int64(30_000), s.Edges[domain.EdgeKey("https://a.test", "https://b.test")].ActiveMs)
	require.Equal(t, "https://c.test", f.store.State().Tabs[1].URL)
}

// studyThenIdleOnVideo builds a Study-dominated session and leaves the user
// idle on a video page for ten minutes.
func studyThenIdleOnVideo(t *testing.T, f *fixture) (*domain.Session, int64) {
	t.Helper()
	t0 := at(14, 0, 0)
	f.tracker.Navigation(1, "", "https://en.wikipedia.org/wiki/Graph", "Graph", "typed", t0)
	f.tracker.Tick(t0 + 20*60_000)
	f.tracker.Navigation(1, "https://en.wikipedia.org/wiki/Graph", "https://www.youtube.com/watch?v=x", "Clip", "link", t0+20*60_000)
	f.tracker.UserIdle(domain.IdleStateIdle, t0+22*60_000)
	s := f.store.ActiveSession()
	require.Equal(t, domain.CategoryStudy, s.DominantCategory())
	return s, t0 + 32*60_000
}

func TestScenarioIdleReturnSameIntentKeepsSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	s, resume := studyThenIdleOnVideo(t, f)
	f.tracker.Navigation(1, "https://www.youtube.com/watch?v=x", "https://en.wikipedia.org/wiki/Tree", "Tree", "link", resume)

	require.Same(t, s, f.store.ActiveSession())
	require.True(t, s.IsActive())
	require.Contains(t, s.Nodes, "https://en.wikipedia.org/wiki/Tree")
	require.Equal(t, domain.IdleStateActive, f.store.State().Tracking.IdleState)
}

func TestScenarioIdleReturnOppositeIntentSplits(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	s, resume := studyThenIdleOnVideo(t, f)
	f.tracker.Navigation(1, "https://www.youtube.com/watch?v=x", "https://www.reddit.com/r/all", "Reddit", "link", resume)

	fresh := f.store.ActiveSession()
	require.NotSame(t, s, fresh)
	require.Equal(t, resume, s.EndedAt)
	require.Empty(t, s.EndReason)
	last, _ := s.LastEvent()
	require.Equal(t, domain.EventSessionSplit, last.Type)
	require.Equal(t, ReasonIntentShift, last.Reason)
	require.Equal(t, resume, fresh.StartedAt)
	require.Contains(t, fresh.Nodes, "https://www.reddit.com/r/all")
	require.Len(t, f.store.State().OpenSessions(), 1)
}

func TestActivityBeforeNavigationLeavesIntentToDestination(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	s, resume := studyThenIdleOnVideo(t, f)
	f.tracker.UserActivity("mouse", resume)
	require.Same(t, s, f.store.ActiveSession())
	require.Equal(t, domain.IdleStateActive, f.store.State().Tracking.IdleState)
	f.tracker.Tick(resume + 1_000)

	f.tracker.Navigation(1, "https://www.youtube.com/watch?v=x", "https://en.wikipedia.org/wiki/Tree", "Tree", "link", resume+2_000)

	require.Same(t, s, f.store.ActiveSession())
	require.True(t, s.IsActive())
	require.Contains(t, s.Nodes, "https://en.wikipedia.org/wiki/Tree")
	last, _ := s.LastEvent()
	require.NotEqual(t, domain.EventSessionSplit, last.Type)
	require.Equal(t, resume+2_000, s.LastActivityAt)
	require.Zero(t, f.store.State().Tracking.IdleSince)
}

func TestActivityBeforeOppositeNavigationStillSplits(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	s, resume := studyThenIdleOnVideo(t, f)
	f.tracker.UserActivity("keyboard", resume)
	f.tracker.Navigation(1, "https://www.youtube.com/watch?v=x", "https://www.reddit.com/r/all", "Reddit", "link", resume+2_000)

	fresh := f.store.ActiveSession()
	require.NotSame(t, s, fresh)
	require.Empty(t, s.EndReason)
	last, _ := s.LastEvent()
	require.Equal(t, domain.EventSessionSplit, last.Type)
	require.Contains(t, fresh.Nodes, "https://www.reddit.com/r/all")
}

// lateVerdicts stands in for a plugin classifier whose answers arrive after
// the first visit.
type lateVerdicts map[string]string

func (v lateVerdicts) Classify(url, _ string) (string, bool) {
	category, ok := v[url]
	return category, ok
}

func TestRevisitAppliesLateClassifierVerdict(t *testing.T) {
	t.Parallel()
	verdicts := lateVerdicts{}
	f := newFixtureWith(t, domain.ChainClassifier{verdicts, domain.DefaultRules()})

	const page = "https://blog.example/post"
	t0 := at(9, 0, 0)
	f.tracker.Navigation(1, "", page, "Post", "typed", t0)
	f.tracker.Navigation(1, page, "https://go.dev/doc", "Docs", "link", t0+60_000)

	s := f.store.ActiveSession()
	require.Equal(t, domain.CategoryOther, s.Nodes[page].Category)
	require.Equal(t, int64(60_000), s.Metrics.CategoryTotals[domain.CategoryOther])

	verdicts[page] = domain.CategoryNews
	f.tracker.Navigation(1, "https://go.dev/doc", page, "Post", "link", t0+90_000)

	require.Equal(t, domain.CategoryNews, s.Nodes[page].Category)
	require.Equal(t, int64(60_000), s.Metrics.CategoryTotals[domain.CategoryNews])
	require.NotContains(t, s.Metrics.CategoryTotals, domain.CategoryOther)
	require.Equal(t, domain.RecomputeMetrics(s).CategoryTotals, s.Metrics.CategoryTotals)
}

func TestIdleStopsAccounting(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	t0 := at(11, 0, 0)
	f.tracker.Navigation(3, "", "https://example.com/x", "X", "typed", t0)
	f.tracker.UserIdle(domain.IdleStateIdle, t0+10_000)
	f.tracker.Tick(t0 + 600_000)
	f.tracker.UserActivity("keyboard", t0+700_000)
	f.tracker.Tick(t0 + 705_000)

	s := f.store.ActiveSession()
	require.Equal(t, int64(15_000), s.Nodes["https://example.com/x"].ActiveMs)
}

func TestWindowBlurAndPauseStopAccounting(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	t0 := at(11, 0, 0)
	f.tracker.Navigation(3, "", "https://example.com/x", "X", "typed", t0)
	f.tracker.WindowFocus(false, t0+5_000)
	f.tracker.WindowFocus(true, t0+60_000)
	f.tracker.Pause(t0 + 65_000)
	f.tracker.Tick(t0 + 300_000)
	require.True(t, f.store.State().Tracking.Paused)
	f.tracker.Resume(t0 + 300_000)
	f.tracker.Tick(t0 + 302_000)

	s := f.store.ActiveSession()
	require.Equal(t, int64(12_000), s.Nodes["https://example.com/x"].ActiveMs)
}

func TestMidnightSpanIsSplitAcrossDays(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	start := at(23, 59, 0)
	f.tracker.Navigation(1, "", "https://example.com/", "E", "typed", start)
	old := f.store.ActiveSession()
	f.tracker.Tick(start + 90_000)

	require.Equal(t, domain.EndReasonDayEnd, old.EndReason)
	require.Equal(t, int64(60_000), old.Nodes["https://example.com"].ActiveMs)
	fresh := f.store.ActiveSession()
	require.NotSame(t, old, fresh)
	require.Equal(t, int64(30_000), fresh.Nodes["https://example.com"].ActiveMs)
}

func TestCommandsNoOpOnMissingTargets(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	changed, err := f.commands.Apply(domain.CommandSessionArchive, "nope", "", at(9, 0, 0))
	require.NoError(t, err)
	require.False(t, changed)

	_, err = f.commands.Apply(domain.CommandSessionArchive, "", "", at(9, 0, 0))
	require.Error(t, err)

	_, err = f.commands.Apply("explode", "", "", at(9, 0, 0))
	require.ErrorContains(t, err, "unknown command: explode")
}

func TestDeleteRestoreAndReset(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	t0 := at(9, 0, 0)
	f.tracker.Navigation(1, "", "https://a.test/", "A", "typed", t0)
	s := f.store.ActiveSession()

	changed, err := f.commands.Apply(domain.CommandSessionDelete, s.ID, "", t0+10_000)
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, s.Deleted)
	require.Equal(t, domain.EndReasonDeleted, s.EndReason)
	require.Contains(t, f.ended, s.ID)

	changed, _ = f.commands.Apply(domain.CommandSessionDelete, s.ID, "", t0+11_000)
	require.False(t, changed)
	changed, _ = f.commands.Apply(domain.CommandSessionFavoriteToggle, s.ID, "", t0+11_000)
	require.False(t, changed)

	changed, _ = f.commands.Apply(domain.CommandSessionRestore, s.ID, "", t0+12_000)
	require.True(t, changed)
	require.False(t, s.Deleted)

	_, err = f.commands.Apply(domain.CommandSessionSummaryUpdate, s.ID, "read about graphs", t0+13_000)
	require.NoError(t, err)
	require.Equal(t, "read about graphs", s.Summary)

	_, err = f.commands.Apply(domain.CommandSessionReset, "", "", t0+20_000)
	require.NoError(t, err)
	fresh := f.store.ActiveSession()
	require.NotNil(t, fresh)
	require.Equal(t, t0+20_000, fresh.StartedAt)
	require.Contains(t, fresh.Nodes, "https://a.test")

	_, err = f.commands.Apply(domain.CommandResetState, "", "", t0+30_000)
	require.NoError(t, err)
	st := f.store.State()
	require.Empty(t, st.Sessions)
	require.Equal(t, "https://a.test", st.Tracking.CurrentURL)
	require.Equal(t, t0+30_000, st.Tracking.ActiveSince)
}
