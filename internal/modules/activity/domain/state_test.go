package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddSessionKeepsStartOrder(t *testing.T) {
	t.Parallel()

	st := NewState()
	st.AddSession(NewSession("b", 200, 8))
	st.AddSession(NewSession("a", 100, 8))
	st.AddSession(NewSession("c", 300, 8))
	st.AddSession(NewSession("a2", 100, 8))
	require.Equal(t, []string{"a", "a2", "b", "c"}, st.SessionOrder)

	st.RemoveSession("b")
	require.Equal(t, []string{"a", "a2", "c"}, st.SessionOrder)
	st.RemoveSession("missing")
	require.Len(t, st.Sessions, 3)
}

func TestActiveSessionCacheFollowsGeneration(t *testing.T) {
	t.Parallel()

	st := NewState()
	s := NewSession("one", 0, 8)
	st.AddSession(s)
	st.SetActiveSessionID("one")

	var cache ActiveSessionCache
	_, ok := cache.Lookup(st)
	require.False(t, ok)

	cache.Store(st, s)
	got, ok := cache.Lookup(st)
	require.True(t, ok)
	require.Same(t, s, got)

	st.SetActiveSessionID("one")
	_, ok = cache.Lookup(st)
	require.True(t, ok, "same id must not bump the generation")

	st.SetActiveSessionID("")
	_, ok = cache.Lookup(st)
	require.False(t, ok)

	st.SetActiveSessionID("one")
	_, ok = cache.Lookup(st)
	require.False(t, ok, "entry from an older generation stays invalid")

	cache.Store(st, s)
	s.EndedAt = 10
	_, ok = cache.Lookup(st)
	require.False(t, ok)
}

func TestStateCloneAndOpenSessions(t *testing.T) {
	t.Parallel()

	st := NewState()
	open := NewSession("open", 10, 8)
	closed := NewSession("closed", 5, 8)
	closed.EndedAt = 9
	st.AddSession(open)
	st.AddSession(closed)
	st.BindTab(7, "https://x.test", "X", "open", 11)
	st.BindTab(0, "https://ignored.test", "", "", 11)

	require.Len(t, st.OpenSessions(), 1)
	require.Equal(t, "open", st.OpenSessions()[0].ID)
	require.Len(t, st.Tabs, 1)

	c := st.Clone()
	c.Tabs[7].URL = "changed"
	c.Sessions["open"].NavigationCount = 9
	c.SessionOrder[0] = "zzz"
	require.Equal(t, "https://x.test", st.Tabs[7].URL)
	require.Equal(t, 0, open.NavigationCount)
	require.Equal(t, "closed", st.SessionOrder[0])
}

func TestTrackingCounting(t *testing.T) {
	t.Parallel()

	tr := Tracking{WindowFocused: true, IdleState: IdleStateActive, CurrentURL: "https://x.test", ActiveSince: 1}
	require.True(t, tr.Counting())
	paused := tr
	paused.Paused = true
	require.False(t, paused.Counting())
	blurred := tr
	blurred.WindowFocused = false
	require.False(t, blurred.Counting())
	idle := tr
	idle.IdleState = IdleStateIdle
	require.False(t, idle.Counting())
}

func TestDayBounds(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("test", 2*3600)
	noon := time.Date(2024, 3, 9, 12, 30, 0, 0, loc).UnixMilli()
	require.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, loc).UnixMilli(), DayStart(noon, loc))
	require.Equal(t, time.Date(2024, 3, 9, 23, 59, 59, 999_000_000, loc).UnixMilli(), DayEnd(noon, loc))
	require.True(t, SameDay(DayStart(noon, loc), DayEnd(noon, loc), loc))
	require.False(t, SameDay(noon, DayEnd(noon, loc)+1, loc))
}
