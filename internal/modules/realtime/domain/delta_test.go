package domain

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	activity "tabtrail/internal/modules/activity/domain"
	apperrors "tabtrail/internal/platform/errors"
)

func navigate(s *activity.Session, from, url string, ts int64) {
	node, _ := s.EnsureNode(url, "title "+url, activity.CategoryWork, ts)
	s.RecordVisit(node, ts)
	s.NavigationCount++
	var edge *activity.Edge
	if from != "" {
		edge = s.UpsertEdge(from, url, ts)
	}
	s.AddActiveTime(node, edge, 1000)
	s.AppendNavigation(activity.Event{TS: ts, Type: activity.EventNavigation, TabID: 1, URL: url, FromURL: from}, 0)
	s.Touch(ts)
}

func fixture() *activity.State {
	st := activity.NewState()
	old := activity.NewSession("s0", 1_000, 8)
	navigate(old, "", "https://old.example/", 1_500)
	old.EndedAt = 2_000
	old.EndReason = activity.EndReasonDayEnd
	st.AddSession(old)

	cur := activity.NewSession("s1", 10_000, 8)
	navigate(cur, "", "https://a.example/", 10_000)
	navigate(cur, "https://a.example/", "https://b.example/", 12_000)
	st.AddSession(cur)
	st.SetActiveSessionID("s1")
	st.BindTab(1, "https://b.example/", "b", "s1", 12_000)
	return st
}

func normalized(st *activity.State) *activity.State {
	out := st.Clone()
	out.ActiveGeneration = 0
	for _, s := range out.Sessions {
		s.SetEvents(s.SessionEvents())
	}
	return out
}

func TestComputeDeltaNothingChanged(t *testing.T) {
	t.Parallel()

	st := fixture()
	cur := NewCursor(st)
	d, ok := ComputeDelta(st, cur)
	require.False(t, ok)
	require.True(t, d.Empty())
}

func TestActivePatchCarriesOnlyChanges(t *testing.T) {
	t.Parallel()

	st := fixture()
	cur := NewCursor(st)
	s := st.Sessions["s1"]
	navigate(s, "https://b.example/", "https://c.example/", 20_000)

	d, ok := ComputeDelta(st, cur)
	require.True(t, ok)
	require.Empty(t, d.Sessions)
	require.Empty(t, d.Removed)
	require.Nil(t, d.SessionOrder)
	require.Nil(t, d.Tracking)
	require.False(t, d.TabsChanged)

	p := d.Active
	require.NotNil(t, p)
	require.Len(t, p.Nodes, 1)
	require.Equal(t, "https://c.example/", p.Nodes[0].URL)
	require.Len(t, p.Edges, 1)
	require.Equal(t, "https://b.example/", p.Edges[0].From)
	require.Len(t, p.Events, 1)
	require.Zero(t, p.ReplaceTail)
	require.False(t, p.ResetEvents)
	require.Nil(t, p.Header.Nodes)
	require.Nil(t, p.Header.Events)
	require.Equal(t, 3, p.Header.NavigationCount)

	_, ok = ComputeDelta(st, cur)
	require.False(t, ok)
}

func TestCoalescedNavigationReplacesTail(t *testing.T) {
	t.Parallel()

	st := fixture()
	cur := NewCursor(st)
	s := st.Sessions["s1"]
	seq := s.EventSeq
	navigate(s, "https://b.example/", "https://c.example/", 12_100)
	require.Equal(t, seq, s.EventSeq)

	d, ok := ComputeDelta(st, cur)
	require.True(t, ok)
	require.NotNil(t, d.Active)
	require.Equal(t, 1, d.Active.ReplaceTail)
	require.Len(t, d.Active.Events, 1)
	require.Equal(t, 1, d.Active.Events[0].Coalesced)
	require.Equal(t, "https://c.example/", d.Active.Events[0].URL)
}

func TestEventBurstBeyondCapacityResets(t *testing.T) {
	t.Parallel()

	st := fixture()
	cur := NewCursor(st)
	s := st.Sessions["s1"]
	for i := 0; i < 12; i++ {
		s.AppendEvent(activity.Event{TS: int64(30_000 + i), Type: activity.EventIdle})
	}

	d, ok := ComputeDelta(st, cur)
	require.True(t, ok)
	require.True(t, d.Active.ResetEvents)
	require.Len(t, d.Active.Events, 8)
}

func TestMirrorFollowsEngineState(t *testing.T) {
	t.Parallel()

	st := fixture()
	cur := NewCursor(st)
	var seq uint64 = 1
	mirror := &Mirror{}
	wire := func(msg Message) Message {
		raw, err := sonic.ConfigStd.Marshal(msg)
		require.NoError(t, err)
		var out Message
		require.NoError(t, sonic.ConfigStd.Unmarshal(raw, &out))
		return out
	}
	require.NoError(t, mirror.Apply(wire(Message{Type: MessageSnapshot, Seq: seq, State: st.Clone()})))
	require.Equal(t, normalized(st), normalized(mirror.State))

	ts := int64(20_000)
	last := ts
	steps := []func(){
		func() {
			last = ts
			navigate(st.Sessions["s1"], "https://b.example/", "https://c.example/", ts)
		},
		func() {
			navigate(st.Sessions["s1"], "https://c.example/", "https://d.example/", last+50)
		},
		func() {
			for i := 0; i < 6; i++ {
				ts += 2_000
				navigate(st.Sessions["s1"], "https://d.example/", "https://e.example/", ts)
			}
		},
		func() {
			st.Tracking.CurrentURL = "https://e.example/"
			st.Tracking.ActiveSince = ts
			st.BindTab(2, "https://e.example/", "e", "s1", ts)
		},
		func() {
			st.Sessions["s1"].RemoveNode("https://a.example/")
		},
		func() {},
		func() {
			s1 := st.Sessions["s1"]
			s1.EndedAt = ts + 10
			s1.EndReason = activity.EndReasonSuperseded
			next := activity.NewSession("s2", ts+10, 8)
			navigate(next, "", "https://f.example/", ts+20)
			st.AddSession(next)
			st.SetActiveSessionID("s2")
		},
		func() {
			st.RemoveSession("s0")
			st.Sessions["s1"].Favorite = true
		},
		func() {
			for i := 0; i < 20; i++ {
				ts += 5_000
				navigate(st.Sessions["s2"], "https://f.example/", "https://g.example/", ts)
			}
		},
		func() {
			st.SetActiveSessionID("")
			st.Sessions["s2"].EndedAt = ts
		},
	}
	for i, mutate := range steps {
		ts += 1_000
		mutate()
		d, ok := ComputeDelta(st, cur)
		if ok {
			seq++
			require.NoError(t, mirror.Apply(wire(Message{Type: MessageDelta, Seq: seq, Delta: &d})), "step %d", i)
		}
		require.Equal(t, normalized(st), normalized(mirror.State), "step %d", i)
	}
}

func TestMirrorRejectsGaps(t *testing.T) {
	t.Parallel()

	m := &Mirror{}
	err := m.Apply(Message{Type: MessageDelta, Seq: 1, Delta: &Delta{}})
	require.ErrorIs(t, err, apperrors.ErrOutOfSync)

	require.NoError(t, m.Apply(Message{Type: MessageSnapshot, Seq: 4, State: fixture()}))
	require.ErrorIs(t, m.Apply(Message{Type: MessageDelta, Seq: 6, Delta: &Delta{}}), apperrors.ErrOutOfSync)
	require.NoError(t, m.Apply(Message{Type: MessageDelta, Seq: 5, Delta: &Delta{ActiveSessionID: "s1"}}))
	require.Equal(t, uint64(5), m.Seq)

	err = ApplyDelta(m.State, Delta{ActiveSessionID: "nope", Active: &ActivePatch{}})
	require.ErrorIs(t, err, apperrors.ErrOutOfSync)
}
