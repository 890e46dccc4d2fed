package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferKeepsNewestInOrder(t *testing.T) {
	t.Parallel()

	const capacity = 8
	for _, n := range []int{0, 3, capacity, capacity + 1, 3*capacity + 5} {
		n := n
		t.Run(fmt.Sprintf("appends_%d", n), func(t *testing.T) {
			t.Parallel()
			s := NewSession("s", 0, capacity)
			for i := 0; i < n; i++ {
				s.AppendEvent(Event{TS: int64(i), Type: EventTabFocus})
			}
			got := s.SessionEvents()
			want := n
			if want > capacity {
				want = capacity
			}
			require.Len(t, got, want)
			first := n - want
			for i, ev := range got {
				require.Equal(t, int64(first+i), ev.TS)
			}
			require.Equal(t, int64(n), s.EventSeq)
			if n > 0 {
				last, ok := s.LastEvent()
				require.True(t, ok)
				require.Equal(t, int64(n-1), last.TS)
			}
		})
	}
}

func TestSetEventsShrinksToCapacity(t *testing.T) {
	t.Parallel()

	s := NewSession("s", 0, 4)
	events := make([]Event, 0, 10)
	for i := 0; i < 10; i++ {
		events = append(events, Event{TS: int64(i), Type: EventIdle})
	}
	s.SetEvents(events)
	got := s.SessionEvents()
	require.Len(t, got, 4)
	require.Equal(t, int64(6), got[0].TS)
	require.Equal(t, 0, s.EventCursor)

	s.AppendEvent(Event{TS: 10, Type: EventActive})
	got = s.SessionEvents()
	require.Equal(t, int64(7), got[0].TS)
	require.Equal(t, int64(10), got[3].TS)
}

func TestCoalesceWindowScalesWithPriorGap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		gap  int64
		want int64
	}{
		{gap: 0, want: 150},
		{gap: 200, want: 900},
		{gap: 999, want: 900},
		{gap: 1000, want: 350},
		{gap: 2999, want: 350},
		{gap: 3000, want: 150},
		{gap: 60000, want: 150},
	}
	for _, tc := range tests {
		if got := CoalesceWindowMs(tc.gap); got != tc.want {
			t.Fatalf("gap %d: expected %d got %d", tc.gap, tc.want, got)
		}
	}
}

func TestAppendNavigationMergesSameTabInsideWindow(t *testing.T) {
	t.Parallel()

	s := NewSession("s", 0, 16)
	require.False(t, s.AppendNavigation(Event{TS: 1000, Type: EventNavigation, TabID: 1, URL: "https://a.test", Transition: "link"}, 0))
	require.True(t, s.AppendNavigation(Event{TS: 1100, Type: EventNavigation, TabID: 1, URL: "https://b.test", Transition: "client_redirect"}, 0))
	// other tab never merges
	require.False(t, s.AppendNavigation(Event{TS: 1150, Type: EventNavigation, TabID: 2, URL: "https://c.test"}, 0))
	// outside the narrow window
	require.False(t, s.AppendNavigation(Event{TS: 1500, Type: EventNavigation, TabID: 2, URL: "https://d.test"}, 0))
	// a rapid chain widens the window
	require.True(t, s.AppendNavigation(Event{TS: 2300, Type: EventNavigation, TabID: 2, URL: "https://e.test"}, 350))

	events := s.SessionEvents()
	require.Len(t, events, 3)
	require.Equal(t, "https://b.test", events[0].URL)
	require.Equal(t, "client_redirect", events[0].Transition)
	require.Equal(t, 1, events[0].Coalesced)
	require.Equal(t, int64(1100), events[0].LastTS)
	require.Equal(t, "https://e.test", events[2].URL)
	require.Equal(t, int64(3), s.EventSeq)
}

func TestLowInformationEvents(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{EventIdle, EventActive, EventWindowFocus, EventWindowBlur} {
		if !(Event{Type: typ}).LowInformation() {
			t.Fatalf("%s should be low information", typ)
		}
	}
	for _, typ := range []string{EventNavigation, EventTabFocus, EventSessionEnd, EventDiagnostic} {
		if (Event{Type: typ}).LowInformation() {
			t.Fatalf("%s should carry information", typ)
		}
	}
}
