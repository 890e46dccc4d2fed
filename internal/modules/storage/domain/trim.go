package domain

import (
	"sort"

	activity "tabtrail/internal/modules/activity/domain"
)

// Limits bound what a stored record keeps.
type Limits struct {
	RecentSessions   int
	ValuedSessions   int
	DetailedSessions int
	MaxNodes         int
	MaxEdges         int
	MaxEvents        int
}

func DefaultLimits() Limits {
	return Limits{
		RecentSessions:   60,
		ValuedSessions:   20,
		DetailedSessions: 5,
		MaxNodes:         60,
		MaxEdges:         120,
		MaxEvents:        350,
	}
}

// ReplicaLimits keep the last few sessions for cross-device sync.
func ReplicaLimits() Limits {
	return Limits{
		RecentSessions:   3,
		ValuedSessions:   0,
		DetailedSessions: 0,
		MaxNodes:         60,
		MaxEdges:         120,
		MaxEvents:        800,
	}
}

// Tighten halves every bound, never below one.
func (l Limits) Tighten() Limits {
	half := func(v int) int {
		if v/2 < 1 {
			return 1
		}
		return v / 2
	}
	return Limits{
		RecentSessions:   half(l.RecentSessions),
		ValuedSessions:   l.ValuedSessions / 2,
		DetailedSessions: l.DetailedSessions / 2,
		MaxNodes:         half(l.MaxNodes),
		MaxEdges:         half(l.MaxEdges),
		MaxEvents:        half(l.MaxEvents),
	}
}

const (
	trivialActiveMs = 30_000
	trivialNavs     = 2
	trivialNodes    = 2
)

// IsTrivial marks sessions with almost no activity.
func IsTrivial(s *activity.Session) bool {
	return sessionActiveMs(s) < trivialActiveMs && s.NavigationCount < trivialNavs && len(s.Nodes) < trivialNodes
}

// SessionValue ranks sessions outside the recent window.
func SessionValue(s *activity.Session) float64 {
	return float64(sessionActiveMs(s)) +
		float64(s.NavigationCount)*15_000 +
		float64(len(s.Nodes))*10_000 +
		s.DistractionAverage*1_000
}

func sessionActiveMs(s *activity.Session) int64 {
	if s.Metrics.TotalActiveMs > 0 {
		return s.Metrics.TotalActiveMs
	}
	return s.TotalActiveMs
}

// TrimStateForStorage returns a trimmed deep copy of st and the ids of the
// sessions whose nodes, edges or events were cut.
func TrimStateForStorage(st *activity.State, limits Limits) (*activity.State, map[string]bool) {
	out := st.Clone()
	ordered := out.OrderedSessions()

	keep := map[string]bool{}
	if active := out.ActiveSession(); active != nil {
		keep[active.ID] = true
	}
	recentFrom := len(ordered) - limits.RecentSessions
	if recentFrom < 0 {
		recentFrom = 0
	}
	for i, s := range ordered {
		if i >= recentFrom || s.Archived || s.Deleted {
			keep[s.ID] = true
		}
	}

	rest := make([]*activity.Session, 0)
	for _, s := range ordered {
		if !keep[s.ID] && !IsTrivial(s) {
			rest = append(rest, s)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return SessionValue(rest[i]) > SessionValue(rest[j])
	})
	for i := 0; i < len(rest) && i < limits.ValuedSessions; i++ {
		keep[rest[i].ID] = true
	}

	for _, s := range ordered {
		if !keep[s.ID] {
			out.RemoveSession(s.ID)
		}
	}

	trimmed := map[string]bool{}
	kept := out.OrderedSessions()
	detailedFrom := len(kept) - limits.DetailedSessions
	for i, s := range kept {
		if i >= detailedFrom {
			continue
		}
		if trimSession(s, limits) {
			trimmed[s.ID] = true
		}
	}
	return out, trimmed
}

// trimSession caps nodes, edges and events in place.
func trimSession(s *activity.Session, limits Limits) bool {
	changed := false
	weight := func(n *activity.Node) float64 {
		return float64(n.ActiveMs) * (1 + n.DistractionScore)
	}
	if len(s.Nodes) > limits.MaxNodes {
		nodes := make([]*activity.Node, 0, len(s.Nodes))
		for _, n := range s.Nodes {
			nodes = append(nodes, n)
		}
		sort.Slice(nodes, func(i, j int) bool {
			wi, wj := weight(nodes[i]), weight(nodes[j])
			if wi != wj {
				return wi > wj
			}
			return nodes[i].URL < nodes[j].URL
		})
		for _, n := range nodes[limits.MaxNodes:] {
			s.RemoveNode(n.URL)
		}
		changed = true
	}
	if len(s.Edges) > limits.MaxEdges {
		edges := make([]*activity.Edge, 0, len(s.Edges))
		for _, e := range s.Edges {
			edges = append(edges, e)
		}
		endpoint := func(e *activity.Edge) float64 {
			var w float64
			if n, ok := s.Nodes[e.From]; ok {
				w += weight(n)
			}
			if n, ok := s.Nodes[e.To]; ok {
				w += weight(n)
			}
			return w
		}
		sort.Slice(edges, func(i, j int) bool {
			wi, wj := endpoint(edges[i]), endpoint(edges[j])
			if wi != wj {
				return wi > wj
			}
			return activity.EdgeKey(edges[i].From, edges[i].To) < activity.EdgeKey(edges[j].From, edges[j].To)
		})
		for _, e := range edges[limits.MaxEdges:] {
			delete(s.Edges, activity.EdgeKey(e.From, e.To))
		}
		changed = true
	}
	events := s.SessionEvents()
	if len(events) > limits.MaxEvents {
		s.SetEvents(TrimEvents(events, limits.MaxEvents))
		changed = true
	}
	return changed
}

// TrimEvents keeps at most max events in order, dropping the oldest
// low-information events before anything else.
func TrimEvents(events []activity.Event, max int) []activity.Event {
	excess := len(events) - max
	if excess <= 0 {
		return events
	}
	drop := make([]bool, len(events))
	for i := range events {
		if excess == 0 {
			break
		}
		if events[i].LowInformation() {
			drop[i] = true
			excess--
		}
	}
	for i := range events {
		if excess == 0 {
			break
		}
		if !drop[i] {
			drop[i] = true
			excess--
		}
	}
	out := make([]activity.Event, 0, max)
	for i, ev := range events {
		if !drop[i] {
			out = append(out, ev)
		}
	}
	return out
}
