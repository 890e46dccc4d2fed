package domain

import (
	"sort"

	activity "tabtrail/internal/modules/activity/domain"
)

// interner assigns 1-based indices in first-seen order.
type interner struct {
	index  map[string]int
	values []string
}

func newInterner() *interner {
	return &interner{index: map[string]int{}}
}

func (in *interner) ref(v string) int {
	if v == "" {
		return 0
	}
	if i, ok := in.index[v]; ok {
		return i
	}
	in.values = append(in.values, v)
	in.index[v] = len(in.values)
	return len(in.values)
}

// table resolves a 1-based index; ok is false for 0 or out of range.
type table []string

func (t table) at(i int) (string, bool) {
	if i <= 0 || i > len(t) {
		return "", false
	}
	return t[i-1], true
}

func (t table) get(i int) string {
	v, _ := t.at(i)
	return v
}

// CompactStateForStorage dictionary-encodes URLs and titles. Output is
// deterministic for a given state.
func CompactStateForStorage(st *activity.State, trimmed map[string]bool) *Record {
	urls, titles := newInterner(), newInterner()
	rec := &Record{
		SchemaVersion:   CurrentSchemaVersion,
		Kind:            KindPrimary,
		Sessions:        make(map[string]StoredSession, len(st.Sessions)),
		SessionOrder:    []string{},
		ActiveSessionID: st.ActiveSessionID,
		Tabs:            make(map[int]StoredTab, len(st.Tabs)),
		Tracking:        st.Tracking,
	}
	for _, s := range st.OrderedSessions() {
		rec.SessionOrder = append(rec.SessionOrder, s.ID)
		rec.Sessions[s.ID] = compactSession(s, trimmed[s.ID], urls, titles)
	}
	tabIDs := make([]int, 0, len(st.Tabs))
	for id := range st.Tabs {
		tabIDs = append(tabIDs, id)
	}
	sort.Ints(tabIDs)
	for _, id := range tabIDs {
		tab := st.Tabs[id]
		rec.Tabs[id] = StoredTab{
			U:         urls.ref(tab.URL),
			T:         titles.ref(tab.Title),
			SessionID: tab.SessionID,
			LastSeen:  tab.LastSeen,
		}
	}
	rec.URLTable = append([]string{}, urls.values...)
	rec.CompactTables.Titles = append([]string{}, titles.values...)
	return rec
}

func compactSession(s *activity.Session, trimmed bool, urls, titles *interner) StoredSession {
	out := StoredSession{
		ID:                 s.ID,
		StartedAt:          s.StartedAt,
		EndedAt:            s.EndedAt,
		UpdatedAt:          s.UpdatedAt,
		EndReason:          s.EndReason,
		FirstActivityAt:    s.FirstActivityAt,
		LastActivityAt:     s.LastActivityAt,
		NavigationCount:    s.NavigationCount,
		EventSeq:           s.EventSeq,
		EventCapacity:      s.EventCapacity,
		Trimmed:            trimmed,
		TotalActiveMs:      s.TotalActiveMs,
		CategoryTotals:     s.CategoryTotals,
		DistractionAverage: s.DistractionAverage,
		DistractionLabel:   s.DistractionLabel,
		IntentDrift:        s.IntentDrift,
		Archived:           s.Archived,
		ArchivedAt:         s.ArchivedAt,
		Deleted:            s.Deleted,
		DeletedAt:          s.DeletedAt,
		Favorite:           s.Favorite,
		FavoriteAt:         s.FavoriteAt,
		Summary:            s.Summary,
		SummaryUpdatedAt:   s.SummaryUpdatedAt,
		Nodes:              make([]StoredNode, 0, len(s.Nodes)),
		Edges:              make([]StoredEdge, 0, len(s.Edges)),
	}

	nodes := make([]*activity.Node, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].FirstNavigationIndex != nodes[j].FirstNavigationIndex {
			return nodes[i].FirstNavigationIndex < nodes[j].FirstNavigationIndex
		}
		return nodes[i].URL < nodes[j].URL
	})
	for _, n := range nodes {
		out.Nodes = append(out.Nodes, StoredNode{
			U:          urls.ref(n.URL),
			T:          titles.ref(n.Title),
			Category:   n.Category,
			VisitCount: n.VisitCount,
			ActiveMs:   n.ActiveMs,
			FirstSeen:  n.FirstSeen,
			LastSeen:   n.LastSeen,
			FirstNav:   n.FirstNavigationIndex,
			LastNav:    n.LastNavigationIndex,
			Score:      n.DistractionScore,
		})
	}

	edgeKeys := make([]string, 0, len(s.Edges))
	for k := range s.Edges {
		edgeKeys = append(edgeKeys, k)
	}
	sort.Strings(edgeKeys)
	for _, k := range edgeKeys {
		e := s.Edges[k]
		out.Edges = append(out.Edges, StoredEdge{
			F:          urls.ref(e.From),
			T:          urls.ref(e.To),
			VisitCount: e.VisitCount,
			ActiveMs:   e.ActiveMs,
			FirstSeen:  e.FirstSeen,
			LastSeen:   e.LastSeen,
		})
	}

	events := s.SessionEvents()
	out.Events = make([]StoredEvent, 0, len(events))
	for _, ev := range events {
		out.Events = append(out.Events, StoredEvent{
			TS:         ev.TS,
			Type:       ev.Type,
			TabID:      ev.TabID,
			U:          urls.ref(ev.URL),
			F:          urls.ref(ev.FromURL),
			T:          titles.ref(ev.Title),
			Transition: ev.Transition,
			Reason:     ev.Reason,
			Detail:     ev.Detail,
			Coalesced:  ev.Coalesced,
			LastTS:     ev.LastTS,
		})
	}

	for _, td := range s.TrapDoors {
		out.TrapDoors = append(out.TrapDoors, StoredTrapDoor{
			U:                   urls.ref(td.URL),
			T:                   titles.ref(td.Title),
			PostVisitDurationMs: td.PostVisitDurationMs,
			PostVisitDepth:      td.PostVisitDepth,
			Score:               td.Score,
		})
	}
	return out
}

// ExpandRecord rebuilds the in-memory state. Indices that do not resolve
// drop the entry that holds them instead of failing.
func ExpandRecord(rec *Record) *activity.State {
	urls, titles := table(rec.URLTable), table(rec.CompactTables.Titles)
	st := activity.NewState()
	st.SchemaVersion = CurrentSchemaVersion
	st.Tracking = rec.Tracking
	if st.Tracking.IdleState == "" {
		st.Tracking.IdleState = activity.IdleStateActive
	}

	ids := orderedIDs(rec)
	for _, id := range ids {
		stored := rec.Sessions[id]
		if stored.ID == "" {
			stored.ID = id
		}
		st.AddSession(expandSession(stored, urls, titles))
	}
	if active := st.Sessions[rec.ActiveSessionID]; active != nil && active.IsActive() {
		st.SetActiveSessionID(rec.ActiveSessionID)
	}
	for tabID, tab := range rec.Tabs {
		url, ok := urls.at(tab.U)
		if !ok || tabID == 0 {
			continue
		}
		st.Tabs[tabID] = &activity.TabBinding{
			TabID:     tabID,
			URL:       url,
			Title:     titles.get(tab.T),
			SessionID: tab.SessionID,
			LastSeen:  tab.LastSeen,
		}
	}
	return st
}

// orderedIDs follows SessionOrder, then appends sessions it does not list.
func orderedIDs(rec *Record) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(rec.Sessions))
	for _, id := range rec.SessionOrder {
		if _, ok := rec.Sessions[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	rest := []string{}
	for id := range rec.Sessions {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func expandSession(in StoredSession, urls, titles table) *activity.Session {
	s := activity.NewSession(in.ID, in.StartedAt, in.EventCapacity)
	s.EndedAt = in.EndedAt
	s.UpdatedAt = in.UpdatedAt
	s.EndReason = in.EndReason
	s.FirstActivityAt = in.FirstActivityAt
	s.LastActivityAt = in.LastActivityAt
	s.NavigationCount = in.NavigationCount
	s.TotalActiveMs = in.TotalActiveMs
	if in.CategoryTotals != nil {
		s.CategoryTotals = in.CategoryTotals
	}
	s.DistractionAverage = in.DistractionAverage
	s.DistractionLabel = in.DistractionLabel
	s.IntentDrift = in.IntentDrift
	if s.IntentDrift.Label == "" {
		s.IntentDrift = activity.UnknownDrift()
	}
	s.Archived, s.ArchivedAt = in.Archived, in.ArchivedAt
	s.Deleted, s.DeletedAt = in.Deleted, in.DeletedAt
	s.Favorite, s.FavoriteAt = in.Favorite, in.FavoriteAt
	s.Summary, s.SummaryUpdatedAt = in.Summary, in.SummaryUpdatedAt

	for _, n := range in.Nodes {
		url, ok := urls.at(n.U)
		if !ok {
			continue
		}
		s.Nodes[url] = &activity.Node{
			URL:                  url,
			Title:                titles.get(n.T),
			Category:             n.Category,
			VisitCount:           n.VisitCount,
			ActiveMs:             n.ActiveMs,
			FirstSeen:            n.FirstSeen,
			LastSeen:             n.LastSeen,
			FirstNavigationIndex: n.FirstNav,
			LastNavigationIndex:  n.LastNav,
			DistractionScore:     n.Score,
		}
	}
	for _, e := range in.Edges {
		from, okFrom := urls.at(e.F)
		to, okTo := urls.at(e.T)
		if !okFrom || !okTo {
			continue
		}
		if s.Nodes[from] == nil || s.Nodes[to] == nil {
			continue
		}
		s.Edges[activity.EdgeKey(from, to)] = &activity.Edge{
			From:       from,
			To:         to,
			VisitCount: e.VisitCount,
			ActiveMs:   e.ActiveMs,
			FirstSeen:  e.FirstSeen,
			LastSeen:   e.LastSeen,
		}
	}
	events := make([]activity.Event, 0, len(in.Events))
	for _, ev := range in.Events {
		events = append(events, activity.Event{
			TS:         ev.TS,
			Type:       ev.Type,
			TabID:      ev.TabID,
			URL:        urls.get(ev.U),
			FromURL:    urls.get(ev.F),
			Title:      titles.get(ev.T),
			Transition: ev.Transition,
			Reason:     ev.Reason,
			Detail:     ev.Detail,
			Coalesced:  ev.Coalesced,
			LastTS:     ev.LastTS,
		})
	}
	s.SetEvents(events)
	s.EventSeq = in.EventSeq
	if s.EventSeq < int64(len(events)) {
		s.EventSeq = int64(len(events))
	}
	for _, td := range in.TrapDoors {
		url, ok := urls.at(td.U)
		if !ok {
			continue
		}
		s.TrapDoors = append(s.TrapDoors, activity.TrapDoor{
			URL:                 url,
			Title:               titles.get(td.T),
			PostVisitDurationMs: td.PostVisitDurationMs,
			PostVisitDepth:      td.PostVisitDepth,
			Score:               td.Score,
		})
	}
	s.RefreshMetrics()
	return s
}
