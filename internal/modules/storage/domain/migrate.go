package domain

import (
	"fmt"
	"sort"

	activity "tabtrail/internal/modules/activity/domain"
	apperrors "tabtrail/internal/platform/errors"
)

// Version 1 kept a session list with per-page aggregates and transitions.
type v1Record struct {
	Version         int         `json:"version"`
	ActiveSessionID string      `json:"activeSessionId"`
	Sessions        []v1Session `json:"sessions"`
}

type v1Session struct {
	ID          string            `json:"id"`
	Start       int64             `json:"start"`
	End         int64             `json:"end"`
	Pages       map[string]v1Page `json:"pages"`
	Transitions []v1Transition    `json:"transitions"`
	Events      []activity.Event  `json:"events"`
	Archived    bool              `json:"archived"`
	Deleted     bool              `json:"deleted"`
	Summary     string            `json:"summary"`
}

type v1Page struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Visits   int    `json:"visits"`
	ActiveMs int64  `json:"activeMs"`
	First    int64  `json:"first"`
	Last     int64  `json:"last"`
}

type v1Transition struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
	First int64  `json:"first"`
	Last  int64  `json:"last"`
}

func migrateV1(data []byte) (*activity.State, error) {
	var rec v1Record
	if err := api.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: v1: %v", apperrors.ErrDecode, err)
	}
	st := activity.NewState()
	st.SchemaVersion = CurrentSchemaVersion
	for _, in := range rec.Sessions {
		if in.ID == "" {
			continue
		}
		s := activity.NewSession(in.ID, in.Start, 0)
		s.EndedAt = in.End
		s.UpdatedAt = maxInt64(in.Start, in.End)
		s.Archived = in.Archived
		s.Deleted = in.Deleted
		s.Summary = in.Summary

		urls := make([]string, 0, len(in.Pages))
		for url := range in.Pages {
			urls = append(urls, url)
		}
		sort.Slice(urls, func(i, j int) bool {
			pi, pj := in.Pages[urls[i]], in.Pages[urls[j]]
			if pi.First != pj.First {
				return pi.First < pj.First
			}
			return urls[i] < urls[j]
		})
		for i, url := range urls {
			p := in.Pages[url]
			category := p.Category
			if !activity.KnownCategory(category) {
				category = activity.Categorize(nil, url, p.Title)
			}
			s.Nodes[url] = &activity.Node{
				URL:                  url,
				Title:                p.Title,
				Category:             category,
				VisitCount:           p.Visits,
				ActiveMs:             p.ActiveMs,
				FirstSeen:            p.First,
				LastSeen:             p.Last,
				FirstNavigationIndex: i,
				LastNavigationIndex:  i,
			}
			if s.FirstActivityAt == 0 || (p.First > 0 && p.First < s.FirstActivityAt) {
				s.FirstActivityAt = p.First
			}
			s.LastActivityAt = maxInt64(s.LastActivityAt, p.Last)
			s.UpdatedAt = maxInt64(s.UpdatedAt, p.Last)
		}
		for _, t := range in.Transitions {
			if s.Nodes[t.From] == nil || s.Nodes[t.To] == nil {
				continue
			}
			s.Edges[activity.EdgeKey(t.From, t.To)] = &activity.Edge{
				From:       t.From,
				To:         t.To,
				VisitCount: t.Count,
				FirstSeen:  t.First,
				LastSeen:   t.Last,
			}
			s.NavigationCount += t.Count
		}
		s.SetEvents(in.Events)
		s.EventSeq = int64(len(in.Events))
		s.RefreshMetrics()
		s.TotalActiveMs = s.Metrics.TotalActiveMs
		for category, ms := range s.Metrics.CategoryTotals {
			s.CategoryTotals[category] = ms
		}
		st.AddSession(s)
	}
	if active := st.Sessions[rec.ActiveSessionID]; active != nil && active.IsActive() {
		st.SetActiveSessionID(rec.ActiveSessionID)
	}
	return st, nil
}

// Version 2 stored the in-memory state as is.
func migrateV2(data []byte) (*activity.State, error) {
	var st activity.State
	if err := api.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: v2: %v", apperrors.ErrDecode, err)
	}
	out := activity.NewState()
	out.SchemaVersion = CurrentSchemaVersion
	if st.Tracking.IdleState != "" {
		out.Tracking = st.Tracking
	}
	for id, s := range st.Sessions {
		if s == nil {
			continue
		}
		if s.ID == "" {
			s.ID = id
		}
		normalizeSession(s)
		out.AddSession(s)
	}
	for tabID, tab := range st.Tabs {
		if tab != nil && tabID != 0 {
			out.Tabs[tabID] = tab
		}
	}
	if active := out.Sessions[st.ActiveSessionID]; active != nil && active.IsActive() {
		out.SetActiveSessionID(st.ActiveSessionID)
	}
	return out, nil
}

func normalizeSession(s *activity.Session) {
	if s.Nodes == nil {
		s.Nodes = map[string]*activity.Node{}
	}
	for url, n := range s.Nodes {
		if n == nil {
			delete(s.Nodes, url)
			continue
		}
		n.URL = url
	}
	if s.Edges == nil {
		s.Edges = map[string]*activity.Edge{}
	}
	for key, e := range s.Edges {
		if e == nil || s.Nodes[e.From] == nil || s.Nodes[e.To] == nil {
			delete(s.Edges, key)
		}
	}
	if s.CategoryTotals == nil {
		s.CategoryTotals = map[string]int64{}
	}
	if s.IntentDrift.Label == "" {
		s.IntentDrift = activity.UnknownDrift()
	}
	s.SetEvents(s.SessionEvents())
	if s.EventSeq < int64(len(s.Events)) {
		s.EventSeq = int64(len(s.Events))
	}
	s.RefreshMetrics()
}

// Version 3 introduced the URL table with 0-based indices; titles and
// event URLs were still inline.
type v3Record struct {
	SchemaVersion   int                          `json:"schemaVersion"`
	Sessions        map[string]v3Session         `json:"sessions"`
	SessionOrder    []string                     `json:"sessionOrder"`
	ActiveSessionID string                       `json:"activeSessionId"`
	Tabs            map[int]*activity.TabBinding `json:"tabs"`
	Tracking        activity.Tracking            `json:"tracking"`
	URLTable        []string                     `json:"urlTable"`
}

type v3Session struct {
	ID                 string               `json:"id"`
	StartedAt          int64                `json:"startedAt"`
	EndedAt            int64                `json:"endedAt"`
	UpdatedAt          int64                `json:"updatedAt"`
	EndReason          string               `json:"endReason"`
	FirstActivityAt    int64                `json:"firstActivityAt"`
	LastActivityAt     int64                `json:"lastActivityAt"`
	NavigationCount    int                  `json:"navigationCount"`
	Nodes              []v3Node             `json:"nodes"`
	Edges              []v3Edge             `json:"edges"`
	Events             []activity.Event     `json:"events"`
	EventCursor        int                  `json:"eventCursor"`
	EventSeq           int64                `json:"eventSeq"`
	EventCapacity      int                  `json:"eventCapacity"`
	TotalActiveMs      int64                `json:"totalActiveMs"`
	CategoryTotals     map[string]int64     `json:"categoryTotals"`
	DistractionAverage float64              `json:"distractionAverage"`
	DistractionLabel   string               `json:"distractionLabel"`
	IntentDrift        activity.IntentDrift `json:"intentDrift"`
	TrapDoors          []activity.TrapDoor  `json:"trapDoors"`
	Archived           bool                 `json:"archived"`
	ArchivedAt         int64                `json:"archivedAt"`
	Deleted            bool                 `json:"deleted"`
	DeletedAt          int64                `json:"deletedAt"`
	Favorite           bool                 `json:"favorite"`
	FavoriteAt         int64                `json:"favoriteAt"`
	Summary            string               `json:"summary"`
	SummaryUpdatedAt   int64                `json:"summaryUpdatedAt"`
}

type v3Node struct {
	URL                  int     `json:"url"`
	Title                string  `json:"title"`
	Category             string  `json:"category"`
	VisitCount           int     `json:"visitCount"`
	ActiveMs             int64   `json:"activeMs"`
	FirstSeen            int64   `json:"firstSeen"`
	LastSeen             int64   `json:"lastSeen"`
	FirstNavigationIndex int     `json:"firstNavigationIndex"`
	LastNavigationIndex  int     `json:"lastNavigationIndex"`
	DistractionScore     float64 `json:"distractionScore"`
}

type v3Edge struct {
	From       int   `json:"from"`
	To         int   `json:"to"`
	VisitCount int   `json:"visitCount"`
	ActiveMs   int64 `json:"activeMs"`
	FirstSeen  int64 `json:"firstSeen"`
	LastSeen   int64 `json:"lastSeen"`
}

func migrateV3(data []byte) (*activity.State, error) {
	var rec v3Record
	if err := api.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: v3: %v", apperrors.ErrDecode, err)
	}
	lookup := func(i int) (string, bool) {
		if i < 0 || i >= len(rec.URLTable) {
			return "", false
		}
		return rec.URLTable[i], true
	}
	st := activity.NewState()
	st.SchemaVersion = CurrentSchemaVersion
	if rec.Tracking.IdleState != "" {
		st.Tracking = rec.Tracking
	}
	for id, in := range rec.Sessions {
		if in.ID == "" {
			in.ID = id
		}
		s := activity.NewSession(in.ID, in.StartedAt, in.EventCapacity)
		s.EndedAt, s.UpdatedAt, s.EndReason = in.EndedAt, in.UpdatedAt, in.EndReason
		s.FirstActivityAt, s.LastActivityAt = in.FirstActivityAt, in.LastActivityAt
		s.NavigationCount = in.NavigationCount
		s.Events, s.EventCursor, s.EventSeq = in.Events, in.EventCursor, in.EventSeq
		s.TotalActiveMs, s.CategoryTotals = in.TotalActiveMs, in.CategoryTotals
		s.DistractionAverage, s.DistractionLabel = in.DistractionAverage, in.DistractionLabel
		s.IntentDrift, s.TrapDoors = in.IntentDrift, in.TrapDoors
		s.Archived, s.ArchivedAt = in.Archived, in.ArchivedAt
		s.Deleted, s.DeletedAt = in.Deleted, in.DeletedAt
		s.Favorite, s.FavoriteAt = in.Favorite, in.FavoriteAt
		s.Summary, s.SummaryUpdatedAt = in.Summary, in.SummaryUpdatedAt
		s.Nodes = make(map[string]*activity.Node, len(in.Nodes))
		for _, n := range in.Nodes {
			url, ok := lookup(n.URL)
			if !ok {
				continue
			}
			s.Nodes[url] = &activity.Node{
				URL:                  url,
				Title:                n.Title,
				Category:             n.Category,
				VisitCount:           n.VisitCount,
				ActiveMs:             n.ActiveMs,
				FirstSeen:            n.FirstSeen,
				LastSeen:             n.LastSeen,
				FirstNavigationIndex: n.FirstNavigationIndex,
				LastNavigationIndex:  n.LastNavigationIndex,
				DistractionScore:     n.DistractionScore,
			}
		}
		s.Edges = make(map[string]*activity.Edge, len(in.Edges))
		for _, e := range in.Edges {
			from, okFrom := lookup(e.From)
			to, okTo := lookup(e.To)
			if !okFrom || !okTo {
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
		normalizeSession(s)
		st.AddSession(s)
	}
	for tabID, tab := range rec.Tabs {
		if tab != nil && tabID != 0 {
			st.Tabs[tabID] = tab
		}
	}
	if active := st.Sessions[rec.ActiveSessionID]; active != nil && active.IsActive() {
		st.SetActiveSessionID(rec.ActiveSessionID)
	}
	return st, nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
