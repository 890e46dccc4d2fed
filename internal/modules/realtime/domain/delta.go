package domain

import (
	"sort"

	activity "tabtrail/internal/modules/activity/domain"
)

const (
	MessageSnapshot = "state_snapshot"
	MessageDelta    = "state_delta"

	ModeDelta    = "delta"
	ModeSnapshot = "snapshot"
)

// Message is one frame sent to an observer.
type Message struct {
	Type   string          `json:"type"`
	Seq    uint64          `json:"seq"`
	Reason string          `json:"reason,omitempty"`
	State  *activity.State `json:"state,omitempty"`
	Delta  *Delta          `json:"delta,omitempty"`
}

// Delta brings an observer that applied every earlier frame up to date.
type Delta struct {
	ActiveSessionID string                       `json:"activeSessionId"`
	Active          *ActivePatch                 `json:"active,omitempty"`
	Sessions        map[string]*activity.Session `json:"sessions,omitempty"`
	Removed         []string                     `json:"removed,omitempty"`
	SessionOrder    []string                     `json:"sessionOrder"`
	Tracking        *activity.Tracking           `json:"tracking,omitempty"`
	Tabs            map[int]*activity.TabBinding `json:"tabs,omitempty"`
	TabsChanged     bool                         `json:"tabsChanged,omitempty"`
}

// ActivePatch updates the active session in place. Header carries every
// scalar field; nodes, edges and events travel separately.
type ActivePatch struct {
	Header       *activity.Session `json:"header"`
	Nodes        []*activity.Node  `json:"nodes,omitempty"`
	RemovedNodes []string          `json:"removedNodes,omitempty"`
	Edges        []*activity.Edge  `json:"edges,omitempty"`
	RemovedEdges []string          `json:"removedEdges,omitempty"`
	Events       []activity.Event  `json:"events,omitempty"`
	ReplaceTail  int               `json:"replaceTail,omitempty"`
	ResetEvents  bool              `json:"resetEvents,omitempty"`
}

func (d Delta) Empty() bool {
	return d.Active == nil && len(d.Sessions) == 0 && len(d.Removed) == 0 &&
		d.SessionOrder == nil && d.Tracking == nil && !d.TabsChanged
}

// Cursor is what one observer is known to hold.
type Cursor struct {
	Sessions        map[string]uint64
	ActiveSessionID string
	OrderLen        int
	OrderFirst      string
	OrderLast       string
	Tracking        activity.Tracking
	Tabs            uint64

	nodes         map[string]uint64
	edges         map[string]uint64
	eventSeq      int64
	eventCount    int
	lastEventHash uint64
}

// NewCursor records st as fully delivered, as after a snapshot.
func NewCursor(st *activity.State) *Cursor {
	c := &Cursor{Sessions: make(map[string]uint64, len(st.Sessions))}
	for id, s := range st.Sessions {
		c.Sessions[id] = SessionFingerprint(s)
	}
	c.ActiveSessionID = st.ActiveSessionID
	c.setOrder(st.SessionOrder)
	c.Tracking = st.Tracking
	c.Tabs = TabsFingerprint(st.Tabs)
	c.trackActive(st.Sessions[st.ActiveSessionID])
	return c
}

func (c *Cursor) setOrder(order []string) {
	c.OrderLen = len(order)
	c.OrderFirst, c.OrderLast = "", ""
	if len(order) > 0 {
		c.OrderFirst, c.OrderLast = order[0], order[len(order)-1]
	}
}

func (c *Cursor) orderMoved(order []string) bool {
	if len(order) != c.OrderLen {
		return true
	}
	if len(order) == 0 {
		return false
	}
	return order[0] != c.OrderFirst || order[len(order)-1] != c.OrderLast
}

func (c *Cursor) trackActive(s *activity.Session) {
	c.nodes, c.edges = map[string]uint64{}, map[string]uint64{}
	c.eventSeq, c.eventCount, c.lastEventHash = 0, 0, 0
	if s == nil {
		return
	}
	for url, n := range s.Nodes {
		c.nodes[url] = NodeFingerprint(n)
	}
	for key, e := range s.Edges {
		c.edges[key] = EdgeFingerprint(e)
	}
	c.eventSeq = s.EventSeq
	c.eventCount = len(s.Events)
	if last, ok := s.LastEvent(); ok {
		c.lastEventHash = EventFingerprint(last)
	}
}

// ComputeDelta diffs st against what the cursor holds and advances the
// cursor. The returned delta is built from copies and can leave the
// control flow. ok is false when there is nothing to send.
func ComputeDelta(st *activity.State, c *Cursor) (d Delta, ok bool) {
	d = Delta{ActiveSessionID: st.ActiveSessionID}
	activeChanged := st.ActiveSessionID != c.ActiveSessionID
	membership := false

	seen := make(map[string]bool, len(st.Sessions))
	for _, s := range st.OrderedSessions() {
		seen[s.ID] = true
		fp := SessionFingerprint(s)
		prev, known := c.Sessions[s.ID]
		if !known {
			membership = true
		}
		isActive := s.ID == st.ActiveSessionID
		switch {
		case isActive && known && !activeChanged:
			if patch := c.activePatch(s, fp != prev); patch != nil {
				d.Active = patch
			}
		case !known || fp != prev:
			if d.Sessions == nil {
				d.Sessions = map[string]*activity.Session{}
			}
			d.Sessions[s.ID] = s.Clone()
		}
		if isActive && (activeChanged || !known) {
			c.trackActive(s)
		}
		c.Sessions[s.ID] = fp
	}
	for id := range c.Sessions {
		if !seen[id] {
			d.Removed = append(d.Removed, id)
			delete(c.Sessions, id)
			membership = true
		}
	}
	sort.Strings(d.Removed)

	if activeChanged {
		if st.Sessions[st.ActiveSessionID] == nil {
			c.trackActive(nil)
		}
		c.ActiveSessionID = st.ActiveSessionID
	}
	if membership || c.orderMoved(st.SessionOrder) {
		d.SessionOrder = append([]string{}, st.SessionOrder...)
		c.setOrder(st.SessionOrder)
	}
	if st.Tracking != c.Tracking {
		tracking := st.Tracking
		d.Tracking = &tracking
		c.Tracking = st.Tracking
	}
	if fp := TabsFingerprint(st.Tabs); fp != c.Tabs {
		d.TabsChanged = true
		d.Tabs = make(map[int]*activity.TabBinding, len(st.Tabs))
		for id, tab := range st.Tabs {
			t := *tab
			d.Tabs[id] = &t
		}
		c.Tabs = fp
	}
	return d, activeChanged || !d.Empty()
}

// activePatch diffs nodes, edges and the event tail of the active session.
func (c *Cursor) activePatch(s *activity.Session, headerChanged bool) *ActivePatch {
	p := &ActivePatch{}

	nodes := make(map[string]uint64, len(s.Nodes))
	for url, n := range s.Nodes {
		fp := NodeFingerprint(n)
		nodes[url] = fp
		if prev, ok := c.nodes[url]; !ok || prev != fp {
			node := *n
			p.Nodes = append(p.Nodes, &node)
		}
	}
	for url := range c.nodes {
		if _, ok := nodes[url]; !ok {
			p.RemovedNodes = append(p.RemovedNodes, url)
		}
	}
	c.nodes = nodes

	edges := make(map[string]uint64, len(s.Edges))
	for key, e := range s.Edges {
		fp := EdgeFingerprint(e)
		edges[key] = fp
		if prev, ok := c.edges[key]; !ok || prev != fp {
			edge := *e
			p.Edges = append(p.Edges, &edge)
		}
	}
	for key := range c.edges {
		if _, ok := edges[key]; !ok {
			p.RemovedEdges = append(p.RemovedEdges, key)
		}
	}
	c.edges = edges

	sort.Slice(p.Nodes, func(i, j int) bool { return p.Nodes[i].URL < p.Nodes[j].URL })
	sort.Slice(p.Edges, func(i, j int) bool {
		return activity.EdgeKey(p.Edges[i].From, p.Edges[i].To) < activity.EdgeKey(p.Edges[j].From, p.Edges[j].To)
	})
	sort.Strings(p.RemovedNodes)
	sort.Strings(p.RemovedEdges)

	c.eventTail(s, p)

	if !headerChanged && len(p.Nodes) == 0 && len(p.RemovedNodes) == 0 && len(p.Edges) == 0 &&
		len(p.RemovedEdges) == 0 && len(p.Events) == 0 && !p.ResetEvents {
		return nil
	}
	p.Header = headerOf(s)
	return p
}

// eventTail sends events appended since the cursor, plus the previous last
// event again when it was coalesced in place.
func (c *Cursor) eventTail(s *activity.Session, p *ActivePatch) {
	events := s.SessionEvents()
	n := len(events)
	added := s.EventSeq - c.eventSeq

	switch {
	case added < 0 || added > int64(n):
		p.ResetEvents = true
	case added == int64(n):
		p.ResetEvents = n > 0
	case c.eventCount == 0:
		p.ResetEvents = true
	default:
		take := int(added)
		if EventFingerprint(events[n-1-take]) != c.lastEventHash {
			take++
			p.ReplaceTail = 1
		}
		if take > 0 {
			p.Events = append([]activity.Event(nil), events[n-take:]...)
		}
	}
	if p.ResetEvents {
		p.Events = events
	}

	c.eventSeq = s.EventSeq
	c.eventCount = n
	c.lastEventHash = 0
	if n > 0 {
		c.lastEventHash = EventFingerprint(events[n-1])
	}
}

func headerOf(s *activity.Session) *activity.Session {
	h := s.Clone()
	h.Nodes = nil
	h.Edges = nil
	h.Events = nil
	h.EventCursor = 0
	return h
}
