package domain

import (
	"fmt"

	activity "tabtrail/internal/modules/activity/domain"
	apperrors "tabtrail/internal/platform/errors"
)

// ApplyDelta updates st in place. It fails with ErrOutOfSync when the delta
// patches a session st does not hold; the observer must then resubscribe.
func ApplyDelta(st *activity.State, d Delta) error {
	if st.Sessions == nil {
		st.Sessions = map[string]*activity.Session{}
	}
	for id, s := range d.Sessions {
		st.Sessions[id] = s.Clone()
	}
	for _, id := range d.Removed {
		delete(st.Sessions, id)
	}
	if d.Active != nil {
		s := st.Sessions[d.ActiveSessionID]
		if s == nil {
			return fmt.Errorf("active session %q: %w", d.ActiveSessionID, apperrors.ErrOutOfSync)
		}
		applyPatch(s, d.Active)
	}
	if d.SessionOrder != nil {
		st.SessionOrder = append([]string{}, d.SessionOrder...)
	}
	st.ActiveSessionID = d.ActiveSessionID
	if d.Tracking != nil {
		st.Tracking = *d.Tracking
	}
	if d.TabsChanged {
		st.Tabs = make(map[int]*activity.TabBinding, len(d.Tabs))
		for id, tab := range d.Tabs {
			t := *tab
			st.Tabs[id] = &t
		}
	}
	return nil
}

func applyPatch(s *activity.Session, p *ActivePatch) {
	nodes, edges := s.Nodes, s.Edges
	events := s.SessionEvents()
	if p.Header != nil {
		*s = *p.Header.Clone()
	}
	if nodes == nil {
		nodes = map[string]*activity.Node{}
	}
	if edges == nil {
		edges = map[string]*activity.Edge{}
	}
	for _, n := range p.Nodes {
		node := *n
		nodes[n.URL] = &node
	}
	for _, url := range p.RemovedNodes {
		delete(nodes, url)
	}
	for _, e := range p.Edges {
		edge := *e
		edges[activity.EdgeKey(e.From, e.To)] = &edge
	}
	for _, key := range p.RemovedEdges {
		delete(edges, key)
	}
	s.Nodes, s.Edges = nodes, edges

	switch {
	case p.ResetEvents:
		events = append([]activity.Event(nil), p.Events...)
	default:
		if drop := p.ReplaceTail; drop > 0 && drop <= len(events) {
			events = events[:len(events)-drop]
		}
		events = append(events, p.Events...)
	}
	s.SetEvents(events)
}

// Mirror is an observer-side copy of the engine state kept current by
// applying frames in order.
type Mirror struct {
	State *activity.State
	Seq   uint64
}

// Apply consumes one frame. A delta that does not follow the last applied
// frame, or that arrives before any snapshot, yields ErrOutOfSync.
func (m *Mirror) Apply(msg Message) error {
	switch msg.Type {
	case MessageSnapshot:
		if msg.State == nil {
			return fmt.Errorf("snapshot without state: %w", apperrors.ErrDecode)
		}
		m.State = msg.State.Clone()
		for _, s := range m.State.Sessions {
			s.SetEvents(s.SessionEvents())
		}
		m.Seq = msg.Seq
		return nil
	case MessageDelta:
		if m.State == nil || msg.Seq != m.Seq+1 {
			return fmt.Errorf("delta %d after %d: %w", msg.Seq, m.Seq, apperrors.ErrOutOfSync)
		}
		if msg.Delta == nil {
			m.Seq = msg.Seq
			return nil
		}
		if err := ApplyDelta(m.State, *msg.Delta); err != nil {
			return err
		}
		m.Seq = msg.Seq
		return nil
	default:
		return fmt.Errorf("message type %q: %w", msg.Type, apperrors.ErrDecode)
	}
}
