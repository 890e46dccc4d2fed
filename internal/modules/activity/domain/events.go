package domain

const DefaultEventCapacity = 5000

const (
	EventNavigation      = "navigation"
	EventTabFocus        = "tab_focus"
	EventIdle            = "idle"
	EventActive          = "active"
	EventWindowFocus     = "window_focus"
	EventWindowBlur      = "window_blur"
	EventSessionStart    = "session_start"
	EventSessionEnd      = "session_end"
	EventSessionSplit    = "session_split"
	EventDiagnostic      = "diagnostic"
	EventTrackingPaused  = "tracking_paused"
	EventTrackingResumed = "tracking_resumed"
)

// Event is one append-only entry of a session's activity log.
type Event struct {
	TS         int64  `json:"ts"`
	Type       string `json:"type"`
	TabID      int    `json:"tabId,omitempty"`
	URL        string `json:"url,omitempty"`
	FromURL    string `json:"fromUrl,omitempty"`
	Title      string `json:"title,omitempty"`
	Transition string `json:"transition,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Coalesced  int    `json:"coalesced,omitempty"`
	LastTS     int64  `json:"lastTs,omitempty"`
}

// LowInformation marks event types that are dropped first when trimming.
func (e Event) LowInformation() bool {
	switch e.Type {
	case EventIdle, EventActive, EventWindowFocus, EventWindowBlur:
		return true
	}
	return false
}

func (s *Session) eventCapacity() int {
	if s.EventCapacity > 0 {
		return s.EventCapacity
	}
	return DefaultEventCapacity
}

// AppendEvent pushes while the ring has room, then overwrites the oldest
// slot at EventCursor and advances it.
func (s *Session) AppendEvent(ev Event) {
	capacity := s.eventCapacity()
	if len(s.Events) > capacity || s.EventCursor >= capacity {
		s.normalizeEvents(capacity)
	}
	if len(s.Events) < capacity {
		s.Events = append(s.Events, ev)
	} else {
		s.Events[s.EventCursor] = ev
		s.EventCursor = (s.EventCursor + 1) % capacity
	}
	s.EventSeq++
}

// SessionEvents returns the ring in insertion order: events[cursor:] + events[:cursor].
func (s *Session) SessionEvents() []Event {
	n := len(s.Events)
	if n == 0 {
		return []Event{}
	}
	cursor := s.EventCursor
	if cursor < 0 || cursor >= n {
		cursor = 0
	}
	out := make([]Event, 0, n)
	out = append(out, s.Events[cursor:]...)
	out = append(out, s.Events[:cursor]...)
	return out
}

// SetEvents replaces the ring with chronologically ordered events.
func (s *Session) SetEvents(events []Event) {
	s.Events = append([]Event(nil), events...)
	s.EventCursor = 0
	s.normalizeEvents(s.eventCapacity())
}

func (s *Session) normalizeEvents(capacity int) {
	ordered := s.SessionEvents()
	if len(ordered) > capacity {
		ordered = ordered[len(ordered)-capacity:]
	}
	s.Events = ordered
	s.EventCursor = 0
}

func (s *Session) lastEventIndex() int {
	n := len(s.Events)
	if n == 0 {
		return -1
	}
	cursor := s.EventCursor
	if cursor < 0 || cursor >= n {
		cursor = 0
	}
	return (cursor - 1 + n) % n
}

// LastEvent is the most recently appended (or coalesced) event.
func (s *Session) LastEvent() (Event, bool) {
	idx := s.lastEventIndex()
	if idx < 0 {
		return Event{}, false
	}
	return s.Events[idx], true
}

// CoalesceWindowMs picks the merge window for a navigation from the gap
// between the previous navigation and the one before it. Rapid chains get
// the widest window.
func CoalesceWindowMs(priorGapMs int64) int64 {
	switch {
	case priorGapMs <= 0:
		return 150
	case priorGapMs < 1000:
		return 900
	case priorGapMs < 3000:
		return 350
	default:
		return 150
	}
}

// AppendNavigation merges ev into the latest event when that is a navigation
// on the same tab inside the coalesce window; otherwise it appends.
func (s *Session) AppendNavigation(ev Event, priorGapMs int64) bool {
	if idx := s.lastEventIndex(); idx >= 0 {
		last := &s.Events[idx]
		if last.Type == EventNavigation && last.TabID == ev.TabID {
			ref := last.TS
			if last.LastTS > ref {
				ref = last.LastTS
			}
			gap := ev.TS - ref
			if gap >= 0 && gap <= CoalesceWindowMs(priorGapMs) {
				last.URL = ev.URL
				if ev.Title != "" {
					last.Title = ev.Title
				}
				last.Transition = ev.Transition
				last.Coalesced++
				last.LastTS = ev.TS
				return true
			}
		}
	}
	s.AppendEvent(ev)
	return false
}
