package domain

import "sort"

const (
	IdleStateActive = "active"
	IdleStateIdle   = "idle"
	IdleStateLocked = "locked"
)

// TabBinding remembers what a tab last showed and which session saw it.
type TabBinding struct {
	TabID     int    `json:"tabId"`
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	LastSeen  int64  `json:"lastSeen"`
}

// Tracking is the cursor of what is being accounted right now.
type Tracking struct {
	CurrentTabID        int    `json:"currentTabId,omitempty"`
	CurrentURL          string `json:"currentUrl,omitempty"`
	ActiveSince         int64  `json:"activeSince,omitempty"`
	WindowFocused       bool   `json:"windowFocused"`
	IdleState           string `json:"idleState"`
	IdleSince           int64  `json:"idleSince,omitempty"`
	Paused              bool   `json:"paused,omitempty"`
	PausedAt            int64  `json:"pausedAt,omitempty"`
	LastNavigationAt    int64  `json:"lastNavigationAt,omitempty"`
	LastNavigationGapMs int64  `json:"lastNavigationGapMs,omitempty"`
	LastEdgeKey         string `json:"lastEdgeKey,omitempty"`
	LastTickAt          int64  `json:"lastTickAt,omitempty"`
}

// Counting reports whether elapsed time is currently credited to CurrentURL.
func (t Tracking) Counting() bool {
	return !t.Paused && t.WindowFocused && t.IdleState == IdleStateActive && t.CurrentURL != "" && t.ActiveSince > 0
}

// State is the canonical in-memory model. It exclusively owns all sessions.
type State struct {
	SchemaVersion   int                 `json:"schemaVersion"`
	Sessions        map[string]*Session `json:"sessions"`
	SessionOrder    []string            `json:"sessionOrder"`
	ActiveSessionID string              `json:"activeSessionId,omitempty"`
	Tabs            map[int]*TabBinding `json:"tabs"`
	Tracking        Tracking            `json:"tracking"`

	// ActiveGeneration moves whenever ActiveSessionID changes.
	ActiveGeneration uint64 `json:"-"`
}

func NewState() *State {
	return &State{
		Sessions:     map[string]*Session{},
		SessionOrder: []string{},
		Tabs:         map[int]*TabBinding{},
		Tracking:     Tracking{WindowFocused: true, IdleState: IdleStateActive},
	}
}

func (st *State) SetActiveSessionID(id string) {
	if st.ActiveSessionID == id {
		return
	}
	st.ActiveSessionID = id
	st.ActiveGeneration++
}

// ActiveSession returns the session named by ActiveSessionID if it is still open.
func (st *State) ActiveSession() *Session {
	s := st.Sessions[st.ActiveSessionID]
	if s == nil || !s.IsActive() {
		return nil
	}
	return s
}

// AddSession inserts s keeping SessionOrder sorted by start time.
func (st *State) AddSession(s *Session) {
	if _, exists := st.Sessions[s.ID]; exists {
		st.Sessions[s.ID] = s
		return
	}
	st.Sessions[s.ID] = s
	idx := sort.Search(len(st.SessionOrder), func(i int) bool {
		other := st.Sessions[st.SessionOrder[i]]
		return other != nil && other.StartedAt > s.StartedAt
	})
	st.SessionOrder = append(st.SessionOrder, "")
	copy(st.SessionOrder[idx+1:], st.SessionOrder[idx:])
	st.SessionOrder[idx] = s.ID
}

func (st *State) RemoveSession(id string) {
	if _, ok := st.Sessions[id]; !ok {
		return
	}
	delete(st.Sessions, id)
	for i, sid := range st.SessionOrder {
		if sid == id {
			st.SessionOrder = append(st.SessionOrder[:i], st.SessionOrder[i+1:]...)
			break
		}
	}
	if st.ActiveSessionID == id {
		st.SetActiveSessionID("")
	}
}

// OpenSessions lists sessions without endedAt that are not deleted, in order.
func (st *State) OpenSessions() []*Session {
	out := []*Session{}
	for _, id := range st.SessionOrder {
		if s := st.Sessions[id]; s != nil && s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}

// OrderedSessions returns sessions following SessionOrder.
func (st *State) OrderedSessions() []*Session {
	out := make([]*Session, 0, len(st.SessionOrder))
	for _, id := range st.SessionOrder {
		if s := st.Sessions[id]; s != nil {
			out = append(out, s)
		}
	}
	return out
}

// BindTab updates the tab-binding table.
func (st *State) BindTab(tabID int, url, title, sessionID string, now int64) {
	if tabID == 0 {
		return
	}
	binding, ok := st.Tabs[tabID]
	if !ok {
		binding = &TabBinding{TabID: tabID}
		st.Tabs[tabID] = binding
	}
	binding.URL = url
	if title != "" {
		binding.Title = title
	}
	if sessionID != "" {
		binding.SessionID = sessionID
	}
	binding.LastSeen = now
}

// Clone returns a deep copy sharing nothing with st.
func (st *State) Clone() *State {
	out := &State{
		SchemaVersion:    st.SchemaVersion,
		Sessions:         make(map[string]*Session, len(st.Sessions)),
		SessionOrder:     append([]string{}, st.SessionOrder...),
		ActiveSessionID:  st.ActiveSessionID,
		Tabs:             make(map[int]*TabBinding, len(st.Tabs)),
		Tracking:         st.Tracking,
		ActiveGeneration: st.ActiveGeneration,
	}
	for id, s := range st.Sessions {
		out.Sessions[id] = s.Clone()
	}
	for id, tab := range st.Tabs {
		t := *tab
		out.Tabs[id] = &t
	}
	return out
}

// ActiveSessionCache memoizes the active session lookup. An entry is valid
// only while the state's ActiveGeneration matches the one it was stored at.
type ActiveSessionCache struct {
	id         string
	generation uint64
	session    *Session
}

func (c *ActiveSessionCache) Lookup(st *State) (*Session, bool) {
	if c.session == nil || c.generation != st.ActiveGeneration || c.id != st.ActiveSessionID {
		return nil, false
	}
	if st.Sessions[c.id] != c.session || !c.session.IsActive() {
		return nil, false
	}
	return c.session, true
}

func (c *ActiveSessionCache) Store(st *State, s *Session) {
	c.id = s.ID
	c.generation = st.ActiveGeneration
	c.session = s
}

func (c *ActiveSessionCache) Invalidate() {
	*c = ActiveSessionCache{}
}
