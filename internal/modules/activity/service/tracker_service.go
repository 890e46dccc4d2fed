package service

import (
	"github.com/rs/zerolog"

	"tabtrail/internal/modules/activity/domain"
)

// TrackerService turns capture signals into session mutations. It does all
// time accounting against the tracking cursor held in the state.
type TrackerService struct {
	store     *StateStore
	lifecycle *LifecycleService
	logger    zerolog.Logger
}

func NewTrackerService(store *StateStore, lifecycle *LifecycleService, logger zerolog.Logger) *TrackerService {
	return &TrackerService{store: store, lifecycle: lifecycle, logger: logger}
}

// Navigation records a tab moving from fromURL to toURL. It reports whether
// state changed.
func (t *TrackerService) Navigation(tabID int, fromURL, toURL, title, transition string, ts int64) bool {
	st := t.store.State()
	to := domain.NormalizeURL(toURL)
	if !domain.IsTrackable(to) {
		t.FlushActiveTime(ts)
		if tabID == st.Tracking.CurrentTabID {
			st.Tracking.CurrentURL = ""
			st.Tracking.LastEdgeKey = ""
		}
		return true
	}
	if st.Tracking.Paused {
		st.BindTab(tabID, to, title, "", ts)
		return true
	}

	t.FlushActiveTime(ts)
	s := t.lifecycle.GetActiveSession(ts)
	if t.lifecycle.ShouldSplitSessionForIntent(s, to, title, ts) {
		s = t.lifecycle.SplitSession(s, ts)
	}
	s = t.lifecycle.EnsureSessionForActivity(ts, domain.EventNavigation)

	from := domain.NormalizeURL(fromURL)
	if from == "" && tabID == st.Tracking.CurrentTabID {
		from = st.Tracking.CurrentURL
	}
	if from == "" {
		if binding, ok := st.Tabs[tabID]; ok {
			from = binding.URL
		}
	}
	_, fromKnown := s.Nodes[from]
	transitioned := fromKnown && from != to
	if transitioned {
		s.NavigationCount++
	}
	t.markPresent(s, domain.EventNavigation, ts)
	category := t.lifecycle.Categorize(to, title)
	node, _ := s.EnsureNode(to, title, category, ts)
	// a classifier verdict that arrived since the last visit wins
	s.SetNodeCategory(node, category)
	s.RecordVisit(node, ts)

	edgeKey := ""
	if transitioned {
		s.UpsertEdge(from, to, ts)
		edgeKey = domain.EdgeKey(from, to)
	}

	priorGap := st.Tracking.LastNavigationGapMs
	if st.Tracking.LastNavigationAt > 0 && ts >= st.Tracking.LastNavigationAt {
		st.Tracking.LastNavigationGapMs = ts - st.Tracking.LastNavigationAt
	}
	st.Tracking.LastNavigationAt = ts
	s.AppendNavigation(domain.Event{
		TS:         ts,
		Type:       domain.EventNavigation,
		TabID:      tabID,
		URL:        to,
		FromURL:    from,
		Title:      title,
		Transition: transition,
	}, priorGap)

	t.focus(tabID, to, edgeKey, ts)
	st.BindTab(tabID, to, title, s.ID, ts)
	t.lifecycle.ScoreNode(s, node)
	s.Touch(ts)
	return true
}

// TabFocus records the user switching to a tab showing url.
func (t *TrackerService) TabFocus(tabID int, url, title string, ts int64) bool {
	st := t.store.State()
	normalized := domain.NormalizeURL(url)
	t.FlushActiveTime(ts)
	if !domain.IsTrackable(normalized) {
		st.Tracking.CurrentTabID = tabID
		st.Tracking.CurrentURL = ""
		st.Tracking.LastEdgeKey = ""
		return true
	}
	if st.Tracking.Paused {
		st.Tracking.CurrentTabID = tabID
		st.BindTab(tabID, normalized, title, "", ts)
		return true
	}

	s := t.lifecycle.GetActiveSession(ts)
	if t.lifecycle.ShouldSplitSessionForIntent(s, normalized, title, ts) {
		s = t.lifecycle.SplitSession(s, ts)
	}
	s = t.lifecycle.EnsureSessionForActivity(ts, domain.EventTabFocus)

	t.markPresent(s, domain.EventTabFocus, ts)
	category := t.lifecycle.Categorize(normalized, title)
	node, created := s.EnsureNode(normalized, title, category, ts)
	s.SetNodeCategory(node, category)
	if created || normalized != st.Tracking.CurrentURL {
		s.RecordVisit(node, ts)
	}
	s.AppendEvent(domain.Event{TS: ts, Type: domain.EventTabFocus, TabID: tabID, URL: normalized, Title: title})
	t.focus(tabID, normalized, "", ts)
	st.BindTab(tabID, normalized, title, s.ID, ts)
	t.lifecycle.ScoreNode(s, node)
	s.Touch(ts)
	return true
}

// UserActivity marks the user as present. A return from idle keeps the
// pending idle marker and leaves LastActivityAt where it was: the intent check
// needs a destination, so it runs on the next navigation or tab focus.
func (t *TrackerService) UserActivity(kind string, ts int64) bool {
	st := t.store.State()
	if st.Tracking.Paused {
		return false
	}
	t.FlushActiveTime(ts)
	resumed := st.Tracking.IdleState != domain.IdleStateActive
	var s *domain.Session
	if resumed || st.Tracking.IdleSince > 0 {
		s = t.lifecycle.GetActiveSession(ts)
	} else {
		s = t.lifecycle.EnsureSessionForActivity(ts, kind)
	}
	t.markPresent(s, kind, ts)
	t.ensureCurrentNode(s, ts)
	if resumed {
		s.Touch(ts)
		t.logger.Debug().Str("session_id", s.ID).Msg("user returned from idle")
	}
	return true
}

// markPresent leaves the idle state on any real activity signal.
func (t *TrackerService) markPresent(s *domain.Session, kind string, ts int64) {
	tr := &t.store.State().Tracking
	if tr.IdleState == domain.IdleStateActive {
		return
	}
	tr.IdleState = domain.IdleStateActive
	tr.ActiveSince = ts
	s.AppendEvent(domain.Event{TS: ts, Type: domain.EventActive, Reason: kind})
}

// UserIdle stops time accounting until the next activity.
func (t *TrackerService) UserIdle(state string, ts int64) bool {
	st := t.store.State()
	if state == "" {
		state = domain.IdleStateIdle
	}
	if st.Tracking.IdleState == state {
		return false
	}
	t.FlushActiveTime(ts)
	st.Tracking.IdleState = state
	st.Tracking.IdleSince = ts
	if s := t.store.ActiveSession(); s != nil && !st.Tracking.Paused {
		s.AppendEvent(domain.Event{TS: ts, Type: domain.EventIdle, Reason: state})
		s.Touch(ts)
	}
	return true
}

// WindowFocus starts or stops time accounting with the browser window.
func (t *TrackerService) WindowFocus(focused bool, ts int64) bool {
	st := t.store.State()
	if st.Tracking.WindowFocused == focused {
		return false
	}
	t.FlushActiveTime(ts)
	st.Tracking.WindowFocused = focused
	evType := domain.EventWindowBlur
	if focused {
		evType = domain.EventWindowFocus
		st.Tracking.ActiveSince = ts
	}
	if st.Tracking.Paused {
		return true
	}
	var s *domain.Session
	if focused {
		s = t.lifecycle.EnsureSessionForActivity(ts, evType)
		t.ensureCurrentNode(s, ts)
	} else {
		s = t.store.ActiveSession()
	}
	if s != nil {
		s.AppendEvent(domain.Event{TS: ts, Type: evType})
		s.Touch(ts)
	}
	return true
}

// Tick is the periodic alarm: it flushes accrued time and applies day rollover.
func (t *TrackerService) Tick(ts int64) bool {
	st := t.store.State()
	before := st.ActiveSessionID
	t.FlushActiveTime(ts)
	st.Tracking.LastTickAt = ts
	if st.Tracking.Paused {
		return st.ActiveSessionID != before
	}
	s := t.lifecycle.GetActiveSession(ts)
	if st.Tracking.Counting() {
		t.ensureCurrentNode(s, ts)
	}
	return true
}

// Pause stops all accounting until Resume.
func (t *TrackerService) Pause(ts int64) bool {
	st := t.store.State()
	if st.Tracking.Paused {
		return false
	}
	t.FlushActiveTime(ts)
	if s := t.store.ActiveSession(); s != nil {
		s.AppendEvent(domain.Event{TS: ts, Type: domain.EventTrackingPaused})
		s.Touch(ts)
	}
	st.Tracking.Paused = true
	st.Tracking.PausedAt = ts
	t.logger.Info().Msg("tracking paused")
	return true
}

func (t *TrackerService) Resume(ts int64) bool {
	st := t.store.State()
	if !st.Tracking.Paused {
		return false
	}
	st.Tracking.Paused = false
	st.Tracking.PausedAt = 0
	st.Tracking.ActiveSince = ts
	s := t.lifecycle.EnsureSessionForActivity(ts, domain.EventTrackingResumed)
	s.AppendEvent(domain.Event{TS: ts, Type: domain.EventTrackingResumed})
	t.ensureCurrentNode(s, ts)
	t.logger.Info().Msg("tracking resumed")
	return true
}

// FlushActiveTime credits the time since ActiveSince to the current page.
// Spans crossing midnight are split at each day end so no session is
// credited past 23:59:59.999 of its own day.
func (t *TrackerService) FlushActiveTime(now int64) {
	st := t.store.State()
	tr := &st.Tracking
	if !tr.Counting() {
		if tr.ActiveSince > 0 && tr.ActiveSince < now {
			tr.ActiveSince = now
		}
		return
	}
	loc := t.lifecycle.Location()
	for tr.ActiveSince < now {
		from := tr.ActiveSince
		end := domain.DayEnd(from, loc) + 1
		if end > now {
			end = now
		}
		s := t.lifecycle.GetActiveSession(from)
		node := t.ensureCurrentNode(s, from)
		var edge *domain.Edge
		if e, ok := s.Edges[tr.LastEdgeKey]; ok && e.To == node.URL {
			edge = e
		}
		s.AddActiveTime(node, edge, end-from)
		t.lifecycle.ScoreNode(s, node)
		seen := end
		if dayEnd := domain.DayEnd(from, loc); seen > dayEnd {
			seen = dayEnd
		}
		// accounted time is presence; the idle detector stops it otherwise.
		// After a return from idle the gap stays open for the intent check.
		if tr.IdleSince == 0 && seen > s.LastActivityAt {
			s.LastActivityAt = seen
		}
		if s.FirstActivityAt == 0 {
			s.FirstActivityAt = from
		}
		if seen > node.LastSeen {
			node.LastSeen = seen
		}
		s.Touch(seen)
		tr.ActiveSince = end
	}
}

func (t *TrackerService) ensureCurrentNode(s *domain.Session, ts int64) *domain.Node {
	st := t.store.State()
	url := st.Tracking.CurrentURL
	if url == "" {
		return nil
	}
	if node, ok := s.Nodes[url]; ok {
		return node
	}
	title := ""
	if binding, ok := st.Tabs[st.Tracking.CurrentTabID]; ok && binding.URL == url {
		title = binding.Title
	}
	node, _ := s.EnsureNode(url, title, t.lifecycle.Categorize(url, title), ts)
	s.RecordVisit(node, ts)
	st.Tracking.LastEdgeKey = ""
	return node
}

func (t *TrackerService) focus(tabID int, url, edgeKey string, ts int64) {
	tr := &t.store.State().Tracking
	tr.CurrentTabID = tabID
	tr.CurrentURL = url
	tr.LastEdgeKey = edgeKey
	tr.ActiveSince = ts
}

// restartClock drops unaccounted time so it is not credited to a session
// that did not exist while it elapsed.
func (t *TrackerService) restartClock(now int64) {
	tr := &t.store.State().Tracking
	if tr.ActiveSince > 0 {
		tr.ActiveSince = now
	}
}

// ResumeAccounting starts the clock at now for a state loaded from storage.
// A loaded cursor carries no running span, so accounting would otherwise
// stay stopped until the next focus change.
func (t *TrackerService) ResumeAccounting(now int64) {
	tr := &t.store.State().Tracking
	if tr.Paused || tr.CurrentURL == "" {
		return
	}
	tr.ActiveSince = now
}
