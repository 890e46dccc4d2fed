package service

import (
	"time"

	"github.com/rs/zerolog"

	"tabtrail/internal/modules/activity/domain"
	scoring "tabtrail/internal/modules/scoring/domain"
	"tabtrail/internal/platform/id"
)

const (
	DefaultSessionTimeout = 4 * time.Minute

	ReasonIntentShift = "intent_shift"
)

type LifecycleConfig struct {
	SessionTimeout time.Duration
	EventCapacity  int
	Preferences    scoring.Preferences
}

// LifecycleService opens, rolls over, splits and seals sessions.
type LifecycleService struct {
	store      *StateStore
	ids        id.Generator
	classifier domain.Classifier
	cfg        LifecycleConfig
	logger     zerolog.Logger
	onEnd      []func(sessionID string)
}

func NewLifecycleService(store *StateStore, ids id.Generator, classifier domain.Classifier, cfg LifecycleConfig, logger zerolog.Logger) *LifecycleService {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	if cfg.EventCapacity <= 0 {
		cfg.EventCapacity = domain.DefaultEventCapacity
	}
	if cfg.Preferences.Location == nil {
		cfg.Preferences.Location = time.Local
	}
	if classifier == nil {
		classifier = domain.DefaultRules()
	}
	return &LifecycleService{store: store, ids: ids, classifier: classifier, cfg: cfg, logger: logger}
}

// OnSessionEnd registers a hook invoked with the id of every sealed session.
func (l *LifecycleService) OnSessionEnd(fn func(sessionID string)) {
	l.onEnd = append(l.onEnd, fn)
}

func (l *LifecycleService) Preferences() scoring.Preferences {
	return l.cfg.Preferences
}

func (l *LifecycleService) SetPreferences(p scoring.Preferences) {
	if p.Location == nil {
		p.Location = l.cfg.Preferences.Location
	}
	l.cfg.Preferences = p
}

func (l *LifecycleService) Location() *time.Location {
	return l.cfg.Preferences.Location
}

// Categorize classifies a page with the configured classifier chain.
func (l *LifecycleService) Categorize(url, title string) string {
	return domain.Categorize(l.classifier, url, title)
}

// GetActiveSession applies day rollover and duplicate resolution, then
// returns the single open session, starting one at today's start if needed.
// Repeated calls with unchanged state return the same pointer.
func (l *LifecycleService) GetActiveSession(now int64) *domain.Session {
	loc := l.Location()
	if s := l.store.ActiveSession(); s != nil && domain.SameDay(s.StartedAt, now, loc) {
		return s
	}

	st := l.store.State()
	for _, s := range st.OpenSessions() {
		if now > s.StartedAt && !domain.SameDay(s.StartedAt, now, loc) {
			l.seal(s, domain.DayEnd(s.StartedAt, loc), domain.EndReasonDayEnd, domain.EventSessionEnd)
		}
	}

	open := st.OpenSessions()
	switch len(open) {
	case 0:
		return l.StartNewSession(domain.DayStart(now, loc), "day_start")
	case 1:
		st.SetActiveSessionID(open[0].ID)
		return l.store.ActiveSession()
	}

	keep := open[0]
	for _, s := range open[1:] {
		if lastTouched(s) > lastTouched(keep) {
			keep = s
		}
	}
	st.SetActiveSessionID(keep.ID)
	for _, s := range open {
		if s != keep {
			l.seal(s, now, domain.EndReasonSuperseded, domain.EventSessionEnd)
		}
	}
	return l.store.ActiveSession()
}

func lastTouched(s *domain.Session) int64 {
	if s.LastActivityAt > 0 {
		return s.LastActivityAt
	}
	if s.UpdatedAt > s.StartedAt {
		return s.UpdatedAt
	}
	return s.StartedAt
}

// EnsureSessionForActivity resolves the active session for a real activity
// signal, clears the pending idle marker and stamps activity times.
func (l *LifecycleService) EnsureSessionForActivity(now int64, reason string) *domain.Session {
	s := l.GetActiveSession(now)
	st := l.store.State()
	st.Tracking.IdleSince = 0
	if s.FirstActivityAt == 0 {
		s.FirstActivityAt = now
		l.logger.Debug().Str("session_id", s.ID).Str("reason", reason).Msg("first activity")
	}
	if now > s.LastActivityAt {
		s.LastActivityAt = now
	}
	s.Touch(now)
	return s
}

// ShouldSplitSessionForIntent is true when the user returns after at least
// the session timeout to a page whose category group opposes the session's
// dominant category group. Neutral categories never split.
func (l *LifecycleService) ShouldSplitSessionForIntent(s *domain.Session, url, title string, now int64) bool {
	if s == nil || !s.IsActive() || s.LastActivityAt == 0 || url == "" {
		return false
	}
	if time.Duration(now-s.LastActivityAt)*time.Millisecond < l.cfg.SessionTimeout {
		return false
	}
	dominant := s.DominantCategory()
	if dominant == "" {
		return false
	}
	category := l.Categorize(url, title)
	return domain.OppositeGroups(domain.CategoryGroup(dominant), domain.CategoryGroup(category))
}

// StartNewSession creates a session at startedAt and makes it active.
func (l *LifecycleService) StartNewSession(startedAt int64, reason string) *domain.Session {
	st := l.store.State()
	s := domain.NewSession(l.ids.New(), startedAt, l.cfg.EventCapacity)
	s.AppendEvent(domain.Event{TS: startedAt, Type: domain.EventSessionStart, Reason: reason})
	st.AddSession(s)
	st.SetActiveSessionID(s.ID)
	l.logger.Info().Str("session_id", s.ID).Str("reason", reason).Msg("session started")
	return l.store.ActiveSession()
}

// EndSession seals s at endAt. Sealed sessions are left untouched.
func (l *LifecycleService) EndSession(s *domain.Session, endAt int64, reason string) {
	l.seal(s, endAt, reason, domain.EventSessionEnd)
}

// SplitSession seals s without an end reason and opens a new session at now.
func (l *LifecycleService) SplitSession(s *domain.Session, now int64) *domain.Session {
	if s != nil && s.IsActive() {
		l.seal(s, now, "", domain.EventSessionSplit)
	}
	return l.StartNewSession(now, ReasonIntentShift)
}

// EvaluateTrapDoors refreshes the session's trap-door candidates.
func (l *LifecycleService) EvaluateTrapDoors(s *domain.Session, now int64) {
	s.TrapDoors = scoring.EvaluateTrapDoors(s)
	s.Touch(now)
}

// RefreshInsights rescores a session and recomputes its derived fields.
func (l *LifecycleService) RefreshInsights(s *domain.Session, now int64) {
	scoring.RefreshInsights(s, l.cfg.Preferences)
	s.Touch(now)
}

// ScoreNode rescores a single node on the hot path.
func (l *LifecycleService) ScoreNode(s *domain.Session, node *domain.Node) {
	scoring.ScoreNode(s, node, l.cfg.Preferences)
}

func (l *LifecycleService) seal(s *domain.Session, endAt int64, reason, terminal string) {
	if s == nil || !s.IsActive() {
		return
	}
	if endAt < s.StartedAt {
		endAt = s.StartedAt
	}
	l.EvaluateTrapDoors(s, endAt)
	l.RefreshInsights(s, endAt)
	ev := domain.Event{TS: endAt, Type: terminal, Reason: reason}
	if terminal == domain.EventSessionSplit {
		ev.Reason = ReasonIntentShift
	}
	s.AppendEvent(ev)
	s.EndedAt = endAt
	s.EndReason = reason
	s.Touch(endAt)

	st := l.store.State()
	if st.ActiveSessionID == s.ID {
		st.SetActiveSessionID("")
		l.store.InvalidateActive()
	}
	l.logger.Info().
		Str("session_id", s.ID).
		Str("reason", ev.Reason).
		Int64("active_ms", s.TotalActiveMs).
		Int("nodes", len(s.Nodes)).
		Msg("session ended")
	for _, fn := range l.onEnd {
		fn(s.ID)
	}
}
