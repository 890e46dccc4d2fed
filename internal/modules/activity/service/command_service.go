package service

import (
	"fmt"

	"github.com/rs/zerolog"

	"tabtrail/internal/modules/activity/domain"
	apperrors "tabtrail/internal/platform/errors"
)

// CommandService applies user commands to the state.
type CommandService struct {
	store     *StateStore
	lifecycle *LifecycleService
	tracker   *TrackerService
	logger    zerolog.Logger
}

func NewCommandService(store *StateStore, lifecycle *LifecycleService, tracker *TrackerService, logger zerolog.Logger) *CommandService {
	return &CommandService{store: store, lifecycle: lifecycle, tracker: tracker, logger: logger}
}

// Apply runs one command. Missing or already-deleted targets are a no-op and
// report changed=false with a nil error.
func (c *CommandService) Apply(typ, sessionID, summary string, now int64) (bool, error) {
	if domain.CommandTargetsSession(typ) && sessionID == "" {
		return false, fmt.Errorf("%s: session id is required: %w", typ, apperrors.ErrInvalidInput)
	}
	switch typ {
	case domain.CommandResetState:
		return c.resetState(now), nil
	case domain.CommandSessionReset:
		return c.sessionReset(now), nil
	case domain.CommandSessionDeleteAll:
		return c.deleteAll(now), nil
	case domain.CommandTrackingPause:
		return c.tracker.Pause(now), nil
	case domain.CommandTrackingResume:
		return c.tracker.Resume(now), nil
	case domain.CommandSessionArchive, domain.CommandSessionUnarchive, domain.CommandSessionDelete,
		domain.CommandSessionRestore, domain.CommandSessionFavoriteToggle, domain.CommandSessionSummaryUpdate:
		return c.applyToSession(typ, sessionID, summary, now), nil
	default:
		return false, fmt.Errorf("%w: %s", apperrors.ErrUnknownCommand, typ)
	}
}

func (c *CommandService) applyToSession(typ, sessionID, summary string, now int64) bool {
	s := c.store.Session(sessionID)
	if s == nil {
		c.logger.Debug().Str("command", typ).Str("session_id", sessionID).Msg("command target missing")
		return false
	}
	if s.Deleted && typ != domain.CommandSessionRestore {
		return false
	}
	switch typ {
	case domain.CommandSessionArchive:
		if s.Archived {
			return false
		}
		s.Archived, s.ArchivedAt = true, now
	case domain.CommandSessionUnarchive:
		if !s.Archived {
			return false
		}
		s.Archived, s.ArchivedAt = false, 0
	case domain.CommandSessionFavoriteToggle:
		s.Favorite = !s.Favorite
		s.FavoriteAt = 0
		if s.Favorite {
			s.FavoriteAt = now
		}
	case domain.CommandSessionSummaryUpdate:
		s.Summary = summary
		s.SummaryUpdatedAt = now
	case domain.CommandSessionDelete:
		c.delete(s, now)
	case domain.CommandSessionRestore:
		if !s.Deleted {
			return false
		}
		s.Deleted, s.DeletedAt = false, 0
	}
	s.Touch(now)
	return true
}

func (c *CommandService) delete(s *domain.Session, now int64) {
	if s.IsActive() {
		c.tracker.FlushActiveTime(now)
		c.lifecycle.EndSession(s, now, domain.EndReasonDeleted)
	}
	s.Deleted, s.DeletedAt = true, now
}

func (c *CommandService) deleteAll(now int64) bool {
	changed := false
	for _, s := range c.store.State().OrderedSessions() {
		if s.Deleted {
			continue
		}
		c.delete(s, now)
		s.Touch(now)
		changed = true
	}
	return changed
}

func (c *CommandService) sessionReset(now int64) bool {
	if s := c.store.ActiveSession(); s != nil {
		c.tracker.FlushActiveTime(now)
		c.lifecycle.EndSession(s, now, domain.EndReasonManualReset)
	}
	c.tracker.restartClock(now)
	s := c.lifecycle.StartNewSession(now, domain.CommandSessionReset)
	c.tracker.ensureCurrentNode(s, now)
	return true
}

// resetState drops every session but keeps what the browser is showing.
func (c *CommandService) resetState(now int64) bool {
	prev := c.store.State().Tracking
	next := domain.NewState()
	next.Tracking.CurrentTabID = prev.CurrentTabID
	next.Tracking.CurrentURL = prev.CurrentURL
	next.Tracking.WindowFocused = prev.WindowFocused
	next.Tracking.IdleState = prev.IdleState
	next.Tracking.Paused = prev.Paused
	next.Tracking.PausedAt = prev.PausedAt
	if prev.CurrentURL != "" {
		next.Tracking.ActiveSince = now
	}
	c.store.Replace(next)
	c.logger.Info().Msg("state reset")
	return true
}
