package usecase

// scheduleAnalysis arms a full insight refresh for the active session. A
// change of active session drops the refresh pending for the previous one.
func (i *Interactor) scheduleAnalysis(reason string) {
	if i.store.State().Tracking.Paused {
		return
	}
	s := i.store.ActiveSession()
	if s == nil {
		return
	}
	if i.analysisTarget != s.ID {
		i.analysis.Cancel()
		i.analysisTarget = s.ID
	}
	i.analysis.Schedule(reason)
}

func (i *Interactor) cancelAnalysis() {
	i.analysis.Cancel()
	i.analysisTarget = ""
}

func (i *Interactor) sessionEnded(sessionID string) {
	if i.analysisTarget == sessionID {
		i.cancelAnalysis()
	}
}

// runAnalysis fires on the loop. The target may have been sealed or removed
// since it was scheduled; then there is nothing to do.
func (i *Interactor) runAnalysis(reason string) {
	target := i.analysisTarget
	s := i.store.Session(target)
	if s == nil || !s.IsActive() {
		i.logger.Debug().Str("session_id", target).Msg("analysis target gone")
		return
	}
	now := i.nowMs(0)
	i.lifecycle.EvaluateTrapDoors(s, now)
	i.lifecycle.RefreshInsights(s, now)
	i.logger.Debug().Str("session_id", s.ID).Str("reason", reason).Str("intent", s.IntentDrift.Label).Msg("insights refreshed")
	if i.persister != nil {
		i.persister.SchedulePersist("analysis")
	}
	if i.broadcaster != nil {
		i.broadcaster.ScheduleBroadcast("analysis")
	}
}
