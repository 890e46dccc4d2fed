package domain

import activity "tabtrail/internal/modules/activity/domain"

// BuildReplica keeps the most recent non-deleted sessions for the
// secondary sync record. Tabs and tracking stay device-local.
func BuildReplica(st *activity.State, limits Limits, savedAt int64) *Record {
	picked := activity.NewState()
	trimmed := map[string]bool{}
	ordered := st.OrderedSessions()
	for i := len(ordered) - 1; i >= 0 && len(picked.Sessions) < limits.RecentSessions; i-- {
		s := ordered[i]
		if s.Deleted {
			continue
		}
		c := s.Clone()
		trimmed[c.ID] = trimSession(c, limits)
		picked.AddSession(c)
	}
	if active := picked.Sessions[st.ActiveSessionID]; active != nil {
		picked.SetActiveSessionID(active.ID)
	}
	rec := CompactStateForStorage(picked, trimmed)
	rec.Kind = KindReplica
	rec.SavedAt = savedAt
	rec.Tabs = map[int]StoredTab{}
	rec.Tracking = activity.Tracking{}
	return rec
}
