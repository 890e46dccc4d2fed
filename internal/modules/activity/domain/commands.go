package domain

const (
	CommandResetState            = "reset_state"
	CommandSessionReset          = "session_reset"
	CommandSessionArchive        = "session_archive"
	CommandSessionUnarchive      = "session_unarchive"
	CommandSessionDelete         = "session_delete"
	CommandSessionRestore        = "session_restore"
	CommandSessionFavoriteToggle = "session_favorite_toggle"
	CommandSessionDeleteAll      = "session_delete_all"
	CommandSessionSummaryUpdate  = "session_summary_update"
	CommandTrackingPause         = "tracking_pause"
	CommandTrackingResume        = "tracking_resume"
)

// CommandTargetsSession reports commands that require a session id.
func CommandTargetsSession(typ string) bool {
	switch typ {
	case CommandSessionArchive, CommandSessionUnarchive, CommandSessionDelete,
		CommandSessionRestore, CommandSessionFavoriteToggle, CommandSessionSummaryUpdate:
		return true
	}
	return false
}
