package dto

import "tabtrail/internal/modules/activity/domain"

// Timestamps are unix milliseconds; zero means "now".

type NavigationSignal struct {
	TabID      int    `json:"tabId"`
	FromURL    string `json:"fromUrl,omitempty"`
	ToURL      string `json:"toUrl"`
	Title      string `json:"title,omitempty"`
	Transition string `json:"transition,omitempty"`
	TS         int64  `json:"ts,omitempty"`
}

type TabFocusSignal struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	TS    int64  `json:"ts,omitempty"`
}

type ActivitySignal struct {
	Kind string `json:"kind"`
	TS   int64  `json:"ts,omitempty"`
}

type IdleSignal struct {
	State string `json:"state,omitempty"`
	TS    int64  `json:"ts,omitempty"`
}

type WindowFocusSignal struct {
	Focused bool  `json:"focused"`
	TS      int64 `json:"ts,omitempty"`
}

type TickSignal struct {
	TS int64 `json:"ts,omitempty"`
}

type CommandInput struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Summary   string `json:"summary,omitempty"`
	TS        int64  `json:"ts,omitempty"`
}

// CommandResult is {ok, error?}; commands never fail any other way.
type CommandResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Snapshot is a deep copy of the state taken on the engine's control flow.
type Snapshot struct {
	State   *domain.State `json:"state"`
	TakenAt int64         `json:"takenAt"`
}

type SessionSummary struct {
	ID                 string  `json:"id"`
	StartedAt          int64   `json:"startedAt"`
	EndedAt            int64   `json:"endedAt,omitempty"`
	EndReason          string  `json:"endReason,omitempty"`
	Active             bool    `json:"active"`
	TotalActiveMs      int64   `json:"totalActiveMs"`
	NavigationCount    int     `json:"navigationCount"`
	NodeCount          int     `json:"nodeCount"`
	DistractionAverage float64 `json:"distractionAverage"`
	DistractionLabel   string  `json:"distractionLabel,omitempty"`
	IntentLabel        string  `json:"intentLabel,omitempty"`
	Archived           bool    `json:"archived,omitempty"`
	Deleted            bool    `json:"deleted,omitempty"`
	Favorite           bool    `json:"favorite,omitempty"`
}

// Summarize projects a session into its list row.
func Summarize(s *domain.Session) SessionSummary {
	return SessionSummary{
		ID:                 s.ID,
		StartedAt:          s.StartedAt,
		EndedAt:            s.EndedAt,
		EndReason:          s.EndReason,
		Active:             s.IsActive(),
		TotalActiveMs:      s.Metrics.TotalActiveMs,
		NavigationCount:    s.NavigationCount,
		NodeCount:          len(s.Nodes),
		DistractionAverage: s.DistractionAverage,
		DistractionLabel:   s.DistractionLabel,
		IntentLabel:        s.IntentDrift.Label,
		Archived:           s.Archived,
		Deleted:            s.Deleted,
		Favorite:           s.Favorite,
	}
}
