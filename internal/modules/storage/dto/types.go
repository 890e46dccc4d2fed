package dto

import (
	"sort"

	activity "tabtrail/internal/modules/activity/domain"
)

// SessionRow is the indexed projection of one session.
type SessionRow struct {
	ID                 string  `json:"id"`
	StartedAt          int64   `json:"startedAt"`
	EndedAt            int64   `json:"endedAt,omitempty"`
	EndReason          string  `json:"endReason,omitempty"`
	Active             bool    `json:"active"`
	TotalActiveMs      int64   `json:"totalActiveMs"`
	NavigationCount    int     `json:"navigationCount"`
	NodesCount         int     `json:"nodesCount"`
	DominantCategory   string  `json:"dominantCategory,omitempty"`
	TopURL             string  `json:"topUrl,omitempty"`
	DistractionAverage float64 `json:"distractionAverage"`
	DistractionLabel   string  `json:"distractionLabel,omitempty"`
	DriftLabel         string  `json:"driftLabel,omitempty"`
	Archived           bool    `json:"archived,omitempty"`
	Deleted            bool    `json:"deleted,omitempty"`
	Favorite           bool    `json:"favorite,omitempty"`
	Summary            string  `json:"summary,omitempty"`
}

type SessionQuery struct {
	IncludeDeleted  bool
	IncludeArchived bool
	FavoritesOnly   bool
	Limit           int
}

// SessionNote is what a note export renders for one session.
type SessionNote struct {
	Row       SessionRow
	TopPages  []activity.Node
	TrapDoors []activity.TrapDoor
	Drivers   []string
}

// RowFor projects s; active marks the state's current session.
func RowFor(s *activity.Session, active bool) SessionRow {
	row := SessionRow{
		ID:                 s.ID,
		StartedAt:          s.StartedAt,
		EndedAt:            s.EndedAt,
		EndReason:          s.EndReason,
		Active:             active,
		TotalActiveMs:      s.TotalActiveMs,
		NavigationCount:    s.NavigationCount,
		NodesCount:         len(s.Nodes),
		DominantCategory:   s.DominantCategory(),
		DistractionAverage: s.DistractionAverage,
		DistractionLabel:   s.DistractionLabel,
		DriftLabel:         s.IntentDrift.Label,
		Archived:           s.Archived,
		Deleted:            s.Deleted,
		Favorite:           s.Favorite,
		Summary:            s.Summary,
	}
	if pages := TopPages(s, 1); len(pages) == 1 {
		row.TopURL = pages[0].URL
	}
	if row.TotalActiveMs < s.Metrics.TotalActiveMs {
		row.TotalActiveMs = s.Metrics.TotalActiveMs
	}
	return row
}

// TopPages returns up to n nodes by active time.
func TopPages(s *activity.Session, n int) []activity.Node {
	nodes := make([]activity.Node, 0, len(s.Nodes))
	for _, node := range s.Nodes {
		nodes = append(nodes, *node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].ActiveMs != nodes[j].ActiveMs {
			return nodes[i].ActiveMs > nodes[j].ActiveMs
		}
		return nodes[i].URL < nodes[j].URL
	})
	if len(nodes) > n {
		nodes = nodes[:n]
	}
	return nodes
}

func NoteFor(s *activity.Session, active bool) SessionNote {
	return SessionNote{
		Row:       RowFor(s, active),
		TopPages:  TopPages(s, 10),
		TrapDoors: append([]activity.TrapDoor(nil), s.TrapDoors...),
		Drivers:   append([]string(nil), s.IntentDrift.Drivers...),
	}
}
