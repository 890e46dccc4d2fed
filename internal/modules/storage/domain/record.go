// Package domain is the persistence encoder: it trims the state to a storage
// budget, dictionary-encodes URLs and titles, and reads every schema version
// written so far.
package domain

import activity "tabtrail/internal/modules/activity/domain"

const CurrentSchemaVersion = 4

const (
	KindPrimary = "primary"
	KindReplica = "replica"
)

// Record is the durable layout. URL and title references are 1-based
// indices into URLTable and CompactTables.Titles; 0 means none.
type Record struct {
	SchemaVersion   int                      `json:"schemaVersion"`
	Kind            string                   `json:"kind,omitempty"`
	SavedAt         int64                    `json:"savedAt,omitempty"`
	Sessions        map[string]StoredSession `json:"sessions"`
	SessionOrder    []string                 `json:"sessionOrder"`
	ActiveSessionID string                   `json:"activeSessionId,omitempty"`
	Tabs            map[int]StoredTab        `json:"tabs"`
	Tracking        activity.Tracking        `json:"tracking"`
	CompactTables   CompactTables            `json:"compactTables"`
	URLTable        []string                 `json:"urlTable"`
}

type CompactTables struct {
	Titles []string `json:"titles"`
}

type StoredSession struct {
	ID              string `json:"id"`
	StartedAt       int64  `json:"startedAt"`
	EndedAt         int64  `json:"endedAt,omitempty"`
	UpdatedAt       int64  `json:"updatedAt"`
	EndReason       string `json:"endReason,omitempty"`
	FirstActivityAt int64  `json:"firstActivityAt,omitempty"`
	LastActivityAt  int64  `json:"lastActivityAt,omitempty"`
	NavigationCount int    `json:"navigationCount"`

	Nodes         []StoredNode  `json:"nodes"`
	Edges         []StoredEdge  `json:"edges"`
	Events        []StoredEvent `json:"events"`
	EventSeq      int64         `json:"eventSeq"`
	EventCapacity int           `json:"eventCapacity,omitempty"`
	Trimmed       bool          `json:"trimmed,omitempty"`

	TotalActiveMs      int64                `json:"totalActiveMs"`
	CategoryTotals     map[string]int64     `json:"categoryTotals,omitempty"`
	DistractionAverage float64              `json:"distractionAverage"`
	DistractionLabel   string               `json:"distractionLabel,omitempty"`
	IntentDrift        activity.IntentDrift `json:"intentDrift"`
	TrapDoors          []StoredTrapDoor     `json:"trapDoors,omitempty"`

	Archived         bool   `json:"archived,omitempty"`
	ArchivedAt       int64  `json:"archivedAt,omitempty"`
	Deleted          bool   `json:"deleted,omitempty"`
	DeletedAt        int64  `json:"deletedAt,omitempty"`
	Favorite         bool   `json:"favorite,omitempty"`
	FavoriteAt       int64  `json:"favoriteAt,omitempty"`
	Summary          string `json:"summary,omitempty"`
	SummaryUpdatedAt int64  `json:"summaryUpdatedAt,omitempty"`
}

type StoredNode struct {
	U          int     `json:"u"`
	T          int     `json:"t,omitempty"`
	Category   string  `json:"c"`
	VisitCount int     `json:"v"`
	ActiveMs   int64   `json:"a"`
	FirstSeen  int64   `json:"fs"`
	LastSeen   int64   `json:"ls"`
	FirstNav   int     `json:"fn"`
	LastNav    int     `json:"ln"`
	Score      float64 `json:"s"`
}

type StoredEdge struct {
	F          int   `json:"f"`
	T          int   `json:"t"`
	VisitCount int   `json:"v"`
	ActiveMs   int64 `json:"a"`
	FirstSeen  int64 `json:"fs"`
	LastSeen   int64 `json:"ls"`
}

type StoredEvent struct {
	TS         int64  `json:"ts"`
	Type       string `json:"type"`
	TabID      int    `json:"tab,omitempty"`
	U          int    `json:"u,omitempty"`
	F          int    `json:"f,omitempty"`
	T          int    `json:"t,omitempty"`
	Transition string `json:"tr,omitempty"`
	Reason     string `json:"r,omitempty"`
	Detail     string `json:"d,omitempty"`
	Coalesced  int    `json:"co,omitempty"`
	LastTS     int64  `json:"lts,omitempty"`
}

type StoredTrapDoor struct {
	U                   int     `json:"u"`
	T                   int     `json:"t,omitempty"`
	PostVisitDurationMs int64   `json:"dur"`
	PostVisitDepth      int     `json:"depth"`
	Score               float64 `json:"s"`
}

type StoredTab struct {
	U         int    `json:"u"`
	T         int    `json:"t,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	LastSeen  int64  `json:"lastSeen"`
}
