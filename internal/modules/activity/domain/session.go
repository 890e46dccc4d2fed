package domain

const (
	EndReasonDayEnd      = "day_end"
	EndReasonSuperseded  = "superseded"
	EndReasonManualReset = "manual_reset"
	EndReasonDeleted     = "deleted"
)

// Session is a bounded unit of browsing activity, normally one per calendar day.
// Timestamps are unix milliseconds; zero means unset.
type Session struct {
	ID              string `json:"id"`
	StartedAt       int64  `json:"startedAt"`
	EndedAt         int64  `json:"endedAt,omitempty"`
	UpdatedAt       int64  `json:"updatedAt"`
	EndReason       string `json:"endReason,omitempty"`
	FirstActivityAt int64  `json:"firstActivityAt,omitempty"`
	LastActivityAt  int64  `json:"lastActivityAt,omitempty"`
	NavigationCount int    `json:"navigationCount"`

	Nodes map[string]*Node `json:"nodes"`
	Edges map[string]*Edge `json:"edges"`

	Events        []Event `json:"events"`
	EventCursor   int     `json:"eventCursor"`
	EventSeq      int64   `json:"eventSeq"`
	EventCapacity int     `json:"eventCapacity,omitempty"`

	Metrics Metrics `json:"metrics"`

	TotalActiveMs      int64            `json:"totalActiveMs"`
	CategoryTotals     map[string]int64 `json:"categoryTotals"`
	DistractionAverage float64          `json:"distractionAverage"`
	DistractionLabel   string           `json:"distractionLabel,omitempty"`
	IntentDrift        IntentDrift      `json:"intentDrift"`
	TrapDoors          []TrapDoor       `json:"trapDoors"`

	Archived   bool  `json:"archived,omitempty"`
	ArchivedAt int64 `json:"archivedAt,omitempty"`
	Deleted    bool  `json:"deleted,omitempty"`
	DeletedAt  int64 `json:"deletedAt,omitempty"`
	Favorite   bool  `json:"favorite,omitempty"`
	FavoriteAt int64 `json:"favoriteAt,omitempty"`

	Summary          string `json:"summary,omitempty"`
	SummaryUpdatedAt int64  `json:"summaryUpdatedAt,omitempty"`
}

// Node aggregates activity for one normalized URL within a session.
type Node struct {
	URL                  string      `json:"url"`
	Title                string      `json:"title,omitempty"`
	Category             string      `json:"category"`
	VisitCount           int         `json:"visitCount"`
	ActiveMs             int64       `json:"activeMs"`
	FirstSeen            int64       `json:"firstSeen"`
	LastSeen             int64       `json:"lastSeen"`
	FirstNavigationIndex int         `json:"firstNavigationIndex"`
	LastNavigationIndex  int         `json:"lastNavigationIndex"`
	DistractionScore     float64     `json:"distractionScore"`
	ScoreInputs          ScoreInputs `json:"scoreInputs"`
}

// ScoreInputs caches what the last distraction score was computed from.
type ScoreInputs struct {
	ActiveMs     int64   `json:"activeMs"`
	ChainDepth   int     `json:"chainDepth"`
	LateNight    bool    `json:"lateNight,omitempty"`
	IntentWeight float64 `json:"intentWeight"`
}

// Edge is a directed transition between two URLs of one session.
type Edge struct {
	From       string `json:"from"`
	To         string `json:"to"`
	VisitCount int    `json:"visitCount"`
	ActiveMs   int64  `json:"activeMs"`
	FirstSeen  int64  `json:"firstSeen"`
	LastSeen   int64  `json:"lastSeen"`
}

type IntentDrift struct {
	Score      float64  `json:"score"`
	Label      string   `json:"label"`
	Reason     string   `json:"reason,omitempty"`
	Confidence string   `json:"confidence"`
	Drivers    []string `json:"drivers,omitempty"`
}

type TrapDoor struct {
	URL                 string  `json:"url"`
	Title               string  `json:"title,omitempty"`
	PostVisitDurationMs int64   `json:"postVisitDurationMs"`
	PostVisitDepth      int     `json:"postVisitDepth"`
	Score               float64 `json:"score"`
}

// EdgeKey is the map key of the (from, to) edge.
func EdgeKey(from, to string) string {
	return from + " -> " + to
}

func NewSession(id string, startedAt int64, eventCapacity int) *Session {
	return &Session{
		ID:             id,
		StartedAt:      startedAt,
		UpdatedAt:      startedAt,
		Nodes:          map[string]*Node{},
		Edges:          map[string]*Edge{},
		EventCapacity:  eventCapacity,
		Metrics:        Metrics{CategoryTotals: map[string]int64{}},
		CategoryTotals: map[string]int64{},
		IntentDrift:    UnknownDrift(),
	}
}

func UnknownDrift() IntentDrift {
	return IntentDrift{Label: "Unknown", Confidence: "low"}
}

// IsActive reports whether the session is still open.
func (s *Session) IsActive() bool {
	return s.EndedAt == 0 && !s.Deleted
}

// Touch advances UpdatedAt without moving it backwards.
func (s *Session) Touch(now int64) {
	if now > s.UpdatedAt {
		s.UpdatedAt = now
	}
}

// EnsureNode returns the node for url, creating it at the current navigation index.
func (s *Session) EnsureNode(url, title, category string, now int64) (*Node, bool) {
	if node, ok := s.Nodes[url]; ok {
		if title != "" {
			node.Title = title
		}
		return node, false
	}
	node := &Node{
		URL:                  url,
		Title:                title,
		Category:             category,
		FirstSeen:            now,
		LastSeen:             now,
		FirstNavigationIndex: s.NavigationCount,
		LastNavigationIndex:  s.NavigationCount,
	}
	s.Nodes[url] = node
	s.metricsAddNode(node)
	return node, true
}

// RecordVisit counts a visit to node at the current navigation index.
func (s *Session) RecordVisit(node *Node, now int64) {
	node.VisitCount++
	if node.VisitCount > 1 {
		s.Metrics.RevisitCount++
	}
	node.LastNavigationIndex = s.NavigationCount
	if now > node.LastSeen {
		node.LastSeen = now
	}
}

// UpsertEdge records a traversal of from -> to.
func (s *Session) UpsertEdge(from, to string, now int64) *Edge {
	key := EdgeKey(from, to)
	edge, ok := s.Edges[key]
	if !ok {
		edge = &Edge{From: from, To: to, FirstSeen: now}
		s.Edges[key] = edge
	}
	edge.VisitCount++
	edge.LastSeen = now
	return edge
}

// DominantCategory is the category holding the most active time.
func (s *Session) DominantCategory() string {
	best, bestMs := "", int64(0)
	for category, ms := range s.Metrics.CategoryTotals {
		if ms > bestMs || (ms == bestMs && ms > 0 && category < best) {
			best, bestMs = category, ms
		}
	}
	return best
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	out := *s
	out.Nodes = make(map[string]*Node, len(s.Nodes))
	for k, v := range s.Nodes {
		n := *v
		out.Nodes[k] = &n
	}
	out.Edges = make(map[string]*Edge, len(s.Edges))
	for k, v := range s.Edges {
		e := *v
		out.Edges[k] = &e
	}
	out.Events = append([]Event(nil), s.Events...)
	out.Metrics = s.Metrics.clone()
	out.CategoryTotals = cloneTotals(s.CategoryTotals)
	out.IntentDrift.Drivers = append([]string(nil), s.IntentDrift.Drivers...)
	out.TrapDoors = append([]TrapDoor(nil), s.TrapDoors...)
	return &out
}

func cloneTotals(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
