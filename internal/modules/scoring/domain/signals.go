package domain

import activity "tabtrail/internal/modules/activity/domain"

const (
	feedLikeHopRate  = 3.0
	feedLikeDwellMs  = 45_000
	focusTopShare    = 0.6
	focusMaxHopRate  = 1.5
	loopRevisitShare = 0.4
)

// Signals are session-wide behavioral aggregates.
type Signals struct {
	TotalActiveMs   int64   `json:"totalActiveMs"`
	NavigationCount int     `json:"navigationCount"`
	NodesCount      int     `json:"nodesCount"`
	HopRate         float64 `json:"hopRate"`
	TopShare        float64 `json:"topShare"`
	RevisitShare    float64 `json:"revisitShare"`
	AvgDwellMs      float64 `json:"avgDwellMs"`
	FeedLike        bool    `json:"feedLike"`
}

// Focused is sustained attention on one page with little hopping.
func (s Signals) Focused() bool {
	return s.TopShare >= focusTopShare && s.HopRate < focusMaxHopRate
}

// Looping is bouncing around a small set of pages.
func (s Signals) Looping() bool {
	return s.RevisitShare >= loopRevisitShare
}

// ComputeSessionSignals reads the session's metric cache rather than
// scanning nodes; only a stale max triggers a rescan.
func ComputeSessionSignals(s *activity.Session) Signals {
	m := s.Metrics
	sig := Signals{
		TotalActiveMs:   m.TotalActiveMs,
		NavigationCount: s.NavigationCount,
		NodesCount:      m.NodesCount,
	}
	minutes := float64(m.TotalActiveMs) / 60_000
	if minutes < 1 {
		minutes = 1
	}
	sig.HopRate = float64(s.NavigationCount) / minutes
	if m.TotalActiveMs > 0 {
		sig.TopShare = float64(s.MaxNodeActiveMs()) / float64(m.TotalActiveMs)
	}
	if visits := m.NodesCount + m.RevisitCount; visits > 0 {
		sig.RevisitShare = float64(m.RevisitCount) / float64(visits)
	}
	if m.NodesCount > 0 {
		sig.AvgDwellMs = float64(m.TotalActiveMs) / float64(m.NodesCount)
	}
	sig.FeedLike = sig.HopRate >= feedLikeHopRate && m.NodesCount > 0 && sig.AvgDwellMs < feedLikeDwellMs
	return sig
}
