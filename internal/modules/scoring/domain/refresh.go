package domain

import activity "tabtrail/internal/modules/activity/domain"

// ScoreNode rescores one node against fresh session signals.
func ScoreNode(s *activity.Session, node *activity.Node, prefs Preferences) {
	sig := ComputeSessionSignals(s)
	score, inputs := ComputeDistractionScore(node, s, sig, prefs)
	s.SetNodeScore(node, round3(score))
	node.ScoreInputs = inputs
}

// RefreshInsights rescores every node and derives the session-level
// distraction average, category totals and intent drift.
func RefreshInsights(s *activity.Session, prefs Preferences) {
	sig := ComputeSessionSignals(s)
	for _, node := range s.Nodes {
		score, inputs := ComputeDistractionScore(node, s, sig, prefs)
		s.SetNodeScore(node, round3(score))
		node.ScoreInputs = inputs
	}
	s.TotalActiveMs = s.Metrics.TotalActiveMs
	s.CategoryTotals = make(map[string]int64, len(s.Metrics.CategoryTotals))
	for k, v := range s.Metrics.CategoryTotals {
		if v > 0 {
			s.CategoryTotals[k] = v
		}
	}
	if s.Metrics.TotalActiveMs > 0 {
		s.DistractionAverage = round3(s.Metrics.WeightedScore / float64(s.Metrics.TotalActiveMs))
	} else {
		s.DistractionAverage = 0
	}
	s.DistractionLabel = DistractionLabel(s.DistractionAverage)
	s.IntentDrift = ComputeIntentDrift(s, sig, prefs)
}
