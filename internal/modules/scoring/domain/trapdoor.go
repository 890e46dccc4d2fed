package domain

import (
	"sort"

	activity "tabtrail/internal/modules/activity/domain"
)

const (
	TrapDoorMinDurationMs = 20 * 60_000
	TrapDoorMinDepth      = 6
	TrapDoorLimit         = 3

	trapDoorDurationWeight = 0.7
	trapDoorDepthWeight    = 0.3
)

// QualifiesTrapDoor is the candidate threshold: a long tail of time or a deep
// chain of navigation after first visiting the page.
func QualifiesTrapDoor(postVisitDurationMs int64, postVisitDepth int) bool {
	return postVisitDurationMs >= TrapDoorMinDurationMs || postVisitDepth >= TrapDoorMinDepth
}

// TrapDoorScore blends the share of session time and navigations that came after the page.
func TrapDoorScore(postVisitDurationMs, totalActiveMs int64, postVisitDepth, navigationCount int) float64 {
	var durationShare, depthShare float64
	if totalActiveMs > 0 {
		durationShare = float64(postVisitDurationMs) / float64(totalActiveMs)
	}
	if navigationCount > 0 {
		depthShare = float64(postVisitDepth) / float64(navigationCount)
	}
	return round3(trapDoorDurationWeight*clamp01(durationShare) + trapDoorDepthWeight*clamp01(depthShare))
}

// EvaluateTrapDoors returns the top candidates by score. Post-visit
// duration is the active time of every page first reached at or after the
// page's own navigation index.
func EvaluateTrapDoors(s *activity.Session) []activity.TrapDoor {
	if len(s.Nodes) == 0 {
		return []activity.TrapDoor{}
	}
	nodes := make([]*activity.Node, 0, len(s.Nodes))
	var total int64
	for _, n := range s.Nodes {
		nodes = append(nodes, n)
		total += n.ActiveMs
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].FirstNavigationIndex != nodes[j].FirstNavigationIndex {
			return nodes[i].FirstNavigationIndex > nodes[j].FirstNavigationIndex
		}
		return nodes[i].URL < nodes[j].URL
	})

	// Walk from the latest index back, accumulating the suffix sum per index group.
	candidates := []activity.TrapDoor{}
	var suffix int64
	for i := 0; i < len(nodes); {
		idx := nodes[i].FirstNavigationIndex
		j := i
		for j < len(nodes) && nodes[j].FirstNavigationIndex == idx {
			suffix += nodes[j].ActiveMs
			j++
		}
		depth := s.NavigationCount - idx
		if depth < 0 {
			depth = 0
		}
		for _, n := range nodes[i:j] {
			if !QualifiesTrapDoor(suffix, depth) {
				continue
			}
			candidates = append(candidates, activity.TrapDoor{
				URL:                 n.URL,
				Title:               n.Title,
				PostVisitDurationMs: suffix,
				PostVisitDepth:      depth,
				Score:               TrapDoorScore(suffix, total, depth, s.NavigationCount),
			})
		}
		i = j
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].URL < candidates[j].URL
	})
	if len(candidates) > TrapDoorLimit {
		candidates = candidates[:TrapDoorLimit]
	}
	return candidates
}
