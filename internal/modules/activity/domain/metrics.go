package domain

// Metrics is the incrementally maintained aggregate cache of a session.
// MaxDirty marks only MaxNodeActiveMs as possibly stale.
type Metrics struct {
	TotalActiveMs   int64            `json:"totalActiveMs"`
	NodesCount      int              `json:"nodesCount"`
	MaxNodeActiveMs int64            `json:"maxNodeActiveMs"`
	RevisitCount    int              `json:"revisitCount"`
	WeightedScore   float64          `json:"weightedScore"`
	CategoryTotals  map[string]int64 `json:"categoryTotals"`
	MaxDirty        bool             `json:"maxDirty,omitempty"`
}

func (m Metrics) clone() Metrics {
	m.CategoryTotals = cloneTotals(m.CategoryTotals)
	return m
}

// RecomputeMetrics derives the aggregates from scratch.
func RecomputeMetrics(s *Session) Metrics {
	m := Metrics{CategoryTotals: map[string]int64{}}
	for _, node := range s.Nodes {
		m.NodesCount++
		m.TotalActiveMs += node.ActiveMs
		if node.ActiveMs > m.MaxNodeActiveMs {
			m.MaxNodeActiveMs = node.ActiveMs
		}
		if node.VisitCount > 1 {
			m.RevisitCount += node.VisitCount - 1
		}
		m.WeightedScore += node.DistractionScore * float64(node.ActiveMs)
		if node.ActiveMs > 0 {
			m.CategoryTotals[node.Category] += node.ActiveMs
		}
	}
	return m
}

// RefreshMetrics replaces the cache with a full recompute.
func (s *Session) RefreshMetrics() {
	s.Metrics = RecomputeMetrics(s)
}

// MaxNodeActiveMs rescans nodes only when the max is marked stale.
func (s *Session) MaxNodeActiveMs() int64 {
	if s.Metrics.MaxDirty {
		var max int64
		for _, node := range s.Nodes {
			if node.ActiveMs > max {
				max = node.ActiveMs
			}
		}
		s.Metrics.MaxNodeActiveMs = max
		s.Metrics.MaxDirty = false
	}
	return s.Metrics.MaxNodeActiveMs
}

func (s *Session) metricsAddNode(node *Node) {
	if s.Metrics.CategoryTotals == nil {
		s.Metrics.CategoryTotals = map[string]int64{}
	}
	s.Metrics.NodesCount++
	if node.VisitCount > 1 {
		s.Metrics.RevisitCount += node.VisitCount - 1
	}
	s.Metrics.TotalActiveMs += node.ActiveMs
	s.Metrics.WeightedScore += node.DistractionScore * float64(node.ActiveMs)
	if node.ActiveMs > 0 {
		s.Metrics.CategoryTotals[node.Category] += node.ActiveMs
	}
	if node.ActiveMs > s.Metrics.MaxNodeActiveMs {
		s.Metrics.MaxNodeActiveMs = node.ActiveMs
	}
}

// AddActiveTime credits ms to node (and the edge it was reached by, if any).
func (s *Session) AddActiveTime(node *Node, edge *Edge, ms int64) {
	if ms <= 0 {
		return
	}
	if s.Metrics.CategoryTotals == nil {
		s.Metrics.CategoryTotals = map[string]int64{}
	}
	node.ActiveMs += ms
	s.Metrics.TotalActiveMs += ms
	s.Metrics.CategoryTotals[node.Category] += ms
	s.Metrics.WeightedScore += node.DistractionScore * float64(ms)
	if !s.Metrics.MaxDirty && node.ActiveMs > s.Metrics.MaxNodeActiveMs {
		s.Metrics.MaxNodeActiveMs = node.ActiveMs
	}
	if edge != nil {
		edge.ActiveMs += ms
	}
}

// SetNodeScore updates a node's distraction score and the weighted sum.
func (s *Session) SetNodeScore(node *Node, score float64) {
	s.Metrics.WeightedScore += (score - node.DistractionScore) * float64(node.ActiveMs)
	node.DistractionScore = score
}

// SetNodeCategory moves the node's active time to a new category.
func (s *Session) SetNodeCategory(node *Node, category string) {
	if node.Category == category {
		return
	}
	if s.Metrics.CategoryTotals == nil {
		s.Metrics.CategoryTotals = map[string]int64{}
	}
	if node.ActiveMs > 0 {
		s.Metrics.CategoryTotals[node.Category] -= node.ActiveMs
		if s.Metrics.CategoryTotals[node.Category] <= 0 {
			delete(s.Metrics.CategoryTotals, node.Category)
		}
		s.Metrics.CategoryTotals[category] += node.ActiveMs
	}
	node.Category = category
}

// RemoveNode drops a node and its edges, keeping the cache consistent.
func (s *Session) RemoveNode(url string) {
	node, ok := s.Nodes[url]
	if !ok {
		return
	}
	delete(s.Nodes, url)
	s.Metrics.NodesCount--
	s.Metrics.TotalActiveMs -= node.ActiveMs
	s.Metrics.WeightedScore -= node.DistractionScore * float64(node.ActiveMs)
	if node.VisitCount > 1 {
		s.Metrics.RevisitCount -= node.VisitCount - 1
	}
	if node.ActiveMs > 0 {
		s.Metrics.CategoryTotals[node.Category] -= node.ActiveMs
		if s.Metrics.CategoryTotals[node.Category] <= 0 {
			delete(s.Metrics.CategoryTotals, node.Category)
		}
	}
	if node.ActiveMs >= s.Metrics.MaxNodeActiveMs {
		s.Metrics.MaxDirty = true
	}
	for key, edge := range s.Edges {
		if edge.From == url || edge.To == url {
			delete(s.Edges, key)
		}
	}
}
