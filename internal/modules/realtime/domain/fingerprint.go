// Package domain computes per-observer deltas of the engine state and
// applies them on the receiving side.
package domain

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"

	activity "tabtrail/internal/modules/activity/domain"
)

type hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func newHasher() *hasher {
	return &hasher{d: xxhash.New()}
}

func (h *hasher) str(v string) {
	h.d.WriteString(v)
	h.d.Write([]byte{0})
}

func (h *hasher) i64(v int64) {
	binary.LittleEndian.PutUint64(h.buf[:], uint64(v))
	h.d.Write(h.buf[:])
}

func (h *hasher) num(v int) {
	h.i64(int64(v))
}

func (h *hasher) f64(v float64) {
	h.i64(int64(math.Float64bits(v)))
}

func (h *hasher) flag(v bool) {
	if v {
		h.i64(1)
		return
	}
	h.i64(0)
}

func (h *hasher) totals(m map[string]int64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.str(k)
		h.i64(m[k])
	}
}

func (h *hasher) sum() uint64 {
	return h.d.Sum64()
}

// SessionFingerprint covers the fields that move while a session is live
// or is changed by a command. Node and edge bodies are not hashed; their
// counts and the aggregate metrics are.
func SessionFingerprint(s *activity.Session) uint64 {
	h := newHasher()
	h.str(s.ID)
	h.i64(s.StartedAt)
	h.i64(s.EndedAt)
	h.i64(s.UpdatedAt)
	h.str(s.EndReason)
	h.i64(s.FirstActivityAt)
	h.i64(s.LastActivityAt)
	h.num(s.NavigationCount)
	h.num(len(s.Nodes))
	h.num(len(s.Edges))
	h.i64(s.EventSeq)
	h.num(s.EventCapacity)
	if last, ok := s.LastEvent(); ok {
		h.i64(int64(EventFingerprint(last)))
	}
	h.i64(s.Metrics.TotalActiveMs)
	h.f64(s.Metrics.WeightedScore)
	h.num(s.Metrics.NodesCount)
	h.i64(s.Metrics.MaxNodeActiveMs)
	h.num(s.Metrics.RevisitCount)
	h.flag(s.Metrics.MaxDirty)
	h.totals(s.Metrics.CategoryTotals)
	h.i64(s.TotalActiveMs)
	h.totals(s.CategoryTotals)
	h.f64(s.DistractionAverage)
	h.str(s.DistractionLabel)
	h.f64(s.IntentDrift.Score)
	h.str(s.IntentDrift.Label)
	h.str(s.IntentDrift.Reason)
	h.str(s.IntentDrift.Confidence)
	for _, d := range s.IntentDrift.Drivers {
		h.str(d)
	}
	h.num(len(s.TrapDoors))
	for _, td := range s.TrapDoors {
		h.str(td.URL)
		h.str(td.Title)
		h.i64(td.PostVisitDurationMs)
		h.num(td.PostVisitDepth)
		h.f64(td.Score)
	}
	h.flag(s.Archived)
	h.i64(s.ArchivedAt)
	h.flag(s.Deleted)
	h.i64(s.DeletedAt)
	h.flag(s.Favorite)
	h.i64(s.FavoriteAt)
	h.str(s.Summary)
	h.i64(s.SummaryUpdatedAt)
	return h.sum()
}

func NodeFingerprint(n *activity.Node) uint64 {
	h := newHasher()
	h.str(n.URL)
	h.str(n.Title)
	h.str(n.Category)
	h.num(n.VisitCount)
	h.i64(n.ActiveMs)
	h.i64(n.FirstSeen)
	h.i64(n.LastSeen)
	h.num(n.FirstNavigationIndex)
	h.num(n.LastNavigationIndex)
	h.f64(n.DistractionScore)
	h.i64(n.ScoreInputs.ActiveMs)
	h.num(n.ScoreInputs.ChainDepth)
	h.flag(n.ScoreInputs.LateNight)
	h.f64(n.ScoreInputs.IntentWeight)
	return h.sum()
}

func EdgeFingerprint(e *activity.Edge) uint64 {
	h := newHasher()
	h.str(e.From)
	h.str(e.To)
	h.num(e.VisitCount)
	h.i64(e.ActiveMs)
	h.i64(e.FirstSeen)
	h.i64(e.LastSeen)
	return h.sum()
}

func EventFingerprint(ev activity.Event) uint64 {
	h := newHasher()
	h.i64(ev.TS)
	h.str(ev.Type)
	h.num(ev.TabID)
	h.str(ev.URL)
	h.str(ev.FromURL)
	h.str(ev.Title)
	h.str(ev.Transition)
	h.str(ev.Reason)
	h.str(ev.Detail)
	h.num(ev.Coalesced)
	h.i64(ev.LastTS)
	return h.sum()
}

func TabsFingerprint(tabs map[int]*activity.TabBinding) uint64 {
	ids := make([]int, 0, len(tabs))
	for id := range tabs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	h := newHasher()
	for _, id := range ids {
		tab := tabs[id]
		h.num(id)
		h.str(tab.URL)
		h.str(tab.Title)
		h.str(tab.SessionID)
		h.i64(tab.LastSeen)
	}
	return h.sum()
}
