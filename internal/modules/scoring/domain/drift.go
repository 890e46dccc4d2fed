package domain

import (
	"math"
	"sort"

	activity "tabtrail/internal/modules/activity/domain"
)

const (
	DriftFocused   = "Focused"
	DriftExploring = "Exploring"
	DriftDrifting  = "Drifting"
	DriftUnknown   = "Unknown"

	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"

	driftMinActiveMs = 2 * 60_000
	driftMinNodes    = 2

	shortVisitMs      = 30_000
	ultraShortVisitMs = 8_000
	hopRateSaturation = 4.0
)

const (
	DriverHopRate          = "hop_rate"
	DriverShortVisits      = "short_visits"
	DriverUltraShortVisits = "ultra_short_visits"
	DriverDomainEntropy    = "domain_entropy"
	DriverCategoryEntropy  = "category_entropy"
	DriverAnchorWeakness   = "anchor_weakness"
	DriverCrossDomain      = "cross_domain"
	DriverFeedLike         = "feed_like"
	DriverFocus            = "focus"
	DriverLooping          = "looping"
	DriverTechnical        = "technical"
	DriverProductive       = "productive_alignment"
	DriverDistracting      = "distracting_alignment"
)

type sensitivityProfile struct {
	scale     float64
	exploring float64
	drifting  float64
}

var sensitivityProfiles = map[string]sensitivityProfile{
	SensitivityLow:      {scale: 0.85, exploring: 0.40, drifting: 0.68},
	SensitivityBalanced: {scale: 1.00, exploring: 0.33, drifting: 0.60},
	SensitivityHigh:     {scale: 1.15, exploring: 0.27, drifting: 0.52},
}

func profileFor(sensitivity string) sensitivityProfile {
	if p, ok := sensitivityProfiles[sensitivity]; ok {
		return p
	}
	return sensitivityProfiles[SensitivityBalanced]
}

// ValidSensitivity reports whether s names a known profile.
func ValidSensitivity(s string) bool {
	_, ok := sensitivityProfiles[s]
	return ok
}

type contribution struct {
	name  string
	value float64
}

// ComputeIntentDrift estimates how far the session strayed from a focused
// task. Sessions below the sample floor are always Unknown with low confidence.
func ComputeIntentDrift(s *activity.Session, sig Signals, prefs Preferences) activity.IntentDrift {
	if sig.TotalActiveMs < driftMinActiveMs || sig.NodesCount < driftMinNodes {
		return activity.UnknownDrift()
	}

	var short, ultraShort, technicalMs, productiveMs, distractingMs int64
	domainMs := map[string]int64{}
	categoryMs := map[string]int64{}
	for _, node := range s.Nodes {
		if node.ActiveMs < shortVisitMs {
			short++
		}
		if node.ActiveMs < ultraShortVisitMs {
			ultraShort++
		}
		domainMs[activity.Domain(node.URL)] += node.ActiveMs
		categoryMs[node.Category] += node.ActiveMs
		if IsTechnicalURL(node.URL, node.Category) {
			technicalMs += node.ActiveMs
		}
		if prefs.IsProductive(node.URL) {
			productiveMs += node.ActiveMs
		}
		if prefs.IsDistracting(node.URL) {
			distractingMs += node.ActiveMs
		}
	}
	nodes := float64(len(s.Nodes))
	total := float64(sig.TotalActiveMs)

	contributions := []contribution{
		{DriverHopRate, 0.18 * math.Min(1, sig.HopRate/hopRateSaturation)},
		{DriverShortVisits, 0.12 * float64(short) / nodes},
		{DriverUltraShortVisits, 0.08 * float64(ultraShort) / nodes},
		{DriverDomainEntropy, 0.16 * normalizedEntropy(domainMs)},
		{DriverCategoryEntropy, 0.12 * normalizedEntropy(categoryMs)},
		{DriverAnchorWeakness, 0.14 * (1 - sig.TopShare)},
		{DriverCrossDomain, 0.12 * crossDomainShare(s)},
	}
	if sig.FeedLike {
		contributions = append(contributions, contribution{DriverFeedLike, 0.08})
	}
	if sig.Focused() {
		contributions = append(contributions, contribution{DriverFocus, -0.12})
	}
	if sig.Looping() {
		contributions = append(contributions, contribution{DriverLooping, -0.06})
	}
	contributions = append(contributions,
		contribution{DriverTechnical, -0.10 * float64(technicalMs) / total},
		contribution{DriverProductive, -0.15 * float64(productiveMs) / total},
		contribution{DriverDistracting, 0.15 * float64(distractingMs) / total},
	)

	raw := 0.0
	for _, c := range contributions {
		raw += c.value
	}
	profile := profileFor(prefs.Sensitivity)
	score := clamp01(raw * profile.scale)

	label := DriftFocused
	switch {
	case score >= profile.drifting:
		label = DriftDrifting
	case score >= profile.exploring:
		label = DriftExploring
	}

	drivers := rankContributions(contributions)
	drift := activity.IntentDrift{
		Score:      round3(score),
		Label:      label,
		Confidence: driftConfidence(sig),
		Drivers:    drivers,
	}
	if len(drivers) > 0 {
		drift.Reason = drivers[0]
	}
	return drift
}

func rankContributions(cs []contribution) []string {
	ranked := make([]contribution, 0, len(cs))
	for _, c := range cs {
		if c.value != 0 {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].value) > math.Abs(ranked[j].value)
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	out := make([]string, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, c.name)
	}
	return out
}

// normalizedEntropy is Shannon entropy over the weights divided by log(n).
func normalizedEntropy(weights map[string]int64) float64 {
	var total float64
	n := 0
	for _, w := range weights {
		if w > 0 {
			total += float64(w)
			n++
		}
	}
	if n < 2 || total <= 0 {
		return 0
	}
	h := 0.0
	for _, w := range weights {
		if w <= 0 {
			continue
		}
		p := float64(w) / total
		h -= p * math.Log(p)
	}
	return h / math.Log(float64(n))
}

func crossDomainShare(s *activity.Session) float64 {
	var cross, all int
	for _, e := range s.Edges {
		all += e.VisitCount
		if activity.Domain(e.From) != activity.Domain(e.To) {
			cross += e.VisitCount
		}
	}
	if all == 0 {
		return 0
	}
	return float64(cross) / float64(all)
}

func driftConfidence(sig Signals) string {
	points := 0
	switch {
	case sig.TotalActiveMs >= 20*60_000:
		points += 2
	case sig.TotalActiveMs >= 8*60_000:
		points++
	}
	switch {
	case sig.NodesCount >= 12:
		points += 2
	case sig.NodesCount >= 5:
		points++
	}
	if sig.NavigationCount >= 15 {
		points++
	}
	switch {
	case points >= 4:
		return ConfidenceHigh
	case points >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
