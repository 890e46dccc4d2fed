package domain

import (
	"math"
	"time"

	activity "tabtrail/internal/modules/activity/domain"
)

const (
	activeTimeCap     = 1.5
	activeTimeDivisor = 2.5
	chainDepthMax     = 10.0
	chainDepthScale   = 0.5
	lateNightBonus    = 0.25
	lateNightStart    = 23
	lateNightEnd      = 6

	authDiscount         = 0.3
	focusDiscount        = 0.7
	productiveDiscount   = 0.5
	feedSurcharge        = 1.25
	loopSurcharge        = 1.15
	distractingSurcharge = 1.5

	LabelLow    = "Low"
	LabelMedium = "Medium"
	LabelHigh   = "High"

	mediumThreshold = 0.35
	highThreshold   = 0.7
)

// ComputeDistractionScore scores one node:
// (activeTimeWeight + chainDepthWeight + lateNightWeight) x intentWeight.
// Only activeTimeWeight depends on the node's active time, and it is
// non-decreasing in it.
func ComputeDistractionScore(node *activity.Node, s *activity.Session, sig Signals, prefs Preferences) (float64, activity.ScoreInputs) {
	inputs := activity.ScoreInputs{
		ActiveMs:   node.ActiveMs,
		ChainDepth: chainDepth(node, s),
		LateNight:  isLateNight(node.LastSeen, prefs.location()),
	}
	inputs.IntentWeight = intentWeight(node, sig, prefs)

	score := (activeTimeWeight(node.ActiveMs, node.Category) + chainDepthWeight(inputs.ChainDepth)) * inputs.IntentWeight
	if inputs.LateNight {
		score += lateNightBonus * inputs.IntentWeight
	}
	return score, inputs
}

func activeTimeWeight(activeMs int64, category string) float64 {
	minutes := float64(activeMs) / 60_000
	if minutes < 0 {
		minutes = 0
	}
	return math.Min(activeTimeCap, math.Log1p(minutes)/activeTimeDivisor) * activity.CategoryMultiplier(category)
}

func chainDepth(node *activity.Node, s *activity.Session) int {
	depth := s.NavigationCount - node.FirstNavigationIndex
	if depth < 0 {
		return 0
	}
	return depth
}

func chainDepthWeight(depth int) float64 {
	return chainDepthScale * math.Min(1, float64(depth)/chainDepthMax)
}

func isLateNight(ms int64, loc *time.Location) bool {
	if ms <= 0 {
		return false
	}
	hour := time.UnixMilli(ms).In(loc).Hour()
	return hour >= lateNightStart || hour < lateNightEnd
}

func intentWeight(node *activity.Node, sig Signals, prefs Preferences) float64 {
	w := 1.0
	if IsAuthPage(node.URL) {
		w *= authDiscount
	}
	if sig.Focused() {
		w *= focusDiscount
	}
	if prefs.IsProductive(node.URL) {
		w *= productiveDiscount
	}
	if sig.FeedLike {
		w *= feedSurcharge
	}
	if sig.Looping() {
		w *= loopSurcharge
	}
	if prefs.IsDistracting(node.URL) {
		w *= distractingSurcharge
	}
	return w
}

func DistractionLabel(score float64) string {
	switch {
	case score >= highThreshold:
		return LabelHigh
	case score >= mediumThreshold:
		return LabelMedium
	default:
		return LabelLow
	}
}
