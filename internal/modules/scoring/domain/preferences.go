// Package domain holds the pure scoring engine: session signals, per-node
// distraction scores, intent drift and trap-door detection.
package domain

import (
	"strings"
	"time"

	activity "tabtrail/internal/modules/activity/domain"
)

const (
	SensitivityLow      = "low"
	SensitivityBalanced = "balanced"
	SensitivityHigh     = "high"
)

// Preferences are the user-declared inputs of the scoring engine.
type Preferences struct {
	Sensitivity        string
	ProductiveDomains  []string
	DistractingDomains []string
	Location           *time.Location
}

func DefaultPreferences() Preferences {
	return Preferences{Sensitivity: SensitivityBalanced, Location: time.Local}
}

func (p Preferences) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p Preferences) IsProductive(rawURL string) bool {
	return matchesAny(activity.Domain(rawURL), p.ProductiveDomains)
}

func (p Preferences) IsDistracting(rawURL string) bool {
	return matchesAny(activity.Domain(rawURL), p.DistractingDomains)
}

func matchesAny(host string, domains []string) bool {
	if host == "" {
		return false
	}
	for _, d := range domains {
		if activity.DomainMatches(host, d) {
			return true
		}
	}
	return false
}

var authMarkers = []string{"/login", "/signin", "/sign-in", "/logout", "/auth", "/oauth", "/sso", "/2fa", "/mfa"}

// IsAuthPage reports login and identity-provider pages.
func IsAuthPage(rawURL string) bool {
	host := activity.Domain(rawURL)
	if strings.HasPrefix(host, "accounts.") || strings.HasPrefix(host, "login.") || strings.HasPrefix(host, "auth.") {
		return true
	}
	lower := strings.ToLower(rawURL)
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

var technicalMarkers = []string{"/api/", "/docs", "/reference", "/issues", "/pull/", "/commit/", "/blob/", "/wiki/"}

// IsTechnicalURL reports pages that usually belong to focused engineering work.
func IsTechnicalURL(rawURL, category string) bool {
	if category == activity.CategoryCode || category == activity.CategoryDocs {
		return true
	}
	host := activity.Domain(rawURL)
	if host == "localhost" || strings.HasPrefix(host, "127.") {
		return true
	}
	lower := strings.ToLower(rawURL)
	for _, m := range technicalMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
