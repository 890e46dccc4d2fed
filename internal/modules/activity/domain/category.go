package domain

import "strings"

const (
	CategoryStudy    = "Study"
	CategoryDocs     = "Docs"
	CategoryCode     = "Code"
	CategoryWork     = "Work"
	CategoryVideo    = "Video"
	CategorySocial   = "Social"
	CategoryGames    = "Games"
	CategoryShopping = "Shopping"
	CategoryNews     = "News"
	CategorySearch   = "Search"
	CategoryMail     = "Mail"
	CategoryOther    = "Other"
)

// Group buckets categories for intent-split decisions.
type Group string

const (
	GroupProductive    Group = "productive"
	GroupEntertainment Group = "entertainment"
	GroupNeutral       Group = "neutral"
)

var categoryGroups = map[string]Group{
	CategoryStudy:    GroupProductive,
	CategoryDocs:     GroupProductive,
	CategoryCode:     GroupProductive,
	CategoryWork:     GroupProductive,
	CategoryVideo:    GroupEntertainment,
	CategorySocial:   GroupEntertainment,
	CategoryGames:    GroupEntertainment,
	CategoryShopping: GroupEntertainment,
}

var categoryMultipliers = map[string]float64{
	CategoryVideo:    1.3,
	CategorySocial:   1.4,
	CategoryGames:    1.3,
	CategoryShopping: 1.2,
	CategoryNews:     1.1,
	CategoryOther:    1.0,
	CategorySearch:   0.6,
	CategoryMail:     0.7,
	CategoryStudy:    0.5,
	CategoryDocs:     0.5,
	CategoryCode:     0.4,
	CategoryWork:     0.5,
}

func CategoryGroup(category string) Group {
	if g, ok := categoryGroups[category]; ok {
		return g
	}
	return GroupNeutral
}

func CategoryMultiplier(category string) float64 {
	if m, ok := categoryMultipliers[category]; ok {
		return m
	}
	return 1.0
}

func KnownCategory(category string) bool {
	_, ok := categoryMultipliers[category]
	return ok
}

// OppositeGroups reports whether a and b sit on different sides of the
// productive/entertainment divide. Neutral never opposes anything.
func OppositeGroups(a, b Group) bool {
	if a == GroupNeutral || b == GroupNeutral {
		return false
	}
	return a != b
}

// Classifier maps a page to a category. ok=false defers to the next classifier.
type Classifier interface {
	Classify(url, title string) (category string, ok bool)
}

// Rule matches on domain suffixes, path prefixes or title keywords.
type Rule struct {
	Category      string
	Domains       []string
	PathPrefixes  []string
	TitleKeywords []string
}

func (r Rule) matches(host, path, title string) bool {
	domainHit := len(r.Domains) == 0
	for _, d := range r.Domains {
		if DomainMatches(host, d) {
			domainHit = true
			break
		}
	}
	if !domainHit {
		return false
	}
	if len(r.PathPrefixes) > 0 {
		pathHit := false
		for _, p := range r.PathPrefixes {
			if strings.HasPrefix(path, p) {
				pathHit = true
				break
			}
		}
		if !pathHit {
			return false
		}
	}
	if len(r.TitleKeywords) > 0 {
		for _, kw := range r.TitleKeywords {
			if strings.Contains(title, kw) {
				return true
			}
		}
		return false
	}
	return len(r.Domains) > 0 || len(r.PathPrefixes) > 0
}

// RuleTable is an ordered list of rules; the first match wins.
type RuleTable []Rule

func (t RuleTable) Classify(rawURL, title string) (string, bool) {
	host := Domain(rawURL)
	path := urlPath(rawURL)
	lowerTitle := strings.ToLower(title)
	for _, rule := range t {
		if rule.matches(host, path, lowerTitle) {
			return rule.Category, true
		}
	}
	return "", false
}

// DefaultRules is the built-in table consulted after any plugin classifier.
func DefaultRules() RuleTable {
	return RuleTable{
		{Category: CategoryCode, Domains: []string{"github.com", "gitlab.com", "bitbucket.org", "stackoverflow.com", "go.dev", "pkg.go.dev", "codeberg.org"}},
		{Category: CategoryDocs, Domains: []string{"developer.mozilla.org", "docs.python.org", "readthedocs.io", "learn.microsoft.com", "docs.rs"}},
		{Category: CategoryDocs, PathPrefixes: []string{"/docs", "/documentation", "/reference", "/api"}},
		{Category: CategoryStudy, Domains: []string{"wikipedia.org", "coursera.org", "khanacademy.org", "edx.org", "arxiv.org", "udemy.com", "scholar.google.com"}},
		{Category: CategoryWork, Domains: []string{"atlassian.net", "notion.so", "linear.app", "slack.com", "figma.com", "docs.google.com", "trello.com"}},
		{Category: CategoryMail, Domains: []string{"mail.google.com", "outlook.live.com", "outlook.office.com", "proton.me", "fastmail.com"}},
		{Category: CategorySearch, Domains: []string{"google.com", "bing.com", "duckduckgo.com", "kagi.com"}},
		{Category: CategoryVideo, Domains: []string{"youtube.com", "youtu.be", "netflix.com", "twitch.tv", "vimeo.com", "hulu.com", "disneyplus.com"}},
		{Category: CategorySocial, Domains: []string{"twitter.com", "x.com", "facebook.com", "instagram.com", "reddit.com", "tiktok.com", "linkedin.com", "threads.net", "bsky.app", "mastodon.social"}},
		{Category: CategoryGames, Domains: []string{"store.steampowered.com", "steamcommunity.com", "itch.io", "chess.com", "lichess.org", "roblox.com"}},
		{Category: CategoryShopping, Domains: []string{"amazon.com", "ebay.com", "etsy.com", "aliexpress.com", "walmart.com", "bestbuy.com"}},
		{Category: CategoryNews, Domains: []string{"nytimes.com", "bbc.co.uk", "bbc.com", "theguardian.com", "cnn.com", "reuters.com", "news.ycombinator.com", "theverge.com"}},
		{Category: CategoryStudy, TitleKeywords: []string{"tutorial", "lecture", "course", "how to"}},
		{Category: CategoryDocs, TitleKeywords: []string{"documentation", "api reference", "manual"}},
	}
}

// ChainClassifier consults each classifier in order and falls back to Other.
type ChainClassifier []Classifier

func (c ChainClassifier) Classify(rawURL, title string) (string, bool) {
	for _, cl := range c {
		if cl == nil {
			continue
		}
		if cat, ok := cl.Classify(rawURL, title); ok && KnownCategory(cat) {
			return cat, true
		}
	}
	return CategoryOther, true
}

// Categorize runs a classifier and never returns an empty category.
func Categorize(cl Classifier, rawURL, title string) string {
	if cl == nil {
		cl = DefaultRules()
	}
	if cat, ok := cl.Classify(rawURL, title); ok && KnownCategory(cat) {
		return cat
	}
	return CategoryOther
}
