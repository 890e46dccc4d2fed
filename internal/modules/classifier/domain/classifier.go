// Package domain describes out-of-process category classifiers: their
// manifests, the request they answer and how verdicts are cached.
package domain

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	activity "tabtrail/internal/modules/activity/domain"
)

type Capability string

const (
	CapabilityClassify Capability = "classify"
	CapabilityTitles   Capability = "titles"
)

var (
	ErrPluginDisabled    = errors.New("classifier is disabled")
	ErrChecksumMismatch  = errors.New("classifier checksum mismatch")
	ErrCapabilityMissing = errors.New("classifier capability missing")
	ErrPluginTimeout     = errors.New("classifier timeout")
)

var (
	sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)
	namePattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

type Manifest struct {
	Name          string       `json:"name" yaml:"name"`
	Version       string       `json:"version" yaml:"version"`
	Binary        string       `json:"binary" yaml:"binary"`
	SHA256        string       `json:"sha256" yaml:"sha256"`
	Enabled       bool         `json:"enabled" yaml:"enabled"`
	Capabilities  []Capability `json:"capabilities" yaml:"capabilities"`
	TimeoutMS     int          `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	MinConfidence float64      `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
}

func (m Manifest) Validate() error {
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("classifier name %q must be lowercase alphanumeric", m.Name)
	}
	if m.Version == "" {
		return fmt.Errorf("classifier version is required")
	}
	if m.Binary == "" {
		return fmt.Errorf("classifier binary path is required")
	}
	if !sha256Pattern.MatchString(m.SHA256) {
		return fmt.Errorf("classifier sha256 must be lowercase 64-char hex")
	}
	if m.TimeoutMS < 0 {
		return fmt.Errorf("classifier timeout_ms must not be negative")
	}
	if m.MinConfidence < 0 || m.MinConfidence > 1 {
		return fmt.Errorf("classifier min_confidence must be within [0, 1]")
	}
	if len(m.Capabilities) == 0 {
		return fmt.Errorf("classifier capabilities are required")
	}
	seen := map[Capability]struct{}{}
	for _, capability := range m.Capabilities {
		if err := capability.Validate(); err != nil {
			return err
		}
		if _, ok := seen[capability]; ok {
			return fmt.Errorf("duplicate capability: %s", capability)
		}
		seen[capability] = struct{}{}
	}
	if !m.HasCapability(CapabilityClassify) {
		return fmt.Errorf("%w: %s", ErrCapabilityMissing, CapabilityClassify)
	}
	return nil
}

func (c Capability) Validate() error {
	switch c {
	case CapabilityClassify, CapabilityTitles:
		return nil
	default:
		return fmt.Errorf("unknown capability: %s", c)
	}
}

func (m Manifest) HasCapability(capability Capability) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

type Metadata struct {
	Name         string
	Version      string
	Capabilities []Capability
	Categories   []string
}

// Request is what a classifier sees of a page. Title is empty unless the
// classifier declared the titles capability.
type Request struct {
	URL   string
	Host  string
	Path  string
	Title string
}

func NewRequest(rawURL, title string, withTitle bool) Request {
	req := Request{URL: rawURL, Host: activity.Domain(rawURL), Path: pathOf(rawURL)}
	if withTitle {
		req.Title = title
	}
	return req
}

type Verdict struct {
	Category   string
	Confidence float64
	Source     string
}

// Usable reports whether v names a known category with enough confidence.
func (v Verdict) Usable(minConfidence float64) bool {
	return activity.KnownCategory(v.Category) && v.Confidence >= minConfidence
}

// CacheKey groups pages that classify alike: the host plus the first path
// segment, so youtube.com/watch and youtube.com/feed are cached apart.
func CacheKey(rawURL string) string {
	host := activity.Domain(rawURL)
	if host == "" {
		return ""
	}
	segment := strings.TrimPrefix(pathOf(rawURL), "/")
	if i := strings.IndexByte(segment, '/'); i >= 0 {
		segment = segment[:i]
	}
	return host + "/" + strings.ToLower(segment)
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
