package slug

import (
	"regexp"
	"strings"
)

const maxLen = 80

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Make joins the non-empty parts into a lowercase file-name-safe slug of at
// most 80 bytes, cut at a dash when it has to be shortened.
func Make(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = nonAlphaNum.ReplaceAllString(strings.ToLower(strings.TrimSpace(p)), "-")
		if p = strings.Trim(p, "-"); p != "" {
			kept = append(kept, p)
		}
	}
	s := strings.Join(kept, "-")
	if len(s) > maxLen {
		s = s[:maxLen]
		if cut := strings.LastIndexByte(s, '-'); cut > maxLen/2 {
			s = s[:cut]
		}
		s = strings.Trim(s, "-")
	}
	if s == "" {
		return "untitled"
	}
	return s
}
