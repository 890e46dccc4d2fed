package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"tabtrail/internal/modules/storage/dto"
	storageout "tabtrail/internal/modules/storage/port/out"
	"tabtrail/internal/platform/markdown"
	"tabtrail/internal/platform/slug"
)

// MarkdownNoteExporter writes one note per session under
// <dir>/YYYY/MM/DD/<session-id>.md with YAML frontmatter.
type MarkdownNoteExporter struct {
	dir string
	loc *time.Location
}

var _ storageout.NoteExporter = (*MarkdownNoteExporter)(nil)

func NewMarkdownNoteExporter(dir string, loc *time.Location) *MarkdownNoteExporter {
	if loc == nil {
		loc = time.Local
	}
	return &MarkdownNoteExporter{dir: dir, loc: loc}
}

func (e *MarkdownNoteExporter) Export(_ context.Context, note dto.SessionNote) (string, error) {
	content, err := RenderNote(note, e.loc)
	if err != nil {
		return "", err
	}
	started := time.UnixMilli(note.Row.StartedAt).In(e.loc)
	dir := filepath.Join(e.dir, started.Format("2006"), started.Format("01"), started.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create note dir: %w", err)
	}
	path := filepath.Join(dir, slug.Make(note.Row.ID)+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write session note: %w", err)
	}
	return path, nil
}

func (e *MarkdownNoteExporter) Render(_ context.Context, note dto.SessionNote) (string, error) {
	return RenderNote(note, e.loc)
}

// RenderNote is the note body without touching the filesystem.
func RenderNote(note dto.SessionNote, loc *time.Location) (string, error) {
	row := note.Row
	started := time.UnixMilli(row.StartedAt).In(loc)
	var meta markdown.Frontmatter
	meta.Set("id", row.ID)
	meta.Set("started_at", started.Format(time.RFC3339))
	if row.EndedAt > 0 {
		meta.Set("ended_at", time.UnixMilli(row.EndedAt).In(loc).Format(time.RFC3339))
		meta.Set("end_reason", row.EndReason)
	}
	meta.Set("active_minutes", row.TotalActiveMs/60_000)
	meta.Set("navigations", row.NavigationCount)
	meta.Set("pages", row.NodesCount)
	meta.Set("dominant_category", row.DominantCategory)
	meta.Set("distraction_average", row.DistractionAverage)
	meta.Set("distraction_label", row.DistractionLabel)
	meta.Set("intent_drift", row.DriftLabel)
	meta.Set("favorite", row.Favorite)
	meta.Set("archived", row.Archived)

	var b strings.Builder
	fmt.Fprintf(&b, "# Browsing %s\n\n", started.Format("Monday, 2 Jan 2006"))
	fmt.Fprintf(&b, "- Active: %s\n", humanDuration(row.TotalActiveMs))
	fmt.Fprintf(&b, "- Pages: %s across %s navigations\n", humanize.Comma(int64(row.NodesCount)), humanize.Comma(int64(row.NavigationCount)))
	fmt.Fprintf(&b, "- Distraction: %s (%.2f)\n", orDash(row.DistractionLabel), row.DistractionAverage)
	fmt.Fprintf(&b, "- Intent drift: %s\n", orDash(row.DriftLabel))
	if len(note.Drivers) > 0 {
		fmt.Fprintf(&b, "- Drift drivers: %s\n", strings.Join(note.Drivers, ", "))
	}
	if row.Summary != "" {
		fmt.Fprintf(&b, "\n## Summary\n\n%s\n", row.Summary)
	}
	if len(note.TopPages) > 0 {
		b.WriteString("\n## Top pages\n\n| Page | Category | Active | Visits |\n|---|---|---|---|\n")
		for _, page := range note.TopPages {
			title := page.Title
			if title == "" {
				title = page.URL
			}
			fmt.Fprintf(&b, "| [%s](%s) | %s | %s | %d |\n", escapeCell(title), page.URL, page.Category, humanDuration(page.ActiveMs), page.VisitCount)
		}
	}
	if len(note.TrapDoors) > 0 {
		b.WriteString("\n## Trap doors\n\n")
		for _, td := range note.TrapDoors {
			fmt.Fprintf(&b, "- %s: %s and %d pages after it (score %.2f)\n", td.URL, humanDuration(td.PostVisitDurationMs), td.PostVisitDepth, td.Score)
		}
	}
	return markdown.Render(meta, b.String())
}

func humanDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func escapeCell(v string) string {
	return strings.ReplaceAll(v, "|", `\|`)
}
