package watch

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	activity "tabtrail/internal/modules/activity/domain"
	"tabtrail/internal/ui/theme"
)

const (
	listWidth    = 36
	defaultWidth = 110
	topPages     = 6
	trapDoors    = 3
	recentEvents = 8
)

func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	detailWidth := width - listWidth - 6
	if detailWidth < 30 {
		detailWidth = 30
	}

	var body string
	if m.state == nil {
		body = theme.Pane.Width(width - 4).Render(theme.Muted.Render("waiting for the first frame..."))
	} else {
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			theme.Pane.Width(listWidth).Render(m.renderList()),
			theme.PaneActive.Width(detailWidth).Render(m.renderDetail(detailWidth-2)),
		)
	}
	return theme.App.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.help.View(m.keys),
	))
}

func (m Model) renderHeader() string {
	parts := []string{theme.Title.Render("tabtrail watch"), theme.Muted.Render(m.address)}
	switch {
	case m.closed && m.err != nil:
		parts = append(parts, theme.Error.Render("stream failed: "+m.err.Error()))
	case m.closed:
		parts = append(parts, theme.Muted.Render("stream closed"))
	case m.state == nil:
		parts = append(parts, theme.Muted.Render("connecting"))
	default:
		parts = append(parts, theme.Hot.Render("live"))
	}
	if m.state != nil {
		parts = append(parts, theme.Muted.Render(fmt.Sprintf("seq %d  frames %d  resyncs %d", m.seq, m.frames, max(m.snapshots-1, 0))))
		if m.state.Tracking.Paused {
			parts = append(parts, theme.Hot.Render("tracking paused"))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderList() string {
	list := m.sessions()
	if len(list) == 0 {
		return theme.Muted.Render("no sessions")
	}
	var b strings.Builder
	b.WriteString(theme.Title.Render("Sessions"))
	b.WriteString("\n")
	for _, s := range list {
		line := fmt.Sprintf("%s %s %s",
			marker(s, m.state.ActiveSessionID),
			time.UnixMilli(s.StartedAt).Format("Jan 02 15:04"),
			formatMs(s.TotalActiveMs),
		)
		line = truncate(line, listWidth-2)
		if s.ID == m.selectedID {
			line = theme.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func marker(s *activity.Session, activeID string) string {
	switch {
	case s.ID == activeID && s.IsActive():
		return "●"
	case s.Favorite:
		return "★"
	case s.Archived:
		return "▪"
	default:
		return " "
	}
}

func (m Model) renderDetail(width int) string {
	s := m.selected()
	if s == nil {
		return theme.Muted.Render("no session selected")
	}
	var b strings.Builder
	status := "active"
	if !s.IsActive() {
		status = "ended " + humanize.Time(time.UnixMilli(s.EndedAt))
		if s.EndReason != "" {
			status += " (" + s.EndReason + ")"
		}
	}
	fmt.Fprintf(&b, "%s  %s\n", theme.Title.Render(shortID(s.ID)), theme.Muted.Render(status))
	fmt.Fprintf(&b, "started %s, %s active, %s navigations, %s pages\n",
		humanize.RelTime(time.UnixMilli(s.StartedAt), m.now(), "ago", "from now"),
		formatMs(s.TotalActiveMs),
		humanize.Comma(int64(s.NavigationCount)),
		humanize.Comma(int64(len(s.Nodes))),
	)
	fmt.Fprintf(&b, "distraction %s  intent %s\n",
		theme.Score(s.DistractionLabel).Render(fmt.Sprintf("%.0f %s", s.DistractionAverage, orDash(s.DistractionLabel))),
		theme.Score(s.IntentDrift.Label).Render(fmt.Sprintf("%s (%s confidence)", s.IntentDrift.Label, s.IntentDrift.Confidence)),
	)
	if s.IntentDrift.Reason != "" {
		b.WriteString(theme.Muted.Render(truncate(s.IntentDrift.Reason, width)))
		b.WriteString("\n")
	}
	if s.Summary != "" {
		b.WriteString(truncate(s.Summary, width))
		b.WriteString("\n")
	}

	b.WriteString("\n" + theme.Title.Render("Top pages") + "\n")
	pages := topNodes(s, topPages)
	if len(pages) == 0 {
		b.WriteString(theme.Muted.Render("none yet") + "\n")
	}
	for _, node := range pages {
		label := node.Title
		if label == "" {
			label = node.URL
		}
		fmt.Fprintf(&b, "%8s  %-9s %s\n", formatMs(node.ActiveMs), truncate(node.Category, 9), truncate(label, width-20))
	}

	if len(s.TrapDoors) > 0 {
		b.WriteString("\n" + theme.Hot.Render("Trap doors") + "\n")
		for i, td := range s.TrapDoors {
			if i == trapDoors {
				break
			}
			label := td.Title
			if label == "" {
				label = td.URL
			}
			fmt.Fprintf(&b, "%8s  depth %-3d %s\n", formatMs(td.PostVisitDurationMs), td.PostVisitDepth, truncate(label, width-22))
		}
	}

	b.WriteString("\n" + theme.Title.Render("Recent events") + "\n")
	events := s.SessionEvents()
	if len(events) > recentEvents {
		events = events[len(events)-recentEvents:]
	}
	for i := len(events) - 1; i >= 0; i-- {
		b.WriteString(truncate(describeEvent(events[i]), width))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func topNodes(s *activity.Session, n int) []*activity.Node {
	nodes := make([]*activity.Node, 0, len(s.Nodes))
	for _, node := range s.Nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].ActiveMs != nodes[j].ActiveMs {
			return nodes[i].ActiveMs > nodes[j].ActiveMs
		}
		return nodes[i].URL < nodes[j].URL
	})
	if len(nodes) > n {
		nodes = nodes[:n]
	}
	return nodes
}

func describeEvent(ev activity.Event) string {
	at := time.UnixMilli(ev.TS).Format("15:04:05")
	var what string
	switch ev.Type {
	case activity.EventNavigation, activity.EventTabFocus:
		what = ev.URL
		if ev.Title != "" {
			what = ev.Title
		}
		if ev.Coalesced > 0 {
			what += fmt.Sprintf(" (+%d)", ev.Coalesced)
		}
	case activity.EventDiagnostic:
		what = ev.Reason + ": " + ev.Detail
	default:
		what = ev.Reason
	}
	return strings.TrimSpace(fmt.Sprintf("%s %-12s %s", at, ev.Type, what))
}

func formatMs(ms int64) string {
	d := (time.Duration(ms) * time.Millisecond).Round(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func truncate(v string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(v)
	if len(runes) <= n {
		return v
	}
	if n == 1 {
		return "…"
	}
	return string(runes[:n-1]) + "…"
}
