package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"tabtrail/internal/bootstrap"
	classifierin "tabtrail/internal/modules/classifier/adapter/in"
	"tabtrail/internal/modules/storage/dto"
	"tabtrail/internal/platform/config"
	"tabtrail/internal/ui/theme"
)

type classifierCLI = classifierin.CLIHandler

func withClassifiers(ctx context.Context, dataDir string, fn func(h classifierCLI) error) (err error) {
	cfg, err := config.New(dataDir)
	if err != nil {
		return err
	}
	h, closeFn, err := bootstrap.NewClassifierCLI(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeFn())
	}()
	return fn(h)
}

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func sessionTable(rows []dto.SessionRow) string {
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Surface1)).
		StyleFunc(func(_, _ int) lipgloss.Style { return cell }).
		Headers("ID", "STARTED", "ACTIVE", "NAVS", "PAGES", "CATEGORY", "DISTRACTION", "DRIFT", "FLAGS")
	for _, r := range rows {
		t.Row(
			shortID(r.ID),
			humanize.Time(time.UnixMilli(r.StartedAt)),
			activeTime(r.TotalActiveMs),
			humanize.Comma(int64(r.NavigationCount)),
			humanize.Comma(int64(r.NodesCount)),
			orDash(r.DominantCategory),
			fmt.Sprintf("%.0f %s", r.DistractionAverage, r.DistractionLabel),
			orDash(r.DriftLabel),
			flags(r),
		)
	}
	return t.Render()
}

func flags(r dto.SessionRow) string {
	var out []string
	if r.Active {
		out = append(out, "active")
	}
	if r.Favorite {
		out = append(out, "favorite")
	}
	if r.Archived {
		out = append(out, "archived")
	}
	if r.Deleted {
		out = append(out, "deleted")
	}
	return strings.Join(out, ",")
}

func activeTime(ms int64) string {
	d := (time.Duration(ms) * time.Millisecond).Round(time.Second)
	if d < time.Minute {
		return d.String()
	}
	return d.Round(time.Minute).String()
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
