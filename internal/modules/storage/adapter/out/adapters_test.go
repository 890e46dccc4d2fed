package out

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	activity "tabtrail/internal/modules/activity/domain"
	"tabtrail/internal/modules/storage/dto"
	apperrors "tabtrail/internal/platform/errors"
	"tabtrail/internal/platform/markdown"
)

func TestSQLiteRecordStorePutGet(t *testing.T) {
	t.Parallel()
	store, err := NewSQLiteRecordStore(filepath.Join(t.TempDir(), "nested", "tabtrail.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, err = store.Get(ctx, "state")
	require.True(t, errors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, store.Put(ctx, "state", []byte(`{"schemaVersion":4}`)))
	require.NoError(t, store.Put(ctx, "state", []byte(`{"schemaVersion":4,"kind":"primary"}`)))
	got, err := store.Get(ctx, "state")
	require.NoError(t, err)
	require.Equal(t, `{"schemaVersion":4,"kind":"primary"}`, string(got))
}

func TestSQLiteSessionIndexFilters(t *testing.T) {
	t.Parallel()
	index, err := NewSQLiteSessionIndex(filepath.Join(t.TempDir(), "tabtrail.db"))
	require.NoError(t, err)
	defer index.Close()
	ctx := context.Background()

	rows := []dto.SessionRow{
		{ID: "a", StartedAt: 100, EndedAt: 150, EndReason: "day_end", TotalActiveMs: 60_000, DominantCategory: "Docs"},
		{ID: "b", StartedAt: 200, Archived: true, Summary: "old reading"},
		{ID: "c", StartedAt: 300, Deleted: true},
		{ID: "d", StartedAt: 400, Active: true, Favorite: true, DistractionAverage: 0.42, DistractionLabel: "Medium", DriftLabel: "Focused"},
	}
	require.NoError(t, index.ReplaceAll(ctx, rows))

	got, err := index.List(ctx, dto.SessionQuery{})
	require.NoError(t, err)
	require.Equal(t, []dto.SessionRow{rows[3], rows[0]}, got)

	got, err = index.List(ctx, dto.SessionQuery{IncludeArchived: true, IncludeDeleted: true, Limit: 3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "d", got[0].ID)
	require.Equal(t, "old reading", got[2].Summary)

	got, err = index.List(ctx, dto.SessionQuery{FavoritesOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].Active)

	require.NoError(t, index.ReplaceAll(ctx, rows[:1]))
	got, err = index.List(ctx, dto.SessionQuery{IncludeArchived: true, IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestMarkdownNoteExporterWritesFrontmatter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	exporter := NewMarkdownNoteExporter(dir, time.UTC)

	started := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC).UnixMilli()
	note := dto.SessionNote{
		Row: dto.SessionRow{
			ID:               "s-1",
			StartedAt:        started,
			TotalActiveMs:    95 * 60_000,
			NavigationCount:  1234,
			NodesCount:       2,
			DistractionLabel: "Low",
			DriftLabel:       "Focused",
			Summary:          "Read the net/http docs.",
		},
		TopPages: []activity.Node{
			{URL: "https://pkg.go.dev/net/http", Title: "http | pkg", Category: "Code", ActiveMs: 90 * 60_000, VisitCount: 3},
		},
		TrapDoors: []activity.TrapDoor{{URL: "https://news.example/", PostVisitDurationMs: 25 * 60_000, PostVisitDepth: 8, Score: 0.77}},
		Drivers:   []string{"anchor"},
	}

	path, err := exporter.Export(context.Background(), note)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "2024", "06", "03", "s-1.md"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	meta, body, err := markdown.Parse(string(raw))
	require.NoError(t, err)
	require.Equal(t, "s-1", meta["id"])
	require.Equal(t, 95, meta["active_minutes"])
	require.NotContains(t, meta, "ended_at")
	require.Contains(t, body, "- Active: 1h35m")
	require.Contains(t, body, "1,234 navigations")
	require.Contains(t, body, `[http \| pkg](https://pkg.go.dev/net/http)`)
	require.Contains(t, body, "## Trap doors")
	require.True(t, strings.HasPrefix(body, "\n# Browsing Monday, 3 Jun 2024"))
}

func TestRedisReplicaStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	store, err := NewRedisReplicaStore(ctx, redisURL, "tabtrail-test:"+t.Name()+":")
	require.NoError(t, err)
	defer store.Close()
	defer store.Delete(ctx, "replica")

	_, err = store.Get(ctx, "replica")
	require.True(t, errors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, store.Put(ctx, "replica", []byte("payload")))
	got, err := store.Get(ctx, "replica")
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))
}
